package ws

import (
	"encoding/json"
	"time"

	"caretrack/internal/domain"
	pkgerrors "caretrack/pkg/errors"
)

// Inbound message types. The envelope's type field selects the payload
// schema; anything else is rejected before any state is touched.
const (
	msgJoin     = "transport:join"
	msgLeave    = "transport:leave"
	msgPosition = "position:update"
	msgStatus   = "status:update"
)

// Outbound message types.
const (
	msgJoined     = "transport:joined"
	msgLeft       = "transport:left"
	msgPositionRx = "position:rx"
	msgStatusRx   = "status:rx"
	msgError      = "error"
)

// Envelope is the wire frame for every inbound message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is the wire frame for every message the server sends.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type joinPayload struct {
	TransportID int64 `json:"transportId"`
}

type positionPayload struct {
	TransportID int64   `json:"transportId"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Accuracy    float64 `json:"accuracy"`
	Timestamp   string  `json:"timestamp"`
}

type statusPayload struct {
	TransportID int64  `json:"transportId"`
	Status      string `json:"status"`
	Note        string `json:"note"`
}

func decodeJoin(data json.RawMessage) (joinPayload, error) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TransportID <= 0 {
		return joinPayload{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid join payload")
	}
	return p, nil
}

func decodePosition(data json.RawMessage) (positionPayload, time.Time, error) {
	var p positionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TransportID <= 0 {
		return positionPayload{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid position payload")
	}
	if !domain.ValidLatLon(p.Lat, p.Lon) {
		return positionPayload{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "coordinates out of range")
	}
	ts, err := time.Parse(time.RFC3339, p.Timestamp)
	if err != nil {
		return positionPayload{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "timestamp must be RFC3339")
	}
	return p, ts, nil
}

func decodeStatus(data json.RawMessage) (statusPayload, error) {
	var p statusPayload
	if err := json.Unmarshal(data, &p); err != nil || p.TransportID <= 0 {
		return statusPayload{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status payload")
	}
	if !domain.TransportStatus(p.Status).Valid() {
		return statusPayload{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown status")
	}
	return p, nil
}

func joinedMsg(transportID int64) Outbound {
	return Outbound{Type: msgJoined, Data: map[string]int64{"transportId": transportID}}
}

func leftMsg(transportID int64) Outbound {
	return Outbound{Type: msgLeft, Data: map[string]int64{"transportId": transportID}}
}

type positionRxData struct {
	TransportID int64   `json:"transportId"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Accuracy    float64 `json:"accuracy"`
	Timestamp   string  `json:"timestamp"`
	Sequence    uint64  `json:"sequence"`
}

func positionRxMsg(sample domain.LocationSample) Outbound {
	return Outbound{Type: msgPositionRx, Data: positionRxData{
		TransportID: sample.TransportID,
		Lat:         sample.Lat,
		Lon:         sample.Lon,
		Accuracy:    sample.Accuracy,
		Timestamp:   sample.Timestamp.UTC().Format(time.RFC3339),
		Sequence:    sample.Sequence,
	}}
}

type statusRxData struct {
	TransportID int64  `json:"transportId"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
}

func statusRxMsg(transportID int64, status domain.TransportStatus, note string) Outbound {
	return Outbound{Type: msgStatusRx, Data: statusRxData{
		TransportID: transportID,
		Status:      string(status),
		Note:        note,
	}}
}

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMsg(err error) Outbound {
	return Outbound{Type: msgError, Data: errorData{
		Code:    string(pkgerrors.CodeOf(err)),
		Message: pkgerrors.MessageOf(err),
	}}
}
