// Package domain holds the core types shared across the live tracking
// subsystem. Types here carry no behavior beyond validation and the status
// transition table; services own all mutation.
package domain

import "time"

// Role is the privilege class carried by an authenticated principal.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleStaff     Role = "Staff"
	RoleClinician Role = "Clinician"
	RoleFamily    Role = "Family"
)

// Valid reports whether the role is one of the four known classes.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleClinician, RoleFamily:
		return true
	}
	return false
}

// Principal is the authenticated identity of one connection. It is derived
// once at handshake from a verified token and never changes afterwards.
type Principal struct {
	ID   int64
	Role Role
	// BoundClientID is the client this principal is tied to. Only meaningful
	// for Family principals; zero otherwise.
	BoundClientID int64
}

// TransportStatus is the lifecycle state of a transport.
type TransportStatus string

const (
	StatusScheduled  TransportStatus = "scheduled"
	StatusInProgress TransportStatus = "in-progress"
	StatusCompleted  TransportStatus = "completed"
	StatusCancelled  TransportStatus = "cancelled"
)

func (s TransportStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted out of s.
func (s TransportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether the edge s -> next exists in the status
// graph: scheduled -> in-progress -> {completed, cancelled}, with cancellation
// also allowed straight from scheduled.
func (s TransportStatus) CanTransitionTo(next TransportStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// ValidLatLon reports whether the pair is inside the WGS84 envelope.
func ValidLatLon(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Transport is one physical transport of a client by a staff member. The
// relational store owns the durable copy; the state machine holds the
// authoritative in-memory record while the transport is live.
type Transport struct {
	ID              int64
	ClientID        int64
	AssignedStaffID int64
	Status          TransportStatus
	Origin          Coordinate
	Destination     Coordinate
	StartedAt       *time.Time
	EndedAt         *time.Time
}

// LocationSample is one accepted position report for a transport. Sequence is
// assigned at acceptance and is strictly increasing per transport.
type LocationSample struct {
	TransportID int64
	Lat         float64
	Lon         float64
	Accuracy    float64
	Timestamp   time.Time
	Sequence    uint64
}
