package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"caretrack/internal/domain"
)

// PostgresStore backs the persistence surface with PostgreSQL via database/sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against the given DSN and verifies
// connectivity before returning.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing pool; the caller owns its lifecycle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// Health verifies database connectivity.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GetTransport(ctx context.Context, id int64) (domain.Transport, error) {
	const query = `
		SELECT id, client_id, assigned_staff_id, status,
		       origin_lat, origin_lon, dest_lat, dest_lon,
		       started_at, ended_at
		FROM transports
		WHERE id = $1
	`
	var (
		t                  domain.Transport
		startedAt, endedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.ClientID, &t.AssignedStaffID, &t.Status,
		&t.Origin.Lat, &t.Origin.Lon, &t.Destination.Lat, &t.Destination.Lon,
		&startedAt, &endedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transport{}, ErrNotFound
	}
	if err != nil {
		return domain.Transport{}, fmt.Errorf("get transport: %w", err)
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		t.EndedAt = &endedAt.Time
	}
	return t, nil
}

func (s *PostgresStore) UpdateTransportStatus(ctx context.Context, id int64, status domain.TransportStatus, startedAt, endedAt *time.Time) error {
	const query = `
		UPDATE transports
		SET status = $2,
		    started_at = COALESCE($3, started_at),
		    ended_at = COALESCE($4, ended_at)
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, string(status), nullTime(startedAt), nullTime(endedAt))
	if err != nil {
		return fmt.Errorf("update transport status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transport status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendLocationSample(ctx context.Context, sample domain.LocationSample) error {
	const query = `
		INSERT INTO location_samples (transport_id, lat, lon, accuracy, recorded_at, sequence)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		sample.TransportID, sample.Lat, sample.Lon, sample.Accuracy, sample.Timestamp, sample.Sequence,
	)
	if err != nil {
		return fmt.Errorf("append location sample: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClientsForClinician(ctx context.Context, clinicianID int64) ([]int64, error) {
	const query = `SELECT client_id FROM clinician_clients WHERE clinician_id = $1`
	rows, err := s.db.QueryContext(ctx, query, clinicianID)
	if err != nil {
		return nil, fmt.Errorf("clients for clinician: %w", err)
	}
	defer rows.Close()

	var clients []int64
	for rows.Next() {
		var clientID int64
		if err := rows.Scan(&clientID); err != nil {
			return nil, fmt.Errorf("clients for clinician: %w", err)
		}
		clients = append(clients, clientID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clients for clinician: %w", err)
	}
	return clients, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
