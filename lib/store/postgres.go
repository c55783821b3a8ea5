// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds the parameters for opening the PostgreSQL
// backend.
type PostgresConfig struct {
	// DSN is a pgx connection string, e.g.
	// "postgres://roadlog:secret@db:5432/roadlog".
	DSN string

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Postgres is the Store implementation backed by a pgx connection
// pool. Used by deployments that already operate a database server;
// semantics are identical to the SQLite backend.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to the database at cfg.DSN and ensures the
// schema exists.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store: postgres DSN is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pinging postgres: %w", err)
	}
	if err := ensureSchemaPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres store opened")
	return &Postgres{pool: pool, logger: logger}, nil
}

func ensureSchemaPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			dongle_id  TEXT PRIMARY KEY,
			registered BOOLEAN NOT NULL DEFAULT TRUE,
			online     BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS routes (
			name           TEXT PRIMARY KEY,
			dongle_id      TEXT NOT NULL,
			timestamp      TEXT NOT NULL,
			max_rlog       INTEGER NOT NULL DEFAULT -1,
			max_qlog       INTEGER NOT NULL DEFAULT -1,
			max_fcam       INTEGER NOT NULL DEFAULT -1,
			max_dcam       INTEGER NOT NULL DEFAULT -1,
			max_ecam       INTEGER NOT NULL DEFAULT -1,
			max_qcam       INTEGER NOT NULL DEFAULT -1,
			start_millis   BIGINT NOT NULL DEFAULT 0,
			end_millis     BIGINT NOT NULL DEFAULT 0,
			start_lat      DOUBLE PRECISION NOT NULL DEFAULT 0,
			start_lng      DOUBLE PRECISION NOT NULL DEFAULT 0,
			end_lat        DOUBLE PRECISION NOT NULL DEFAULT 0,
			end_lng        DOUBLE PRECISION NOT NULL DEFAULT 0,
			distance_miles DOUBLE PRECISION NOT NULL DEFAULT 0,
			platform       TEXT NOT NULL DEFAULT '',
			has_gps        BOOLEAN NOT NULL DEFAULT FALSE,
			create_time    BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS segments (
			name           TEXT PRIMARY KEY,
			route_name     TEXT NOT NULL,
			number         INTEGER NOT NULL,
			rlog_url       TEXT NOT NULL DEFAULT '',
			qlog_url       TEXT NOT NULL DEFAULT '',
			unlog_url      TEXT NOT NULL DEFAULT '',
			coords_url     TEXT NOT NULL DEFAULT '',
			fcam_url       TEXT NOT NULL DEFAULT '',
			dcam_url       TEXT NOT NULL DEFAULT '',
			ecam_url       TEXT NOT NULL DEFAULT '',
			qcam_url       TEXT NOT NULL DEFAULT '',
			qcam_duration  DOUBLE PRECISION NOT NULL DEFAULT 0,
			distance_miles DOUBLE PRECISION NOT NULL DEFAULT 0,
			start_millis   BIGINT NOT NULL DEFAULT 0,
			end_millis     BIGINT NOT NULL DEFAULT 0,
			start_lat      DOUBLE PRECISION NOT NULL DEFAULT 0,
			start_lng      DOUBLE PRECISION NOT NULL DEFAULT 0,
			end_lat        DOUBLE PRECISION NOT NULL DEFAULT 0,
			end_lng        DOUBLE PRECISION NOT NULL DEFAULT 0,
			has_gps        BOOLEAN NOT NULL DEFAULT FALSE,
			create_time    BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS segments_by_route
			ON segments (route_name, number)`,
	}
	for _, statement := range statements {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	p.logger.Info("postgres store closed")
	return nil
}

// FindDevice implements Store.
func (p *Postgres) FindDevice(ctx context.Context, dongleID string) (*Device, error) {
	device := &Device{}
	err := p.pool.QueryRow(ctx,
		`SELECT dongle_id, registered, online FROM devices WHERE dongle_id = $1`,
		dongleID,
	).Scan(&device.DongleID, &device.Registered, &device.Online)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, dongleID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find device %s: %w", dongleID, err)
	}
	return device, nil
}

// RegisterDevice implements Store.
func (p *Postgres) RegisterDevice(ctx context.Context, device *Device) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO devices (dongle_id, registered, online) VALUES ($1, $2, $3)
		 ON CONFLICT (dongle_id) DO UPDATE SET registered = EXCLUDED.registered, online = EXCLUDED.online`,
		device.DongleID, device.Registered, device.Online)
	if err != nil {
		return fmt.Errorf("store: register device %s: %w", device.DongleID, err)
	}
	return nil
}

const routeColumnsPG = `name, dongle_id, timestamp,
	max_rlog, max_qlog, max_fcam, max_dcam, max_ecam, max_qcam,
	start_millis, end_millis, start_lat, start_lng, end_lat, end_lng,
	distance_miles, platform, has_gps, create_time`

func scanRoutePG(row pgx.Row) (*Route, error) {
	route := &Route{}
	err := row.Scan(
		&route.Name, &route.DongleID, &route.Timestamp,
		&route.MaxRlog, &route.MaxQlog, &route.MaxFcam, &route.MaxDcam, &route.MaxEcam, &route.MaxQcam,
		&route.StartMillis, &route.EndMillis, &route.StartLat, &route.StartLng, &route.EndLat, &route.EndLng,
		&route.DistanceMiles, &route.Platform, &route.HasGps, &route.CreateTime,
	)
	if err != nil {
		return nil, err
	}
	return route, nil
}

// FindRoute implements Store.
func (p *Postgres) FindRoute(ctx context.Context, name string) (*Route, error) {
	route, err := scanRoutePG(p.pool.QueryRow(ctx,
		`SELECT `+routeColumnsPG+` FROM routes WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: route %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find route %s: %w", name, err)
	}
	return route, nil
}

// InsertRouteIfAbsent implements Store.
func (p *Postgres) InsertRouteIfAbsent(ctx context.Context, route *Route) (*Route, error) {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO routes (`+routeColumnsPG+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (name) DO NOTHING`,
		route.Name, route.DongleID, route.Timestamp,
		route.MaxRlog, route.MaxQlog, route.MaxFcam, route.MaxDcam, route.MaxEcam, route.MaxQcam,
		route.StartMillis, route.EndMillis, route.StartLat, route.StartLng, route.EndLat, route.EndLng,
		route.DistanceMiles, route.Platform, route.HasGps, route.CreateTime)
	if err != nil {
		return nil, fmt.Errorf("store: insert route %s: %w", route.Name, err)
	}
	return p.FindRoute(ctx, route.Name)
}

// UpdateRoute implements Store.
func (p *Postgres) UpdateRoute(ctx context.Context, route *Route) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE routes SET
			max_rlog = $1, max_qlog = $2, max_fcam = $3, max_dcam = $4, max_ecam = $5, max_qcam = $6,
			start_millis = $7, end_millis = $8, start_lat = $9, start_lng = $10, end_lat = $11, end_lng = $12,
			distance_miles = $13, platform = $14, has_gps = $15
		 WHERE name = $16`,
		route.MaxRlog, route.MaxQlog, route.MaxFcam, route.MaxDcam, route.MaxEcam, route.MaxQcam,
		route.StartMillis, route.EndMillis, route.StartLat, route.StartLng, route.EndLat, route.EndLng,
		route.DistanceMiles, route.Platform, route.HasGps, route.Name)
	if err != nil {
		return fmt.Errorf("store: update route %s: %w", route.Name, err)
	}
	return nil
}

const segmentColumnsPG = `name, route_name, number,
	rlog_url, qlog_url, unlog_url, coords_url,
	fcam_url, dcam_url, ecam_url, qcam_url, qcam_duration,
	distance_miles, start_millis, end_millis,
	start_lat, start_lng, end_lat, end_lng, has_gps, create_time`

func scanSegmentPG(row pgx.Row) (*Segment, error) {
	segment := &Segment{}
	err := row.Scan(
		&segment.Name, &segment.RouteName, &segment.Number,
		&segment.RlogURL, &segment.QlogURL, &segment.UnlogURL, &segment.CoordsURL,
		&segment.FcamURL, &segment.DcamURL, &segment.EcamURL, &segment.QcamURL, &segment.QcamDuration,
		&segment.DistanceMiles, &segment.StartMillis, &segment.EndMillis,
		&segment.StartLat, &segment.StartLng, &segment.EndLat, &segment.EndLng,
		&segment.HasGps, &segment.CreateTime,
	)
	if err != nil {
		return nil, err
	}
	return segment, nil
}

// FindSegment implements Store.
func (p *Postgres) FindSegment(ctx context.Context, name string) (*Segment, error) {
	segment, err := scanSegmentPG(p.pool.QueryRow(ctx,
		`SELECT `+segmentColumnsPG+` FROM segments WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: segment %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("store: find segment %s: %w", name, err)
	}
	return segment, nil
}

// InsertSegmentIfAbsent implements Store.
func (p *Postgres) InsertSegmentIfAbsent(ctx context.Context, segment *Segment) (*Segment, error) {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO segments (`+segmentColumnsPG+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT (name) DO NOTHING`,
		segment.Name, segment.RouteName, segment.Number,
		segment.RlogURL, segment.QlogURL, segment.UnlogURL, segment.CoordsURL,
		segment.FcamURL, segment.DcamURL, segment.EcamURL, segment.QcamURL, segment.QcamDuration,
		segment.DistanceMiles, segment.StartMillis, segment.EndMillis,
		segment.StartLat, segment.StartLng, segment.EndLat, segment.EndLng,
		segment.HasGps, segment.CreateTime)
	if err != nil {
		return nil, fmt.Errorf("store: insert segment %s: %w", segment.Name, err)
	}
	return p.FindSegment(ctx, segment.Name)
}

// UpdateSegment implements Store.
func (p *Postgres) UpdateSegment(ctx context.Context, segment *Segment) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE segments SET
			rlog_url = $1, qlog_url = $2, unlog_url = $3, coords_url = $4,
			fcam_url = $5, dcam_url = $6, ecam_url = $7, qcam_url = $8, qcam_duration = $9,
			distance_miles = $10, start_millis = $11, end_millis = $12,
			start_lat = $13, start_lng = $14, end_lat = $15, end_lng = $16, has_gps = $17
		 WHERE name = $18`,
		segment.RlogURL, segment.QlogURL, segment.UnlogURL, segment.CoordsURL,
		segment.FcamURL, segment.DcamURL, segment.EcamURL, segment.QcamURL, segment.QcamDuration,
		segment.DistanceMiles, segment.StartMillis, segment.EndMillis,
		segment.StartLat, segment.StartLng, segment.EndLat, segment.EndLng, segment.HasGps,
		segment.Name)
	if err != nil {
		return fmt.Errorf("store: update segment %s: %w", segment.Name, err)
	}
	return nil
}

// ListSegmentsByRoute implements Store.
func (p *Postgres) ListSegmentsByRoute(ctx context.Context, routeName string) ([]Segment, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+segmentColumnsPG+` FROM segments WHERE route_name = $1 ORDER BY number`, routeName)
	if err != nil {
		return nil, fmt.Errorf("store: list segments of %s: %w", routeName, err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		segment, err := scanSegmentPG(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list segments of %s: %w", routeName, err)
		}
		segments = append(segments, *segment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list segments of %s: %w", routeName, err)
	}
	return segments, nil
}
