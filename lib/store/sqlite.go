// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQLiteConfig holds the parameters for opening the SQLite backend.
// Path is required; all other fields have defaults.
type SQLiteConfig struct {
	// Path is the database file. Created if missing. ":memory:" gives
	// an in-memory database; the pool size is then forced to 1, since
	// each in-memory connection would otherwise be an independent
	// database.
	Path string

	// PoolSize is the number of connections. Zero or negative
	// defaults to max(runtime.NumCPU(), 4). SQLite serializes writes
	// regardless of pool size; extra connections only help concurrent
	// reads.
	PoolSize int

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// SQLite is the Store implementation backed by a zombiezen SQLite
// connection pool in WAL mode.
type SQLite struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if necessary) the database at cfg.Path,
// applies standard pragmas to every connection, and ensures the
// schema exists.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: sqlite Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}
	path := cfg.Path
	if path == ":memory:" {
		// sqlitex rejects the bare form; the shared-cache URI is the
		// driver's in-memory spelling. One connection keeps the
		// database alive for exactly the pool's lifetime.
		path = "file::memory:?mode=memory&cache=shared"
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	s := &SQLite{pool: pool, logger: logger, path: cfg.Path}

	// Force one connection through PrepareConn now so schema errors
	// surface at open, not at first use.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: initializing %s: %w", cfg.Path, err)
	}
	pool.Put(conn)

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)
	return s, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	// WAL mode: concurrent readers, single writer, no reader
	// blocking. busy_timeout covers writer contention between pool
	// connections.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-8192",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	return ensureSchemaSQLite(conn)
}

func ensureSchemaSQLite(conn *sqlite.Conn) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			dongle_id  TEXT PRIMARY KEY,
			registered INTEGER NOT NULL DEFAULT 1,
			online     INTEGER NOT NULL DEFAULT 0
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
			start_millis   INTEGER NOT NULL DEFAULT 0,
			end_millis     INTEGER NOT NULL DEFAULT 0,
			start_lat      REAL NOT NULL DEFAULT 0,
			start_lng      REAL NOT NULL DEFAULT 0,
			end_lat        REAL NOT NULL DEFAULT 0,
			end_lng        REAL NOT NULL DEFAULT 0,
			distance_miles REAL NOT NULL DEFAULT 0,
			platform       TEXT NOT NULL DEFAULT '',
			has_gps        INTEGER NOT NULL DEFAULT 0,
			create_time    INTEGER NOT NULL DEFAULT 0
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
			qcam_duration  REAL NOT NULL DEFAULT 0,
			distance_miles REAL NOT NULL DEFAULT 0,
			start_millis   INTEGER NOT NULL DEFAULT 0,
			end_millis     INTEGER NOT NULL DEFAULT 0,
			start_lat      REAL NOT NULL DEFAULT 0,
			start_lng      REAL NOT NULL DEFAULT 0,
			end_lat        REAL NOT NULL DEFAULT 0,
			end_lng        REAL NOT NULL DEFAULT 0,
			has_gps        INTEGER NOT NULL DEFAULT 0,
			create_time    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS segments_by_route
			ON segments (route_name, number)`,
	}
	for _, statement := range statements {
		if err := sqlitex.ExecuteTransient(conn, statement, nil); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool. Blocks until all borrowed
// connections are returned.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite store closed", "path", s.path)
	return nil
}

// withConn borrows a connection, runs fn, and returns it.
func (s *SQLite) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: take connection: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// FindDevice implements Store.
func (s *SQLite) FindDevice(ctx context.Context, dongleID string) (*Device, error) {
	var device *Device
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT dongle_id, registered, online FROM devices WHERE dongle_id = ?`,
			&sqlitex.ExecOptions{
				Args: []any{dongleID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					device = &Device{
						DongleID:   stmt.ColumnText(0),
						Registered: stmt.ColumnInt(1) != 0,
						Online:     stmt.ColumnInt(2) != 0,
					}
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("store: find device %s: %w", dongleID, err)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, dongleID)
	}
	return device, nil
}

// RegisterDevice implements Store.
func (s *SQLite) RegisterDevice(ctx context.Context, device *Device) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO devices (dongle_id, registered, online) VALUES (?, ?, ?)
			 ON CONFLICT (dongle_id) DO UPDATE SET registered = excluded.registered, online = excluded.online`,
			&sqlitex.ExecOptions{
				Args: []any{device.DongleID, boolToInt(device.Registered), boolToInt(device.Online)},
			})
	})
	if err != nil {
		return fmt.Errorf("store: register device %s: %w", device.DongleID, err)
	}
	return nil
}

const routeColumns = `name, dongle_id, timestamp,
	max_rlog, max_qlog, max_fcam, max_dcam, max_ecam, max_qcam,
	start_millis, end_millis, start_lat, start_lng, end_lat, end_lng,
	distance_miles, platform, has_gps, create_time`

func scanRoute(stmt *sqlite.Stmt) *Route {
	return &Route{
		Name:          stmt.ColumnText(0),
		DongleID:      stmt.ColumnText(1),
		Timestamp:     stmt.ColumnText(2),
		MaxRlog:       stmt.ColumnInt(3),
		MaxQlog:       stmt.ColumnInt(4),
		MaxFcam:       stmt.ColumnInt(5),
		MaxDcam:       stmt.ColumnInt(6),
		MaxEcam:       stmt.ColumnInt(7),
		MaxQcam:       stmt.ColumnInt(8),
		StartMillis:   stmt.ColumnInt64(9),
		EndMillis:     stmt.ColumnInt64(10),
		StartLat:      stmt.ColumnFloat(11),
		StartLng:      stmt.ColumnFloat(12),
		EndLat:        stmt.ColumnFloat(13),
		EndLng:        stmt.ColumnFloat(14),
		DistanceMiles: stmt.ColumnFloat(15),
		Platform:      stmt.ColumnText(16),
		HasGps:        stmt.ColumnInt(17) != 0,
		CreateTime:    stmt.ColumnInt64(18),
	}
}

// FindRoute implements Store.
func (s *SQLite) FindRoute(ctx context.Context, name string) (*Route, error) {
	var route *Route
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+routeColumns+` FROM routes WHERE name = ?`,
			&sqlitex.ExecOptions{
				Args: []any{name},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					route = scanRoute(stmt)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("store: find route %s: %w", name, err)
	}
	if route == nil {
		return nil, fmt.Errorf("%w: route %s", ErrNotFound, name)
	}
	return route, nil
}

// InsertRouteIfAbsent implements Store.
func (s *SQLite) InsertRouteIfAbsent(ctx context.Context, route *Route) (*Route, error) {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO routes (`+routeColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (name) DO NOTHING`,
			&sqlitex.ExecOptions{Args: routeArgs(route)})
	})
	if err != nil {
		return nil, fmt.Errorf("store: insert route %s: %w", route.Name, err)
	}
	// Re-fetch: either our row or the concurrent winner's.
	return s.FindRoute(ctx, route.Name)
}

// UpdateRoute implements Store.
func (s *SQLite) UpdateRoute(ctx context.Context, route *Route) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`UPDATE routes SET
				max_rlog = ?, max_qlog = ?, max_fcam = ?, max_dcam = ?, max_ecam = ?, max_qcam = ?,
				start_millis = ?, end_millis = ?, start_lat = ?, start_lng = ?, end_lat = ?, end_lng = ?,
				distance_miles = ?, platform = ?, has_gps = ?
			 WHERE name = ?`,
			&sqlitex.ExecOptions{Args: []any{
				route.MaxRlog, route.MaxQlog, route.MaxFcam, route.MaxDcam, route.MaxEcam, route.MaxQcam,
				route.StartMillis, route.EndMillis, route.StartLat, route.StartLng, route.EndLat, route.EndLng,
				route.DistanceMiles, route.Platform, boolToInt(route.HasGps),
				route.Name,
			}})
	})
	if err != nil {
		return fmt.Errorf("store: update route %s: %w", route.Name, err)
	}
	return nil
}

const segmentColumns = `name, route_name, number,
	rlog_url, qlog_url, unlog_url, coords_url,
	fcam_url, dcam_url, ecam_url, qcam_url, qcam_duration,
	distance_miles, start_millis, end_millis,
	start_lat, start_lng, end_lat, end_lng, has_gps, create_time`

func scanSegment(stmt *sqlite.Stmt) Segment {
	return Segment{
		Name:          stmt.ColumnText(0),
		RouteName:     stmt.ColumnText(1),
		Number:        stmt.ColumnInt(2),
		RlogURL:       stmt.ColumnText(3),
		QlogURL:       stmt.ColumnText(4),
		UnlogURL:      stmt.ColumnText(5),
		CoordsURL:     stmt.ColumnText(6),
		FcamURL:       stmt.ColumnText(7),
		DcamURL:       stmt.ColumnText(8),
		EcamURL:       stmt.ColumnText(9),
		QcamURL:       stmt.ColumnText(10),
		QcamDuration:  stmt.ColumnFloat(11),
		DistanceMiles: stmt.ColumnFloat(12),
		StartMillis:   stmt.ColumnInt64(13),
		EndMillis:     stmt.ColumnInt64(14),
		StartLat:      stmt.ColumnFloat(15),
		StartLng:      stmt.ColumnFloat(16),
		EndLat:        stmt.ColumnFloat(17),
		EndLng:        stmt.ColumnFloat(18),
		HasGps:        stmt.ColumnInt(19) != 0,
		CreateTime:    stmt.ColumnInt64(20),
	}
}

// FindSegment implements Store.
func (s *SQLite) FindSegment(ctx context.Context, name string) (*Segment, error) {
	var segment *Segment
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+segmentColumns+` FROM segments WHERE name = ?`,
			&sqlitex.ExecOptions{
				Args: []any{name},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					scanned := scanSegment(stmt)
					segment = &scanned
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("store: find segment %s: %w", name, err)
	}
	if segment == nil {
		return nil, fmt.Errorf("%w: segment %s", ErrNotFound, name)
	}
	return segment, nil
}

// InsertSegmentIfAbsent implements Store.
func (s *SQLite) InsertSegmentIfAbsent(ctx context.Context, segment *Segment) (*Segment, error) {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO segments (`+segmentColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (name) DO NOTHING`,
			&sqlitex.ExecOptions{Args: segmentArgs(segment)})
	})
	if err != nil {
		return nil, fmt.Errorf("store: insert segment %s: %w", segment.Name, err)
	}
	return s.FindSegment(ctx, segment.Name)
}

// UpdateSegment implements Store.
func (s *SQLite) UpdateSegment(ctx context.Context, segment *Segment) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`UPDATE segments SET
				rlog_url = ?, qlog_url = ?, unlog_url = ?, coords_url = ?,
				fcam_url = ?, dcam_url = ?, ecam_url = ?, qcam_url = ?, qcam_duration = ?,
				distance_miles = ?, start_millis = ?, end_millis = ?,
				start_lat = ?, start_lng = ?, end_lat = ?, end_lng = ?, has_gps = ?
			 WHERE name = ?`,
			&sqlitex.ExecOptions{Args: []any{
				segment.RlogURL, segment.QlogURL, segment.UnlogURL, segment.CoordsURL,
				segment.FcamURL, segment.DcamURL, segment.EcamURL, segment.QcamURL, segment.QcamDuration,
				segment.DistanceMiles, segment.StartMillis, segment.EndMillis,
				segment.StartLat, segment.StartLng, segment.EndLat, segment.EndLng, boolToInt(segment.HasGps),
				segment.Name,
			}})
	})
	if err != nil {
		return fmt.Errorf("store: update segment %s: %w", segment.Name, err)
	}
	return nil
}

// ListSegmentsByRoute implements Store.
func (s *SQLite) ListSegmentsByRoute(ctx context.Context, routeName string) ([]Segment, error) {
	var segments []Segment
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+segmentColumns+` FROM segments WHERE route_name = ? ORDER BY number`,
			&sqlitex.ExecOptions{
				Args: []any{routeName},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					segments = append(segments, scanSegment(stmt))
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list segments of %s: %w", routeName, err)
	}
	return segments, nil
}

func routeArgs(route *Route) []any {
	return []any{
		route.Name, route.DongleID, route.Timestamp,
		route.MaxRlog, route.MaxQlog, route.MaxFcam, route.MaxDcam, route.MaxEcam, route.MaxQcam,
		route.StartMillis, route.EndMillis, route.StartLat, route.StartLng, route.EndLat, route.EndLng,
		route.DistanceMiles, route.Platform, boolToInt(route.HasGps), route.CreateTime,
	}
}

func segmentArgs(segment *Segment) []any {
	return []any{
		segment.Name, segment.RouteName, segment.Number,
		segment.RlogURL, segment.QlogURL, segment.UnlogURL, segment.CoordsURL,
		segment.FcamURL, segment.DcamURL, segment.EcamURL, segment.QcamURL, segment.QcamDuration,
		segment.DistanceMiles, segment.StartMillis, segment.EndMillis,
		segment.StartLat, segment.StartLng, segment.EndLat, segment.EndLng,
		boolToInt(segment.HasGps), segment.CreateTime,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
