package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/matthewbaird/bridgepanel/internal/types"

	_ "modernc.org/sqlite" // register sqlite driver
)

const (
	tableDevices   = "devices"
	tableVariables = "state_variables"
	tableSnapshots = "snapshots"
	tableEvents    = "panel_events"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL DEFAULT '',
		disabled INTEGER NOT NULL DEFAULT 0,
		ip       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS state_variables (
		device_id  TEXT NOT NULL,
		service_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (device_id, service_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		id       TEXT PRIMARY KEY,
		taken_at TEXT NOT NULL,
		force    INTEGER NOT NULL,
		payload  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS panel_events (
		id          TEXT PRIMARY KEY,
		event_type  TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		summary     TEXT NOT NULL,
		payload     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_panel_events_entity_time
		ON panel_events (entity_id, occurred_at DESC)`,
}

// SQLiteStore implements Store on SQLite, using the ent SQL driver and
// query builder without generated entity code.
type SQLiteStore struct {
	drv *entsql.Driver
	sb  *entsql.DialectBuilder
	now func() time.Time
}

// OpenSQLite opens (and migrates) the database behind dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteStore{
		drv: entsql.OpenDB(dialect.SQLite, db),
		sb:  entsql.Dialect(dialect.SQLite),
		now: time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.drv.Close()
}

func (s *SQLiteStore) GetValue(ctx context.Context, entityID, namespace, key string) (string, bool, error) {
	query, args := s.sb.Select("value").
		From(s.sb.Table(tableVariables)).
		Where(entsql.And(
			entsql.EQ("device_id", entityID),
			entsql.EQ("service_id", namespace),
			entsql.EQ("name", key),
		)).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", entityID, key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, rows.Err()
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return "", false, fmt.Errorf("scan %s/%s: %w", entityID, key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetValue(ctx context.Context, entityID, namespace, key, value string) error {
	query, args := s.sb.Insert(tableVariables).
		Columns("device_id", "service_id", "name", "value", "updated_at").
		Values(entityID, namespace, key, value, formatTime(s.now())).
		OnConflict(
			entsql.ConflictColumns("device_id", "service_id", "name"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("set %s/%s: %w", entityID, key, err)
	}
	return nil
}

func (s *SQLiteStore) Variables(ctx context.Context, entityID string) ([]types.Variable, error) {
	return s.queryVariables(ctx, entsql.EQ("device_id", entityID))
}

func (s *SQLiteStore) queryVariables(ctx context.Context, where *entsql.Predicate) ([]types.Variable, error) {
	sel := s.sb.Select("device_id", "service_id", "name", "value", "updated_at").
		From(s.sb.Table(tableVariables)).
		OrderBy("device_id", "service_id", "name")
	if where != nil {
		sel = sel.Where(where)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	defer rows.Close()

	var out []types.Variable
	for rows.Next() {
		var (
			v       types.Variable
			updated string
		)
		if err := rows.Scan(&v.EntityID, &v.Namespace, &v.Name, &v.Value, &updated); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		v.UpdatedAt = parseTime(updated)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Entity(ctx context.Context, id string) (types.Entity, error) {
	entities, err := s.queryEntities(ctx, entsql.EQ("id", id))
	if err != nil {
		return types.Entity{}, err
	}
	if len(entities) == 0 {
		return types.Entity{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return entities[0], nil
}

func (s *SQLiteStore) queryEntities(ctx context.Context, where *entsql.Predicate) ([]types.Entity, error) {
	sel := s.sb.Select("id", "name", "disabled", "ip").
		From(s.sb.Table(tableDevices)).
		OrderBy("id")
	if where != nil {
		sel = sel.Where(where)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []types.Entity
	for rows.Next() {
		var (
			e        types.Entity
			disabled int
		)
		if err := rows.Scan(&e.ID, &e.Name, &disabled, &e.NetworkAddress); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		e.Disabled = disabled != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PutEntity(ctx context.Context, e types.Entity) error {
	disabled := 0
	if e.Disabled {
		disabled = 1
	}
	query, args := s.sb.Insert(tableDevices).
		Columns("id", "name", "disabled", "ip").
		Values(e.ID, e.Name, disabled, e.NetworkAddress).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("put device %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) SetAttribute(ctx context.Context, id, name, value string) error {
	var column string
	switch name {
	case types.AttrIP:
		column = "ip"
	case types.AttrName:
		column = "name"
	default:
		return fmt.Errorf("unsupported attribute %q", name)
	}

	query, args := s.sb.Update(tableDevices).
		Set(column, value).
		Where(entsql.EQ("id", id)).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("set attribute %s on %s: %w", name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set attribute %s on %s: %w", name, id, err)
	}
	if n == 0 {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, force bool) (string, error) {
	devices, err := s.queryEntities(ctx, nil)
	if err != nil {
		return "", err
	}
	vars, err := s.queryVariables(ctx, nil)
	if err != nil {
		return "", err
	}

	snap := types.Snapshot{
		ID:        uuid.New().String(),
		TakenAt:   s.now(),
		Force:     force,
		Devices:   devices,
		Variables: vars,
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	forceInt := 0
	if force {
		forceInt = 1
	}
	query, args := s.sb.Insert(tableSnapshots).
		Columns("id", "taken_at", "force", "payload").
		Values(snap.ID, formatTime(snap.TakenAt), forceInt, string(payload)).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return snap.ID, nil
}

// LatestSnapshot returns the most recent snapshot.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (types.Snapshot, error) {
	query, args := s.sb.Select("payload").
		From(s.sb.Table(tableSnapshots)).
		OrderBy(entsql.Desc("taken_at")).
		Limit(1).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return types.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return types.Snapshot{}, err
		}
		return types.Snapshot{}, fmt.Errorf("snapshot: %w", ErrNotFound)
	}
	var payload string
	if err := rows.Scan(&payload); err != nil {
		return types.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	var snap types.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return types.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) WriteEvents(ctx context.Context, entries []types.EventEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ins := s.sb.Insert(tableEvents).
		Columns("id", "event_type", "entity_id", "occurred_at", "summary", "payload")
	for _, e := range entries {
		var payload any
		if len(e.Payload) > 0 {
			payload = string(e.Payload)
		}
		ins = ins.Values(e.EventID, e.EventType, e.EntityID, formatTime(e.OccurredAt), e.Summary, payload)
	}
	query, args := ins.OnConflict(entsql.DoNothing()).Query()

	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EventsByEntity(ctx context.Context, entityID string, limit int) ([]types.EventEntry, error) {
	query, args := s.sb.Select("id", "event_type", "entity_id", "occurred_at", "summary", "payload").
		From(s.sb.Table(tableEvents)).
		Where(entsql.EQ("entity_id", entityID)).
		OrderBy(entsql.Desc("occurred_at")).
		Limit(clampLimit(limit)).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []types.EventEntry
	for rows.Next() {
		var (
			e          types.EventEntry
			occurredAt string
			payload    sql.NullString
		)
		if err := rows.Scan(&e.EventID, &e.EventType, &e.EntityID, &occurredAt, &e.Summary, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.OccurredAt = parseTime(occurredAt)
		if payload.Valid {
			e.Payload = json.RawMessage(payload.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
