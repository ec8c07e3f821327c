package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Column roles in the cells table.
const (
	roleStatus   = "status"
	roleReturn   = "return"
	roleCustom   = "custom"
	roleUUID     = "uuid"
	roleDuration = "duration"
	rolePriority = "priority"
)

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func migrateSQLite(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func saveSQLite(ctx context.Context, snap *grid.Snapshot, path string) error {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := migrateSQLite(db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	shape := make([]string, len(snap.Shape))
	for i, n := range snap.Shape {
		shape[i] = strconv.Itoa(n)
	}
	meta := map[string]string{
		"shape":              strings.Join(shape, ","),
		"uuid_enabled":       strconv.FormatBool(snap.UUIDEnabled),
		"timing_enabled":     strconv.FormatBool(snap.TimingEnabled),
		"priorities_enabled": strconv.FormatBool(snap.PrioritiesEnabled),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("failed to insert meta %s: %w", key, err)
		}
	}

	axisStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO axes (ordinal, name, kind, idx, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare axis insert: %w", err)
	}
	defer func() { _ = axisStmt.Close() }()
	for ord, ax := range snap.Axes {
		values, err := encodeValues(ax.Kind, ax.Values)
		if err != nil {
			return err
		}
		for i, v := range values {
			if _, err := axisStmt.ExecContext(ctx, ord, ax.Name, string(ax.Kind), i, v); err != nil {
				return fmt.Errorf("failed to insert axis %s: %w", ax.Name, err)
			}
		}
	}

	cellStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cells (role, ordinal, name, kind, idx, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer func() { _ = cellStmt.Close() }()

	insertColumn := func(role string, ord int, name string, kind grid.Kind, values []string) error {
		for i, v := range values {
			if _, err := cellStmt.ExecContext(ctx, role, ord, name, string(kind), i, v); err != nil {
				return fmt.Errorf("failed to insert %s column %s: %w", role, name, err)
			}
		}
		return nil
	}

	statusValues := make([]string, len(snap.Status))
	for i, s := range snap.Status {
		statusValues[i] = string(s)
	}
	if err := insertColumn(roleStatus, 0, roleStatus, grid.KindString, statusValues); err != nil {
		return err
	}
	for ord, col := range snap.Returns {
		values, err := encodeValues(col.Kind, col.Values)
		if err != nil {
			return err
		}
		if err := insertColumn(roleReturn, ord, col.Name, col.Kind, values); err != nil {
			return err
		}
	}
	for ord, col := range snap.Custom {
		values, err := encodeValues(col.Kind, col.Values)
		if err != nil {
			return err
		}
		if err := insertColumn(roleCustom, ord, col.Name, col.Kind, values); err != nil {
			return err
		}
	}
	if snap.UUIDs != nil {
		if err := insertColumn(roleUUID, 0, roleUUID, grid.KindString, snap.UUIDs); err != nil {
			return err
		}
	}
	if snap.Durations != nil {
		values := make([]string, len(snap.Durations))
		for i, d := range snap.Durations {
			values[i] = strconv.FormatFloat(d, 'g', -1, 64)
		}
		if err := insertColumn(roleDuration, 0, roleDuration, grid.KindFloat, values); err != nil {
			return err
		}
	}
	if snap.Priorities != nil {
		values := make([]string, len(snap.Priorities))
		for i, p := range snap.Priorities {
			values[i] = strconv.Itoa(p)
		}
		if err := insertColumn(rolePriority, 0, rolePriority, grid.KindInt, values); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func loadSQLite(ctx context.Context, path string) (*grid.Snapshot, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	meta := make(map[string]string)
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan meta row: %w", err)
		}
		meta[key] = value
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}

	snap := &grid.Snapshot{}
	if shape := meta["shape"]; shape != "" {
		for _, part := range strings.Split(shape, ",") {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, grid.NewFormatError("invalid shape metadata").WithErr(err).WithPath(path)
			}
			snap.Shape = append(snap.Shape, n)
		}
	}
	snap.UUIDEnabled, _ = strconv.ParseBool(meta["uuid_enabled"])
	snap.TimingEnabled, _ = strconv.ParseBool(meta["timing_enabled"])
	snap.PrioritiesEnabled, _ = strconv.ParseBool(meta["priorities_enabled"])

	axes, err := loadSQLiteAxes(ctx, db)
	if err != nil {
		return nil, err
	}
	snap.Axes = axes

	columns, err := loadSQLiteCells(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, col := range columns {
		switch col.role {
		case roleStatus:
			snap.Status = make([]grid.Status, len(col.values))
			for i, v := range col.values {
				snap.Status[i] = grid.Status(v)
			}
		case roleReturn:
			values, err := decodeValues(col.kind, col.values)
			if err != nil {
				return nil, err
			}
			snap.Returns = append(snap.Returns, grid.SnapshotColumn{Name: col.name, Kind: col.kind, Values: values})
		case roleCustom:
			values, err := decodeValues(col.kind, col.values)
			if err != nil {
				return nil, err
			}
			snap.Custom = append(snap.Custom, grid.SnapshotColumn{Name: col.name, Kind: col.kind, Values: values})
		case roleUUID:
			snap.UUIDs = append([]string(nil), col.values...)
		case roleDuration:
			snap.Durations = make([]float64, len(col.values))
			for i, v := range col.values {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, grid.NewFormatError("invalid duration value").WithErr(err).WithPath(path)
				}
				snap.Durations[i] = f
			}
		case rolePriority:
			snap.Priorities = make([]int, len(col.values))
			for i, v := range col.values {
				p, err := strconv.Atoi(v)
				if err != nil {
					return nil, grid.NewFormatError("invalid priority value").WithErr(err).WithPath(path)
				}
				snap.Priorities[i] = p
			}
		default:
			return nil, grid.NewFormatError(fmt.Sprintf("unknown column role %q", col.role)).WithPath(path)
		}
	}

	return snap, nil
}

func loadSQLiteAxes(ctx context.Context, db *sql.DB) ([]grid.SnapshotAxis, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ordinal, name, kind, value FROM axes ORDER BY ordinal, idx`)
	if err != nil {
		return nil, fmt.Errorf("failed to query axes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		axes    []grid.SnapshotAxis
		encoded [][]string
	)
	for rows.Next() {
		var (
			ordinal    int
			name, kind string
			value      string
		)
		if err := rows.Scan(&ordinal, &name, &kind, &value); err != nil {
			return nil, fmt.Errorf("failed to scan axis row: %w", err)
		}
		for ordinal >= len(axes) {
			axes = append(axes, grid.SnapshotAxis{Name: name, Kind: grid.Kind(kind)})
			encoded = append(encoded, nil)
		}
		encoded[ordinal] = append(encoded[ordinal], value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read axes: %w", err)
	}
	for i := range axes {
		values, err := decodeValues(axes[i].Kind, encoded[i])
		if err != nil {
			return nil, err
		}
		axes[i].Values = values
	}
	return axes, nil
}

type sqliteColumn struct {
	role   string
	name   string
	kind   grid.Kind
	values []string
}

func loadSQLiteCells(ctx context.Context, db *sql.DB) ([]*sqliteColumn, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT role, ordinal, name, kind, value FROM cells ORDER BY role, ordinal, idx`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		columns []*sqliteColumn
		current *sqliteColumn
		lastKey string
	)
	for rows.Next() {
		var (
			role, name, kind, value string
			ordinal                 int
		)
		if err := rows.Scan(&role, &ordinal, &name, &kind, &value); err != nil {
			return nil, fmt.Errorf("failed to scan cell row: %w", err)
		}
		key := fmt.Sprintf("%s/%d", role, ordinal)
		if current == nil || key != lastKey {
			current = &sqliteColumn{role: role, name: name, kind: grid.Kind(kind)}
			columns = append(columns, current)
			lastKey = key
		}
		current.values = append(current.values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cells: %w", err)
	}
	return columns, nil
}
