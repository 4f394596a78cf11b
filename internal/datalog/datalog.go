// Package datalog is an external, non-core FanOut subscriber that persists
// every published ProcessValues record to a sqlite database, for history and
// offline inspection. Nothing in the acquisition or RPC path depends on it;
// it is wired in only when the daemon is started with a store path.
//
// Grounded on the teacher's internal/db/sqlite.go (database/sql over
// modernc.org/sqlite, migrate-on-open, parameterised inserts), generalised
// from the teacher's point_values schema to a process_values table matching
// model.ProcessValues.
package datalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"eurotherm-supervisor/internal/model"
)

// Logger persists ProcessValues records to sqlite.
type Logger struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and applies
// its schema.
func Open(path string) (*Logger, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	l := &Logger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Logger) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS process_values (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    device_name TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    process_value_k REAL NOT NULL,
    setpoint_k REAL NOT NULL,
    working_setpoint_k REAL NOT NULL,
    remote_setpoint_k REAL NOT NULL,
    working_output_percent REAL NOT NULL,
    status INTEGER NOT NULL,
    ramp_status INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_process_values_device_name ON process_values(device_name);
CREATE INDEX IF NOT EXISTS idx_process_values_timestamp ON process_values(timestamp);
`
	_, err := l.db.Exec(schema)
	return err
}

// Record inserts one ProcessValues row. Intended to be called from a
// dedicated subscriber goroutine, not from the acquisition loop itself.
func (l *Logger) Record(ctx context.Context, pv model.ProcessValues) error {
	const q = `
INSERT INTO process_values (
    device_name, timestamp, process_value_k, setpoint_k, working_setpoint_k,
    remote_setpoint_k, working_output_percent, status, ramp_status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err := l.db.ExecContext(ctx, q,
		pv.DeviceName, pv.Timestamp,
		pv.ProcessValue.Base(), pv.Setpoint.Base(), pv.WorkingSetpoint.Base(),
		pv.RemoteSetpoint.Base(), pv.WorkingOutput.Base(),
		int32(pv.Status), int32(pv.RampStatus),
	)
	return err
}

// Run drains ch, persisting every record, and returns nil once ch is closed
// or ctx is done. It stops at the first persistence error and returns it, so
// the caller can log it or decide whether to keep trying with a fresh
// subscription.
func (l *Logger) Run(ctx context.Context, ch <-chan model.ProcessValues) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pv, ok := <-ch:
			if !ok {
				return nil
			}
			if err := l.Record(ctx, pv); err != nil {
				return err
			}
		}
	}
}

// Close releases the underlying database connection.
func (l *Logger) Close() error { return l.db.Close() }
