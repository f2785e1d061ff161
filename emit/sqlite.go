/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package emit

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
	"go.uber.org/zap"

	"github.com/timelinize/lhconvert/locationhistory"
)

//go:embed schema.sql
var createPointsTable string

// SQLiteWriter writes points into the points table of a SQLite database.
// Everything is inserted in one transaction that is committed by Close,
// so an interrupted run leaves no partial rows behind.
type SQLiteWriter struct {
	ctx    context.Context // for the statements run by Write*, which have no context parameter
	db     *sql.DB
	tx     *sql.Tx
	insert *sql.Stmt
	track  int64
	log    *zap.Logger
}

// NewSQLiteWriter opens (or creates) the database at dbPath and prepares
// it for writing. ctx is used for all statements until Close.
func NewSQLiteWriter(ctx context.Context, dbPath string) (*SQLiteWriter, error) {
	var db *sql.DB
	var err error
	defer func() {
		if err != nil && db != nil {
			db.Close()
		}
	}()

	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err = db.ExecContext(ctx, createPointsTable); err != nil {
		return nil, fmt.Errorf("setting up database: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	insert, err := tx.PrepareContext(ctx, `INSERT INTO points
		(track, timestamp_ms, latitude, longitude, accuracy, speed, altitude, heading, vertical_accuracy, device_tag, platform)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("preparing insert: %w", err)
	}

	return &SQLiteWriter{
		ctx:    ctx,
		db:     db,
		tx:     tx,
		insert: insert,
		log:    locationhistory.Log.Named("sqlite"),
	}, nil
}

// WritePoint inserts p without a track.
func (sw *SQLiteWriter) WritePoint(p *locationhistory.Point) error {
	return sw.insertPoint(sql.NullInt64{}, p)
}

// WriteTrack inserts the points of t, all with the next track number.
// Track numbers start at 1.
func (sw *SQLiteWriter) WriteTrack(t *locationhistory.Track) error {
	sw.track++
	for _, p := range t.Points {
		if err := sw.insertPoint(sql.NullInt64{Int64: sw.track, Valid: true}, p); err != nil {
			return err
		}
	}
	return nil
}

func (sw *SQLiteWriter) insertPoint(track sql.NullInt64, p *locationhistory.Point) error {
	_, err := sw.insert.ExecContext(sw.ctx,
		track,
		p.Timestamp.UnixMilli(),
		p.Latitude,
		p.Longitude,
		nullFloat(p.Accuracy),
		nullFloat(p.Speed),
		nullFloat(p.Altitude),
		nullFloat(p.Heading),
		nullFloat(p.VerticalAccuracy),
		nullInt(p.DeviceTag),
		sql.NullString{String: p.Platform, Valid: p.Platform != ""},
	)
	if err != nil {
		return fmt.Errorf("inserting point at %s: %w", p.Timestamp, err)
	}
	return nil
}

// Close commits everything written and closes the database.
func (sw *SQLiteWriter) Close() error {
	defer sw.db.Close()
	if err := sw.insert.Close(); err != nil {
		sw.tx.Rollback() //nolint:errcheck
		return fmt.Errorf("closing statement: %w", err)
	}
	if err := sw.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	sw.log.Debug("committed points", zap.Int64("tracks", sw.track))
	return nil
}

// Abort discards everything written and closes the database.
func (sw *SQLiteWriter) Abort() error {
	defer sw.db.Close()
	sw.insert.Close()
	return sw.tx.Rollback()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
