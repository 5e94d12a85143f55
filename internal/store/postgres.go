package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"calwatch/internal/models"

	"github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS events (
	group_name  TEXT        NOT NULL,
	uid         TEXT        NOT NULL,
	name        TEXT        NOT NULL,
	description TEXT,
	all_day     BOOLEAN     NOT NULL DEFAULT FALSE,
	begin_at    TIMESTAMPTZ NOT NULL,
	end_at      TIMESTAMPTZ NOT NULL,
	url         TEXT,
	location    TEXT,
	PRIMARY KEY (group_name, uid)
)`

const eventColumns = `uid, group_name, name, description, all_day, begin_at, end_at, url, location`

// pq error code for a missing relation.
const undefinedTable = "42P01"

// Postgres is the durable store, one row per (group, uid).
type Postgres struct {
	DB *sql.DB
}

// NewPostgres returns a store backed by db.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

// OpenPostgres connects to dsn and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgres(db), nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.DB.Close()
}

// Migrate creates the events table when it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

func (p *Postgres) FindByKey(ctx context.Context, group, uid string) (*models.Event, error) {
	row := p.DB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE group_name = $1 AND uid = $2`, group, uid)
	e, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, wrapPQ(err)
	}
	return e, nil
}

func (p *Postgres) FindAllByGroup(ctx context.Context, group string) ([]*models.Event, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE group_name = $1 ORDER BY begin_at, uid`, group)
	if err != nil {
		return nil, wrapPQ(err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (p *Postgres) Upsert(ctx context.Context, e *models.Event) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (group_name, uid) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			all_day = EXCLUDED.all_day,
			begin_at = EXCLUDED.begin_at,
			end_at = EXCLUDED.end_at,
			url = EXCLUDED.url,
			location = EXCLUDED.location`,
		e.UID, e.Group, e.Name, nullString(e.Description), e.AllDay, e.Begin, e.End,
		nullString(e.URL), nullString(e.Location))
	return wrapPQ(err)
}

func (p *Postgres) Delete(ctx context.Context, e *models.Event) error {
	result, err := p.DB.ExecContext(ctx, `DELETE FROM events WHERE group_name = $1 AND uid = $2`, e.Group, e.UID)
	if err != nil {
		return wrapPQ(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deleted row count: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*models.Event, error) {
	var e models.Event
	var description, url, location sql.NullString
	err := s.Scan(&e.UID, &e.Group, &e.Name, &description, &e.AllDay, &e.Begin, &e.End, &url, &location)
	if err != nil {
		return nil, err
	}
	e.Description = description.String
	e.URL = url.String
	e.Location = location.String
	return &e, nil
}

// nullString stores an absent optional field as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func wrapPQ(err error) error {
	if err == nil {
		return nil
	}
	var perr *pq.Error
	if errors.As(err, &perr) && perr.Code == undefinedTable {
		return fmt.Errorf("events table is missing, run the migrate command: %w", err)
	}
	return err
}
