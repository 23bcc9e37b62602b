package data

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Clip is a recorded video clip known to the host application.
type Clip struct {
	ID        int64
	Path      string
	CreatedAt time.Time
}

// Marker is a timeline marker attached to a clip.
type Marker struct {
	ID        int64
	ClipID    int64
	Timestamp float64
	CreatedAt time.Time
}

// MarkerRepo persists clips and their timeline markers. The relay
// core only ever calls AddMarker; the rest of the surface belongs to
// the host.
type MarkerRepo interface {
	AddClip(path string) (int64, error)
	AddMarker(clipID int64, timestamp float64) (int64, error)
	ListMarkers(clipID int64) ([]Marker, error)
	DeleteMarker(id int64) error
	Close() error
}

type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r := &SQLiteRepo{db: db}
	if err := r.init(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepo) init() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS clips(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS markers(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		clip_id INTEGER NOT NULL,
		ts REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) AddClip(path string) (int64, error) {
	res, err := r.db.Exec(`INSERT INTO clips(path) VALUES (?)`, path)
	if err != nil {
		return 0, fmt.Errorf("failed to add clip: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) AddMarker(clipID int64, timestamp float64) (int64, error) {
	res, err := r.db.Exec(`INSERT INTO markers(clip_id, ts) VALUES (?, ?)`, clipID, timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to add marker: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) ListMarkers(clipID int64) ([]Marker, error) {
	rows, err := r.db.Query(`SELECT id, clip_id, ts, created_at FROM markers WHERE clip_id = ? ORDER BY ts`, clipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer rows.Close()

	var markers []Marker
	for rows.Next() {
		var m Marker
		if err := rows.Scan(&m.ID, &m.ClipID, &m.Timestamp, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

func (r *SQLiteRepo) DeleteMarker(id int64) error {
	_, err := r.db.Exec(`DELETE FROM markers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}
