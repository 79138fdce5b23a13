package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tubeqa/internal/chunk"
)

const defaultPath = "data/tubeqa.db"

// Video status lifecycle.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// ErrNotFound indicates the row does not exist.
var ErrNotFound = fmt.Errorf("sqlite: not found")

// Video is one tracked YouTube video.
type Video struct {
	VideoID     string
	Title       string
	DurationSec int
	Status      string
	Source      string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transcript is the persisted transcript text for a video.
type Transcript struct {
	VideoID   string
	Source    string
	Text      string
	FetchedAt time.Time
}

// StoredChunk is a chunk with its persisted embedding.
type StoredChunk struct {
	chunk.Chunk
	Embedding []float32
}

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS videos (
	video_id TEXT PRIMARY KEY,
	title TEXT,
	duration_sec INTEGER,
	status TEXT NOT NULL,
	source TEXT,
	error TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transcripts (
	video_id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	text TEXT NOT NULL,
	fetched_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	video_id TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	start_offset INTEGER NOT NULL,
	text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	dims INTEGER NOT NULL,
	PRIMARY KEY (video_id, ordinal)
);
`

// CreateTables re-applies the schema. Open already runs it; this exists
// for explicit migrations from tooling.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// UpsertVideo inserts or refreshes a video row, preserving created_at.
func (s *Store) UpsertVideo(ctx context.Context, v *Video) error {
	if s == nil || s.db == nil || v == nil {
		return fmt.Errorf("sqlite store not initialized or video nil")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO videos (video_id, title, duration_sec, status, source, error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(video_id) DO UPDATE SET
	title=excluded.title,
	duration_sec=excluded.duration_sec,
	status=excluded.status,
	source=excluded.source,
	error=excluded.error,
	updated_at=excluded.updated_at;
`, v.VideoID, v.Title, v.DurationSec, v.Status, v.Source, v.Error, now, now)
	return err
}

// SetVideoStatus flips the lifecycle status; errText is recorded for failed.
func (s *Store) SetVideoStatus(ctx context.Context, videoID, status, errText string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET status = ?, error = ?, updated_at = ? WHERE video_id = ?`,
		status, errText, now, videoID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetVideo loads one video row.
func (s *Store) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT video_id, title, duration_sec, status, source, error, created_at, updated_at
FROM videos WHERE video_id = ?`, videoID)

	var v Video
	var createdAt, updatedAt string
	err := row.Scan(&v.VideoID, &v.Title, &v.DurationSec, &v.Status, &v.Source, &v.Error, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	v.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &v, nil
}

// UpsertTranscript stores the transcript text for a video.
func (s *Store) UpsertTranscript(ctx context.Context, t *Transcript) error {
	if t == nil {
		return fmt.Errorf("sqlite: transcript nil")
	}
	fetched := t.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO transcripts (video_id, source, text, fetched_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(video_id) DO UPDATE SET
	source=excluded.source,
	text=excluded.text,
	fetched_at=excluded.fetched_at;
`, t.VideoID, t.Source, t.Text, fetched.Format(time.RFC3339Nano))
	return err
}

// GetTranscript loads the transcript for a video.
func (s *Store) GetTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT video_id, source, text, fetched_at FROM transcripts WHERE video_id = ?`, videoID)

	var t Transcript
	var fetchedAt string
	err := row.Scan(&t.VideoID, &t.Source, &t.Text, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetchedAt)
	return &t, nil
}

// ReplaceChunks atomically swaps a video's chunk rows.
func (s *Store) ReplaceChunks(ctx context.Context, videoID string, chunks []StoredChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE video_id = ?`, videoID); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (video_id, ordinal, start_offset, text, embedding, dims) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		blob := encodeVector(c.Embedding)
		if _, err := stmt.ExecContext(ctx, videoID, c.Ordinal, c.Offset, c.Text, blob, len(c.Embedding)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert chunk %d: %w", c.Ordinal, err)
		}
	}
	return tx.Commit()
}

// GetChunks loads a video's chunks ordered by ordinal.
func (s *Store) GetChunks(ctx context.Context, videoID string) ([]StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ordinal, start_offset, text, embedding, dims FROM chunks WHERE video_id = ? ORDER BY ordinal`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredChunk
	for rows.Next() {
		var c StoredChunk
		var blob []byte
		var dims int
		if err := rows.Scan(&c.Ordinal, &c.Offset, &c.Text, &blob, &dims); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob, dims)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.Ordinal, err)
		}
		c.Embedding = vec
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountChunks reports how many chunks are stored for a video.
func (s *Store) CountChunks(ctx context.Context, videoID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE video_id = ?`, videoID).Scan(&n)
	return n, err
}

// embeddings are stored as little-endian float32 blobs

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != 4*dims {
		return nil, fmt.Errorf("embedding blob is %d bytes, want %d", len(blob), 4*dims)
	}
	out := make([]float32, dims)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return out, nil
}
