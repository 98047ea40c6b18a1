// Package store provides SQLite persistence for stations, users and reviews.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/stationreviews/internal/access"
	"github.com/abelbrown/stationreviews/internal/review"
)

var (
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("user already exists")

	// ErrBadCredentials is returned for an unknown user or wrong password.
	ErrBadCredentials = errors.New("invalid username or password")
)

// DefaultLine is assigned to stations added without a line.
const DefaultLine = "Blue Line"

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

var memSeq atomic.Int64

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Each in-memory store gets its own named database, shared by every
		// connection in this pool.
		connStr = fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memSeq.Add(1))
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		line TEXT NOT NULL DEFAULT 'Blue Line',
		location TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash BLOB,
		is_staff INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		station_id INTEGER NOT NULL REFERENCES stations(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		text TEXT NOT NULL,
		rating INTEGER NOT NULL,
		sentiment TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_station_created ON reviews(station_id, created_at DESC, id DESC);

	CREATE TABLE IF NOT EXISTS aspect_ratings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		review_id INTEGER NOT NULL REFERENCES reviews(id),
		aspect TEXT NOT NULL,
		sentiment TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_aspect_ratings_review ON aspect_ratings(review_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// AddStation inserts st unless a station with the same name exists.
// It returns the stored station and whether it was created.
func (s *Store) AddStation(ctx context.Context, st review.Station) (review.Station, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(st.Name)
	if name == "" {
		return review.Station{}, false, &review.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	line := strings.TrimSpace(st.Line)
	if line == "" {
		line = DefaultLine
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO stations (name, line, location) VALUES (?, ?, ?)`,
		name, line, strings.TrimSpace(st.Location))
	if err != nil {
		return review.Station{}, false, fmt.Errorf("insert station %q: %w", name, err)
	}
	created, err := res.RowsAffected()
	if err != nil {
		return review.Station{}, false, err
	}

	stored, err := s.stationBy(ctx, "name = ?", name)
	if err != nil {
		return review.Station{}, false, err
	}
	return stored, created > 0, nil
}

// ListStations returns all stations ordered by id.
// Thread-safe: acquires read lock.
func (s *Store) ListStations(ctx context.Context) ([]review.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, line, location FROM stations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []review.Station
	for rows.Next() {
		var st review.Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Line, &st.Location); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Station returns the station with id, or review.ErrNotFound.
func (s *Store) Station(ctx context.Context, id int64) (review.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stationBy(ctx, "id = ?", id)
}

// StationByName returns the station named name, or review.ErrNotFound.
func (s *Store) StationByName(ctx context.Context, name string) (review.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stationBy(ctx, "name = ?", strings.TrimSpace(name))
}

// stationBy looks a station up. Caller must hold s.mu.
func (s *Store) stationBy(ctx context.Context, where string, arg any) (review.Station, error) {
	var st review.Station
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, line, location FROM stations WHERE `+where, arg).
		Scan(&st.ID, &st.Name, &st.Line, &st.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Station{}, fmt.Errorf("station %v: %w", arg, review.ErrNotFound)
	}
	return st, err
}

// CreateUser registers username with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, password string, staff bool) (review.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return review.Identity{}, &review.ValidationError{Field: "credentials", Reason: "username and password required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return review.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []byte
	err = s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE username = ?`, username).Scan(&existing)
	switch {
	case err == nil && len(existing) > 0:
		return review.Identity{}, fmt.Errorf("register %q: %w", username, ErrUserExists)
	case err == nil:
		// Imported author without a password: claim the account.
		_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash = ?, is_staff = ? WHERE username = ?`,
			hash, boolToInt(staff), username)
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, is_staff, created_at) VALUES (?, ?, ?, ?)`,
			username, hash, boolToInt(staff), time.Now().UTC())
	}
	if err != nil {
		return review.Identity{}, fmt.Errorf("register %q: %w", username, err)
	}
	return review.Identity{Username: username, Privileged: staff}, nil
}

// Authenticate checks a username and password.
func (s *Store) Authenticate(ctx context.Context, username, password string) (review.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hash []byte
	var staff int
	err := s.db.QueryRowContext(ctx, `SELECT password_hash, is_staff FROM users WHERE username = ?`,
		strings.TrimSpace(username)).Scan(&hash, &staff)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(hash) == 0) {
		return review.Identity{}, ErrBadCredentials
	}
	if err != nil {
		return review.Identity{}, err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return review.Identity{}, ErrBadCredentials
	}
	return review.Identity{Username: strings.TrimSpace(username), Privileged: staff != 0}, nil
}

// User returns the identity for username, or review.ErrNotFound.
func (s *Store) User(ctx context.Context, username string) (review.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var staff int
	err := s.db.QueryRowContext(ctx, `SELECT is_staff FROM users WHERE username = ?`, username).Scan(&staff)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Identity{}, fmt.Errorf("user %q: %w", username, review.ErrNotFound)
	}
	if err != nil {
		return review.Identity{}, err
	}
	return review.Identity{Username: username, Privileged: staff != 0}, nil
}

// ensureUser returns the id of username, creating a password-less account
// when needed. Caller must hold the write lock.
func (s *Store) ensureUser(ctx context.Context, tx *sql.Tx, username string) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (username, created_at) VALUES (?, ?)`,
		username, time.Now().UTC()); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	return id, err
}

// NewReview is a review to insert. Sentiment and Aspects come from the
// analysis step; CreatedAt defaults to now.
type NewReview struct {
	StationID int64
	Author    string
	Rating    int
	Text      string
	CreatedAt time.Time
	Sentiment review.Sentiment
	Aspects   []review.Aspect
}

// InsertReview stores a review and its aspect ratings.
// Thread-safe: acquires write lock.
func (s *Store) InsertReview(ctx context.Context, nr NewReview) (review.Review, error) {
	if err := review.ValidateSubmission(nr.Rating, nr.Text); err != nil {
		return review.Review{}, err
	}
	author := strings.TrimSpace(nr.Author)
	if author == "" {
		author = "anonymous"
	}
	created := nr.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	created = created.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return review.Review{}, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations WHERE id = ?`, nr.StationID).Scan(&exists); err != nil {
		return review.Review{}, err
	}
	if exists == 0 {
		return review.Review{}, fmt.Errorf("station %d: %w", nr.StationID, review.ErrNotFound)
	}

	userID, err := s.ensureUser(ctx, tx, author)
	if err != nil {
		return review.Review{}, fmt.Errorf("author %q: %w", author, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO reviews (station_id, user_id, text, rating, sentiment, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		nr.StationID, userID, nr.Text, nr.Rating, string(nr.Sentiment), created)
	if err != nil {
		return review.Review{}, fmt.Errorf("insert review: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return review.Review{}, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO aspect_ratings (review_id, aspect, sentiment) VALUES (?, ?, ?)`)
	if err != nil {
		return review.Review{}, err
	}
	defer stmt.Close()
	for _, a := range nr.Aspects {
		if _, err := stmt.ExecContext(ctx, id, a.Name, string(a.Sentiment)); err != nil {
			return review.Review{}, fmt.Errorf("insert aspect %q: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return review.Review{}, err
	}

	return review.Review{
		ID:        id,
		StationID: nr.StationID,
		Rating:    nr.Rating,
		Text:      nr.Text,
		Author:    author,
		CreatedAt: created,
		Sentiment: nr.Sentiment,
		Aspects:   append([]review.Aspect(nil), nr.Aspects...),
	}, nil
}

const reviewColumns = `r.id, r.station_id, r.rating, r.text, u.username, r.sentiment, r.created_at`

// ListReviews returns one page of a station's reviews, newest first, and
// the station's total review count. limit <= 0 returns everything from offset.
// Thread-safe: acquires read lock.
func (s *Store) ListReviews(ctx context.Context, stationID int64, limit, offset int) ([]review.Review, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE station_id = ?`, stationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	items, err := s.queryReviews(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.station_id = ?
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ? OFFSET ?`, stationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Review returns the review with id, or review.ErrNotFound.
func (s *Store) Review(ctx context.Context, id int64) (review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.queryReviews(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.id = ?`, id)
	if err != nil {
		return review.Review{}, err
	}
	if len(items) == 0 {
		return review.Review{}, fmt.Errorf("review %d: %w", id, review.ErrNotFound)
	}
	return items[0], nil
}

// DeleteReview removes a review on behalf of who. Only the author or a
// privileged user may delete.
// Thread-safe: acquires write lock.
func (s *Store) DeleteReview(ctx context.Context, who review.Identity, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var author string
	err = tx.QueryRowContext(ctx,
		`SELECT u.username FROM reviews r JOIN users u ON u.id = r.user_id WHERE r.id = ?`, id).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("review %d: %w", id, review.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !access.CanDelete(who, author) {
		return fmt.Errorf("delete review %d as %q: %w", id, who.Username, review.ErrForbidden)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM aspect_ratings WHERE review_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// queryReviews scans reviews and attaches their aspect ratings.
// Caller must hold s.mu (read lock is sufficient).
func (s *Store) queryReviews(ctx context.Context, query string, args ...any) ([]review.Review, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []review.Review
	for rows.Next() {
		var r review.Review
		var sentiment string
		if err := rows.Scan(&r.ID, &r.StationID, &r.Rating, &r.Text, &r.Author, &sentiment, &r.CreatedAt); err != nil {
			return nil, err
		}
		if sentiment != "" {
			r.Sentiment = review.ParseSentiment(sentiment)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}
	return items, s.attachAspects(ctx, items)
}

// attachAspects loads aspect ratings for items in one query.
// Caller must hold s.mu.
func (s *Store) attachAspects(ctx context.Context, items []review.Review) error {
	byID := make(map[int64]int, len(items))
	args := make([]any, len(items))
	for i, r := range items {
		byID[r.ID] = i
		args[i] = r.ID
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(items)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT review_id, aspect, sentiment FROM aspect_ratings WHERE review_id IN (`+placeholders+`) ORDER BY id`,
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name, sentiment string
		if err := rows.Scan(&id, &name, &sentiment); err != nil {
			return err
		}
		i := byID[id]
		items[i].Aspects = append(items[i].Aspects, review.Aspect{
			Name:      name,
			Sentiment: review.ParseSentiment(sentiment),
			Trend:     review.Flat,
		})
	}
	return rows.Err()
}

// boolToInt converts a bool to an int for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
