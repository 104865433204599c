package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/farm-insights/internal/farm"
	"github.com/i474232898/farm-insights/internal/pricing"
	"github.com/i474232898/farm-insights/internal/weather"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// timeLayout is fixed width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is a Store persisted to a SQLite file. Plots, predictions and
// snapshots are kept as JSON documents next to the columns they are queried by.
type SQLiteStore struct {
	db *sql.DB

	maxHistory int
	maxAge     time.Duration
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies the schema.
func NewSQLiteStore(path string, maxHistory int, maxAge time.Duration) (*SQLiteStore, error) {
	dsn := path
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and ":memory:" is
	// per connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, maxHistory: maxHistory, maxAge: maxAge}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plots (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS retail_prices (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		year INTEGER NOT NULL,
		crop_name TEXT NOT NULL,
		category TEXT NOT NULL,
		price_usd_per_lb REAL NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_prices_crop_year ON retail_prices(crop_name, year);

	CREATE TABLE IF NOT EXISTS price_predictions (
		crop_name TEXT NOT NULL,
		prediction_year INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (crop_name, prediction_year)
	);

	CREATE TABLE IF NOT EXISTS weather_snapshots (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		location_key TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_location ON weather_snapshots(location_key, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- plots

func (s *SQLiteStore) CreatePlot(ctx context.Context, p farm.Plot) (farm.Plot, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	data, err := json.Marshal(p)
	if err != nil {
		return farm.Plot{}, fmt.Errorf("marshal plot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO plots (id, data) VALUES (?, ?)`, p.ID, string(data)); err != nil {
		return farm.Plot{}, fmt.Errorf("insert plot: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetPlot(ctx context.Context, id string) (farm.Plot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM plots WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return farm.Plot{}, ErrNotFound
	}
	if err != nil {
		return farm.Plot{}, fmt.Errorf("query plot: %w", err)
	}

	var p farm.Plot
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return farm.Plot{}, fmt.Errorf("unmarshal plot %s: %w", id, err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPlots(ctx context.Context) ([]farm.Plot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM plots ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query plots: %w", err)
	}
	defer rows.Close()

	plots := []farm.Plot{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan plot: %w", err)
		}
		var p farm.Plot
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("unmarshal plot: %w", err)
		}
		plots = append(plots, p)
	}
	return plots, rows.Err()
}

func (s *SQLiteStore) UpdatePlot(ctx context.Context, p farm.Plot) (farm.Plot, error) {
	existing, err := s.GetPlot(ctx, p.ID)
	if err != nil {
		return farm.Plot{}, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = now()

	data, err := json.Marshal(p)
	if err != nil {
		return farm.Plot{}, fmt.Errorf("marshal plot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE plots SET data = ? WHERE id = ?`, string(data), p.ID); err != nil {
		return farm.Plot{}, fmt.Errorf("update plot: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) DeletePlot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- prices

// AddPrices inserts all records in one transaction.
func (s *SQLiteStore) AddPrices(ctx context.Context, records []pricing.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO retail_prices (id, year, crop_name, category, price_usd_per_lb, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := now().Format(timeLayout)
	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			uuid.NewString(),
			r.Year,
			pricing.NormalizeCropName(r.CropName),
			string(r.Category),
			r.PricePerPound,
			r.Notes,
			ts,
		)
		if err != nil {
			return fmt.Errorf("insert price for %s/%d: %w", r.CropName, r.Year, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) PriceHistory(ctx context.Context, crop string) ([]pricing.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, crop_name, category, price_usd_per_lb, notes, created_at
		FROM retail_prices
		WHERE crop_name = ?
		ORDER BY year ASC, seq ASC`, pricing.NormalizeCropName(crop))
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var out []pricing.Record
	for rows.Next() {
		var (
			r         pricing.Record
			category  string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.Year, &r.CropName, &category, &r.PricePerPound, &r.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		r.Category = pricing.Category(category)
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse price created_at: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Crops(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT crop_name FROM retail_prices ORDER BY crop_name`)
	if err != nil {
		return nil, fmt.Errorf("query crops: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan crop: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClearPrices removes every price record and cached prediction.
func (s *SQLiteStore) ClearPrices(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM retail_prices`, `DELETE FROM price_predictions`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear prices: %w", err)
		}
	}
	return tx.Commit()
}

// --- predictions

func (s *SQLiteStore) GetPrediction(ctx context.Context, crop string, year int) (*pricing.Prediction, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM price_predictions WHERE crop_name = ? AND prediction_year = ?`,
		pricing.NormalizeCropName(crop), year,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query prediction: %w", err)
	}

	var p pricing.Prediction
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal prediction: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) SavePrediction(ctx context.Context, p pricing.Prediction) error {
	p.CropName = pricing.NormalizeCropName(p.CropName)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO price_predictions (crop_name, prediction_year, data) VALUES (?, ?, ?)
		ON CONFLICT (crop_name, prediction_year) DO UPDATE SET data = excluded.data`,
		p.CropName, p.PredictionYear, string(data))
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePredictions(ctx context.Context, crop string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM price_predictions WHERE crop_name = ?`, pricing.NormalizeCropName(crop)); err != nil {
		return fmt.Errorf("delete predictions: %w", err)
	}
	return nil
}

// --- weather snapshots

// SaveSnapshot appends a snapshot and enforces the retention limits for its
// location.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, loc weather.Location, snapshot weather.WeatherSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := loc.Key()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO weather_snapshots (location_key, timestamp, data) VALUES (?, ?, ?)`,
		key, snapshot.Timestamp.UTC().Format(timeLayout), string(data),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if s.maxHistory > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM weather_snapshots
			WHERE location_key = ? AND seq NOT IN (
				SELECT seq FROM weather_snapshots WHERE location_key = ? ORDER BY seq DESC LIMIT ?
			)`, key, key, s.maxHistory); err != nil {
			return fmt.Errorf("trim snapshots by count: %w", err)
		}
	}
	if s.maxAge > 0 {
		cutoff := now().Add(-s.maxAge).Format(timeLayout)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM weather_snapshots WHERE location_key = ? AND timestamp < ?`, key, cutoff,
		); err != nil {
			return fmt.Errorf("trim snapshots by age: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetLatest(ctx context.Context, loc weather.Location) (weather.WeatherSnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM weather_snapshots WHERE location_key = ? ORDER BY seq DESC LIMIT 1`, loc.Key(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.WeatherSnapshot{}, ErrNotFound
	}
	if err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	var snap weather.WeatherSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// GetRange returns snapshots for a location between from and to (inclusive).
func (s *SQLiteStore) GetRange(ctx context.Context, loc weather.Location, from, to time.Time) ([]weather.WeatherSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM weather_snapshots
		WHERE location_key = ? AND timestamp BETWEEN ? AND ?
		ORDER BY seq`,
		loc.Key(), from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []weather.WeatherSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap weather.WeatherSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
