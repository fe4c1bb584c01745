package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/models"
)

// Store defines the interface for the document store backing the
// coordinator: thing definitions, device locations and sensor readings.
type Store interface {
	Close() error
	Migrate() error
	ListThings() ([]*models.Thing, error)
	InsertThing(thing *models.Thing) error
	GetLocation(thingID string) (*models.DeviceLocation, error)
	UpsertLocation(loc *models.DeviceLocation) error
	UpsertLatestReading(doc *ReadingDocument) error
	AppendReading(doc *ReadingDocument) error
	AppendBatch(docs []*ReadingDocument) error
	GetRecentReadings(thingID string, limit int) ([]*ReadingDocument, error)
	DeleteOlderThan(days int) (int64, error)
	GetStorageStats() (*StorageStats, error)
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// ReadingDocument is a persisted sensor reading. Poll reads upsert the
// per-thing slot; push ingests append a new document each time.
type ReadingDocument struct {
	ThingID     string    `json:"thing_id"`
	SensorID    string    `json:"sensor_id"`
	DeviceType  string    `json:"device_type"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	CO2         float64   `json:"co2"`
	TVOC        float64   `json:"tvoc"`
	Timestamp   time.Time `json:"timestamp"`
}

// StorageStats contains information about the database
type StorageStats struct {
	TotalReadings  int64     `json:"total_readings"`
	OldestReading  time.Time `json:"oldest_reading,omitempty"`
	NewestReading  time.Time `json:"newest_reading,omitempty"`
	UniqueThings   int       `json:"unique_things"`
	DatabaseSizeMB float64   `json:"database_size_mb"`
}

// SQLiteStore handles persistent storage for the coordinator
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Apply performance pragmas for SQLite
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	// Auto-migrate schema
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite store initialized")

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the database schema if it doesn't exist.
//
// The slot column holds the thing id for poll-upserted rows and NULL
// for appended ingest rows; SQLite permits any number of NULLs in a
// UNIQUE column, so both write modes share one table.
func (s *SQLiteStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS things (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		device_type TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS device_locations (
		thing_id TEXT PRIMARY KEY,
		location TEXT NOT NULL,
		device_type TEXT NOT NULL,
		last_modified DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sensor_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slot TEXT UNIQUE,
		thing_id TEXT NOT NULL,
		sensor_id TEXT NOT NULL,
		device_type TEXT NOT NULL,
		temperature REAL NOT NULL,
		humidity REAL NOT NULL,
		co2 REAL NOT NULL,
		tvoc REAL NOT NULL,
		recorded_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_readings_thing_time ON sensor_readings(thing_id, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_readings_time ON sensor_readings(recorded_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// ListThings returns all stored thing definitions
func (s *SQLiteStore) ListThings() ([]*models.Thing, error) {
	rows, err := s.db.Query("SELECT id, title, device_type FROM things ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query things: %w", err)
	}
	defer rows.Close()

	var things []*models.Thing
	for rows.Next() {
		var thing models.Thing
		var deviceType string
		if err := rows.Scan(&thing.ID, &thing.Title, &deviceType); err != nil {
			return nil, fmt.Errorf("failed to scan thing: %w", err)
		}
		thing.Type, err = models.ParseDeviceType(deviceType)
		if err != nil {
			return nil, fmt.Errorf("thing %s: %w", thing.ID, err)
		}
		things = append(things, &thing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return things, nil
}

// InsertThing stores a thing definition
func (s *SQLiteStore) InsertThing(thing *models.Thing) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO things (id, title, device_type) VALUES (?, ?, ?)",
		thing.ID, thing.Title, string(thing.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to insert thing: %w", err)
	}
	return nil
}

// GetLocation returns the persisted location for a thing, or nil if the
// thing has never had its location written
func (s *SQLiteStore) GetLocation(thingID string) (*models.DeviceLocation, error) {
	query := `
		SELECT thing_id, location, device_type, last_modified
		FROM device_locations
		WHERE thing_id = ?
	`

	var loc models.DeviceLocation
	var lastModified string
	err := s.db.QueryRow(query, thingID).Scan(&loc.DeviceID, &loc.Location, &loc.DeviceType, &lastModified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	loc.LastModified, err = s.parseTimestamp(lastModified)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_modified: %w", err)
	}

	return &loc, nil
}

// UpsertLocation writes the location document keyed by thing id
func (s *SQLiteStore) UpsertLocation(loc *models.DeviceLocation) error {
	query := `
		INSERT INTO device_locations (thing_id, location, device_type, last_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thing_id) DO UPDATE SET
			location = excluded.location,
			device_type = excluded.device_type,
			last_modified = excluded.last_modified
	`

	_, err := s.db.Exec(query,
		loc.DeviceID,
		loc.Location,
		loc.DeviceType,
		loc.LastModified.Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert location: %w", err)
	}

	return nil
}

// UpsertLatestReading writes the per-thing reading slot, replacing any
// previous poll result for the same thing
func (s *SQLiteStore) UpsertLatestReading(doc *ReadingDocument) error {
	query := `
		INSERT INTO sensor_readings (slot, thing_id, sensor_id, device_type, temperature, humidity, co2, tvoc, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			sensor_id = excluded.sensor_id,
			device_type = excluded.device_type,
			temperature = excluded.temperature,
			humidity = excluded.humidity,
			co2 = excluded.co2,
			tvoc = excluded.tvoc,
			recorded_at = excluded.recorded_at
	`

	_, err := s.db.Exec(query,
		doc.ThingID,
		doc.ThingID,
		doc.SensorID,
		doc.DeviceType,
		doc.Temperature,
		doc.Humidity,
		doc.CO2,
		doc.TVOC,
		doc.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reading: %w", err)
	}

	return nil
}

// AppendReading inserts a new ingest document
func (s *SQLiteStore) AppendReading(doc *ReadingDocument) error {
	query := `
		INSERT INTO sensor_readings (slot, thing_id, sensor_id, device_type, temperature, humidity, co2, tvoc, recorded_at)
		VALUES (NULL, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		doc.ThingID,
		doc.SensorID,
		doc.DeviceType,
		doc.Temperature,
		doc.Humidity,
		doc.CO2,
		doc.TVOC,
		doc.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append reading: %w", err)
	}

	return nil
}

// AppendBatch inserts multiple ingest documents in a single transaction
func (s *SQLiteStore) AppendBatch(docs []*ReadingDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO sensor_readings (slot, thing_id, sensor_id, device_type, temperature, humidity, co2, tvoc, recorded_at)
		VALUES (NULL, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		_, err := stmt.Exec(
			doc.ThingID,
			doc.SensorID,
			doc.DeviceType,
			doc.Temperature,
			doc.Humidity,
			doc.CO2,
			doc.TVOC,
			doc.Timestamp.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to append reading in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Int("count", len(docs)).Msg("Batch insert completed")
	return nil
}

// GetRecentReadings returns the newest documents for a thing, newest
// first. An empty thing id returns documents across all things.
func (s *SQLiteStore) GetRecentReadings(thingID string, limit int) ([]*ReadingDocument, error) {
	var query string
	var args []interface{}

	if thingID == "" {
		query = `
			SELECT thing_id, sensor_id, device_type, temperature, humidity, co2, tvoc, recorded_at
			FROM sensor_readings
			ORDER BY recorded_at DESC
			LIMIT ?
		`
		args = []interface{}{limit}
	} else {
		query = `
			SELECT thing_id, sensor_id, device_type, temperature, humidity, co2, tvoc, recorded_at
			FROM sensor_readings
			WHERE thing_id = ?
			ORDER BY recorded_at DESC
			LIMIT ?
		`
		args = []interface{}{thingID, limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var docs []*ReadingDocument
	for rows.Next() {
		var doc ReadingDocument
		var recordedAt string

		err := rows.Scan(
			&doc.ThingID,
			&doc.SensorID,
			&doc.DeviceType,
			&doc.Temperature,
			&doc.Humidity,
			&doc.CO2,
			&doc.TVOC,
			&recordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		doc.Timestamp, err = s.parseTimestamp(recordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}

		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return docs, nil
}

// DeleteOlderThan removes appended ingest documents older than the
// specified number of days. Poll slots are kept; each one holds the
// latest reading for its thing.
func (s *SQLiteStore) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := s.db.Exec(
		"DELETE FROM sensor_readings WHERE slot IS NULL AND recorded_at < ?",
		cutoff.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info().
		Int("days", days).
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Deleted old readings")

	return deleted, nil
}

// GetStorageStats returns statistics about the database
func (s *SQLiteStore) GetStorageStats() (*StorageStats, error) {
	stats := &StorageStats{}

	err := s.db.QueryRow("SELECT COUNT(*) FROM sensor_readings").Scan(&stats.TotalReadings)
	if err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}

	// If no readings, return early with zero values
	if stats.TotalReadings == 0 {
		return stats, nil
	}

	var oldestStr, newestStr string
	err = s.db.QueryRow("SELECT MIN(recorded_at), MAX(recorded_at) FROM sensor_readings").
		Scan(&oldestStr, &newestStr)
	if err != nil {
		return nil, fmt.Errorf("failed to get timestamp range: %w", err)
	}

	stats.OldestReading, _ = s.parseTimestamp(oldestStr)
	stats.NewestReading, _ = s.parseTimestamp(newestStr)

	err = s.db.QueryRow("SELECT COUNT(DISTINCT thing_id) FROM sensor_readings").Scan(&stats.UniqueThings)
	if err != nil {
		return nil, fmt.Errorf("failed to count things: %w", err)
	}

	// Get database size using PRAGMA
	var pageCount, pageSize int64
	s.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)

	return stats, nil
}

// parseTimestamp tries multiple formats to parse a SQLite timestamp
func (s *SQLiteStore) parseTimestamp(ts string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}
