package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DB wraps the database connection.
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database. maxOpenConns/maxIdleConns
// <= 0 fall back to database/sql's own defaults (unlimited open, 2 idle).
func Connect(connectionString string, maxOpenConns, maxIdleConns int) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order, logging progress
// through log rather than stdout. log may be nil, in which case migrations
// still run but silently.
func (db *DB) RunMigrations(migrationsDir string, log *logrus.Entry) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		if log != nil {
			log.Infof("running migration: %s", filename)
		}

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	if log != nil {
		log.Info("all migrations completed successfully")
	}
	return nil
}

// InsertUser creates a new user row, returning the generated ID.
func (db *DB) InsertUser(u *User) error {
	prefs, err := json.Marshal(u.NotificationPreferences)
	if err != nil {
		return fmt.Errorf("marshal notification_preferences: %w", err)
	}
	query := `
		INSERT INTO users (email, password_hash, exposure_sensitivity_level,
			notification_preferences, preferred_activity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return db.QueryRow(query, u.Email, u.PasswordHash, u.ExposureSensitivityLevel,
		prefs, u.PreferredActivity).Scan(&u.ID, &u.CreatedAt)
}

// GetUserByEmail fetches a user by email, returning nil if not found.
func (db *DB) GetUserByEmail(email string) (*User, error) {
	return db.scanUser(`
		SELECT id, email, password_hash, exposure_sensitivity_level,
			notification_preferences, preferred_activity, created_at
		FROM users WHERE email = $1
	`, email)
}

// GetUserByID fetches a user by ID, returning nil if not found.
func (db *DB) GetUserByID(id string) (*User, error) {
	return db.scanUser(`
		SELECT id, email, password_hash, exposure_sensitivity_level,
			notification_preferences, preferred_activity, created_at
		FROM users WHERE id = $1
	`, id)
}

func (db *DB) scanUser(query string, arg string) (*User, error) {
	var u User
	var prefs []byte
	err := db.QueryRow(query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash,
		&u.ExposureSensitivityLevel, &prefs, &u.PreferredActivity, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.NotificationPreferences); err != nil {
			return nil, fmt.Errorf("unmarshal notification_preferences: %w", err)
		}
	}
	return &u, nil
}

// UpdateUserSettings patches notification preferences and/or sensitivity level.
func (db *DB) UpdateUserSettings(userID string, prefs map[string]bool, sensitivity *int) error {
	if prefs != nil {
		raw, err := json.Marshal(prefs)
		if err != nil {
			return fmt.Errorf("marshal notification_preferences: %w", err)
		}
		if _, err := db.Exec(`UPDATE users SET notification_preferences = $1 WHERE id = $2`, raw, userID); err != nil {
			return err
		}
	}
	if sensitivity != nil {
		if _, err := db.Exec(`UPDATE users SET exposure_sensitivity_level = $1 WHERE id = $2`, *sensitivity, userID); err != nil {
			return err
		}
	}
	return nil
}

// InsertSavedRoute creates a new saved route for a user.
func (db *DB) InsertSavedRoute(r *SavedRoute) error {
	query := `
		INSERT INTO saved_routes (user_id, origin_lat, origin_lon,
			destination_lat, destination_lon, activity_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return db.QueryRow(query, r.UserID, r.OriginLat, r.OriginLon,
		r.DestinationLat, r.DestinationLon, r.ActivityType).Scan(&r.ID, &r.CreatedAt)
}

// ListSavedRoutes returns all routes owned by a user.
func (db *DB) ListSavedRoutes(userID string) ([]*SavedRoute, error) {
	rows, err := db.Query(`
		SELECT id, user_id, origin_lat, origin_lon, destination_lat, destination_lon,
			activity_type, last_upes_score, last_upes_updated_at, created_at
		FROM saved_routes WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SavedRoute
	for rows.Next() {
		var r SavedRoute
		if err := rows.Scan(&r.ID, &r.UserID, &r.OriginLat, &r.OriginLon,
			&r.DestinationLat, &r.DestinationLon, &r.ActivityType,
			&r.LastUPESScore, &r.LastUPESUpdatedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// GetSavedRoute fetches one saved route scoped to its owner.
func (db *DB) GetSavedRoute(userID, routeID string) (*SavedRoute, error) {
	var r SavedRoute
	err := db.QueryRow(`
		SELECT id, user_id, origin_lat, origin_lon, destination_lat, destination_lon,
			activity_type, last_upes_score, last_upes_updated_at, created_at
		FROM saved_routes WHERE id = $1 AND user_id = $2
	`, routeID, userID).Scan(&r.ID, &r.UserID, &r.OriginLat, &r.OriginLon,
		&r.DestinationLat, &r.DestinationLon, &r.ActivityType,
		&r.LastUPESScore, &r.LastUPESUpdatedAt, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &r, err
}

// ListAllSavedRoutes returns every saved route, used by the scheduled scoring
// and alert tasks which operate across all users.
func (db *DB) ListAllSavedRoutes() ([]*SavedRoute, error) {
	rows, err := db.Query(`
		SELECT id, user_id, origin_lat, origin_lon, destination_lat, destination_lon,
			activity_type, last_upes_score, last_upes_updated_at, created_at
		FROM saved_routes
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SavedRoute
	for rows.Next() {
		var r SavedRoute
		if err := rows.Scan(&r.ID, &r.UserID, &r.OriginLat, &r.OriginLon,
			&r.DestinationLat, &r.DestinationLon, &r.ActivityType,
			&r.LastUPESScore, &r.LastUPESUpdatedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteSavedRoute removes a route scoped to its owner; returns false if no
// row matched (either it doesn't exist or belongs to another user).
func (db *DB) DeleteSavedRoute(userID, routeID string) (bool, error) {
	res, err := db.Exec(`DELETE FROM saved_routes WHERE id = $1 AND user_id = $2`, routeID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateSavedRouteScore denormalizes the latest UPES sample onto the route row.
func (db *DB) UpdateSavedRouteScore(routeID string, score float64, asOf time.Time) error {
	_, err := db.Exec(`UPDATE saved_routes SET last_upes_score = $1, last_upes_updated_at = $2 WHERE id = $3`,
		score, asOf, routeID)
	return err
}

// BulkInsertPollutionGridCells inserts a chunk of grid cells inside a single
// transaction; a failed chunk is rolled back in full without aborting any
// other gas's chunks.
func (db *DB) BulkInsertPollutionGridCells(cells []PollutionGridCell) error {
	if len(cells) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO pollution_grid (timestamp, gas_type, geom, pollution_value, severity_level)
		VALUES ($1, $2, ST_GeomFromText($3, 4326), $4, $5)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cells {
		if _, err := stmt.Exec(c.Timestamp, c.GasType, c.GeomWKT, c.PollutionValue, c.SeverityLevel); err != nil {
			return fmt.Errorf("insert grid cell: %w", err)
		}
	}

	return tx.Commit()
}

// LatestGridTimestamp returns the most recent ingested timestamp for a gas,
// or an invalid (Valid == false) sql.NullTime if none exist.
func (db *DB) LatestGridTimestamp(gas string) (sql.NullTime, error) {
	var t sql.NullTime
	err := db.QueryRow(`SELECT max(timestamp) FROM pollution_grid WHERE gas_type = $1`, gas).Scan(&t)
	return t, err
}

// GridCellValue is a minimal (lon, lat, value) sample used by the UPES
// aggregator; it reads the polygon centroid rather than the full geometry.
type GridCellValue struct {
	Lon            float64
	Lat            float64
	PollutionValue float64
}

// GridCellsInWindow returns centroid/value pairs for a gas within a half-open
// time window, for aggregation onto the regular UPES grid.
func (db *DB) GridCellsInWindow(gas string, start, end time.Time) ([]GridCellValue, error) {
	rows, err := db.Query(`
		SELECT ST_X(ST_Centroid(geom)), ST_Y(ST_Centroid(geom)), pollution_value
		FROM pollution_grid
		WHERE gas_type = $1 AND timestamp >= $2 AND timestamp < $3
	`, gas, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GridCellValue
	for rows.Next() {
		var v GridCellValue
		if err := rows.Scan(&v.Lon, &v.Lat, &v.PollutionValue); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GridCellsInBBox returns the gas's cells at its most recent timestamp
// within the given bounding box, used by the analyze/hotspots HTTP
// endpoints. Unlike GridCellsInWindow (which scans a whole hour), this scans
// only the single latest timestamp available for the gas; the UPES engine
// also anchors its hour on that latest timestamp.
func (db *DB) GridCellsInBBox(gas string, west, south, east, north float64) ([]GridCellValue, error) {
	rows, err := db.Query(`
		SELECT ST_X(ST_Centroid(geom)), ST_Y(ST_Centroid(geom)), pollution_value
		FROM pollution_grid
		WHERE gas_type = $1
			AND timestamp = (SELECT max(timestamp) FROM pollution_grid WHERE gas_type = $1)
			AND ST_Intersects(geom, ST_MakeEnvelope($2, $3, $4, $5, 4326))
	`, gas, west, south, east, north)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GridCellValue
	for rows.Next() {
		var v GridCellValue
		if err := rows.Scan(&v.Lon, &v.Lat, &v.PollutionValue); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// InsertNetcdfFile records the metadata row for an uploaded blob.
func (db *DB) InsertNetcdfFile(f *NetcdfFile) error {
	return db.QueryRow(`
		INSERT INTO netcdf_files (file_name, bucket_path, timestamp, gas_type)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, f.FileName, f.BucketPath, f.Timestamp, f.GasType).Scan(&f.ID)
}

// InsertRouteExposureHistory appends one immutable history sample.
func (db *DB) InsertRouteExposureHistory(h *RouteExposureHistory) error {
	return db.QueryRow(`
		INSERT INTO route_exposure_history (route_id, timestamp, upes_score, max_upes_along_route, score_source)
		VALUES ($1, $2, $3, $4, $5) RETURNING id
	`, h.RouteID, h.Timestamp, h.UPESScore, h.MaxUPESAlongRoute, h.ScoreSource).Scan(&h.ID)
}

// RecentRouteHistory returns the most recent n history rows for a route,
// newest first.
func (db *DB) RecentRouteHistory(routeID string, n int) ([]*RouteExposureHistory, error) {
	rows, err := db.Query(`
		SELECT id, route_id, timestamp, upes_score, max_upes_along_route, score_source
		FROM route_exposure_history WHERE route_id = $1
		ORDER BY timestamp DESC LIMIT $2
	`, routeID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RouteExposureHistory
	for rows.Next() {
		var h RouteExposureHistory
		if err := rows.Scan(&h.ID, &h.RouteID, &h.Timestamp, &h.UPESScore, &h.MaxUPESAlongRoute, &h.ScoreSource); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// MinUPESSince returns the minimum upes_score recorded for a route at or
// after since, and whether any rows existed.
func (db *DB) MinUPESSince(routeID string, since time.Time) (float64, bool, error) {
	var min sql.NullFloat64
	err := db.QueryRow(`
		SELECT min(upes_score) FROM route_exposure_history
		WHERE route_id = $1 AND timestamp >= $2
	`, routeID, since).Scan(&min)
	if err != nil {
		return 0, false, err
	}
	return min.Float64, min.Valid, nil
}

// InsertAlertLog appends one immutable alert record.
func (db *DB) InsertAlertLog(a *AlertLog) error {
	meta, err := json.Marshal(a.AlertMetadata)
	if err != nil {
		return fmt.Errorf("marshal alert_metadata: %w", err)
	}
	channels, err := json.Marshal(a.NotifiedChannels)
	if err != nil {
		return fmt.Errorf("marshal notified_channels: %w", err)
	}
	return db.QueryRow(`
		INSERT INTO alert_log (user_id, route_id, alert_type, score_before, score_after,
			threshold, metadata, notified_channels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, a.UserID, a.RouteID, a.AlertType, a.ScoreBefore, a.ScoreAfter, a.Threshold, meta, channels).
		Scan(&a.ID, &a.CreatedAt)
}

// ListAlertLogs returns alert rows for a user, optionally scoped to a route
// and/or alert type, within the last `days` days.
func (db *DB) ListAlertLogs(userID string, routeID, alertType string, days int) ([]*AlertLog, error) {
	query := `
		SELECT id, user_id, route_id, alert_type, score_before, score_after,
			threshold, metadata, notified_channels, created_at
		FROM alert_log
		WHERE user_id = $1 AND created_at >= now() - ($2 || ' days')::interval
	`
	args := []interface{}{userID, days}
	if routeID != "" {
		args = append(args, routeID)
		query += fmt.Sprintf(" AND route_id = $%d", len(args))
	}
	if alertType != "" {
		args = append(args, alertType)
		query += fmt.Sprintf(" AND alert_type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AlertLog
	for rows.Next() {
		var a AlertLog
		var meta, channels []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.RouteID, &a.AlertType, &a.ScoreBefore,
			&a.ScoreAfter, &a.Threshold, &meta, &channels, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &a.AlertMetadata)
		}
		if len(channels) > 0 {
			_ = json.Unmarshal(channels, &a.NotifiedChannels)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
