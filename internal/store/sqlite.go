package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/pricewaze/ingest-cli/internal/geo"
	"github.com/pricewaze/ingest-cli/internal/model"
)

// SQLiteStore implements Store on a local SQLite database. Used for local
// development and in-memory integration tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path. Use ":memory:" for
// an ephemeral database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS zones (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			city TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS properties (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			property_type TEXT NOT NULL,
			price REAL NOT NULL,
			area_m2 REAL NOT NULL DEFAULT 0,
			bedrooms INTEGER,
			bathrooms INTEGER,
			parking_spaces INTEGER,
			year_built INTEGER,
			address TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			images TEXT NOT NULL DEFAULT '[]',
			features TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			zone_id TEXT,
			trust_score REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_properties_lat_lng ON properties (latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_properties_zone ON properties (zone_id)`,
		`CREATE INDEX IF NOT EXISTS idx_zones_city ON zones (city)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "sqlite: migrate")
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertProperty = `INSERT INTO properties (
	id, title, description, property_type, price, area_m2,
	bedrooms, bathrooms, parking_spaces, year_built, address,
	latitude, longitude, images, features, status, zone_id, trust_score, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertProperty stores a new listing and returns its id.
func (s *SQLiteStore) InsertProperty(ctx context.Context, p *model.Property) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	args, err := sqlitePropertyArgs(p)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsertProperty, args...); err != nil {
		return "", eris.Wrap(err, "sqlite: insert property")
	}
	return p.ID, nil
}

// UpdateProperty replaces the mutable fields of an existing listing.
func (s *SQLiteStore) UpdateProperty(ctx context.Context, p *model.Property) error {
	images, features, err := encodeLists(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE properties SET
			title = ?, description = ?, property_type = ?, price = ?, area_m2 = ?,
			bedrooms = ?, bathrooms = ?, parking_spaces = ?, year_built = ?,
			address = ?, latitude = ?, longitude = ?, images = ?, features = ?,
			status = ?, zone_id = ?, trust_score = ?
		WHERE id = ?`,
		p.Title, nullString(p.Description), string(p.PropertyType), p.Price, p.AreaM2,
		nullInt(p.Bedrooms), nullInt(p.Bathrooms), nullInt(p.Parking), nullInt(p.YearBuilt),
		p.Address, p.Latitude, p.Longitude, images, features,
		string(p.Status), nullable(p.ZoneID), p.TrustScore, p.ID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update property")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: property %s not found", p.ID)
	}
	return nil
}

// GetProperty retrieves a listing by id, or nil when absent.
func (s *SQLiteStore) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanSQLiteProperty(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get property")
	}
	return p, nil
}

// QueryBoundingBox returns listings inside the box, newest first.
func (s *SQLiteStore) QueryBoundingBox(ctx context.Context, q BBoxQuery) ([]model.Property, error) {
	status := q.Status
	if status == "" {
		status = model.StatusActive
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+propertyColumns+` FROM properties
		WHERE latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?
		  AND status = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		q.Box.MinLat, q.Box.MaxLat, q.Box.MinLng, q.Box.MaxLng, string(status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query bounding box")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanSQLiteProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bbox row")
		}
		props = append(props, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate bbox rows")
	}
	return props, nil
}

// ListingsByZone returns all active listings in a zone.
func (s *SQLiteStore) ListingsByZone(ctx context.Context, zoneID string) ([]model.Property, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+propertyColumns+` FROM properties
		WHERE zone_id = ? AND status = 'active'
		ORDER BY created_at DESC`, zoneID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: listings by zone")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanSQLiteProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone listing")
		}
		props = append(props, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate zone listings")
	}
	return props, nil
}

// BulkInsertProperties inserts listings in a single transaction.
func (s *SQLiteStore) BulkInsertProperties(ctx context.Context, props []model.Property) (int64, error) {
	if len(props) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin bulk insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, sqliteInsertProperty)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare bulk insert")
	}
	defer stmt.Close()

	var n int64
	for i := range props {
		p := &props[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		args, err := sqlitePropertyArgs(p)
		if err != nil {
			return n, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, eris.Wrap(err, "sqlite: bulk insert row")
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit bulk insert")
	}
	return n, nil
}

// ComparablesByZone returns price/area pairs for active, measured listings in
// a zone.
func (s *SQLiteStore) ComparablesByZone(ctx context.Context, zoneID string) ([]model.Comparable, error) {
	return s.comparables(ctx, `SELECT price, area_m2 FROM properties
		WHERE zone_id = ? AND status = 'active' AND area_m2 > 0`, zoneID)
}

// ComparablesByZones returns comparables across a set of zones.
func (s *SQLiteStore) ComparablesByZones(ctx context.Context, zoneIDs []string) ([]model.Comparable, error) {
	if len(zoneIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(zoneIDs)), ",")
	args := make([]any, len(zoneIDs))
	for i, id := range zoneIDs {
		args[i] = id
	}
	return s.comparables(ctx, `SELECT price, area_m2 FROM properties
		WHERE zone_id IN (`+placeholders+`) AND status = 'active' AND area_m2 > 0`, args...)
}

// ComparablesInBox returns comparables inside a bounding box.
func (s *SQLiteStore) ComparablesInBox(ctx context.Context, box geo.Box) ([]model.Comparable, error) {
	return s.comparables(ctx, `SELECT price, area_m2 FROM properties
		WHERE latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?
		  AND status = 'active' AND area_m2 > 0`,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
}

func (s *SQLiteStore) comparables(ctx context.Context, query string, args ...any) ([]model.Comparable, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query comparables")
	}
	defer rows.Close()

	var comps []model.Comparable
	for rows.Next() {
		var c model.Comparable
		if err := rows.Scan(&c.Price, &c.AreaM2); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan comparable")
		}
		comps = append(comps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate comparables")
	}
	return comps, nil
}

// FindByDescriptionTag returns the id of the first listing whose description
// contains the tag, or "" when none does.
func (s *SQLiteStore) FindByDescriptionTag(ctx context.Context, tag string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM properties WHERE description LIKE ? LIMIT 1`,
		"%"+tag+"%",
	).Scan(&id)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "sqlite: find by description tag")
	}
	return id, nil
}

// CountByZone counts active listings in a zone.
func (s *SQLiteStore) CountByZone(ctx context.Context, zoneID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE zone_id = ? AND status = 'active'`, zoneID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count by zone")
	}
	return n, nil
}

// CountByStatus counts listings with the given status.
func (s *SQLiteStore) CountByStatus(ctx context.Context, status model.Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE status = ?`, string(status),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count by status")
	}
	return n, nil
}

// SourceCounts tallies listings by their embedded source tag.
func (s *SQLiteStore) SourceCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT description FROM properties WHERE description LIKE '%source:%'`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: source counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var desc sql.NullString
		if err := rows.Scan(&desc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source count row")
		}
		if desc.Valid {
			counts[sourceFromDescription(&desc.String)]++
		} else {
			counts["unknown"]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate source count rows")
	}
	return counts, nil
}

// GetZone retrieves a zone by id, or nil when absent.
func (s *SQLiteStore) GetZone(ctx context.Context, id string) (*model.Zone, error) {
	var z model.Zone
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, city FROM zones WHERE id = ?`, id,
	).Scan(&z.ID, &z.Name, &z.City)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get zone")
	}
	return &z, nil
}

// ListZonesByCity returns all zones sharing a city.
func (s *SQLiteStore) ListZonesByCity(ctx context.Context, city string) ([]model.Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, city FROM zones WHERE city = ?`, city)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list zones by city")
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.City); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone")
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate zones")
	}
	return zones, nil
}

// InsertZone stores a zone.
func (s *SQLiteStore) InsertZone(ctx context.Context, z model.Zone) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO zones (id, name, city) VALUES (?, ?, ?)`,
		z.ID, z.Name, z.City,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert zone")
	}
	return nil
}

func sqlitePropertyArgs(p *model.Property) ([]any, error) {
	images, features, err := encodeLists(p)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.Title, nullString(p.Description), string(p.PropertyType), p.Price, p.AreaM2,
		nullInt(p.Bedrooms), nullInt(p.Bathrooms), nullInt(p.Parking), nullInt(p.YearBuilt),
		p.Address, p.Latitude, p.Longitude, images, features,
		string(p.Status), nullable(p.ZoneID), p.TrustScore, p.CreatedAt,
	}, nil
}

func encodeLists(p *model.Property) (string, string, error) {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return "", "", eris.Wrap(err, "sqlite: marshal images")
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return "", "", eris.Wrap(err, "sqlite: marshal features")
	}
	return string(images), string(features), nil
}

func scanSQLiteProperty(row rowScanner) (*model.Property, error) {
	var (
		p         model.Property
		desc      sql.NullString
		bedrooms  sql.NullInt64
		bathrooms sql.NullInt64
		parking   sql.NullInt64
		yearBuilt sql.NullInt64
		zoneID    sql.NullString
		images    string
		features  string
	)
	err := row.Scan(
		&p.ID, &p.Title, &desc, &p.PropertyType, &p.Price, &p.AreaM2,
		&bedrooms, &bathrooms, &parking, &yearBuilt, &p.Address,
		&p.Latitude, &p.Longitude, &images, &features, &p.Status, &zoneID,
		&p.TrustScore, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		p.Description = &desc.String
	}
	p.Bedrooms = intPtr(bedrooms)
	p.Bathrooms = intPtr(bathrooms)
	p.Parking = intPtr(parking)
	p.YearBuilt = intPtr(yearBuilt)
	if zoneID.Valid {
		p.ZoneID = zoneID.String
	}
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode images")
	}
	if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode features")
	}
	return &p, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
