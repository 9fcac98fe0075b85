package store

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pricewaze/ingest-cli/internal/db"
	"github.com/pricewaze/ingest-cli/internal/geo"
	"github.com/pricewaze/ingest-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const propertyColumns = `id, title, description, property_type, price, area_m2,
	bedrooms, bathrooms, parking_spaces, year_built, address,
	latitude, longitude, images, features, status, zone_id, trust_score, created_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests pass a pgxmock pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
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
			price DOUBLE PRECISION NOT NULL,
			area_m2 DOUBLE PRECISION NOT NULL DEFAULT 0,
			bedrooms INTEGER,
			bathrooms INTEGER,
			parking_spaces INTEGER,
			year_built INTEGER,
			address TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			images JSONB NOT NULL DEFAULT '[]',
			features JSONB NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			zone_id TEXT,
			trust_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_properties_lat_lng ON properties (latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_properties_zone ON properties (zone_id)`,
		`CREATE INDEX IF NOT EXISTS idx_properties_status ON properties (status)`,
		`CREATE INDEX IF NOT EXISTS idx_zones_city ON zones (city)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "postgres: migrate")
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// InsertProperty stores a new listing and returns its id.
func (s *PostgresStore) InsertProperty(ctx context.Context, p *model.Property) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	images, err := json.Marshal(p.Images)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal images")
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal features")
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO properties (`+propertyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		p.ID, p.Title, p.Description, p.PropertyType, p.Price, p.AreaM2,
		p.Bedrooms, p.Bathrooms, p.Parking, p.YearBuilt, p.Address,
		p.Latitude, p.Longitude, images, features, p.Status, nullable(p.ZoneID), p.TrustScore, p.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert property")
	}
	return p.ID, nil
}

// UpdateProperty replaces the mutable fields of an existing listing.
func (s *PostgresStore) UpdateProperty(ctx context.Context, p *model.Property) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal images")
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal features")
	}

	tag, err := s.pool.Exec(ctx, `UPDATE properties SET
			title = $1, description = $2, property_type = $3, price = $4, area_m2 = $5,
			bedrooms = $6, bathrooms = $7, parking_spaces = $8, year_built = $9,
			address = $10, latitude = $11, longitude = $12, images = $13, features = $14,
			status = $15, zone_id = $16, trust_score = $17
		WHERE id = $18`,
		p.Title, p.Description, p.PropertyType, p.Price, p.AreaM2,
		p.Bedrooms, p.Bathrooms, p.Parking, p.YearBuilt,
		p.Address, p.Latitude, p.Longitude, images, features,
		p.Status, nullable(p.ZoneID), p.TrustScore, p.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update property")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: property %s not found", p.ID)
	}
	return nil
}

// GetProperty retrieves a listing by id, or nil when absent.
func (s *PostgresStore) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id)
	p, err := scanProperty(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get property")
	}
	return p, nil
}

// QueryBoundingBox returns listings inside the box, newest first.
func (s *PostgresStore) QueryBoundingBox(ctx context.Context, q BBoxQuery) ([]model.Property, error) {
	status := q.Status
	if status == "" {
		status = model.StatusActive
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `SELECT `+propertyColumns+` FROM properties
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		  AND status = $5
		ORDER BY created_at DESC
		LIMIT $6`,
		q.Box.MinLat, q.Box.MaxLat, q.Box.MinLng, q.Box.MaxLng, status, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query bounding box")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan bbox row")
		}
		props = append(props, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate bbox rows")
	}
	return props, nil
}

// ListingsByZone returns all active listings in a zone.
func (s *PostgresStore) ListingsByZone(ctx context.Context, zoneID string) ([]model.Property, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+propertyColumns+` FROM properties
		WHERE zone_id = $1 AND status = 'active'
		ORDER BY created_at DESC`, zoneID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: listings by zone")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone listing")
		}
		props = append(props, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate zone listings")
	}
	return props, nil
}

// BulkInsertProperties inserts listings via the COPY protocol.
func (s *PostgresStore) BulkInsertProperties(ctx context.Context, props []model.Property) (int64, error) {
	columns := []string{
		"id", "title", "description", "property_type", "price", "area_m2",
		"bedrooms", "bathrooms", "parking_spaces", "year_built", "address",
		"latitude", "longitude", "images", "features", "status", "zone_id",
		"trust_score", "created_at",
	}

	rows := make([][]any, 0, len(props))
	for i := range props {
		p := &props[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		images, err := json.Marshal(p.Images)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal images")
		}
		features, err := json.Marshal(p.Features)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal features")
		}
		rows = append(rows, []any{
			p.ID, p.Title, p.Description, string(p.PropertyType), p.Price, p.AreaM2,
			p.Bedrooms, p.Bathrooms, p.Parking, p.YearBuilt, p.Address,
			p.Latitude, p.Longitude, images, features, string(p.Status), nullable(p.ZoneID),
			p.TrustScore, p.CreatedAt,
		})
	}

	return db.CopyFrom(ctx, s.pool, "properties", columns, rows)
}

// ComparablesByZone returns price/area pairs for active, measured listings in
// a zone.
func (s *PostgresStore) ComparablesByZone(ctx context.Context, zoneID string) ([]model.Comparable, error) {
	return s.comparables(ctx, `SELECT price, area_m2 FROM properties
		WHERE zone_id = $1 AND status = 'active' AND area_m2 > 0`, zoneID)
}

// ComparablesByZones returns comparables across a set of zones.
func (s *PostgresStore) ComparablesByZones(ctx context.Context, zoneIDs []string) ([]model.Comparable, error) {
	if len(zoneIDs) == 0 {
		return nil, nil
	}
	return s.comparables(ctx, `SELECT price, area_m2 FROM properties
		WHERE zone_id = ANY($1) AND status = 'active' AND area_m2 > 0`, zoneIDs)
}

// ComparablesInBox returns comparables inside a bounding box.
func (s *PostgresStore) ComparablesInBox(ctx context.Context, box geo.Box) ([]model.Comparable, error) {
	return s.comparables(ctx, `SELECT price, area_m2 FROM properties
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		  AND status = 'active' AND area_m2 > 0`,
		box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
}

func (s *PostgresStore) comparables(ctx context.Context, sql string, args ...any) ([]model.Comparable, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query comparables")
	}
	defer rows.Close()

	var comps []model.Comparable
	for rows.Next() {
		var c model.Comparable
		if err := rows.Scan(&c.Price, &c.AreaM2); err != nil {
			return nil, eris.Wrap(err, "postgres: scan comparable")
		}
		comps = append(comps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate comparables")
	}
	return comps, nil
}

// FindByDescriptionTag returns the id of the first listing whose description
// contains the tag, or "" when none does.
func (s *PostgresStore) FindByDescriptionTag(ctx context.Context, tag string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM properties WHERE description ILIKE $1 LIMIT 1`,
		"%"+tag+"%",
	).Scan(&id)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "postgres: find by description tag")
	}
	return id, nil
}

// CountByZone counts active listings in a zone.
func (s *PostgresStore) CountByZone(ctx context.Context, zoneID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM properties WHERE zone_id = $1 AND status = 'active'`, zoneID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count by zone")
	}
	return n, nil
}

// CountByStatus counts listings with the given status.
func (s *PostgresStore) CountByStatus(ctx context.Context, status model.Status) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM properties WHERE status = $1`, status,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count by status")
	}
	return n, nil
}

var sourceTagRe = regexp.MustCompile(`source:(\w+)`)

// SourceCounts tallies listings by their embedded source tag.
func (s *PostgresStore) SourceCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT description FROM properties WHERE description LIKE '%source:%'`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: source counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var desc *string
		if err := rows.Scan(&desc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source count row")
		}
		counts[sourceFromDescription(desc)]++
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate source count rows")
	}
	return counts, nil
}

func sourceFromDescription(desc *string) string {
	if desc == nil {
		return "unknown"
	}
	m := sourceTagRe.FindStringSubmatch(*desc)
	if m == nil {
		return "unknown"
	}
	return m[1]
}

// GetZone retrieves a zone by id, or nil when absent.
func (s *PostgresStore) GetZone(ctx context.Context, id string) (*model.Zone, error) {
	var z model.Zone
	err := s.pool.QueryRow(ctx, `SELECT id, name, city FROM zones WHERE id = $1`, id).
		Scan(&z.ID, &z.Name, &z.City)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get zone")
	}
	return &z, nil
}

// ListZonesByCity returns all zones sharing a city.
func (s *PostgresStore) ListZonesByCity(ctx context.Context, city string) ([]model.Zone, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, city FROM zones WHERE city = $1`, city)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list zones by city")
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.City); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone")
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate zones")
	}
	return zones, nil
}

// InsertZone stores a zone.
func (s *PostgresStore) InsertZone(ctx context.Context, z model.Zone) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO zones (id, name, city) VALUES ($1, $2, $3)`,
		z.ID, z.Name, z.City,
	); err != nil {
		return eris.Wrap(err, "postgres: insert zone")
	}
	return nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanProperty.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*model.Property, error) {
	var (
		p        model.Property
		images   []byte
		features []byte
		zoneID   *string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.PropertyType, &p.Price, &p.AreaM2,
		&p.Bedrooms, &p.Bathrooms, &p.Parking, &p.YearBuilt, &p.Address,
		&p.Latitude, &p.Longitude, &images, &features, &p.Status, &zoneID,
		&p.TrustScore, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, eris.Wrap(err, "postgres: decode images")
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, eris.Wrap(err, "postgres: decode features")
	}
	if zoneID != nil {
		p.ZoneID = *zoneID
	}
	return &p, nil
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
