package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/metrics"
	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/tools"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

// GeoCache maps normalized city names to geocoding results
type GeoCache interface {
	Get(ctx context.Context, key string) (models.GeoResult, bool, error)
	Put(ctx context.Context, key string, g models.GeoResult) error
}

// NormalizeKey lowercases and collapses whitespace so "New  York" and "new york" share an entry
func NormalizeKey(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}

// MemoryGeoCache is a process-local GeoCache
type MemoryGeoCache struct {
	mu      sync.RWMutex
	entries map[string]models.GeoResult
}

func NewMemoryGeoCache() *MemoryGeoCache {
	return &MemoryGeoCache{entries: make(map[string]models.GeoResult)}
}

func (m *MemoryGeoCache) Get(_ context.Context, key string) (models.GeoResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.entries[key]
	return g, ok, nil
}

func (m *MemoryGeoCache) Put(_ context.Context, key string, g models.GeoResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = g
	return nil
}

type sqlDialect struct {
	schema string
	get    string
	put    string
}

var sqliteDialect = sqlDialect{
	schema: `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		city       TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		country    TEXT NOT NULL DEFAULT '',
		state      TEXT NOT NULL DEFAULT '',
		lat        REAL NOT NULL,
		lon        REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	get: `
	SELECT name, country, state, lat, lon
	FROM geocode_cache
	WHERE city = ?;`,
	put: `
	INSERT OR REPLACE INTO geocode_cache (city, name, country, state, lat, lon, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);`,
}

var postgresDialect = sqlDialect{
	schema: `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		city       TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		country    TEXT NOT NULL DEFAULT '',
		state      TEXT NOT NULL DEFAULT '',
		lat        DOUBLE PRECISION NOT NULL,
		lon        DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	get: `
	SELECT name, country, state, lat, lon
	FROM geocode_cache
	WHERE city = $1;`,
	put: `
	INSERT INTO geocode_cache (city, name, country, state, lat, lon, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (city) DO UPDATE
	SET name = EXCLUDED.name,
		country = EXCLUDED.country,
		state = EXCLUDED.state,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		updated_at = EXCLUDED.updated_at;`,
}

// SQLGeoCache is a GeoCache backed by a geocode_cache table
type SQLGeoCache struct {
	DB      *sql.DB
	dialect sqlDialect
}

// NewSQLiteGeoCache uses the modernc.org/sqlite driver conventions
func NewSQLiteGeoCache(db *sql.DB) *SQLGeoCache {
	return &SQLGeoCache{DB: db, dialect: sqliteDialect}
}

// NewPostgresGeoCache uses the pgx stdlib driver conventions
func NewPostgresGeoCache(db *sql.DB) *SQLGeoCache {
	return &SQLGeoCache{DB: db, dialect: postgresDialect}
}

// Init creates the cache table if needed
func (s *SQLGeoCache) Init(ctx context.Context) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	if _, err := s.DB.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("create geocode_cache table: %w", err)
	}
	return nil
}

func (s *SQLGeoCache) Get(ctx context.Context, key string) (models.GeoResult, bool, error) {
	if s.DB == nil {
		return models.GeoResult{}, false, errors.New("geocode cache: db is nil")
	}
	var g models.GeoResult
	err := s.DB.QueryRowContext(ctx, s.dialect.get, key).Scan(&g.Name, &g.Country, &g.State, &g.Lat, &g.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GeoResult{}, false, nil
	}
	if err != nil {
		return models.GeoResult{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	return g, true, nil
}

func (s *SQLGeoCache) Put(ctx context.Context, key string, g models.GeoResult) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("insert geocode cache: empty city key")
	}
	_, err := s.DB.ExecContext(ctx, s.dialect.put, key, g.Name, g.Country, g.State, g.Lat, g.Lon, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert geocode cache city=%q: %w", key, err)
	}
	return nil
}

// OpenGeoCache builds the cache named by kind: memory, sqlite or postgres.
// The returned close func is never nil.
func OpenGeoCache(ctx context.Context, kind, dsn string) (GeoCache, func() error, error) {
	noop := func() error { return nil }
	var (
		driver string
		newSQL func(*sql.DB) *SQLGeoCache
	)
	switch strings.ToLower(kind) {
	case "", "memory":
		return NewMemoryGeoCache(), noop, nil
	case "sqlite":
		driver, newSQL = "sqlite", NewSQLiteGeoCache
	case "postgres":
		driver, newSQL = "pgx", NewPostgresGeoCache
	default:
		return nil, noop, fmt.Errorf("unknown geocode cache %q", kind)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, noop, fmt.Errorf("open %s: %w", kind, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, noop, fmt.Errorf("ping %s: %w", kind, err)
	}
	cache := newSQL(db)
	if err := cache.Init(ctx); err != nil {
		_ = db.Close()
		return nil, noop, err
	}
	return cache, db.Close, nil
}

// sharedLookupTimeout bounds one upstream lookup shared by concurrent callers.
const sharedLookupTimeout = 15 * time.Second

// CachedGeocoder serves repeat lookups from a GeoCache. Concurrent lookups of
// the same city share one upstream request.
type CachedGeocoder struct {
	next  tools.Geocoder
	cache GeoCache
	group singleflight.Group
}

func NewCachedGeocoder(next tools.Geocoder, cache GeoCache) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: cache}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, city string) (models.GeoResult, error) {
	key := NormalizeKey(city)
	if key == "" {
		return c.next.Geocode(ctx, city)
	}

	g, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("city", key).Msg("geocode cache read failed")
		metrics.GeocodeCacheLookups.WithLabelValues("error").Inc()
	} else if ok {
		metrics.GeocodeCacheLookups.WithLabelValues("hit").Inc()
		return g, nil
	} else {
		metrics.GeocodeCacheLookups.WithLabelValues("miss").Inc()
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// The shared lookup outlives any single caller's cancellation.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		g, err := c.next.Geocode(lctx, city)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Put(lctx, key, g); err != nil {
			log.Warn().Err(err).Str("city", key).Msg("geocode cache write failed")
		}
		return g, nil
	})
	select {
	case <-ctx.Done():
		return models.GeoResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.GeoResult{}, res.Err
		}
		return res.Val.(models.GeoResult), nil
	}
}
