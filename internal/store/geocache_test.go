package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skycast/skycast/internal/models"
	"github.com/skycast/skycast/internal/service"
	"github.com/skycast/skycast/internal/store"
)

type countingGeocoder struct {
	calls atomic.Int32
	delay time.Duration
}

func (c *countingGeocoder) Geocode(_ context.Context, city string) (models.GeoResult, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	if city == "Xyzzyville" {
		return models.GeoResult{}, fmt.Errorf("%w: %s", service.ErrLocationNotFound, city)
	}
	return models.GeoResult{Name: "Paris", Country: "FR", Lat: 48.8566, Lon: 2.3522}, nil
}

func TestNormalizeKey(t *testing.T) {
	tests := map[string]string{
		"Paris":         "paris",
		"  New   York ": "new york",
		"SÃO PAULO":     "são paulo",
		"":              "",
	}
	for in, want := range tests {
		if got := store.NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

// ─── GeoCache implementations ─────────────────────────────────────────────────

func TestGeoCaches(t *testing.T) {
	ctx := context.Background()
	sqliteCache, closeDB, err := store.OpenGeoCache(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("OpenGeoCache(sqlite): %v", err)
	}
	defer closeDB()

	caches := map[string]store.GeoCache{
		"memory": store.NewMemoryGeoCache(),
		"sqlite": sqliteCache,
	}
	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := c.Get(ctx, "paris"); err != nil || ok {
				t.Fatalf("Get on empty cache = %v, %v", ok, err)
			}
			want := models.GeoResult{Name: "Paris", Country: "FR", Lat: 48.8566, Lon: 2.3522}
			if err := c.Put(ctx, "paris", want); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, ok, err := c.Get(ctx, "paris")
			if err != nil || !ok {
				t.Fatalf("Get = %v, %v", ok, err)
			}
			if got != want {
				t.Errorf("Get = %+v, want %+v", got, want)
			}

			// overwrite keeps a single row
			want.Name = "Paris 1er"
			if err := c.Put(ctx, "paris", want); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			got, _, _ = c.Get(ctx, "paris")
			if got.Name != "Paris 1er" {
				t.Errorf("overwrite name = %q", got.Name)
			}
		})
	}
}

func TestOpenGeoCacheUnknownKind(t *testing.T) {
	_, closeFn, err := store.OpenGeoCache(context.Background(), "cassandra", "")
	if err == nil {
		t.Error("expected error for unknown kind")
	}
	if closeFn == nil {
		t.Error("close func must never be nil")
	}
}

// ─── CachedGeocoder ───────────────────────────────────────────────────────────

func TestCachedGeocoderReusesResults(t *testing.T) {
	next := &countingGeocoder{}
	g := store.NewCachedGeocoder(next, store.NewMemoryGeoCache())
	ctx := context.Background()

	for _, city := range []string{"Paris", "paris", "  PARIS "} {
		got, err := g.Geocode(ctx, city)
		if err != nil {
			t.Fatalf("Geocode(%q): %v", city, err)
		}
		if got.Lat != 48.8566 {
			t.Errorf("lat = %v", got.Lat)
		}
	}
	if n := next.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestCachedGeocoderDoesNotCacheMisses(t *testing.T) {
	next := &countingGeocoder{}
	g := store.NewCachedGeocoder(next, store.NewMemoryGeoCache())
	for i := 0; i < 2; i++ {
		if _, err := g.Geocode(context.Background(), "Xyzzyville"); !errors.Is(err, service.ErrLocationNotFound) {
			t.Fatalf("error = %v", err)
		}
	}
	if n := next.calls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestCachedGeocoderCollapsesConcurrentLookups(t *testing.T) {
	next := &countingGeocoder{delay: 50 * time.Millisecond}
	g := store.NewCachedGeocoder(next, store.NewMemoryGeoCache())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Geocode(context.Background(), "Paris"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := next.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

type gatedGeocoder struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedGeocoder) Geocode(ctx context.Context, city string) (models.GeoResult, error) {
	g.calls.Add(1)
	select {
	case g.started <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
		return models.GeoResult{Name: city, Country: "FR", Lat: 48.8566, Lon: 2.3522}, nil
	case <-ctx.Done():
		return models.GeoResult{}, ctx.Err()
	}
}

func TestCachedGeocoderSurvivesCanceledLeader(t *testing.T) {
	geo := &gatedGeocoder{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := store.NewCachedGeocoder(geo, store.NewMemoryGeoCache())

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Geocode(leaderCtx, "Paris")
		leaderErr <- err
	}()
	<-geo.started

	type result struct {
		g   models.GeoResult
		err error
	}
	follower := make(chan result, 1)
	go func() {
		g, err := c.Geocode(context.Background(), "Paris")
		follower <- result{g, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("leader: expected context.Canceled, got %v", err)
	}

	close(geo.release)
	res := <-follower
	if res.err != nil {
		t.Fatalf("follower failed with the leader's cancellation: %v", res.err)
	}
	if res.g.Name != "Paris" {
		t.Errorf("follower got %+v", res.g)
	}

	calls := geo.calls.Load()
	if _, err := c.Geocode(context.Background(), "Paris"); err != nil {
		t.Fatal(err)
	}
	if geo.calls.Load() != calls {
		t.Error("completed shared lookup was not cached")
	}
}
