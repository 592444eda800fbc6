package route

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripwise/tripwise/internal/segment"
	"github.com/tripwise/tripwise/pkg/geo"
)

// Finder returns candidate route IDs for an origin/destination pair, best first.
type Finder interface {
	FindRoutes(ctx context.Context, origin, destination geo.Point) ([]string, error)
}

// FinderConfig holds configuration for the catalog finder.
type FinderConfig struct {
	// Catalog is the segment catalog to search.
	Catalog segment.Repository

	// Logger for finder operations.
	Logger zerolog.Logger

	// MatchRadiusMeters is the maximum distance between a request point and
	// a route endpoint (default: 1500).
	MatchRadiusMeters float64

	// CacheTTL is how long lookups are cached (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.01 ~ 1.1km).
	CacheGridSize float64
}

// CatalogFinder ranks catalog routes by how close their endpoints are to the request.
type CatalogFinder struct {
	catalog       segment.Repository
	logger        zerolog.Logger
	matchRadius   float64
	cacheTTL      time.Duration
	cacheGridSize float64

	mu    sync.RWMutex
	cache map[string]*cachedLookup
}

type cachedLookup struct {
	routeIDs  []string
	expiresAt time.Time
}

type candidate struct {
	routeID string
	score   float64
}

// NewCatalogFinder creates a new catalog finder.
func NewCatalogFinder(cfg FinderConfig) *CatalogFinder {
	matchRadius := cfg.MatchRadiusMeters
	if matchRadius == 0 {
		matchRadius = 1500
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.01
	}

	return &CatalogFinder{
		catalog:       cfg.Catalog,
		logger:        cfg.Logger,
		matchRadius:   matchRadius,
		cacheTTL:      cacheTTL,
		cacheGridSize: cacheGridSize,
		cache:         make(map[string]*cachedLookup),
	}
}

// FindRoutes returns routes whose start is near origin and end is near
// destination, ordered by the sum of both endpoint distances.
func (f *CatalogFinder) FindRoutes(ctx context.Context, origin, destination geo.Point) ([]string, error) {
	key := f.cacheKey(origin, destination)

	f.mu.RLock()
	if cached, ok := f.cache[key]; ok && time.Now().Before(cached.expiresAt) {
		f.mu.RUnlock()
		f.logger.Debug().Str("cache_key", key).Msg("cache hit for route lookup")
		return append([]string(nil), cached.routeIDs...), nil
	}
	f.mu.RUnlock()

	routes, err := f.catalog.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}

	var candidates []candidate
	for _, r := range routes {
		start, err := f.catalog.GetLocation(ctx, r.StartLocationID)
		if err != nil {
			f.logger.Warn().Err(err).Str("route_id", r.ID).Msg("route start location missing")
			continue
		}
		end, err := f.catalog.GetLocation(ctx, r.EndLocationID)
		if err != nil {
			f.logger.Warn().Err(err).Str("route_id", r.ID).Msg("route end location missing")
			continue
		}

		fromOrigin := geo.Distance(origin, start.Point)
		toDestination := geo.Distance(destination, end.Point)
		if fromOrigin > f.matchRadius || toDestination > f.matchRadius {
			continue
		}

		candidates = append(candidates, candidate{routeID: r.ID, score: fromOrigin + toDestination})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })

	routeIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		routeIDs = append(routeIDs, c.routeID)
	}

	f.mu.Lock()
	f.cache[key] = &cachedLookup{routeIDs: routeIDs, expiresAt: time.Now().Add(f.cacheTTL)}
	f.mu.Unlock()

	f.logger.Debug().
		Str("cache_key", key).
		Int("candidate_count", len(routeIDs)).
		Msg("cached route lookup")

	return append([]string(nil), routeIDs...), nil
}

// InvalidateCache clears all cached lookups.
func (f *CatalogFinder) InvalidateCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]*cachedLookup)
}

// cacheKey quantizes both points to the cache grid.
func (f *CatalogFinder) cacheKey(origin, destination geo.Point) string {
	return fmt.Sprintf("%.2f,%.2f:%.2f,%.2f",
		math.Floor(origin.Lat/f.cacheGridSize)*f.cacheGridSize,
		math.Floor(origin.Lon/f.cacheGridSize)*f.cacheGridSize,
		math.Floor(destination.Lat/f.cacheGridSize)*f.cacheGridSize,
		math.Floor(destination.Lon/f.cacheGridSize)*f.cacheGridSize,
	)
}

// Ensure CatalogFinder implements Finder interface.
var _ Finder = (*CatalogFinder)(nil)
