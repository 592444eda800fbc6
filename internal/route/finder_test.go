package route_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise/internal/route"
	"github.com/tripwise/tripwise/internal/segment"
	"github.com/tripwise/tripwise/pkg/geo"
)

// countingCatalog counts ListRoutes calls.
type countingCatalog struct {
	*segment.InMemoryRepository
	listCalls atomic.Int32
}

func (c *countingCatalog) ListRoutes(ctx context.Context) ([]*segment.Route, error) {
	c.listCalls.Add(1)
	return c.InMemoryRepository.ListRoutes(ctx)
}

func newCountingCatalog() *countingCatalog {
	repo := segment.NewInMemoryRepository()
	segment.SeedLagos(repo)
	return &countingCatalog{InMemoryRepository: repo}
}

var (
	nearIkeja  = geo.Point{Lat: 6.6010, Lon: 3.3520}
	nearOshodi = geo.Point{Lat: 6.5545, Lon: 3.3435}
	nearCMS    = geo.Point{Lat: 6.4525, Lon: 3.3885}
)

func TestCatalogFinder_FindRoutes(t *testing.T) {
	finder := route.NewCatalogFinder(route.FinderConfig{
		Catalog: newCountingCatalog(),
		Logger:  zerolog.Nop(),
	})

	ids, err := finder.FindRoutes(context.Background(), nearIkeja, nearCMS)
	require.NoError(t, err)
	assert.Equal(t, []string{"route_ikeja_cms"}, ids)

	ids, err = finder.FindRoutes(context.Background(), nearCMS, nearOshodi)
	require.NoError(t, err)
	assert.Equal(t, []string{"route_cms_oshodi"}, ids)
}

func TestCatalogFinder_NoCandidates(t *testing.T) {
	finder := route.NewCatalogFinder(route.FinderConfig{
		Catalog: newCountingCatalog(),
		Logger:  zerolog.Nop(),
	})

	ids, err := finder.FindRoutes(context.Background(), geo.Point{Lat: 9.0765, Lon: 7.3986}, nearCMS)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCatalogFinder_RanksByEndpointDistance(t *testing.T) {
	catalog := newCountingCatalog()
	catalog.AddLocation(&segment.Location{ID: "loc_oshodi_east", Name: "Oshodi East", Point: geo.Offset(nearOshodi, 0, 900)})
	catalog.AddSegment(&segment.Segment{
		ID:              "seg_oshodi_east_yaba",
		StartLocationID: "loc_oshodi_east",
		EndLocationID:   "loc_yaba",
		Modes:           []segment.TransportMode{segment.ModeBus},
	})
	catalog.AddRoute(&segment.Route{
		ID:              "route_a_far",
		StartLocationID: "loc_oshodi_east",
		EndLocationID:   "loc_cms",
		Segments: []segment.RouteSegment{
			{SegmentID: "seg_oshodi_east_yaba"},
			{SegmentID: "seg_cms_yaba", Reversed: true},
		},
	})

	finder := route.NewCatalogFinder(route.FinderConfig{Catalog: catalog, Logger: zerolog.Nop()})

	ids, err := finder.FindRoutes(context.Background(), nearOshodi, nearCMS)
	require.NoError(t, err)
	assert.Equal(t, []string{"route_oshodi_cms", "route_a_far"}, ids)
}

func TestCatalogFinder_CachesByGridCell(t *testing.T) {
	catalog := newCountingCatalog()
	finder := route.NewCatalogFinder(route.FinderConfig{Catalog: catalog, Logger: zerolog.Nop()})
	ctx := context.Background()

	_, err := finder.FindRoutes(ctx, nearIkeja, nearCMS)
	require.NoError(t, err)
	_, err = finder.FindRoutes(ctx, geo.Point{Lat: nearIkeja.Lat + 0.0001, Lon: nearIkeja.Lon}, nearCMS)
	require.NoError(t, err)
	assert.Equal(t, int32(1), catalog.listCalls.Load())

	finder.InvalidateCache()
	_, err = finder.FindRoutes(ctx, nearIkeja, nearCMS)
	require.NoError(t, err)
	assert.Equal(t, int32(2), catalog.listCalls.Load())
}
