package segment

import "github.com/tripwise/tripwise/pkg/geo"

// SeedLagos loads a small Lagos catalog used in development and demos.
func SeedLagos(repo *InMemoryRepository) {
	locations := []*Location{
		{ID: "loc_ikeja", Name: "Ikeja Along", Point: geo.Point{Lat: 6.6018, Lon: 3.3515}},
		{ID: "loc_oshodi", Name: "Oshodi", Point: geo.Point{Lat: 6.5550, Lon: 3.3430}},
		{ID: "loc_palmgrove", Name: "Palmgrove", Point: geo.Point{Lat: 6.5400, Lon: 3.3680}},
		{ID: "loc_yaba", Name: "Yaba", Point: geo.Point{Lat: 6.5095, Lon: 3.3711}},
		{ID: "loc_ebute_metta", Name: "Ebute Metta", Point: geo.Point{Lat: 6.4850, Lon: 3.3820}},
		{ID: "loc_cms", Name: "CMS", Point: geo.Point{Lat: 6.4520, Lon: 3.3890}},
	}
	for _, loc := range locations {
		repo.AddLocation(loc)
	}

	repo.AddSegment(&Segment{
		ID:              "seg_ikeja_oshodi",
		Name:            "Ikeja Along - Oshodi",
		StartLocationID: "loc_ikeja",
		EndLocationID:   "loc_oshodi",
		Modes:           []TransportMode{ModeBus, ModeMinibus},
		DistanceKm:      6.1,
		DurationMin:     20,
		MinFare:         200,
		MaxFare:         300,
		Landmarks:       []string{"Airport Road junction"},
	})
	repo.AddSegment(&Segment{
		ID:              "seg_oshodi_yaba",
		Name:            "Oshodi - Yaba",
		StartLocationID: "loc_oshodi",
		EndLocationID:   "loc_yaba",
		Stops:           []IntermediateStop{{LocationID: "loc_palmgrove", Order: 1}},
		Modes:           []TransportMode{ModeMinibus},
		DistanceKm:      6.5,
		DurationMin:     25,
		MinFare:         300,
		MaxFare:         500,
		Landmarks:       []string{"Ikorodu Road", "Palmgrove bus stop"},
	})
	repo.AddSegment(&Segment{
		ID:              "seg_cms_yaba",
		Name:            "CMS - Yaba",
		StartLocationID: "loc_cms",
		EndLocationID:   "loc_yaba",
		Stops:           []IntermediateStop{{LocationID: "loc_ebute_metta", Order: 1, Optional: true}},
		Modes:           []TransportMode{ModeBus},
		DistanceKm:      7.0,
		DurationMin:     30,
		MinFare:         250,
		MaxFare:         400,
		Landmarks:       []string{"Carter Bridge"},
	})

	repo.AddRoute(&Route{
		ID:              "route_ikeja_cms",
		Name:            "Ikeja Along to CMS",
		StartLocationID: "loc_ikeja",
		EndLocationID:   "loc_cms",
		Segments: []RouteSegment{
			{SegmentID: "seg_ikeja_oshodi"},
			{SegmentID: "seg_oshodi_yaba"},
			{SegmentID: "seg_cms_yaba", Reversed: true},
		},
	})
	repo.AddRoute(&Route{
		ID:              "route_oshodi_cms",
		Name:            "Oshodi to CMS",
		StartLocationID: "loc_oshodi",
		EndLocationID:   "loc_cms",
		Segments: []RouteSegment{
			{SegmentID: "seg_oshodi_yaba"},
			{SegmentID: "seg_cms_yaba", Reversed: true},
		},
	})
	repo.AddRoute(&Route{
		ID:              "route_cms_oshodi",
		Name:            "CMS to Oshodi",
		StartLocationID: "loc_cms",
		EndLocationID:   "loc_oshodi",
		Segments: []RouteSegment{
			{SegmentID: "seg_cms_yaba"},
			{SegmentID: "seg_oshodi_yaba", Reversed: true},
		},
	})
}
