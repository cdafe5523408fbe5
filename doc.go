// Package facetdex provides an embedded Go client for the facetdex
// hybrid query engine backed by Redis with the search module.
//
// Facetdex answers one question: which entities satisfy a text
// relevance predicate AND a spatial containment predicate, and how do
// their attribute values distribute (facet counts). The embedded
// client wires the full engine against a Redis connection, so search
// and ingest run in-process without the HTTP server.
//
// All coordinates are (lon, lat) ordered, matching WKT.
//
// # Low-level API — explicit control
//
//	client, _ := facetdex.New(ctx,
//	    facetdex.WithRedis("localhost:6379", ""),
//	    facetdex.WithSchema(
//	        facetdex.SearchField("name"),
//	        facetdex.FacetField("category"),
//	        facetdex.GeometryField("location"),
//	    ),
//	)
//	client.Entities().Upsert(ctx, facetdex.Entity{
//	    ID: "p1",
//	    Attributes: map[string][]string{
//	        "name":     {"Blue Bottle Coffee"},
//	        "category": {"cafe"},
//	        "location": {"POINT (-122.42 37.77)"},
//	    },
//	})
//	res, _ := client.Search().Query(ctx, "coffee", &facetdex.SearchOptions{
//	    Geo:         facetdex.Radius(-122.42, 37.77, 2000),
//	    FacetFields: []string{"category"},
//	})
//
// # High-level API — schema-first with Go generics
//
//	type Place struct {
//	    ID       string  `facetdex:"place_id,id"`
//	    Name     string  `facetdex:"name,search"`
//	    Category string  `facetdex:"category,facet"`
//	    Lon      float64 `facetdex:"location,lon"`
//	    Lat      float64 `facetdex:"location,lat"`
//	}
//
//	client, _ := facetdex.New(ctx,
//	    facetdex.WithRedis("localhost:6379", ""),
//	    facetdex.WithSchemaOf[Place](),
//	)
//	idx, _ := facetdex.NewIndex[Place](client)
//	_, _ = idx.UpsertBatch(ctx, places)
//	res, _ := idx.Search().
//	    Query("coffee").
//	    Near(-122.42, 37.77).Km(2).
//	    Facet("category").
//	    Do(ctx)
package facetdex
