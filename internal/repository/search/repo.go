package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
)

// joinBatchSize caps the entity-id disjunction per join query, keeping
// each query string well under the engine's clause limits.
const joinBatchSize = 128

// store is the consumer interface for search operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.Query) (*db.SearchResult, error)
	AggregateCount(ctx context.Context, q *db.AggregateQuery) ([]db.GroupCount, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZEntry, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchEntities runs the composite text+geo query against an
// entity-layout generation, where one hit is one entity. Empty text
// means match-all. Stored point coordinates ride along when the schema
// declares them.
func (r *Repo) SearchEntities(
	ctx context.Context, gen domcat.Generation, text string, geo geofilter.Filter, offset, limit int,
) ([]result.Hit, int64, error) {
	storedCoords := hasStoredCoordinates(gen.Schema())

	returnFields := []string{model.AttrEntityID}
	if storedCoords {
		returnFields = append(returnFields, model.AttrGeoLat, model.AttrGeoLon)
	}

	sr, err := r.store.Search(ctx, &db.Query{
		IndexName:    indexName(gen.ID()),
		Text:         text,
		TextFields:   searchableNames(gen.Schema()),
		Geo:          geo,
		GeoField:     model.AttrGeo,
		ShapeField:   model.AttrGeoShape,
		Offset:       offset,
		Limit:        limit,
		ReturnFields: returnFields,
		WithScores:   text != "",
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search entities %s: %w", gen.ID(), err)
	}

	prefix := rowPrefix(gen.ID())
	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, en := range sr.Entries {
		id := en.Fields[model.AttrEntityID]
		if id == "" {
			id = strings.TrimPrefix(en.Key, prefix)
		}
		h := result.NewHit(id, en.Score)
		if storedCoords {
			if c, ok := parseCoordinate(en.Fields); ok {
				h = h.WithCoordinate(c)
			}
		}
		hits = append(hits, h)
	}
	return hits, sr.Total, nil
}

// CountFacet aggregates one facet field over the composite query on an
// entity-layout generation: one GROUPBY + COUNT per field, rows are
// entities so counts are entity-accurate. The server sorts by count
// descending (ties by value ascending) and caps at max.
func (r *Repo) CountFacet(
	ctx context.Context, gen domcat.Generation, text string, geo geofilter.Filter, field string, max int,
) ([]result.FacetValue, error) {
	attr := model.FacetAttr(field)

	groups, err := r.store.AggregateCount(ctx, &db.AggregateQuery{
		IndexName:  indexName(gen.ID()),
		Text:       text,
		TextFields: searchableNames(gen.Schema()),
		Geo:        geo,
		GeoField:   model.AttrGeo,
		ShapeField: model.AttrGeoShape,
		GroupBy:    []string{attr},
		Max:        max,
	})
	if err != nil {
		return nil, fmt.Errorf("count facet %s: %w", field, err)
	}

	values := make([]result.FacetValue, 0, len(groups))
	for _, g := range groups {
		v := g.Values[attr]
		if v == "" {
			// entities without the field group under an absent value
			continue
		}
		values = append(values, result.NewFacetValue(v, g.Count))
	}
	return values, nil
}

// JoinFacetCounts is the fact-layout join: re-query the facet-bearing
// rows of the given entities and count distinct entities per
// (field, value) pair. Batches run in parallel; an entity counts once
// per value no matter how many rows repeat it.
func (r *Repo) JoinFacetCounts(
	ctx context.Context, gen domcat.Generation, ids, fields []string,
) (map[string][]result.FacetValue, error) {
	if len(ids) == 0 || len(fields) == 0 {
		return map[string][]result.FacetValue{}, nil
	}

	batches := chunkIDs(ids, joinBatchSize)
	results := make([][]db.GroupCount, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			groups, err := r.store.AggregateCount(gctx, &db.AggregateQuery{
				IndexName: indexName(gen.ID()),
				Tags: []db.TagClause{
					{Field: model.AttrEntityID, Values: batch},
					{Field: model.AttrField, Values: fields},
				},
				GroupBy: []string{model.AttrEntityID, model.AttrField, model.AttrFacet},
			})
			if err != nil {
				return fmt.Errorf("join facet batch: %w", err)
			}
			results[i] = groups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// one group per (entity, field, value): counting groups counts
	// entities, however many rows repeat the value
	counts := make(map[string]map[string]int64, len(fields))
	for _, groups := range results {
		for _, grp := range groups {
			field := grp.Values[model.AttrField]
			value := grp.Values[model.AttrFacet]
			if field == "" || value == "" {
				continue
			}
			if counts[field] == nil {
				counts[field] = make(map[string]int64)
			}
			counts[field][value]++
		}
	}

	out := make(map[string][]result.FacetValue, len(counts))
	for field, values := range counts {
		fvs := make([]result.FacetValue, 0, len(values))
		for v, n := range values {
			fvs = append(fvs, result.NewFacetValue(v, n))
		}
		out[field] = fvs
	}
	return out, nil
}

// RegistryValues reads a facet field's pre-aggregated counts from its
// registry sorted set. Cost is proportional to distinct values.
func (r *Repo) RegistryValues(
	ctx context.Context, gen domcat.Generation, field string,
) ([]result.FacetValue, error) {
	entries, err := r.store.ZRangeWithScores(ctx, registryKey(gen.ID(), field), 0, -1, true)
	if err != nil {
		return nil, fmt.Errorf("facet registry %s: %w", field, err)
	}

	values := make([]result.FacetValue, 0, len(entries))
	for _, e := range entries {
		values = append(values, result.NewFacetValue(e.Member, int64(e.Score)))
	}
	return values, nil
}

// FetchCoordinates resolves stored point coordinates for a page of hits
// on a fact-layout generation, reading the entities' geometry rows in
// one query. Returns nil when the schema stores no coordinates.
func (r *Repo) FetchCoordinates(
	ctx context.Context, gen domcat.Generation, ids []string,
) (map[string]geometry.Coord, error) {
	if len(ids) == 0 || !hasStoredCoordinates(gen.Schema()) {
		return nil, nil
	}
	geoField, _ := gen.Schema().GeometryField()

	sr, err := r.store.Search(ctx, &db.Query{
		IndexName: indexName(gen.ID()),
		Tags: []db.TagClause{
			{Field: model.AttrEntityID, Values: ids},
			{Field: model.AttrField, Values: []string{geoField.Name()}},
		},
		Limit:        len(ids),
		ReturnFields: []string{model.AttrEntityID, model.AttrGeoLat, model.AttrGeoLon},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch coordinates: %w", err)
	}

	out := make(map[string]geometry.Coord, len(sr.Entries))
	for _, en := range sr.Entries {
		id := en.Fields[model.AttrEntityID]
		if id == "" {
			continue
		}
		if c, ok := parseCoordinate(en.Fields); ok {
			out[id] = c
		}
	}
	return out, nil
}

// --- Helpers ---

func searchableNames(sch schema.Schema) []string {
	fields := sch.SearchFields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}
	return names
}

func hasStoredCoordinates(sch schema.Schema) bool {
	f, ok := sch.GeometryField()
	return ok && f.Stored()
}

func parseCoordinate(fields map[string]string) (geometry.Coord, bool) {
	latStr, lonStr := fields[model.AttrGeoLat], fields[model.AttrGeoLon]
	if latStr == "" || lonStr == "" {
		return geometry.Coord{}, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geometry.Coord{}, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return geometry.Coord{}, false
	}
	return geometry.Coord{Lon: lon, Lat: lat}, true
}

func chunkIDs(ids []string, size int) [][]string {
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}

// Redis key patterns: facetdex:{gen}:idx, facetdex:{gen}:row:...,
// facetdex:{gen}:facet:{field}

func indexName(gen string) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, gen)
}

func rowPrefix(gen string) string {
	return fmt.Sprintf("%s%s:row:", domain.KeyPrefix, gen)
}

func registryKey(gen, field string) string {
	return fmt.Sprintf("%s%s:facet:%s", domain.KeyPrefix, gen, field)
}
