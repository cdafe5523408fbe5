package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/facetdex/internal/db"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
)

// CorrelateRows runs the composite query disjunctively over a
// fact-layout generation and intersects per-clause entity sets. A text
// clause matches text rows and a geometry clause matches geometry rows,
// so AND semantics only exist per entity, never per row. The fetch is
// bounded; rows beyond fetchLimit mark the correlation saturated.
//
// The pass reads a row snapshot, not a transaction: a concurrent writer
// may change rows between this pass and any follow-up query.
func (r *Repo) CorrelateRows(
	ctx context.Context, gen domcat.Generation, text string, geo geofilter.Filter, fetchLimit int,
) (result.Correlation, error) {
	sr, err := r.store.Search(ctx, &db.Query{
		IndexName:    indexName(gen.ID()),
		Text:         text,
		TextFields:   []string{model.AttrText},
		Geo:          geo,
		GeoField:     model.AttrGeo,
		ShapeField:   model.AttrGeoShape,
		Disjunctive:  true,
		Limit:        fetchLimit,
		ReturnFields: []string{model.AttrEntityID, model.AttrGeoShape},
		WithScores:   text != "",
	})
	if err != nil {
		return result.Correlation{}, fmt.Errorf("correlate rows %s: %w", gen.ID(), err)
	}
	return correlate(sr, text != "", !geo.IsNone()), nil
}

// correlate folds matched rows into qualified entities. A row carrying
// the shape attribute matched the geometry clause; every other row
// matched the text clause. An entity qualifies when it has a matching
// row for each clause the query carries.
func correlate(sr *db.SearchResult, needText, needGeo bool) result.Correlation {
	all := make(map[string]bool)
	textIDs := make(map[string]bool)
	geoIDs := make(map[string]bool)
	scores := make(map[string]float64)

	for _, en := range sr.Entries {
		id := en.Fields[model.AttrEntityID]
		if id == "" {
			continue
		}
		all[id] = true

		if en.Fields[model.AttrGeoShape] != "" {
			geoIDs[id] = true
			continue
		}
		textIDs[id] = true
		if en.Score > scores[id] {
			scores[id] = en.Score
		}
	}

	entities := make([]result.CorrelatedEntity, 0, len(all))
	for id := range all {
		if needText && !textIDs[id] {
			continue
		}
		if needGeo && !geoIDs[id] {
			continue
		}
		entities = append(entities, result.NewCorrelatedEntity(id, scores[id]))
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Score() != entities[j].Score() {
			return entities[i].Score() > entities[j].Score()
		}
		return entities[i].ID() < entities[j].ID()
	})

	return result.NewCorrelation(entities, len(sr.Entries), sr.Total > int64(len(sr.Entries)))
}
