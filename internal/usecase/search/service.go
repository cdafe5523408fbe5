package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/facetdex/internal/domain"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/search/overflow"
	"github.com/kailas-cloud/facetdex/internal/domain/search/request"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
	"github.com/kailas-cloud/facetdex/internal/usecase/catalog"
)

// Join fallback defaults, overridable via WithJoinLimits.
const (
	// DefaultMaxCorrelationRows bounds the fact-layout row fetch.
	DefaultMaxCorrelationRows = 10000
	// DefaultMaxJoinIDs bounds the entity-id disjunction of the facet
	// join, the engine clause ceiling analog.
	DefaultMaxJoinIDs = 1024
)

// Service answers the composite question: which entities match the text
// predicate AND the spatial predicate, with facet counts over that set.
// Execution strategy follows the snapshot's document model.
type Service struct {
	repo               Repository
	snaps              Snapshots
	maxCorrelationRows int
	maxJoinIDs         int
	policy             overflow.Policy
}

// New creates a search service.
func New(repo Repository, snaps Snapshots) *Service {
	return &Service{
		repo:               repo,
		snaps:              snaps,
		maxCorrelationRows: DefaultMaxCorrelationRows,
		maxJoinIDs:         DefaultMaxJoinIDs,
		policy:             overflow.Default,
	}
}

// WithJoinLimits configures the fact-layout correlation and join bounds.
func (s *Service) WithJoinLimits(maxCorrelationRows, maxJoinIDs int) *Service {
	if maxCorrelationRows > 0 {
		s.maxCorrelationRows = maxCorrelationRows
	}
	if maxJoinIDs > 0 {
		s.maxJoinIDs = maxJoinIDs
	}
	return s
}

// WithOverflowPolicy configures the join overflow policy.
func (s *Service) WithOverflowPolicy(p overflow.Policy) *Service {
	if p.IsValid() {
		s.policy = p
	}
	return s
}

// Search executes one composite query against the active generation.
// The snapshot acquired here pins that generation for every phase, so a
// concurrent rebuild never splits a request across generations.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Result, error) {
	snap, err := s.snaps.Acquire()
	if err != nil {
		return result.Result{}, fmt.Errorf("acquire snapshot: %w", err)
	}
	defer snap.Release()

	domain.QueryStatsFromContext(ctx).SetModel(snap.Model().String())

	sch := snap.Schema()
	if err := sch.ValidateFacetFields(req.FacetFields()); err != nil {
		return result.Result{}, err
	}
	if !req.Geo().IsNone() {
		if _, err := sch.ResolveGeometryField(""); err != nil {
			return result.Result{}, err
		}
	}

	switch snap.Model() {
	case model.Entity:
		return s.searchEntity(ctx, snap, req)
	case model.Fact:
		return s.searchFact(ctx, snap, req)
	default:
		return result.Result{}, fmt.Errorf("%w: unsupported document model %q", domain.ErrConfig, snap.Model())
	}
}

// searchEntity is the single-pass path: rows are entities, so one query
// answers hits and total, and facets aggregate over the same clauses.
func (s *Service) searchEntity(
	ctx context.Context, snap *catalog.Snapshot, req *request.Request,
) (result.Result, error) {
	gen := snap.Generation()

	hits, total, err := s.repo.SearchEntities(ctx, gen, req.Query(), req.Geo(), 0, req.Limit())
	if err != nil {
		return result.Result{}, fmt.Errorf("search entities: %w", err)
	}

	facets, err := s.facetsEntity(ctx, gen, req)
	if err != nil {
		return result.Result{}, err
	}

	return result.New(hits, total, facets, false), nil
}

// searchFact is the two-phase path: a bounded disjunctive row fetch
// correlated into entities, then a facet join over the survivors.
func (s *Service) searchFact(
	ctx context.Context, snap *catalog.Snapshot, req *request.Request,
) (result.Result, error) {
	gen := snap.Generation()

	corr, err := s.repo.CorrelateRows(ctx, gen, req.Query(), req.Geo(), s.maxCorrelationRows)
	if err != nil {
		return result.Result{}, fmt.Errorf("correlate rows: %w", err)
	}

	stats := domain.QueryStatsFromContext(ctx)
	stats.AddRowsScanned(corr.Rows())
	stats.SetJoinCandidates(corr.Len())

	hits := corr.Hits(0, req.Limit())
	if err := s.attachCoordinates(ctx, gen, hits); err != nil {
		return result.Result{}, err
	}

	facets, capped, err := s.facetsFact(ctx, gen, corr, req)
	if err != nil {
		return result.Result{}, err
	}

	partial := corr.Saturated() || capped
	if capped {
		stats.MarkFacetPartial()
	}

	return result.New(hits, int64(corr.Len()), facets, partial), nil
}

// facetsEntity aggregates the requested fields on the entity layout.
// Filtered requests group directly over the composite query; open
// requests read the pre-aggregated registries instead.
func (s *Service) facetsEntity(
	ctx context.Context, gen domcat.Generation, req *request.Request,
) ([]result.Facet, error) {
	fields := req.FacetFields()
	if len(fields) == 0 {
		return nil, nil
	}
	if req.IsOpen() {
		return s.facetsFromRegistry(ctx, gen, fields, req.FacetValues())
	}

	facets := make([]result.Facet, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fields {
		i, f := i, f
		g.Go(func() error {
			values, err := s.repo.CountFacet(gctx, gen, req.Query(), req.Geo(), f, req.FacetValues())
			if err != nil {
				return fmt.Errorf("count facet %s: %w", f, err)
			}
			facets[i] = result.NewFacet(f, values, req.FacetValues())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return facets, nil
}

// facetsFact computes facet counts for a filtered fact-layout request
// by re-querying the correlated entities' facet rows. Reports whether
// the candidate set was capped under the partial policy.
//
// The join is not atomic relative to concurrent writers: a row may
// change between the correlation pass and this one. Counts are
// best-effort within that window.
func (s *Service) facetsFact(
	ctx context.Context, gen domcat.Generation, corr result.Correlation, req *request.Request,
) ([]result.Facet, bool, error) {
	fields := req.FacetFields()
	if len(fields) == 0 {
		return nil, false, nil
	}
	if req.IsOpen() {
		facets, err := s.facetsFromRegistry(ctx, gen, fields, req.FacetValues())
		return facets, false, err
	}

	ids := corr.IDs()
	capped := false
	if len(ids) > s.maxJoinIDs {
		if s.policy != overflow.Partial {
			return nil, false, domain.NewFacetJoinOverflow(len(ids), s.maxJoinIDs)
		}
		// candidates arrive ranked, so the cap keeps the best
		ids = ids[:s.maxJoinIDs]
		capped = true
	}

	counts, err := s.repo.JoinFacetCounts(ctx, gen, ids, fields)
	if err != nil {
		return nil, false, fmt.Errorf("join facet counts: %w", err)
	}

	facets := make([]result.Facet, 0, len(fields))
	for _, f := range fields {
		facets = append(facets, result.NewFacet(f, counts[f], req.FacetValues()))
	}
	return facets, capped, nil
}

// facetsFromRegistry serves open requests from the registries: every
// entity matches, so the maintained counts are exact under both models.
func (s *Service) facetsFromRegistry(
	ctx context.Context, gen domcat.Generation, fields []string, max int,
) ([]result.Facet, error) {
	facets := make([]result.Facet, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range fields {
		i, f := i, f
		g.Go(func() error {
			values, err := s.repo.RegistryValues(gctx, gen, f)
			if err != nil {
				return fmt.Errorf("facet registry %s: %w", f, err)
			}
			facets[i] = result.NewFacet(f, values, max)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return facets, nil
}

// attachCoordinates decorates a hit page with stored point locations.
func (s *Service) attachCoordinates(
	ctx context.Context, gen domcat.Generation, hits []result.Hit,
) error {
	if len(hits) == 0 {
		return nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID()
	}

	coords, err := s.repo.FetchCoordinates(ctx, gen, ids)
	if err != nil {
		return fmt.Errorf("fetch coordinates: %w", err)
	}
	for i, h := range hits {
		if c, ok := coords[h.ID()]; ok {
			hits[i] = h.WithCoordinate(c)
		}
	}
	return nil
}
