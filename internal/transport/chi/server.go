package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain"
	dombatch "github.com/kailas-cloud/facetdex/internal/domain/batch"
	doment "github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
	"github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"
	"github.com/kailas-cloud/facetdex/internal/domain/search/request"
	"github.com/kailas-cloud/facetdex/internal/domain/search/result"
	"github.com/kailas-cloud/facetdex/internal/metrics"
	batchuc "github.com/kailas-cloud/facetdex/internal/usecase/batch"
	cataloguc "github.com/kailas-cloud/facetdex/internal/usecase/catalog"
	entityuc "github.com/kailas-cloud/facetdex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/facetdex/internal/usecase/search"
)

const maxBatchSize = 100

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// errorCode labels an error response for programmatic clients.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeNotFound          errorCode = "not_found"
	codeEntityNotFound    errorCode = "entity_not_found"
	codeAlreadyExists     errorCode = "already_exists"
	codeConfig            errorCode = "config_error"
	codeInvalidGeometry   errorCode = "invalid_geometry"
	codeFacetJoinOverflow errorCode = "facet_join_overflow"
	codeRebuildInProgress errorCode = "rebuild_in_progress"
	codeStaleFacets       errorCode = "stale_facets"
	codeInternalError     errorCode = "internal_error"
)

// errorResponse is the JSON error envelope shared by every endpoint.
type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// searchRequest is the POST /api/v1/search body.
type searchRequest struct {
	Text           string     `json:"text"`
	Geo            *geoClause `json:"geo,omitempty"`
	FacetFields    []string   `json:"facet_fields,omitempty"`
	MaxHits        int        `json:"max_hits,omitempty"`
	MaxFacetValues int        `json:"max_facet_values_per_field,omitempty"`
}

// geoClause is the wire form of a spatial predicate, discriminated by
// kind: bounding_box, radius, intersects or contained_by. Polygon kinds
// carry the shape as a WKT literal.
type geoClause struct {
	Kind    string  `json:"kind"`
	MinLon  float64 `json:"min_lon,omitempty"`
	MinLat  float64 `json:"min_lat,omitempty"`
	MaxLon  float64 `json:"max_lon,omitempty"`
	MaxLat  float64 `json:"max_lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Meters  float64 `json:"meters,omitempty"`
	Polygon string  `json:"polygon,omitempty"`
}

type searchResponse struct {
	Hits      []hitItem                   `json:"hits"`
	TotalHits int64                       `json:"total_hits"`
	Facets    map[string][]facetValueItem `json:"facets,omitempty"`
	Partial   bool                        `json:"partial"`
}

// hitItem carries coordinates only for entities with a stored point
// geometry; both pointers are set together or not at all.
type hitItem struct {
	ID    string   `json:"id"`
	Score float64  `json:"score"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

type facetValueItem struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// entityPayload is the PUT /api/v1/entities/{id} body.
type entityPayload struct {
	Attributes map[string][]string `json:"attributes"`
}

// entityItem is an entity on the wire, used by batch bodies and every
// entity response.
type entityItem struct {
	ID         string              `json:"id"`
	Attributes map[string][]string `json:"attributes"`
}

type batchUpsertRequest struct {
	Entities []entityItem `json:"entities"`
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

type batchItemResult struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Error  *errorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchItemResult `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

type schemaResponse struct {
	Model      string      `json:"model"`
	Generation string      `json:"generation"`
	Fields     []fieldItem `json:"fields"`
}

type fieldItem struct {
	Name       string `json:"name"`
	Searchable bool   `json:"searchable"`
	Facetable  bool   `json:"facetable"`
	Geometry   bool   `json:"geometry"`
	Stored     bool   `json:"stored"`
}

type rebuildRequest struct {
	Model string `json:"model"`
}

type rebuildResponse struct {
	Generation string `json:"generation"`
	Model      string `json:"model"`
}

type integrityResponse struct {
	Generation   string           `json:"generation"`
	Model        string           `json:"model"`
	RowVersion   int64            `json:"row_version"`
	FacetVersion int64            `json:"facet_version"`
	InSync       bool             `json:"in_sync"`
	Rows         int64            `json:"rows"`
	Registries   map[string]int64 `json:"registries,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server exposes the facetdex API over hand-written chi routes.
type Server struct {
	entities *entityuc.Service
	search   searchuc.Searcher
	batch    *batchuc.Service
	catalog  *cataloguc.Service
	health   *healthuc.Service
	logger   *zap.Logger

	defaultPageSize    int
	maxPageSize        int
	defaultFacetValues int

	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	entities *entityuc.Service,
	search searchuc.Searcher,
	batch *batchuc.Service,
	catalog *cataloguc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		entities:           entities,
		search:             search,
		batch:              batch,
		catalog:            catalog,
		health:             health,
		logger:             logger,
		defaultPageSize:    request.DefaultLimit,
		maxPageSize:        request.MaxLimit,
		defaultFacetValues: request.DefaultFacetValues,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrEntityNotFound, http.StatusNotFound, codeEntityNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists),
		sentinelHandler(domain.ErrConfig, http.StatusBadRequest, codeConfig),
		sentinelHandler(domain.ErrInvalidGeometry, http.StatusBadRequest, codeInvalidGeometry),
		sentinelHandler(domain.ErrFacetJoinOverflow,
			http.StatusUnprocessableEntity, codeFacetJoinOverflow),
		sentinelHandler(domain.ErrRebuildInProgress, http.StatusConflict, codeRebuildInProgress),
		sentinelHandler(domain.ErrStaleFacets, http.StatusInternalServerError, codeStaleFacets),
	}
	return s
}

// WithPagination configures the hit count applied when a request leaves
// max_hits unset, and the largest value a request may ask for.
func (s *Server) WithPagination(defaultSize, maxSize int) *Server {
	if defaultSize > 0 {
		s.defaultPageSize = defaultSize
	}
	if maxSize > 0 {
		s.maxPageSize = maxSize
	}
	return s
}

// WithFacetValues configures the per-field facet value count applied
// when a request leaves max_facet_values_per_field unset.
func (s *Server) WithFacetValues(defaultPerField int) *Server {
	if defaultPerField > 0 {
		s.defaultFacetValues = defaultPerField
	}
	return s
}

// Register mounts every API route on the router. Middleware is owned by
// the caller.
func (s *Server) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Route("/entities", func(r chi.Router) {
			r.Post("/batch", s.BatchUpsert)
			r.Delete("/batch", s.BatchDelete)
			r.Put("/{id}", s.UpsertEntity)
			r.Get("/{id}", s.GetEntity)
			r.Delete("/{id}", s.DeleteEntity)
		})
		r.Get("/schema", s.GetSchema)
		r.Post("/rebuild", s.Rebuild)
		r.Get("/integrity", s.Integrity)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	geo, err := geoFromClause(req.Geo)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	// Validate explicitly provided parameters (0 means "not set").
	if req.MaxHits < 0 || req.MaxHits > s.maxPageSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("max_hits must be between 1 and %d", s.maxPageSize))
		return
	}
	if req.MaxFacetValues < 0 || req.MaxFacetValues > request.MaxFacetValues {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("max_facet_values_per_field must be between 1 and %d", request.MaxFacetValues))
		return
	}

	limit := req.MaxHits
	if limit == 0 {
		limit = s.defaultPageSize
	}
	facetValues := req.MaxFacetValues
	if facetValues == 0 {
		facetValues = s.defaultFacetValues
	}

	sreq, err := request.New(req.Text, geo, req.FacetFields, limit, facetValues)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	res, err := s.search.Search(r.Context(), &sreq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResultToResponse(&res))
}

// UpsertEntity handles PUT /api/v1/entities/{id}.
func (s *Server) UpsertEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req entityPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ent, err := doment.New(id, req.Attributes)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	created, err := s.entities.Upsert(r.Context(), ent)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/api/v1/entities/%s", id))
	}
	writeJSON(w, status, entityToItem(ent))
}

// GetEntity handles GET /api/v1/entities/{id}.
func (s *Server) GetEntity(w http.ResponseWriter, r *http.Request) {
	ent, err := s.entities.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entityToItem(ent))
}

// DeleteEntity handles DELETE /api/v1/entities/{id}.
func (s *Server) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := s.entities.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BatchUpsert handles POST /api/v1/entities/batch.
func (s *Server) BatchUpsert(w http.ResponseWriter, r *http.Request) {
	var req batchUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Entities) == 0 || len(req.Entities) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("entities count must be between 1 and %d", maxBatchSize))
		return
	}

	items := make([]doment.Entity, 0, len(req.Entities))
	for _, item := range req.Entities {
		ent, err := doment.New(item.ID, item.Attributes)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed,
				fmt.Sprintf("entity %q: %s", item.ID, err))
			return
		}
		items = append(items, ent)
	}

	results := s.batch.Upsert(r.Context(), items)
	writeJSON(w, http.StatusOK, batchResponseFrom(results))
}

// BatchDelete handles DELETE /api/v1/entities/batch.
func (s *Server) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.IDs) == 0 || len(req.IDs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("ids count must be between 1 and %d", maxBatchSize))
		return
	}

	results := s.batch.Delete(r.Context(), req.IDs)
	writeJSON(w, http.StatusOK, batchResponseFrom(results))
}

// GetSchema handles GET /api/v1/schema.
func (s *Server) GetSchema(w http.ResponseWriter, r *http.Request) {
	snap, err := s.catalog.Acquire()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	defer snap.Release()

	fields := snap.Schema().Fields()
	items := make([]fieldItem, len(fields))
	for i, f := range fields {
		items[i] = fieldToItem(f)
	}

	writeJSON(w, http.StatusOK, schemaResponse{
		Model:      snap.Model().String(),
		Generation: snap.Generation().ID(),
		Fields:     items,
	})
}

// Rebuild handles POST /api/v1/rebuild. The call blocks until the new
// generation is built and swapped in.
func (s *Server) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	start := time.Now()
	gen, err := s.catalog.Rebuild(r.Context(), model.Model(req.Model))
	if err != nil {
		metrics.RebuildsTotal.WithLabelValues("error").Inc()
		s.handleDomainError(w, err)
		return
	}
	metrics.RebuildsTotal.WithLabelValues("success").Inc()
	metrics.RebuildDuration.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, rebuildResponse{
		Generation: gen.ID(),
		Model:      gen.Model().String(),
	})
}

// Integrity handles GET /api/v1/integrity. Version drift still returns
// the populated report, under a 500.
func (s *Server) Integrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.catalog.Integrity(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrStaleFacets) {
			s.logger.Error("facet registry out of sync", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, integrityToResponse(report))
			return
		}
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, integrityToResponse(report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns an error message safe to show the client.
// Request-shaped errors keep their full text; everything else collapses
// to the sentinel message so storage internals never leak.
func safeDomainMessage(err error) string {
	verbatim := []error{
		domain.ErrConfig,
		domain.ErrInvalidGeometry,
		domain.ErrFacetJoinOverflow,
	}
	for _, s := range verbatim {
		if errors.Is(err, s) {
			return err.Error()
		}
	}

	sentinels := []error{
		domain.ErrEntityNotFound,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrModelMismatch,
		domain.ErrRebuildInProgress,
		domain.ErrStaleFacets,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// geoFromClause converts the wire form into a validated spatial filter.
func geoFromClause(g *geoClause) (geofilter.Filter, error) {
	if g == nil {
		return geofilter.None(), nil
	}
	switch geofilter.Kind(g.Kind) {
	case geofilter.KindNone:
		return geofilter.None(), nil
	case geofilter.KindBoundingBox:
		return geofilter.NewBoundingBox(g.MinLon, g.MinLat, g.MaxLon, g.MaxLat)
	case geofilter.KindRadius:
		return geofilter.NewRadius(g.Lon, g.Lat, g.Meters)
	case geofilter.KindIntersects:
		shape, err := geometry.Parse(g.Polygon)
		if err != nil {
			return geofilter.Filter{}, fmt.Errorf("parse polygon: %w", err)
		}
		return geofilter.NewIntersects(shape)
	case geofilter.KindContainedBy:
		shape, err := geometry.Parse(g.Polygon)
		if err != nil {
			return geofilter.Filter{}, fmt.Errorf("parse polygon: %w", err)
		}
		return geofilter.NewContainedBy(shape)
	default:
		return geofilter.Filter{}, fmt.Errorf("unknown geo filter kind %q", g.Kind)
	}
}

func searchResultToResponse(res *result.Result) searchResponse {
	hits := make([]hitItem, len(res.Hits()))
	for i, h := range res.Hits() {
		hits[i] = hitToItem(h)
	}

	var facets map[string][]facetValueItem
	if len(res.Facets()) > 0 {
		facets = make(map[string][]facetValueItem, len(res.Facets()))
		for _, f := range res.Facets() {
			values := make([]facetValueItem, len(f.Values()))
			for i, v := range f.Values() {
				values[i] = facetValueItem{Value: v.Value(), Count: v.Count()}
			}
			facets[f.Field()] = values
		}
	}

	return searchResponse{
		Hits:      hits,
		TotalHits: res.TotalHits(),
		Facets:    facets,
		Partial:   res.Partial(),
	}
}

func hitToItem(h result.Hit) hitItem {
	item := hitItem{ID: h.ID(), Score: h.Score()}
	if c, ok := h.Coordinate(); ok {
		lat, lon := c.Lat, c.Lon
		item.Lat = &lat
		item.Lon = &lon
	}
	return item
}

func entityToItem(e doment.Entity) entityItem {
	return entityItem{ID: e.ID(), Attributes: e.Attrs()}
}

func fieldToItem(f field.Field) fieldItem {
	return fieldItem{
		Name:       f.Name(),
		Searchable: f.Searchable(),
		Facetable:  f.Facetable(),
		Geometry:   f.Geometry(),
		Stored:     f.Stored(),
	}
}

func batchResponseFrom(results []dombatch.Result) batchResponse {
	succeeded, failed := 0, 0
	items := make([]batchItemResult, len(results))
	for i, res := range results {
		items[i] = batchResultToItem(res)
		if res.Status() == dombatch.StatusOK {
			succeeded++
		} else {
			failed++
		}
	}
	return batchResponse{Items: items, Succeeded: succeeded, Failed: failed}
}

func batchResultToItem(r dombatch.Result) batchItemResult {
	item := batchItemResult{ID: r.ID(), Status: string(r.Status())}
	if r.Err() != nil {
		item.Error = &errorResponse{
			Code:    batchErrorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}

func batchErrorCode(err error) errorCode {
	switch {
	case errors.Is(err, domain.ErrEntityNotFound):
		return codeEntityNotFound
	case errors.Is(err, domain.ErrInvalidGeometry):
		return codeInvalidGeometry
	case errors.Is(err, domain.ErrConfig):
		return codeValidationFailed
	case errors.Is(err, domain.ErrNotFound):
		return codeNotFound
	default:
		return codeInternalError
	}
}

func integrityToResponse(r cataloguc.Report) integrityResponse {
	return integrityResponse{
		Generation:   r.Generation,
		Model:        r.Model.String(),
		RowVersion:   r.RowVersion,
		FacetVersion: r.FacetVersion,
		InSync:       r.InSync,
		Rows:         r.Rows,
		Registries:   r.Registries,
	}
}
