package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
)

const (
	defaultCleanupTimeout = 30 * time.Second
	seedBatchSize         = 256
)

// Service owns the generation lifecycle: opening the active generation
// at startup, handing out snapshots to readers, model-switch rebuilds
// and integrity checks.
type Service struct {
	repo     Repository
	rows     RowRepository
	docModel model.Model
	sch      schema.Schema
	registry *Registry
	log      *zap.Logger

	rebuildMu      sync.Mutex
	cleanupTimeout time.Duration
}

// New creates a catalog service for the configured layout and schema.
func New(repo Repository, rows RowRepository, docModel model.Model, sch schema.Schema, log *zap.Logger) *Service {
	return &Service{
		repo:           repo,
		rows:           rows,
		docModel:       docModel,
		sch:            sch,
		registry:       NewRegistry(),
		log:            log,
		cleanupTimeout: defaultCleanupTimeout,
	}
}

// EnsureOpen hydrates the active generation into the snapshot registry,
// building a fresh one from the configured schema when none exists yet.
// The persisted model must match the configured model; switching models
// goes through Rebuild, never through configuration.
func (s *Service) EnsureOpen(ctx context.Context) error {
	id, err := s.repo.Current(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.bootstrap(ctx)
	case err != nil:
		return fmt.Errorf("read catalog pointer: %w", err)
	}

	gen, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// pointer survived a cleanup of its generation
		s.log.Warn("catalog points at a missing generation, rebuilding",
			zap.String("generation", id))
		return s.bootstrap(ctx)
	}
	if err != nil {
		return fmt.Errorf("read generation %s: %w", id, err)
	}

	if gen.Model() != s.docModel {
		return fmt.Errorf("open catalog: %w: %w", domain.ErrConfig,
			domain.NewModelMismatch(string(gen.Model()), string(s.docModel)))
	}

	s.install(gen)
	s.log.Info("catalog opened",
		zap.String("generation", gen.ID()),
		zap.String("model", string(gen.Model())))
	return nil
}

// Acquire pins the active snapshot for one request. Callers must
// Release when done.
func (s *Service) Acquire() (*Snapshot, error) {
	snap := s.registry.Acquire()
	if snap == nil {
		return nil, fmt.Errorf("catalog not opened: %w", domain.ErrNotFound)
	}
	return snap, nil
}

// Rebuild copies every entity of the active generation into a fresh
// generation built under the target model, repoints the catalog and
// swaps the snapshot registry. At most one rebuild runs at a time. The
// old generation keeps serving requests that already acquired it and is
// dropped once its last reference drains. Writes landing in the old
// generation during the copy are not carried over.
func (s *Service) Rebuild(ctx context.Context, target model.Model) (domcat.Generation, error) {
	if !target.IsValid() {
		return domcat.Generation{}, fmt.Errorf("%w: invalid document model: %q", domain.ErrConfig, target)
	}
	if !s.rebuildMu.TryLock() {
		return domcat.Generation{}, domain.ErrRebuildInProgress
	}
	defer s.rebuildMu.Unlock()

	old, err := s.Acquire()
	if err != nil {
		return domcat.Generation{}, err
	}
	defer old.Release()

	next, err := domcat.New(newGenerationID(), target, old.Schema())
	if err != nil {
		return domcat.Generation{}, fmt.Errorf("new generation: %w", err)
	}
	if err := s.repo.Create(ctx, next); err != nil {
		return domcat.Generation{}, fmt.Errorf("create generation %s: %w", next.ID(), err)
	}

	if err := s.copyRows(ctx, old.Generation(), next); err != nil {
		cleanupErr := s.repo.Drop(ctx, next.ID())
		return domcat.Generation{}, errors.Join(err, cleanupErr)
	}

	if err := s.repo.SetCurrent(ctx, next.ID()); err != nil {
		cleanupErr := s.repo.Drop(ctx, next.ID())
		return domcat.Generation{}, errors.Join(
			fmt.Errorf("point catalog at %s: %w", next.ID(), err), cleanupErr)
	}

	s.install(next)
	s.log.Info("rebuild complete",
		zap.String("from", old.Generation().ID()),
		zap.String("to", next.ID()),
		zap.String("model", string(target)))
	return next, nil
}

// Report describes the consistency of the active generation.
type Report struct {
	Generation   string
	Model        model.Model
	RowVersion   int64
	FacetVersion int64
	InSync       bool
	Rows         int64
	Registries   map[string]int64
}

// Integrity checks that row and facet mutation counters advanced in
// lockstep and sizes the index. Drift returns the populated report
// alongside an ErrStaleFacets error.
func (s *Service) Integrity(ctx context.Context) (Report, error) {
	snap, err := s.Acquire()
	if err != nil {
		return Report{}, err
	}
	defer snap.Release()

	gen := snap.Generation()
	v, err := s.repo.Versions(ctx, gen.ID())
	if err != nil {
		return Report{}, fmt.Errorf("read versions of %s: %w", gen.ID(), err)
	}
	rows, err := s.repo.RowCount(ctx, gen.ID())
	if err != nil {
		return Report{}, fmt.Errorf("count rows of %s: %w", gen.ID(), err)
	}

	registries := make(map[string]int64)
	for _, f := range snap.Schema().FacetFields() {
		n, err := s.repo.RegistrySize(ctx, gen.ID(), f.Name())
		if err != nil {
			return Report{}, fmt.Errorf("size facet registry %s/%s: %w", gen.ID(), f.Name(), err)
		}
		registries[f.Name()] = n
	}

	report := Report{
		Generation:   gen.ID(),
		Model:        gen.Model(),
		RowVersion:   v.Row,
		FacetVersion: v.Facet,
		InSync:       v.InSync(),
		Rows:         rows,
		Registries:   registries,
	}
	if !v.InSync() {
		return report, domain.NewStaleFacets(v.Row, v.Facet)
	}
	return report, nil
}

// bootstrap builds the first generation from the configured schema and
// model, then installs it.
func (s *Service) bootstrap(ctx context.Context) error {
	gen, err := domcat.New(newGenerationID(), s.docModel, s.sch)
	if err != nil {
		return fmt.Errorf("new generation: %w", err)
	}
	if err := s.repo.Create(ctx, gen); err != nil {
		return fmt.Errorf("create generation %s: %w", gen.ID(), err)
	}
	if err := s.repo.SetCurrent(ctx, gen.ID()); err != nil {
		cleanupErr := s.repo.Drop(ctx, gen.ID())
		return errors.Join(fmt.Errorf("point catalog at %s: %w", gen.ID(), err), cleanupErr)
	}

	s.install(gen)
	s.log.Info("catalog bootstrapped",
		zap.String("generation", gen.ID()),
		zap.String("model", string(gen.Model())))
	return nil
}

func (s *Service) copyRows(ctx context.Context, from, to domcat.Generation) error {
	ids, err := s.rows.ListIDs(ctx, from)
	if err != nil {
		return fmt.Errorf("list entities of %s: %w", from.ID(), err)
	}

	batch := make([]entity.Entity, 0, seedBatchSize)
	for _, id := range ids {
		ent, err := s.rows.Get(ctx, from, id)
		if errors.Is(err, domain.ErrEntityNotFound) {
			continue // deleted mid-copy
		}
		if err != nil {
			return fmt.Errorf("read entity %s: %w", id, err)
		}
		batch = append(batch, ent)
		if len(batch) == seedBatchSize {
			if err := s.rows.Seed(ctx, to, batch); err != nil {
				return fmt.Errorf("seed generation %s: %w", to.ID(), err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.rows.Seed(ctx, to, batch); err != nil {
			return fmt.Errorf("seed generation %s: %w", to.ID(), err)
		}
	}
	return nil
}

func (s *Service) install(gen domcat.Generation) {
	s.registry.Swap(NewSnapshot(gen, s.retire(gen.ID())))
}

// retire returns the cleanup hook that drops a generation once its last
// snapshot reference is released. Cleanup runs detached from any
// request context.
func (s *Service) retire(id string) func() {
	return func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
			defer cancel()
			if err := s.repo.Drop(ctx, id); err != nil {
				s.log.Error("drop retired generation",
					zap.String("generation", id), zap.Error(err))
				return
			}
			s.log.Info("retired generation dropped", zap.String("generation", id))
		}()
	}
}

// newGenerationID returns an 8-hex token cut from a fresh uuid.
func newGenerationID() string {
	return uuid.NewString()[:8]
}
