package catalog

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/domain"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
)

// --- Mocks ---

type mockRepo struct {
	mu sync.Mutex

	currentID     string
	currentErr    error
	setCurrentErr error
	createErr     error
	getErr        error
	dropErr       error
	versionsErr   error
	rowCountErr   error

	generations   map[string]domcat.Generation
	versions      domcat.Versions
	rowCount      int64
	registrySizes map[string]int64

	created    []domcat.Generation
	setCurrent []string
	dropped    chan string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		generations: make(map[string]domcat.Generation),
		dropped:     make(chan string, 8),
	}
}

func (m *mockRepo) Current(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentErr != nil {
		return "", m.currentErr
	}
	if m.currentID == "" {
		return "", domain.ErrNotFound
	}
	return m.currentID, nil
}

func (m *mockRepo) SetCurrent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setCurrentErr != nil {
		return m.setCurrentErr
	}
	m.currentID = id
	m.setCurrent = append(m.setCurrent, id)
	return nil
}

func (m *mockRepo) Create(_ context.Context, gen domcat.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.generations[gen.ID()] = gen
	m.created = append(m.created, gen)
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (domcat.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domcat.Generation{}, m.getErr
	}
	gen, ok := m.generations[id]
	if !ok {
		return domcat.Generation{}, domain.ErrNotFound
	}
	return gen, nil
}

func (m *mockRepo) Drop(_ context.Context, id string) error {
	m.mu.Lock()
	err := m.dropErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.dropped <- id
	return nil
}

func (m *mockRepo) Versions(_ context.Context, _ string) (domcat.Versions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versionsErr != nil {
		return domcat.Versions{}, m.versionsErr
	}
	return m.versions, nil
}

func (m *mockRepo) RowCount(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rowCountErr != nil {
		return 0, m.rowCountErr
	}
	return m.rowCount, nil
}

func (m *mockRepo) RegistrySize(_ context.Context, _, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registrySizes[name], nil
}

type mockRows struct {
	ids      []string
	idsErr   error
	entities map[string]entity.Entity
	seedErr  error

	seeded  [][]entity.Entity
	seedGen []string
}

func (m *mockRows) ListIDs(_ context.Context, _ domcat.Generation) ([]string, error) {
	return m.ids, m.idsErr
}

func (m *mockRows) Get(_ context.Context, _ domcat.Generation, id string) (entity.Entity, error) {
	ent, ok := m.entities[id]
	if !ok {
		return entity.Entity{}, domain.ErrEntityNotFound
	}
	return ent, nil
}

func (m *mockRows) Seed(_ context.Context, gen domcat.Generation, entities []entity.Entity) error {
	if m.seedErr != nil {
		return m.seedErr
	}
	batch := make([]entity.Entity, len(entities))
	copy(batch, entities)
	m.seeded = append(m.seeded, batch)
	m.seedGen = append(m.seedGen, gen.ID())
	return nil
}

// --- Fixtures ---

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	return schema.Reconstruct([]field.Field{
		field.Reconstruct("title", true, false, false, false),
		field.Reconstruct("category", false, true, false, false),
	})
}

func newTestService(t *testing.T, repo *mockRepo, rows *mockRows, m model.Model) *Service {
	t.Helper()
	return New(repo, rows, m, testSchema(t), zap.NewNop())
}

// openedService bootstraps a fresh catalog and returns the generation
// it built.
func openedService(t *testing.T, repo *mockRepo, rows *mockRows, m model.Model) (*Service, domcat.Generation) {
	t.Helper()
	svc := newTestService(t, repo, rows, m)
	if err := svc.EnsureOpen(context.Background()); err != nil {
		t.Fatalf("EnsureOpen: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected exactly one generation, got %d", len(repo.created))
	}
	return svc, repo.created[0]
}
