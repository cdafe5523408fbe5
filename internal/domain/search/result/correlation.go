package result

// CorrelatedEntity is one entity surviving the AND intersection of the
// fact-layout row pass.
type CorrelatedEntity struct {
	id    string
	score float64
}

// NewCorrelatedEntity creates a correlated entity.
func NewCorrelatedEntity(id string, score float64) CorrelatedEntity {
	return CorrelatedEntity{id: id, score: score}
}

// ID returns the entity identifier.
func (e CorrelatedEntity) ID() string { return e.id }

// Score returns the best text score across the entity's rows.
func (e CorrelatedEntity) Score() float64 { return e.score }

// Correlation is the outcome of correlating fact rows back into
// entities: rank order is score descending, ties by id ascending.
type Correlation struct {
	entities  []CorrelatedEntity
	rows      int
	saturated bool
}

// NewCorrelation creates a correlation over ranked entities. rows is
// the number of rows the pass fetched; saturated reports that the
// fetch hit its ceiling, so entities beyond it may be missing.
func NewCorrelation(entities []CorrelatedEntity, rows int, saturated bool) Correlation {
	return Correlation{entities: entities, rows: rows, saturated: saturated}
}

// Len returns the number of qualified entities.
func (c Correlation) Len() int { return len(c.entities) }

// Rows returns the number of rows fetched by the pass.
func (c Correlation) Rows() int { return c.rows }

// Saturated reports whether the row fetch hit its ceiling.
func (c Correlation) Saturated() bool { return c.saturated }

// IDs returns the entity ids in rank order.
func (c Correlation) IDs() []string {
	ids := make([]string, len(c.entities))
	for i, e := range c.entities {
		ids[i] = e.id
	}
	return ids
}

// Hits converts the rank window [offset, offset+limit) into result hits.
func (c Correlation) Hits(offset, limit int) []Hit {
	if offset >= len(c.entities) {
		return nil
	}
	end := offset + limit
	if end > len(c.entities) {
		end = len(c.entities)
	}
	hits := make([]Hit, 0, end-offset)
	for _, e := range c.entities[offset:end] {
		hits = append(hits, NewHit(e.id, e.score))
	}
	return hits
}
