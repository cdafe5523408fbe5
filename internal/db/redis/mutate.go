package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/facetdex/internal/db"
)

// ApplyMutation applies row writes, deletes and facet registry deltas in
// one MULTI/EXEC transaction with a synchronized version bump, so a
// reader never observes rows without their registry counts.
func (s *Store) ApplyMutation(ctx context.Context, m *db.Mutation) error {
	if err := m.Validate(); err != nil {
		return &db.Error{Op: db.OpMulti, Err: err}
	}

	cmds := make([]rueidis.Completed, 0, len(m.Sets)+len(m.FacetIncrs)+len(m.TrimKeys)+5)
	cmds = append(cmds, s.b().Multi().Build())

	// Deletes run before writes so a key in both lists is replaced, not
	// merged into.
	if len(m.Deletes) > 0 {
		cmds = append(cmds, s.b().Del().Key(m.Deletes...).Build())
	}

	for _, item := range m.Sets {
		hset := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			hset = hset.FieldValue(k, v)
		}
		cmds = append(cmds, hset.Build())
	}

	for _, d := range m.FacetIncrs {
		cmds = append(cmds, s.b().Zincrby().Key(d.Key).Increment(d.Delta).Member(d.Member).Build())
	}

	for _, key := range m.TrimKeys {
		cmds = append(cmds, s.b().Zremrangebyscore().Key(key).Min("-inf").Max("0").Build())
	}

	cmds = append(cmds,
		s.b().Hincrby().Key(m.MetaKey).Field(db.RowVersionField).Increment(1).Build(),
		s.b().Hincrby().Key(m.MetaKey).Field(db.FacetVersionField).Increment(1).Build(),
		s.b().Exec().Build(),
	)

	results := s.client.DoMulti(ctx, cmds...)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpMulti, Err: err}
		}
	}
	return nil
}
