package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/facetdex/internal/db"
)

// ZAddMulti adds members with scores to a sorted set in one ZADD.
func (s *Store) ZAddMulti(ctx context.Context, key string, entries []db.ZEntry) error {
	if len(entries) == 0 {
		return nil
	}

	cmd := s.b().Zadd().Key(key).ScoreMember()
	for _, e := range entries {
		cmd = cmd.ScoreMember(e.Score, e.Member)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRangeWithScores returns members in the index range with their scores.
// With rev=true, members come back from highest score to lowest.
func (s *Store) ZRangeWithScores(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZEntry, error) {
	builder := s.b().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).
		Max(strconv.FormatInt(stop, 10))

	var cmd rueidis.Completed
	if rev {
		cmd = builder.Rev().Withscores().Build()
	} else {
		cmd = builder.Withscores().Build()
	}

	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}

	entries := make([]db.ZEntry, len(scores))
	for i, z := range scores {
		entries[i] = db.ZEntry{Member: z.Member, Score: z.Score}
	}
	return entries, nil
}

// ZCard returns the member count of a sorted set.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}
