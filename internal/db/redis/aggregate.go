package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/facetdex/internal/db"
)

const countAlias = "__count"

// AggregateCount runs FT.AGGREGATE with a GROUPBY + COUNT reducer.
// With one group attribute and Max > 0, the server sorts groups by
// count descending (ties by value ascending) and caps them at Max.
func (s *Store) AggregateCount(ctx context.Context, q *db.AggregateQuery) ([]db.GroupCount, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.GroupBy) == 0 {
		return nil, fmt.Errorf("at least one group attribute is required")
	}

	queryStr, params, dialect, err := composeQuery(&db.Query{
		Text:       q.Text,
		TextFields: q.TextFields,
		Geo:        q.Geo,
		GeoField:   q.GeoField,
		ShapeField: q.ShapeField,
		Tags:       q.Tags,
	})
	if err != nil {
		return nil, err
	}

	args := []string{q.IndexName, queryStr}

	args = append(args, "GROUPBY", strconv.Itoa(len(q.GroupBy)))
	for _, g := range q.GroupBy {
		args = append(args, "@"+g)
	}
	args = append(args, "REDUCE", "COUNT", "0", "AS", countAlias)

	if q.Max > 0 && len(q.GroupBy) == 1 {
		args = append(args,
			"SORTBY", "4", "@"+countAlias, "DESC", "@"+q.GroupBy[0], "ASC",
			"MAX", strconv.Itoa(q.Max),
		)
	}

	args = appendParams(args, params)
	args = append(args, "DIALECT", strconv.Itoa(dialect))

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}

	return parseAggregateResult(raw)
}

func parseAggregateResult(raw []rueidis.RedisMessage) ([]db.GroupCount, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// [total, row1, row2, ...] where each row is a flat name/value array
	groups := make([]db.GroupCount, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		row, err := raw[i].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(row)

		countStr, ok := fields[countAlias]
		if !ok {
			continue
		}
		count, err := strconv.ParseInt(countStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse group count %q: %w", countStr, err)
		}
		delete(fields, countAlias)

		groups = append(groups, db.GroupCount{Values: fields, Count: count})
	}

	return groups, nil
}
