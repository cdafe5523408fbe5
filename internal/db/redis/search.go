package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain/search/geofilter"
)

// Search runs a composed FT.SEARCH: scoring text clause, optional
// spatial clause, and tag constraints, in a single execution.
func (s *Store) Search(ctx context.Context, q *db.Query) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}

	queryStr, params, dialect, err := composeQuery(q)
	if err != nil {
		return nil, err
	}

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	if q.WithScores {
		args = append(args, "WITHSCORES")
	}
	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit))
	args = appendParams(args, params)
	args = append(args, "DIALECT", strconv.Itoa(dialect))

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	if q.WithScores {
		return parseScoredResult(raw)
	}
	return parsePlainResult(raw)
}

// Count returns the match total via FT.SEARCH with LIMIT 0 0.
func (s *Store) Count(ctx context.Context, q *db.Query) (int64, error) {
	if q.IndexName == "" {
		return 0, fmt.Errorf("index name is required")
	}

	queryStr, params, dialect, err := composeQuery(q)
	if err != nil {
		return 0, err
	}

	args := []string{q.IndexName, queryStr, "LIMIT", "0", "0"}
	args = appendParams(args, params)
	args = append(args, "DIALECT", strconv.Itoa(dialect))

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return total, nil
}

// --- Result parsing ---

func parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{Total: 0}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/3)
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  score,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func parsePlainResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{Total: 0}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query composition ---

const shapeParam = "shape"

// composeQuery translates structured clauses into an FT.SEARCH query
// string. Shape predicates bind their WKT via PARAMS and need dialect 3;
// everything else runs under dialect 2.
func composeQuery(q *db.Query) (string, map[string]string, int, error) {
	textPart := buildTextClause(q.Text, q.TextFields)

	geoPart, params, dialect, err := buildGeoClause(q.Geo, q.GeoField, q.ShapeField)
	if err != nil {
		return "", nil, 0, err
	}

	var core string
	switch {
	case textPart != "" && geoPart != "":
		if q.Disjunctive {
			core = fmt.Sprintf("(%s | %s)", textPart, geoPart)
		} else {
			core = fmt.Sprintf("%s %s", textPart, geoPart)
		}
	case textPart != "":
		core = textPart
	case geoPart != "":
		core = geoPart
	}

	parts := make([]string, 0, 1+len(q.Tags))
	if core != "" {
		parts = append(parts, core)
	}
	for _, t := range q.Tags {
		clause, err := buildTagClause(t)
		if err != nil {
			return "", nil, 0, err
		}
		parts = append(parts, clause)
	}

	if len(parts) == 0 {
		return "*", params, dialect, nil
	}
	return strings.Join(parts, " "), params, dialect, nil
}

func buildTextClause(text string, fields []string) string {
	if text == "" {
		return ""
	}
	escaped := escapeQuery(text)
	if len(fields) == 0 {
		return fmt.Sprintf("(%s)", escaped)
	}
	return fmt.Sprintf("@%s:(%s)", strings.Join(fields, "|"), escaped)
}

func buildGeoClause(f geofilter.Filter, geoField, shapeField string) (string, map[string]string, int, error) {
	switch f.Kind() {
	case geofilter.KindNone:
		return "", nil, 2, nil

	case geofilter.KindRadius:
		if geoField == "" {
			return "", nil, 0, fmt.Errorf("radius filter requires a geo point attribute")
		}
		c := f.Circle()
		clause := fmt.Sprintf("@%s:[%s %s %s m]",
			geoField, formatCoord(c.Lon), formatCoord(c.Lat), formatCoord(c.Meters))
		return clause, nil, 2, nil

	case geofilter.KindBoundingBox:
		if shapeField == "" {
			return "", nil, 0, fmt.Errorf("bounding box filter requires a geo shape attribute")
		}
		clause := fmt.Sprintf("@%s:[WITHIN $%s]", shapeField, shapeParam)
		return clause, map[string]string{shapeParam: f.Box().WKT()}, 3, nil

	case geofilter.KindIntersects:
		if shapeField == "" {
			return "", nil, 0, fmt.Errorf("intersects filter requires a geo shape attribute")
		}
		clause := fmt.Sprintf("@%s:[INTERSECTS $%s]", shapeField, shapeParam)
		return clause, map[string]string{shapeParam: f.Shape().WKT()}, 3, nil

	case geofilter.KindContainedBy:
		if shapeField == "" {
			return "", nil, 0, fmt.Errorf("contained_by filter requires a geo shape attribute")
		}
		clause := fmt.Sprintf("@%s:[WITHIN $%s]", shapeField, shapeParam)
		return clause, map[string]string{shapeParam: f.Shape().WKT()}, 3, nil

	default:
		return "", nil, 0, fmt.Errorf("unknown geo filter kind %q", f.Kind())
	}
}

func buildTagClause(t db.TagClause) (string, error) {
	if t.Field == "" {
		return "", fmt.Errorf("tag clause field is required")
	}
	if len(t.Values) == 0 {
		return "", fmt.Errorf("tag clause for %q has no values", t.Field)
	}
	escaped := make([]string, len(t.Values))
	for i, v := range t.Values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", t.Field, strings.Join(escaped, "|")), nil
}

// appendParams emits PARAMS in sorted key order so commands are
// deterministic.
func appendParams(args []string, params map[string]string) []string {
	if len(params) == 0 {
		return args
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args = append(args, "PARAMS", strconv.Itoa(len(keys)*2))
	for _, k := range keys {
		args = append(args, k, params[k])
	}
	return args
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)
