package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"

	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
)

// fieldRow is the JSON-serializable representation of a schema field for HSET.
type fieldRow struct {
	Name       string `json:"name"`
	Searchable bool   `json:"searchable,omitempty"`
	Facetable  bool   `json:"facetable,omitempty"`
	Geometry   bool   `json:"geometry,omitempty"`
	Stored     bool   `json:"stored,omitempty"`
}

// generationToHash converts a domain Generation to a map for HSET.
func generationToHash(gen domcat.Generation) (map[string]string, error) {
	fields := gen.Schema().Fields()
	rows := make([]fieldRow, len(fields))
	for i, f := range fields {
		rows[i] = fieldRow{
			Name:       f.Name(),
			Searchable: f.Searchable(),
			Facetable:  f.Facetable(),
			Geometry:   f.Geometry(),
			Stored:     f.Stored(),
		}
	}
	fieldsJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return map[string]string{
		"generation":  gen.ID(),
		"model":       gen.Model().String(),
		"fields_json": string(fieldsJSON),
		"created_at":  strconv.FormatInt(gen.CreatedAt(), 10),
	}, nil
}

// generationFromHash hydrates a domain Generation from an HGETALL result map.
// The mutation counters stored in the same hash are read separately.
func generationFromHash(m map[string]string) (domcat.Generation, error) {
	id := m["generation"]

	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return domcat.Generation{}, fmt.Errorf("invalid created_at: %w", err)
	}

	var rows []fieldRow
	if fieldsJSON := m["fields_json"]; fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &rows); err != nil {
			return domcat.Generation{}, fmt.Errorf("unmarshal fields: %w", err)
		}
	}

	fields := make([]field.Field, len(rows))
	for i, r := range rows {
		fields[i] = field.Reconstruct(r.Name, r.Searchable, r.Facetable, r.Geometry, r.Stored)
	}

	return domcat.Reconstruct(id, model.Model(m["model"]), schema.Reconstruct(fields), createdAt), nil
}

// versionsFromHash reads the mutation counters, defaulting to zero for
// a generation that has not been written to yet.
func versionsFromHash(m map[string]string) domcat.Versions {
	return domcat.Versions{
		Row:   parseCounter(m["row_version"]),
		Facet: parseCounter(m["facet_version"]),
	}
}

func parseCounter(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
