package row

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/db"
	domcat "github.com/kailas-cloud/facetdex/internal/domain/catalog"
	"github.com/kailas-cloud/facetdex/internal/domain/entity"
	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
	"github.com/kailas-cloud/facetdex/internal/domain/model"
	"github.com/kailas-cloud/facetdex/internal/domain/schema/field"
)

// materializeRows converts an entity into its layout rows. Fact rows
// hold one (field, value) pair each, keyed by value ordinal; the entity
// layout packs everything into a single hash. Geometry values are
// parsed here so a bad WKT literal never reaches storage.
func materializeRows(gen domcat.Generation, e entity.Entity) ([]db.HashSetItem, error) {
	sch := gen.Schema()
	for name := range e.Attrs() {
		if _, ok := sch.FieldByName(name); !ok {
			return nil, fmt.Errorf("field %q not in schema", name)
		}
	}

	if gen.Model() == model.Entity {
		fields := map[string]string{model.AttrEntityID: e.ID()}
		for _, f := range sch.Fields() {
			values := e.Values(f.Name())
			if len(values) == 0 {
				continue
			}
			if f.Geometry() {
				geo, err := geoFields(f, values)
				if err != nil {
					return nil, err
				}
				for k, v := range geo {
					fields[k] = v
				}
				continue
			}
			fields[f.Name()] = strings.Join(values, model.FacetSeparator)
		}
		return []db.HashSetItem{{Key: entityRowKey(gen.ID(), e.ID()), Fields: fields}}, nil
	}

	var items []db.HashSetItem
	for _, f := range sch.Fields() {
		values := e.Values(f.Name())
		if len(values) == 0 {
			continue
		}
		if f.Geometry() {
			geo, err := geoFields(f, values)
			if err != nil {
				return nil, err
			}
			fields := map[string]string{
				model.AttrEntityID: e.ID(),
				model.AttrField:    f.Name(),
			}
			for k, v := range geo {
				fields[k] = v
			}
			items = append(items, db.HashSetItem{
				Key:    factRowKey(gen.ID(), e.ID(), f.Name(), 0),
				Fields: fields,
			})
			continue
		}
		for i, v := range values {
			fields := map[string]string{
				model.AttrEntityID: e.ID(),
				model.AttrField:    f.Name(),
			}
			if f.Searchable() {
				fields[model.AttrText] = v
			}
			if f.Facetable() {
				fields[model.AttrFacet] = v
			}
			items = append(items, db.HashSetItem{
				Key:    factRowKey(gen.ID(), e.ID(), f.Name(), i),
				Fields: fields,
			})
		}
	}
	return items, nil
}

// geoFields builds the internal geometry attributes for one WKT value.
// Points are indexed both as a GEO member for radius queries and as a
// GEOSHAPE for containment; polygons only as a GEOSHAPE.
func geoFields(f field.Field, values []string) (map[string]string, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("geometry field %q accepts a single value, got %d", f.Name(), len(values))
	}
	g, err := geometry.Parse(values[0])
	if err != nil {
		return nil, err
	}

	out := map[string]string{model.AttrGeoShape: g.WKT()}
	if g.IsPoint() {
		p := g.Point()
		out[model.AttrGeo] = formatGeoMember(p)
		if f.Stored() {
			out[model.AttrGeoLat] = strconv.FormatFloat(p.Lat, 'f', -1, 64)
			out[model.AttrGeoLon] = strconv.FormatFloat(p.Lon, 'f', -1, 64)
		}
	}
	return out, nil
}

func formatGeoMember(c geometry.Coord) string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// attrsFromEntityHash maps a stored entity-layout hash back to the
// attribute lists. The geometry field reads back as its canonical WKT.
func attrsFromEntityHash(gen domcat.Generation, m map[string]string) map[string][]string {
	attrs := make(map[string][]string)
	for _, f := range gen.Schema().Fields() {
		if f.Geometry() {
			if wkt := m[model.AttrGeoShape]; wkt != "" {
				attrs[f.Name()] = []string{wkt}
			}
			continue
		}
		raw, ok := m[f.Name()]
		if !ok || raw == "" {
			continue
		}
		attrs[f.Name()] = strings.Split(raw, model.FacetSeparator)
	}
	return attrs
}

// attrsFromFactRows reconstructs attributes from fact row search hits,
// restoring value order from the key ordinals. Rows that cannot be
// parsed keep their keys (so deletes still reach them) but contribute
// no attribute.
func attrsFromFactRows(entries []db.SearchEntry) (map[string][]string, []string) {
	type slot struct {
		ord int
		val string
	}
	slots := make(map[string][]slot)
	keys := make([]string, 0, len(entries))

	for _, en := range entries {
		keys = append(keys, en.Key)

		name := en.Fields[model.AttrField]
		if name == "" {
			continue
		}
		ord, err := rowOrdinal(en.Key)
		if err != nil {
			continue
		}
		val := en.Fields[model.AttrText]
		if val == "" {
			val = en.Fields[model.AttrFacet]
		}
		if val == "" {
			val = en.Fields[model.AttrGeoShape]
		}
		if val == "" {
			continue
		}
		slots[name] = append(slots[name], slot{ord: ord, val: val})
	}

	attrs := make(map[string][]string, len(slots))
	for name, ss := range slots {
		sort.Slice(ss, func(i, j int) bool { return ss[i].ord < ss[j].ord })
		values := make([]string, len(ss))
		for i, s := range ss {
			values[i] = s.val
		}
		attrs[name] = values
	}
	return attrs, keys
}

func rowOrdinal(key string) (int, error) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 {
		return 0, fmt.Errorf("row key %q has no ordinal", key)
	}
	ord, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return 0, fmt.Errorf("row key %q has no ordinal: %w", key, err)
	}
	return ord, nil
}

// factReturnFields lists the attributes needed to reconstruct an entity
// from its fact rows.
func factReturnFields() []string {
	return []string{model.AttrField, model.AttrText, model.AttrFacet, model.AttrGeoShape}
}

// facetValues returns the deduplicated value set per facetable field.
func facetValues(gen domcat.Generation, attrs map[string][]string) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, f := range gen.Schema().FacetFields() {
		values := attrs[f.Name()]
		if len(values) == 0 {
			continue
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		out[f.Name()] = set
	}
	return out
}

// facetDeltas computes the registry increments moving an entity from
// one attribute state to another. Removed values queue their registry
// for a zero-score trim.
func facetDeltas(gen domcat.Generation, oldAttrs, newAttrs map[string][]string) ([]db.FacetDelta, []string) {
	oldSets := facetValues(gen, oldAttrs)
	newSets := facetValues(gen, newAttrs)

	var incrs []db.FacetDelta
	trimSet := make(map[string]bool)
	for _, f := range gen.Schema().FacetFields() {
		name := f.Name()
		key := registryKey(gen.ID(), name)
		oldV, newV := oldSets[name], newSets[name]

		var added, removed []string
		for v := range newV {
			if !oldV[v] {
				added = append(added, v)
			}
		}
		for v := range oldV {
			if !newV[v] {
				removed = append(removed, v)
			}
		}
		sort.Strings(added)
		sort.Strings(removed)

		for _, v := range added {
			incrs = append(incrs, db.FacetDelta{Key: key, Member: v, Delta: 1})
		}
		for _, v := range removed {
			incrs = append(incrs, db.FacetDelta{Key: key, Member: v, Delta: -1})
			trimSet[key] = true
		}
	}

	trims := make([]string, 0, len(trimSet))
	for k := range trimSet {
		trims = append(trims, k)
	}
	sort.Strings(trims)
	return incrs, trims
}
