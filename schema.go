package facetdex

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kailas-cloud/facetdex/internal/domain/geometry"
	"github.com/kailas-cloud/facetdex/internal/domain/schema"
)

const tagKey = "facetdex"

// schemaMeta holds parsed struct tag metadata, cached per TypedIndex.
//
// Tag format: `facetdex:"attribute_name,modifier[,modifier]"`.
// Modifiers: id, search, facet, geom (WKT string), lat, lon.
// A lat/lon pair composes a POINT under a shared attribute name, so
// both tags must carry the same name part.
type schemaMeta struct {
	typ reflect.Type // struct type for reconstruction

	idIdx int

	// Geometry mapping: either one WKT string field or a lon/lat
	// float pair. -1 if not present.
	geomName string
	geomIdx  int
	latIdx   int
	lonIdx   int

	// Declared index fields for schema declaration and validation.
	fields []FieldSpec

	// Mapping from struct field index → attribute name.
	attrFields []attrMapping
}

type attrMapping struct {
	structIdx int
	name      string
	slice     bool // []string attribute, all values mapped
}

// parseSchema reflects on T and extracts facetdex struct tag metadata.
func parseSchema[T any]() (*schemaMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("facetdex: type %v is not a struct", t)
	}

	meta := &schemaMeta{
		typ: t, idIdx: -1,
		geomIdx: -1, latIdx: -1, lonIdx: -1,
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if err := applyTag(meta, i, f, tag); err != nil {
			return nil, err
		}
	}

	return validateSchema(meta, t)
}

// applyTag processes a single struct field's facetdex tag.
func applyTag(meta *schemaMeta, idx int, f reflect.StructField, tag string) error {
	parts := strings.Split(tag, ",")
	name := parts[0]
	if len(parts) == 1 {
		// Имя без модификатора — не индексируется.
		return nil
	}

	spec := FieldSpec{Name: name}
	var isID, isGeom, isLat, isLon bool
	for _, mod := range parts[1:] {
		switch mod {
		case "id":
			isID = true
		case "search":
			spec.Searchable = true
		case "facet":
			spec.Facetable = true
		case "geom":
			isGeom = true
		case "lat":
			isLat = true
		case "lon":
			isLon = true
		default:
			return fmt.Errorf("facetdex: unknown modifier %q on field %s", mod, f.Name)
		}
	}

	if isID {
		if spec.Searchable || spec.Facetable || isGeom || isLat || isLon {
			return fmt.Errorf("facetdex: id tag on field %s cannot combine with other modifiers", f.Name)
		}
		if meta.idIdx != -1 {
			return fmt.Errorf("facetdex: duplicate id tag on field %s", f.Name)
		}
		if f.Type.Kind() != reflect.String {
			return fmt.Errorf("facetdex: id field %s must be a string", f.Name)
		}
		meta.idIdx = idx
		return nil
	}

	if isGeom || isLat || isLon {
		if spec.Searchable || spec.Facetable {
			return fmt.Errorf("facetdex: geometry field %s cannot also be searchable or facetable", f.Name)
		}
		if (isGeom && (isLat || isLon)) || (isLat && isLon) {
			return fmt.Errorf("facetdex: conflicting geometry modifiers on field %s", f.Name)
		}
		return applyGeometryTag(meta, idx, f, name, isGeom, isLat)
	}

	slice, err := attrKind(f)
	if err != nil {
		return err
	}
	meta.fields = append(meta.fields, spec)
	meta.attrFields = append(meta.attrFields, attrMapping{structIdx: idx, name: name, slice: slice})
	return nil
}

func applyGeometryTag(meta *schemaMeta, idx int, f reflect.StructField, name string, isGeom, isLat bool) error {
	if meta.geomName != "" && meta.geomName != name {
		return fmt.Errorf("facetdex: geometry tags %q and %q must share one attribute name", meta.geomName, name)
	}
	switch {
	case isGeom:
		if meta.geomIdx != -1 || meta.latIdx != -1 || meta.lonIdx != -1 {
			return fmt.Errorf("facetdex: duplicate geometry mapping on field %s", f.Name)
		}
		if f.Type.Kind() != reflect.String {
			return fmt.Errorf("facetdex: geom field %s must be a WKT string", f.Name)
		}
		meta.geomIdx = idx
	case isLat:
		if meta.geomIdx != -1 || meta.latIdx != -1 {
			return fmt.Errorf("facetdex: duplicate geometry mapping on field %s", f.Name)
		}
		if !isNumericKind(f.Type.Kind()) {
			return fmt.Errorf("facetdex: lat field %s must be numeric", f.Name)
		}
		meta.latIdx = idx
	default:
		if meta.geomIdx != -1 || meta.lonIdx != -1 {
			return fmt.Errorf("facetdex: duplicate geometry mapping on field %s", f.Name)
		}
		if !isNumericKind(f.Type.Kind()) {
			return fmt.Errorf("facetdex: lon field %s must be numeric", f.Name)
		}
		meta.lonIdx = idx
	}
	meta.geomName = name
	return nil
}

func attrKind(f reflect.StructField) (slice bool, err error) {
	k := f.Type.Kind()
	switch {
	case k == reflect.String || isNumericKind(k):
		return false, nil
	case k == reflect.Slice && f.Type.Elem().Kind() == reflect.String:
		return true, nil
	default:
		return false, fmt.Errorf("facetdex: unsupported type %s on field %s", f.Type, f.Name)
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func validateSchema(meta *schemaMeta, t reflect.Type) (*schemaMeta, error) {
	if meta.idIdx == -1 {
		return nil, fmt.Errorf("facetdex: no field with `facetdex:\"...,id\"` tag in %s", t)
	}
	if (meta.latIdx != -1) != (meta.lonIdx != -1) {
		return nil, fmt.Errorf("facetdex: lat and lon must both be present in %s", t)
	}
	if meta.geomName != "" {
		meta.fields = append(meta.fields, FieldSpec{Name: meta.geomName, Geometry: true, Stored: true})
	}
	return meta, nil
}

// WithSchemaOf declares the index schema from T's facetdex struct
// tags. A parse failure surfaces as an error from New.
func WithSchemaOf[T any]() Option {
	return optionFunc(func(c *clientConfig) {
		meta, err := parseSchema[T]()
		if err != nil {
			c.schemaErr = err
			return
		}
		c.fields = append(c.fields, meta.fields...)
	})
}

// validateAgainst checks that every declared field exists in the
// active catalog schema with at least the declared roles. T may map a
// subset of the schema.
func (m *schemaMeta) validateAgainst(sch schema.Schema) error {
	for _, spec := range m.fields {
		f, ok := sch.FieldByName(spec.Name)
		if !ok {
			return fmt.Errorf("field %q not in the catalog schema", spec.Name)
		}
		if spec.Searchable && !f.Searchable() {
			return fmt.Errorf("field %q is not searchable in the catalog schema", spec.Name)
		}
		if spec.Facetable && !f.Facetable() {
			return fmt.Errorf("field %q is not facetable in the catalog schema", spec.Name)
		}
		if spec.Geometry && !f.Geometry() {
			return fmt.Errorf("field %q is not a geometry field in the catalog schema", spec.Name)
		}
	}
	return nil
}

// toEntity converts a typed struct to an Entity using schema metadata.
func (m *schemaMeta) toEntity(item any) (Entity, error) {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	attrs := make(map[string][]string, len(m.attrFields)+1)
	for _, af := range m.attrFields {
		fv := v.Field(af.structIdx)
		if af.slice {
			vals, _ := fv.Interface().([]string)
			if len(vals) == 0 {
				continue
			}
			attrs[af.name] = append(attrs[af.name], vals...)
			continue
		}
		s := fmt.Sprint(fv.Interface())
		if s == "" {
			// Unset string fields are absent attributes, not values.
			continue
		}
		attrs[af.name] = append(attrs[af.name], s)
	}

	wkt, ok, err := m.geometryWKT(v)
	if err != nil {
		return Entity{}, err
	}
	if ok {
		attrs[m.geomName] = []string{wkt}
	}

	return Entity{ID: v.Field(m.idIdx).String(), Attributes: attrs}, nil
}

func (m *schemaMeta) geometryWKT(v reflect.Value) (string, bool, error) {
	switch {
	case m.geomIdx != -1:
		wkt := v.Field(m.geomIdx).String()
		return wkt, wkt != "", nil
	case m.latIdx != -1:
		lat := toFloat64(v.Field(m.latIdx))
		lon := toFloat64(v.Field(m.lonIdx))
		if lat == 0 && lon == 0 {
			// A zero pair means absent coordinates, not Null Island.
			return "", false, nil
		}
		p, err := geometry.NewPoint(lon, lat)
		if err != nil {
			return "", false, fmt.Errorf("facetdex: %w", err)
		}
		return p.WKT(), true, nil
	default:
		return "", false, nil
	}
}

// fromEntity converts an Entity back to a typed struct.
func (m *schemaMeta) fromEntity(e Entity) any {
	v := reflect.New(m.typ).Elem()
	v.Field(m.idIdx).SetString(e.ID)

	for _, af := range m.attrFields {
		vals := e.Attributes[af.name]
		if len(vals) == 0 {
			continue
		}
		if af.slice {
			v.Field(af.structIdx).Set(reflect.ValueOf(append([]string(nil), vals...)))
			continue
		}
		setScalar(v.Field(af.structIdx), vals[0])
	}

	if m.geomName != "" {
		if vals := e.Attributes[m.geomName]; len(vals) > 0 {
			m.setGeometry(v, vals[0])
		}
	}
	return v.Interface()
}

func (m *schemaMeta) setGeometry(v reflect.Value, wkt string) {
	if m.geomIdx != -1 {
		v.Field(m.geomIdx).SetString(wkt)
		return
	}
	g, err := geometry.Parse(wkt)
	if err != nil || !g.IsPoint() {
		return
	}
	setFloat(v.Field(m.latIdx), g.Point().Lat)
	setFloat(v.Field(m.lonIdx), g.Point().Lon)
}

// itemFromHit builds a thin struct from a search hit: ID plus stored
// coordinates. Use SearchBuilder.Fetch for full attributes.
func (m *schemaMeta) itemFromHit(h SearchHit) any {
	v := reflect.New(m.typ).Elem()
	v.Field(m.idIdx).SetString(h.ID)
	if h.Coord != nil {
		switch {
		case m.latIdx != -1:
			setFloat(v.Field(m.latIdx), h.Coord.Lat)
			setFloat(v.Field(m.lonIdx), h.Coord.Lon)
		case m.geomIdx != -1:
			if p, err := geometry.NewPoint(h.Coord.Lon, h.Coord.Lat); err == nil {
				v.Field(m.geomIdx).SetString(p.WKT())
			}
		}
	}
	return v.Interface()
}

func setScalar(v reflect.Value, s string) {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			v.SetFloat(f)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			v.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			v.SetUint(n)
		}
	}
}

func toFloat64(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default:
		return 0
	}
}

func setFloat(v reflect.Value, f float64) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		v.SetFloat(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(uint64(f))
	}
}
