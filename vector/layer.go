// Package vector models polygon layers: declared fields, features addressed by ordinal id,
// a mutable selection and independent copies of selected features.
package vector

import (
	"fmt"
	"github.com/chararch/zonalbatch/table"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"sort"
	"sync"
)

//GeometryColumn name of the geometry column in attribute tables
const GeometryColumn = "geometry"

//FieldType declared type of a layer attribute
type FieldType string

const (
	Int       FieldType = "Int"
	Int64     FieldType = "Int64"
	Real      FieldType = "Real"
	String    FieldType = "String"
	Bool      FieldType = "Bool"
	RealList  FieldType = "RealList"
	Undefined FieldType = ""
)

//ColumnType table column type holding values of this field type
func (ft FieldType) ColumnType() table.ColumnType {
	switch ft {
	case Int, Int64:
		return table.Int64
	case Real:
		return table.Float64
	case String:
		return table.String
	case Bool:
		return table.Bool
	case RealList:
		return table.FloatArray
	}
	return table.Any
}

//FieldTypeOf field type used to declare a column of type tp
func FieldTypeOf(tp table.ColumnType) FieldType {
	switch tp {
	case table.Int64:
		return Int64
	case table.Float64:
		return Real
	case table.String:
		return String
	case table.Bool:
		return Bool
	case table.FloatArray:
		return RealList
	}
	return Undefined
}

type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

//Feature a geometry with attributes, ID is the ordinal of the feature in its layer
type Feature struct {
	ID         int64
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

func (f *Feature) copy() *Feature {
	props := make(map[string]interface{}, len(f.Properties))
	for k, v := range f.Properties {
		if arr, ok := v.([]float64); ok {
			v = append([]float64(nil), arr...)
		}
		props[k] = v
	}
	return &Feature{ID: f.ID, Geometry: orb.Clone(f.Geometry), Properties: props}
}

//Layer a named collection of features, the selection is the only mutable state
type Layer struct {
	name     string
	source   string
	fields   []Field
	features []*Feature
	valid    bool

	mu       sync.Mutex
	selected map[int64]bool
}

//NewLayer create a valid layer, feature ids are set to the feature ordinals and property values
//of declared fields are converted to the representation of the field type, e.g. int to int64.
//A value that does not convert is kept as given.
func NewLayer(name string, fields []Field, features []*Feature) *Layer {
	for i, f := range features {
		f.ID = int64(i)
		normalize(f, fields)
	}
	return newLayer(name, fields, features)
}

func normalize(f *Feature, fields []Field) {
	for _, field := range fields {
		v, ok := f.Properties[field.Name]
		if !ok || v == nil {
			continue
		}
		if cv, err := table.Convert(v, field.Type.ColumnType()); err == nil {
			f.Properties[field.Name] = cv
		}
	}
}

func newLayer(name string, fields []Field, features []*Feature) *Layer {
	fs := make([]Field, len(fields))
	copy(fs, fields)
	return &Layer{
		name:     name,
		fields:   fs,
		features: features,
		valid:    true,
		selected: make(map[int64]bool),
	}
}

//NewInvalidLayer the result of loading a data source that could not be read
func NewInvalidLayer(name, source string) *Layer {
	l := newLayer(name, nil, nil)
	l.source = source
	l.valid = false
	return l
}

func (l *Layer) Name() string {
	return l.name
}

//Source the data source the layer was loaded from, empty for memory layers
func (l *Layer) Source() string {
	return l.source
}

//SetSource record the data source of a layer loaded from disk
func (l *Layer) SetSource(source string) {
	l.source = source
}

func (l *Layer) IsValid() bool {
	return l.valid
}

func (l *Layer) Fields() []Field {
	fs := make([]Field, len(l.fields))
	copy(fs, l.fields)
	return fs
}

func (l *Layer) Field(name string) (Field, bool) {
	for _, f := range l.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (l *Layer) FeatureCount() int {
	return len(l.features)
}

//Feature feature by ordinal, nil when out of range
func (l *Layer) Feature(i int) *Feature {
	if i < 0 || i >= len(l.features) {
		return nil
	}
	return l.features[i]
}

func (l *Layer) Features() []*Feature {
	return l.features
}

//SelectByIDs replace the current selection, ids outside the layer are ignored
func (l *Layer) SelectByIDs(ids []int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected = make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id >= 0 && id < int64(len(l.features)) {
			l.selected[id] = true
		}
	}
}

//SelectedFeatureIDs selected ids in ascending order
func (l *Layer) SelectedFeatureIDs() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int64, 0, len(l.selected))
	for id := range l.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (l *Layer) RemoveSelection() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selected = make(map[int64]bool)
}

//Materialize deep copy the features with the given ids into a new memory layer. The copy
//shares no state with l, feature ids keep their value in l.
func (l *Layer) Materialize(ids []int64) *Layer {
	features := make([]*Feature, 0, len(ids))
	for _, id := range ids {
		if f := l.Feature(int(id)); f != nil {
			features = append(features, f.copy())
		}
	}
	return newLayer(l.name, l.fields, features)
}

//AttributeTable the attributes of all features plus the geometry column
func (l *Layer) AttributeTable() *table.Table {
	columns := make([]*table.Column, 0, len(l.fields)+1)
	for _, field := range l.fields {
		values := make([]interface{}, len(l.features))
		for i, f := range l.features {
			values[i] = f.Properties[field.Name]
		}
		columns = append(columns, table.NewColumn(field.Name, field.Type.ColumnType(), values...))
	}
	geoms := make([]interface{}, len(l.features))
	for i, f := range l.features {
		geoms[i] = f.Geometry
	}
	columns = append(columns, table.NewColumn(GeometryColumn, table.Any, geoms...))
	t, err := table.New(columns...)
	if err != nil {
		panic(fmt.Sprintf("attribute table of layer:%v: %v", l.name, err))
	}
	return t
}

//FromTable build a memory layer from a table holding a geometry column
func FromTable(name string, t *table.Table) (*Layer, error) {
	geoms, ok := t.Column(GeometryColumn)
	if !ok {
		return nil, errors.Errorf("table has no %v column", GeometryColumn)
	}
	fields := make([]Field, 0, t.NumCols())
	for _, colName := range t.ColumnNames() {
		if colName == GeometryColumn {
			continue
		}
		c, _ := t.Column(colName)
		fields = append(fields, Field{Name: colName, Type: FieldTypeOf(c.Type)})
	}
	features := make([]*Feature, t.NumRows())
	for i := range features {
		props := make(map[string]interface{}, len(fields))
		for _, field := range fields {
			props[field.Name] = t.Value(i, field.Name)
		}
		var geom orb.Geometry
		if g, ok := geoms.Values[i].(orb.Geometry); ok {
			geom = g
		}
		features[i] = &Feature{Geometry: geom, Properties: props}
	}
	return NewLayer(name, fields, features), nil
}
