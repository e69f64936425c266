package file

import (
	"github.com/chararch/zonalbatch/table"
	"github.com/chararch/zonalbatch/vector"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"
)

const fieldsMember = "fields"

type geojsonLayerWriter struct {
}

//Write a FeatureCollection, the declared fields are kept in a foreign "fields" member
func (w *geojsonLayerWriter) Write(fd FileDescriptor, layer *vector.Layer) (err error) {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{fieldsMember: layer.Fields()}
	for _, f := range layer.Features() {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Properties {
			if fv, ok := v.(float64); ok && (math.IsNaN(fv) || math.IsInf(fv, 0)) {
				v = nil
			}
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrapf(err, "marshal layer:%v", layer.Name())
	}
	writer, err := fd.FileStore.Create(fd.FileName)
	if err != nil {
		return err
	}
	defer func() {
		if er := writer.Close(); er != nil && err == nil {
			err = er
		}
	}()
	_, err = writer.Write(data)
	return err
}

type geojsonLayerReader struct {
}

func (r *geojsonLayerReader) Read(fd FileDescriptor) (*vector.Layer, error) {
	reader, err := fd.FileStore.Open(fd.FileName)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse geojson:%v", fd.FileName)
	}
	fields, ok := declaredFields(fc.ExtraMembers[fieldsMember])
	if !ok {
		fields = inferFields(fc.Features)
	}
	features := make([]*vector.Feature, len(fc.Features))
	for i, gf := range fc.Features {
		props := make(map[string]interface{}, len(fields))
		for _, field := range fields {
			v, err := table.Convert(gf.Properties[field.Name], field.Type.ColumnType())
			if err != nil {
				return nil, errors.Wrapf(err, "feature:%d field:%v", i, field.Name)
			}
			props[field.Name] = v
		}
		features[i] = &vector.Feature{Geometry: gf.Geometry, Properties: props}
	}
	layer := vector.NewLayer(layerName(fd.FileName), fields, features)
	layer.SetSource(fd.FileName)
	return layer, nil
}

func declaredFields(member interface{}) ([]vector.Field, bool) {
	items, ok := member.([]interface{})
	if !ok {
		return nil, false
	}
	fields := make([]vector.Field, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, false
		}
		name, _ := m["name"].(string)
		tp, _ := m["type"].(string)
		if name == "" {
			return nil, false
		}
		fields = append(fields, vector.Field{Name: name, Type: vector.FieldType(tp)})
	}
	return fields, true
}

func inferFields(features []*geojson.Feature) []vector.Field {
	types := make(map[string]vector.FieldType)
	for _, gf := range features {
		for k, v := range gf.Properties {
			if types[k] != vector.Undefined {
				continue
			}
			switch v.(type) {
			case float64:
				types[k] = vector.Real
			case string:
				types[k] = vector.String
			case bool:
				types[k] = vector.Bool
			case []interface{}:
				types[k] = vector.RealList
			default:
				if _, seen := types[k]; !seen {
					types[k] = vector.Undefined
				}
			}
		}
	}
	names := make([]string, 0, len(types))
	for k := range types {
		names = append(names, k)
	}
	sort.Strings(names)
	fields := make([]vector.Field, len(names))
	for i, name := range names {
		fields[i] = vector.Field{Name: name, Type: types[name]}
	}
	return fields
}

//layerName the file stem, as a desktop GIS names a layer loaded from disk
func layerName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
