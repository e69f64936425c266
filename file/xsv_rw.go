package file

import (
	"bufio"
	"encoding/csv"
	"github.com/chararch/zonalbatch/table"
	"github.com/chararch/zonalbatch/util"
	"github.com/chararch/zonalbatch/vector"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
	"math"
	"strconv"
	"strings"
)

//xsvLayerWriter write attributes as delimited text, the geometry goes to a trailing WKT column
type xsvLayerWriter struct {
	separator rune
}

func (w *xsvLayerWriter) Write(fd FileDescriptor, layer *vector.Layer) (err error) {
	writer, err := fd.FileStore.Create(fd.FileName)
	if err != nil {
		return err
	}
	defer func() {
		if er := writer.Close(); er != nil && err == nil {
			err = er
		}
	}()
	bufWriter := bufio.NewWriter(writer)
	cWriter := csv.NewWriter(bufWriter)
	cWriter.Comma = separatorOf(fd, w.separator)

	fields := layer.Fields()
	header := make([]string, 0, len(fields)+1)
	for _, field := range fields {
		header = append(header, field.Name)
	}
	header = append(header, vector.GeometryColumn)
	if err = cWriter.Write(header); err != nil {
		return err
	}
	for _, f := range layer.Features() {
		record := make([]string, 0, len(header))
		for _, field := range fields {
			s, err := formatValue(f.Properties[field.Name])
			if err != nil {
				return errors.Wrapf(err, "feature:%v field:%v", f.ID, field.Name)
			}
			record = append(record, s)
		}
		geom := ""
		if f.Geometry != nil {
			geom = wkt.MarshalString(f.Geometry)
		}
		if err = cWriter.Write(append(record, geom)); err != nil {
			return err
		}
	}
	cWriter.Flush()
	if err = cWriter.Error(); err != nil {
		return err
	}
	return bufWriter.Flush()
}

func formatValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", nil
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case []float64:
		return util.JsonString(val)
	}
	s, err := table.Convert(v, table.String)
	if err != nil {
		return "", err
	}
	return s.(string), nil
}

//xsvLayerReader read delimited text written by xsvLayerWriter, field types are inferred from the values
type xsvLayerReader struct {
	separator rune
}

func (r *xsvLayerReader) Read(fd FileDescriptor) (*vector.Layer, error) {
	reader, err := fd.FileStore.Open(fd.FileName)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	cReader := csv.NewReader(bufio.NewReader(reader))
	cReader.Comma = separatorOf(fd, r.separator)
	records, err := cReader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %v", fd.FileName)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("file:%v has no header", fd.FileName)
	}
	header, rows := records[0], records[1:]
	geomIdx := -1
	fields := make([]vector.Field, 0, len(header))
	fieldIdx := make([]int, 0, len(header))
	for i, name := range header {
		if name == vector.GeometryColumn {
			geomIdx = i
			continue
		}
		fields = append(fields, vector.Field{Name: name, Type: inferType(rows, i)})
		fieldIdx = append(fieldIdx, i)
	}
	features := make([]*vector.Feature, len(rows))
	for n, record := range rows {
		props := make(map[string]interface{}, len(fields))
		for k, field := range fields {
			v, err := parseValue(record[fieldIdx[k]], field.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "row:%d field:%v", n+1, field.Name)
			}
			props[field.Name] = v
		}
		var geom orb.Geometry
		if geomIdx >= 0 && record[geomIdx] != "" {
			geom, err = wkt.Unmarshal(record[geomIdx])
			if err != nil {
				return nil, errors.Wrapf(err, "row:%d geometry", n+1)
			}
		}
		features[n] = &vector.Feature{Geometry: geom, Properties: props}
	}
	layer := vector.NewLayer(layerName(fd.FileName), fields, features)
	layer.SetSource(fd.FileName)
	return layer, nil
}

func separatorOf(fd FileDescriptor, def rune) rune {
	if fd.FieldSeparator != "" {
		return []rune(fd.FieldSeparator)[0]
	}
	return def
}

//inferType the narrowest of Int64, Real, Bool, RealList that parses every non empty value, else String
func inferType(rows [][]string, col int) vector.FieldType {
	candidates := []vector.FieldType{vector.Int64, vector.Real, vector.Bool, vector.RealList}
	for _, tp := range candidates {
		fits, seen := true, false
		for _, record := range rows {
			if record[col] == "" {
				continue
			}
			seen = true
			if _, err := parseValue(record[col], tp); err != nil {
				fits = false
				break
			}
		}
		if fits && seen {
			return tp
		}
	}
	return vector.String
}

func parseValue(s string, tp vector.FieldType) (interface{}, error) {
	if s == "" {
		return nil, nil
	}
	switch tp {
	case vector.Int, vector.Int64:
		return strconv.ParseInt(s, 10, 64)
	case vector.Real:
		return strconv.ParseFloat(s, 64)
	case vector.Bool:
		return strconv.ParseBool(s)
	case vector.RealList:
		if !strings.HasPrefix(s, "[") {
			return nil, errors.Errorf("%q is not a list", s)
		}
		var values []float64
		if err := util.ParseJson(s, &values); err != nil {
			return nil, err
		}
		return values, nil
	}
	return s, nil
}
