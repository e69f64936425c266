package file

import (
	"github.com/bmizerany/assert"
	"github.com/chararch/zonalbatch/vector"
	"github.com/paulmach/orb"
	"os"
	"path/filepath"
	"testing"
)

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func resultLayer() *vector.Layer {
	fields := []vector.Field{
		{Name: "id", Type: vector.Int64},
		{Name: "name", Type: vector.String},
		{Name: "elev_mean", Type: vector.Real},
		{Name: "elev_values", Type: vector.RealList},
	}
	return vector.NewLayer("result", fields, []*vector.Feature{
		{Geometry: square(0, 0, 1, 1), Properties: map[string]interface{}{"id": int64(1), "name": "a", "elev_mean": 2.5, "elev_values": []float64{1, 4}}},
		{Geometry: square(1, 0, 2, 1), Properties: map[string]interface{}{"id": int64(2), "name": "b", "elev_mean": nil, "elev_values": nil}},
	})
}

func roundTrip(t *testing.T, fileName string) *vector.Layer {
	fd := FileDescriptor{FileStore: &LocalFileSystem{}, FileName: filepath.Join(t.TempDir(), "out", fileName), Type: TypeOf(fileName)}
	writer := GetLayerWriter(fd.Type)
	assert.NotEqual(t, nil, writer)
	assert.Equal(t, nil, writer.Write(fd, resultLayer()))
	layer, err := GetLayerReader(fd.Type).Read(fd)
	assert.Equal(t, nil, err)
	assert.Equal(t, "result", layer.Name())
	assert.Equal(t, fd.FileName, layer.Source())
	assert.Equal(t, 2, layer.FeatureCount())
	return layer
}

func TestGeoJSON_RoundTrip(t *testing.T) {
	layer := roundTrip(t, "result.geojson")
	assert.Equal(t, resultLayer().Fields(), layer.Fields())
	f := layer.Feature(0)
	assert.Equal(t, int64(1), f.Properties["id"])
	assert.Equal(t, "a", f.Properties["name"])
	assert.Equal(t, 2.5, f.Properties["elev_mean"])
	assert.Equal(t, []float64{1, 4}, f.Properties["elev_values"])
	assert.Equal(t, square(0, 0, 1, 1), f.Geometry)
	assert.Equal(t, nil, layer.Feature(1).Properties["elev_mean"])
}

func TestCSV_RoundTrip(t *testing.T) {
	layer := roundTrip(t, "result.csv")
	assert.Equal(t, []vector.Field{
		{Name: "id", Type: vector.Int64},
		{Name: "name", Type: vector.String},
		{Name: "elev_mean", Type: vector.Real},
		{Name: "elev_values", Type: vector.RealList},
	}, layer.Fields())
	f := layer.Feature(0)
	assert.Equal(t, int64(1), f.Properties["id"])
	assert.Equal(t, []float64{1, 4}, f.Properties["elev_values"])
	assert.Equal(t, square(0, 0, 1, 1), f.Geometry)
	assert.Equal(t, nil, layer.Feature(1).Properties["elev_values"])
}

func TestTSV_RoundTrip(t *testing.T) {
	layer := roundTrip(t, "result.tsv")
	assert.Equal(t, "b", layer.Feature(1).Properties["name"])
	assert.Equal(t, square(1, 0, 2, 1), layer.Feature(1).Geometry)
}

func TestReader_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.geojson")
	assert.Equal(t, nil, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := GetLayerReader(GeoJSON).Read(FileDescriptor{FileStore: &LocalFileSystem{}, FileName: path})
	assert.NotEqual(t, nil, err)

	_, err = GetLayerReader(CSV).Read(FileDescriptor{FileStore: &LocalFileSystem{}, FileName: path + ".missing"})
	assert.NotEqual(t, nil, err)
	assert.Equal(t, nil, GetLayerWriter("shp"))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, GeoJSON, TypeOf("a/b.GeoJSON"))
	assert.Equal(t, GeoJSON, TypeOf("b.json"))
	assert.Equal(t, CSV, TypeOf("b.csv"))
	assert.Equal(t, TSV, TypeOf("b.tsv"))
	assert.Equal(t, "", TypeOf("b.gpkg"))
}

func TestChecksum(t *testing.T) {
	dir := t.TempDir()
	fd := FileDescriptor{FileStore: &LocalFileSystem{}, FileName: filepath.Join(dir, "data.csv")}
	assert.Equal(t, nil, os.WriteFile(fd.FileName, []byte("id\n1\n"), 0644))

	for _, alg := range []string{OKFlag, MD5, SHA1, SHA256, SHA512} {
		ch := GetChecksumer(alg)
		ok, err := ch.Verify(fd)
		assert.Equal(t, nil, err)
		assert.T(t, !ok)
		assert.Equal(t, nil, ch.Checksum(fd))
		ok, err = ch.Verify(fd)
		assert.Equal(t, nil, err)
		assert.T(t, ok)
	}

	assert.Equal(t, nil, os.WriteFile(fd.FileName, []byte("id\n2\n"), 0644))
	ok, err := GetChecksumer(MD5).Verify(fd)
	assert.Equal(t, nil, err)
	assert.T(t, !ok)
	assert.Equal(t, nil, GetChecksumer("CRC"))
}

func TestCopy(t *testing.T) {
	dir := t.TempDir()
	fs := &LocalFileSystem{}
	src := FileDescriptor{FileStore: fs, FileName: filepath.Join(dir, "a.geojson")}
	dest := FileDescriptor{FileStore: fs, FileName: filepath.Join(dir, "published", "a.geojson")}
	assert.Equal(t, nil, os.WriteFile(src.FileName, []byte("{}"), 0644))
	assert.Equal(t, nil, Copy(src, dest))
	data, err := os.ReadFile(dest.FileName)
	assert.Equal(t, nil, err)
	assert.Equal(t, "{}", string(data))
}
