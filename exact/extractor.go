// Package exact computes zonal statistics weighted by the exact fraction of each raster
// cell covered by a polygon.
package exact

import (
	"context"
	"github.com/chararch/zonalbatch/raster"
	"github.com/chararch/zonalbatch/table"
	"github.com/chararch/zonalbatch/vector"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	"math"
)

//Extractor computes per feature statistics of a raster
type Extractor struct {
	open func(location string) (*raster.Grid, error)
}

//NewExtractor an extractor reading rasters with raster.Open
func NewExtractor() *Extractor {
	return &Extractor{open: raster.Open}
}

//Extract compute stats for every feature of polygons against the raster at rasterURI.
//The result has one row per feature: the includeCols attributes verbatim, then one column per stat.
func (e *Extractor) Extract(ctx context.Context, rasterURI string, polygons *vector.Layer, stats []string, includeCols []string) (*table.Table, error) {
	parsed, err := ParseStats(stats)
	if err != nil {
		return nil, err
	}
	grid, err := e.open(rasterURI)
	if err != nil {
		return nil, err
	}
	features := polygons.Features()
	columns := make([]*table.Column, 0, len(includeCols)+len(parsed))
	for _, name := range includeCols {
		field, ok := polygons.Field(name)
		if !ok {
			return nil, errors.Errorf("layer:%v has no field:%v", polygons.Name(), name)
		}
		values := make([]interface{}, len(features))
		for i, f := range features {
			values[i] = f.Properties[name]
		}
		columns = append(columns, table.NewColumn(name, field.Type.ColumnType(), values...))
	}
	statColumns := make([]*table.Column, len(parsed))
	for i, s := range parsed {
		tp := table.Float64
		if s.IsArray() {
			tp = table.FloatArray
		} else if s.Name == "variety" {
			tp = table.Int64
		}
		statColumns[i] = table.NewColumn(s.Column, tp, make([]interface{}, len(features))...)
	}
	for row, f := range features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		covered, err := coveredCells(grid, f.Geometry)
		if err != nil {
			return nil, errors.Wrapf(err, "feature:%v", f.ID)
		}
		for i, s := range parsed {
			statColumns[i].Values[row] = covered.compute(s)
		}
	}
	return table.New(append(columns, statColumns...)...)
}

func coveredCells(grid *raster.Grid, geom orb.Geometry) (*cells, error) {
	c := &cells{}
	if geom == nil {
		return c, nil
	}
	switch geom.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return nil, errors.Errorf("geometry %v is not polygonal", geom.GeoJSONType())
	}
	row0, row1, col0, col1, ok := grid.Window(geom.Bound())
	if !ok {
		return c, nil
	}
	cellArea := grid.CellArea()
	for row := row0; row <= row1; row++ {
		for col := col0; col <= col1; col++ {
			v, ok := grid.Value(row, col)
			if !ok {
				continue
			}
			cb := grid.CellBound(row, col)
			clipped := clip.Geometry(cb, orb.Clone(geom))
			if clipped == nil {
				continue
			}
			cov := math.Abs(planar.Area(clipped)) / cellArea
			if cov <= 0 {
				continue
			}
			if cov > 1 {
				cov = 1
			}
			center := cb.Center()
			c.add(v, cov, row*grid.Cols+col, center[0], center[1])
		}
	}
	return c, nil
}
