// Package raster provides single band north-up grids addressed by a location string.
package raster

import (
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"math"
)

//Grid a north-up single band raster, values are stored row major starting at the top row
type Grid struct {
	Cols      int
	Rows      int
	XMin      float64
	YMax      float64
	CellSize  float64
	NoData    float64
	HasNoData bool
	Values    []float64
}

//NewGrid create a grid whose upper left corner is (xmin, ymax)
func NewGrid(cols, rows int, xmin, ymax, cellSize float64, values []float64) (*Grid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, errors.Errorf("invalid grid size %dx%d", cols, rows)
	}
	if cellSize <= 0 || math.IsNaN(cellSize) {
		return nil, errors.Errorf("invalid cell size:%v", cellSize)
	}
	if len(values) != cols*rows {
		return nil, errors.Errorf("grid %dx%d needs %d values, got %d", cols, rows, cols*rows, len(values))
	}
	return &Grid{Cols: cols, Rows: rows, XMin: xmin, YMax: ymax, CellSize: cellSize, Values: values}, nil
}

//WithNoData mark v as the nodata value
func (g *Grid) WithNoData(v float64) *Grid {
	g.NoData = v
	g.HasNoData = true
	return g
}

func (g *Grid) XMax() float64 {
	return g.XMin + float64(g.Cols)*g.CellSize
}

func (g *Grid) YMin() float64 {
	return g.YMax - float64(g.Rows)*g.CellSize
}

//Bound extent of the grid
func (g *Grid) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{g.XMin, g.YMin()}, Max: orb.Point{g.XMax(), g.YMax}}
}

//CellBound extent of the cell at row, col
func (g *Grid) CellBound(row, col int) orb.Bound {
	x0 := g.XMin + float64(col)*g.CellSize
	y1 := g.YMax - float64(row)*g.CellSize
	return orb.Bound{Min: orb.Point{x0, y1 - g.CellSize}, Max: orb.Point{x0 + g.CellSize, y1}}
}

//CellArea area of one cell
func (g *Grid) CellArea() float64 {
	return g.CellSize * g.CellSize
}

//Value value at row, col; false for nodata, NaN or out of range cells
func (g *Grid) Value(row, col int) (float64, bool) {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return 0, false
	}
	v := g.Values[row*g.Cols+col]
	if math.IsNaN(v) || (g.HasNoData && v == g.NoData) {
		return 0, false
	}
	return v, true
}

//Window the inclusive row and column range of cells touching b, false when b misses the grid
func (g *Grid) Window(b orb.Bound) (row0, row1, col0, col1 int, ok bool) {
	if !g.Bound().Intersects(b) {
		return 0, 0, 0, 0, false
	}
	col0 = clamp(int(math.Floor((b.Min[0]-g.XMin)/g.CellSize)), 0, g.Cols-1)
	col1 = clamp(int(math.Ceil((b.Max[0]-g.XMin)/g.CellSize))-1, 0, g.Cols-1)
	row0 = clamp(int(math.Floor((g.YMax-b.Max[1])/g.CellSize)), 0, g.Rows-1)
	row1 = clamp(int(math.Ceil((g.YMax-b.Min[1])/g.CellSize))-1, 0, g.Rows-1)
	if col1 < col0 || row1 < row0 {
		return 0, 0, 0, 0, false
	}
	return row0, row1, col0, col1, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
