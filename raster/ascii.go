package raster

import (
	"bufio"
	"github.com/pkg/errors"
	"io"
	"strconv"
	"strings"
)

//ReadASCII parse an ESRI ASCII grid: a ncols/nrows/xll*/yll*/cellsize[/nodata_value] header
//followed by nrows lines of values, top row first
func ReadASCII(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	scanner.Split(bufio.ScanWords)

	header := map[string]float64{}
	var values []float64
	var pending string
	for scanner.Scan() {
		word := scanner.Text()
		if values == nil {
			if pending == "" {
				key := strings.ToLower(word)
				if _, err := strconv.ParseFloat(word, 64); err != nil {
					pending = key
					continue
				}
				values = make([]float64, 0)
			} else {
				v, err := strconv.ParseFloat(word, 64)
				if err != nil {
					return nil, errors.Errorf("invalid value %q for header %v", word, pending)
				}
				header[pending] = v
				pending = ""
				continue
			}
		}
		v, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return nil, errors.Errorf("invalid cell value %q", word)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan ascii grid")
	}
	for _, key := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := header[key]; !ok {
			return nil, errors.Errorf("missing header:%v", key)
		}
	}
	cols, rows, cellSize := int(header["ncols"]), int(header["nrows"]), header["cellsize"]
	xmin, ok := header["xllcorner"]
	if !ok {
		xc, ok2 := header["xllcenter"]
		if !ok2 {
			return nil, errors.New("missing header:xllcorner")
		}
		xmin = xc - cellSize/2
	}
	ymin, ok := header["yllcorner"]
	if !ok {
		yc, ok2 := header["yllcenter"]
		if !ok2 {
			return nil, errors.New("missing header:yllcorner")
		}
		ymin = yc - cellSize/2
	}
	g, err := NewGrid(cols, rows, xmin, ymin+float64(rows)*cellSize, cellSize, values)
	if err != nil {
		return nil, err
	}
	if nodata, ok := header["nodata_value"]; ok {
		g.WithNoData(nodata)
	}
	return g, nil
}
