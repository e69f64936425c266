package exact

import (
	"github.com/pkg/errors"
	"math"
	"regexp"
	"sort"
	"strconv"
)

type statKind int

const (
	scalar statKind = iota
	array
)

//Stat a parsed statistic name and the result column it fills
type Stat struct {
	Name   string
	Column string
	kind   statKind
	q      float64
}

//IsArray whether the statistic yields one value per covered cell
func (s Stat) IsArray() bool {
	return s.kind == array
}

var quantileReg = regexp.MustCompile(`^quantile\(q=([0-9]*\.?[0-9]+)\)$`)

var scalarStats = map[string]bool{
	"count": true, "sum": true, "mean": true, "min": true, "max": true,
	"median": true, "majority": true, "minority": true, "variety": true,
	"variance": true, "stdev": true, "coefficient_of_variation": true,
}

var arrayStats = map[string]bool{
	"values": true, "coverage": true, "unique": true, "frac": true,
	"cell_id": true, "center_x": true, "center_y": true,
}

//ParseStats resolve statistic names, unknown names are rejected
func ParseStats(names []string) ([]Stat, error) {
	stats := make([]Stat, 0, len(names))
	for _, name := range names {
		switch {
		case scalarStats[name]:
			stats = append(stats, Stat{Name: name, Column: name, kind: scalar})
		case arrayStats[name]:
			stats = append(stats, Stat{Name: name, Column: name, kind: array})
		default:
			m := quantileReg.FindStringSubmatch(name)
			if m == nil {
				return nil, errors.Errorf("unknown stat:%v", name)
			}
			q, err := strconv.ParseFloat(m[1], 64)
			if err != nil || q < 0 || q > 1 {
				return nil, errors.Errorf("invalid quantile:%v", name)
			}
			column := "quantile_" + strconv.FormatFloat(q*100, 'f', -1, 64)
			stats = append(stats, Stat{Name: name, Column: column, kind: scalar, q: q})
		}
	}
	return stats, nil
}

//cells covered cells of one polygon, in row major order
type cells struct {
	values   []float64
	coverage []float64
	ids      []float64
	centerX  []float64
	centerY  []float64
}

func (c *cells) add(v, cov float64, id int, x, y float64) {
	c.values = append(c.values, v)
	c.coverage = append(c.coverage, cov)
	c.ids = append(c.ids, float64(id))
	c.centerX = append(c.centerX, x)
	c.centerY = append(c.centerY, y)
}

func (c *cells) count() float64 {
	total := 0.0
	for _, w := range c.coverage {
		total += w
	}
	return total
}

func (c *cells) sum() float64 {
	total := 0.0
	for i, v := range c.values {
		total += v * c.coverage[i]
	}
	return total
}

func (c *cells) mean() interface{} {
	n := c.count()
	if n == 0 {
		return nil
	}
	return c.sum() / n
}

func (c *cells) variance() interface{} {
	n := c.count()
	if n == 0 {
		return nil
	}
	m := c.sum() / n
	acc := 0.0
	for i, v := range c.values {
		acc += c.coverage[i] * (v - m) * (v - m)
	}
	return acc / n
}

//histogram coverage per distinct value, values ascending
func (c *cells) histogram() ([]float64, []float64) {
	weights := make(map[float64]float64)
	for i, v := range c.values {
		weights[v] += c.coverage[i]
	}
	keys := make([]float64, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	ws := make([]float64, len(keys))
	for i, k := range keys {
		ws[i] = weights[k]
	}
	return keys, ws
}

//quantile smallest value whose cumulative coverage reaches q of the total
func (c *cells) quantile(q float64) interface{} {
	keys, ws := c.histogram()
	total := 0.0
	for _, w := range ws {
		total += w
	}
	if total == 0 {
		return nil
	}
	acc := 0.0
	for i, k := range keys {
		acc += ws[i]
		if acc >= q*total-1e-12 {
			return k
		}
	}
	return keys[len(keys)-1]
}

func (c *cells) extreme(larger func(a, b float64) bool) interface{} {
	if len(c.values) == 0 {
		return nil
	}
	best := c.values[0]
	for _, v := range c.values[1:] {
		if larger(v, best) {
			best = v
		}
	}
	return best
}

//mode value with the largest (or smallest) coverage, ties go to the smaller value
func (c *cells) mode(most bool) interface{} {
	keys, ws := c.histogram()
	if len(keys) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(keys); i++ {
		if (most && ws[i] > ws[best]) || (!most && ws[i] < ws[best]) {
			best = i
		}
	}
	return keys[best]
}

func (c *cells) compute(s Stat) interface{} {
	switch s.Name {
	case "count":
		return c.count()
	case "sum":
		return c.sum()
	case "mean":
		return c.mean()
	case "min":
		return c.extreme(func(a, b float64) bool { return a < b })
	case "max":
		return c.extreme(func(a, b float64) bool { return a > b })
	case "median":
		return c.quantile(0.5)
	case "majority":
		return c.mode(true)
	case "minority":
		return c.mode(false)
	case "variety":
		keys, _ := c.histogram()
		return int64(len(keys))
	case "variance":
		return c.variance()
	case "stdev":
		if v := c.variance(); v != nil {
			return math.Sqrt(v.(float64))
		}
		return nil
	case "coefficient_of_variation":
		v, m := c.variance(), c.mean()
		if v == nil || m.(float64) == 0 {
			return nil
		}
		return math.Sqrt(v.(float64)) / m.(float64)
	case "values":
		return append([]float64{}, c.values...)
	case "coverage":
		return append([]float64{}, c.coverage...)
	case "cell_id":
		return append([]float64{}, c.ids...)
	case "center_x":
		return append([]float64{}, c.centerX...)
	case "center_y":
		return append([]float64{}, c.centerY...)
	case "unique":
		keys, _ := c.histogram()
		return keys
	case "frac":
		_, ws := c.histogram()
		n := c.count()
		frac := make([]float64, len(ws))
		for i, w := range ws {
			frac[i] = w / n
		}
		return frac
	}
	return c.quantile(s.q)
}
