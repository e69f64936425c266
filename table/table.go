// Package table holds the column oriented result tables passed between stats workers,
// the aggregation coordinator and the final join.
package table

import (
	"fmt"
	"github.com/pkg/errors"
)

//ColumnType declared type of a column, nil values are allowed in every type
type ColumnType int

const (
	//Any column without a single declared type
	Any ColumnType = iota
	//Int64 values are int64
	Int64
	//Float64 values are float64
	Float64
	//String values are string
	String
	//Bool values are bool
	Bool
	//FloatArray values are []float64
	FloatArray
)

var typeNames = map[ColumnType]string{
	Any:        "any",
	Int64:      "int64",
	Float64:    "float64",
	String:     "string",
	Bool:       "bool",
	FloatArray: "float64[]",
}

func (tp ColumnType) String() string {
	if name, ok := typeNames[tp]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", int(tp))
}

func (tp ColumnType) numeric() bool {
	return tp == Int64 || tp == Float64
}

//Column a named, typed sequence of values
type Column struct {
	Name   string
	Type   ColumnType
	Values []interface{}
}

//NewColumn create a column holding values as given
func NewColumn(name string, tp ColumnType, values ...interface{}) *Column {
	if values == nil {
		values = make([]interface{}, 0)
	}
	return &Column{Name: name, Type: tp, Values: values}
}

func (c *Column) Len() int {
	return len(c.Values)
}

func (c *Column) clone() *Column {
	values := make([]interface{}, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Type: c.Type, Values: values}
}

//Table an ordered set of equally long columns
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

//New build a table, column names must be unique and all columns equally long
func New(columns ...*Column) (*Table, error) {
	t := Empty()
	for _, c := range columns {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

//Empty a table without columns and rows
func Empty() *Table {
	return &Table{
		columns: make([]*Column, 0),
		index:   make(map[string]int),
	}
}

//AddColumn append a column, the first column fixes the row count
func (t *Table) AddColumn(c *Column) error {
	if c == nil {
		return errors.New("column must not be nil")
	}
	if _, ok := t.index[c.Name]; ok {
		return errors.Errorf("duplicate column:%v", c.Name)
	}
	if len(t.columns) > 0 && c.Len() != t.rows {
		return errors.Errorf("column:%v has %d rows, table has %d", c.Name, c.Len(), t.rows)
	}
	if len(t.columns) == 0 {
		t.rows = c.Len()
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

func (t *Table) NumRows() int {
	return t.rows
}

func (t *Table) NumCols() int {
	return len(t.columns)
}

//Shape (rows, columns)
func (t *Table) Shape() (int, int) {
	return t.rows, len(t.columns)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

//Value value at row of the named column, nil when the column does not exist
func (t *Table) Value(row int, name string) interface{} {
	c, ok := t.Column(name)
	if !ok {
		return nil
	}
	return c.Values[row]
}

//Row the values of one row keyed by column name
func (t *Table) Row(row int) map[string]interface{} {
	m := make(map[string]interface{}, len(t.columns))
	for _, c := range t.columns {
		m[c.Name] = c.Values[row]
	}
	return m
}

//Clone copy the table structure, values themselves are shared
func (t *Table) Clone() *Table {
	result := Empty()
	for _, c := range t.columns {
		result.AddColumn(c.clone())
	}
	result.rows = t.rows
	return result
}

//Rename return a copy with columns renamed according to mapping, unmapped columns keep their name
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	result := Empty()
	for _, c := range t.columns {
		nc := c.clone()
		if newName, ok := mapping[c.Name]; ok {
			nc.Name = newName
		}
		if err := result.AddColumn(nc); err != nil {
			return nil, errors.Wrap(err, "rename columns")
		}
	}
	result.rows = t.rows
	return result, nil
}

//Cast return a copy where the named column is converted to tp
func (t *Table) Cast(name string, tp ColumnType) (*Table, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.Errorf("can not cast missing column:%v", name)
	}
	result := t.Clone()
	c := result.columns[i]
	for row, v := range c.Values {
		cv, err := Convert(v, tp)
		if err != nil {
			return nil, errors.Wrapf(err, "cast column:%v row:%d to %v", name, row, tp)
		}
		c.Values[row] = cv
	}
	c.Type = tp
	return result, nil
}

//Concat stack tables vertically. Columns are matched by name in order of first appearance,
//missing cells become nil. A column seen with int64 and float64 types becomes float64, any
//other type mix becomes Any.
func Concat(tables ...*Table) *Table {
	names := make([]string, 0)
	types := make(map[string]ColumnType)
	total := 0
	for _, t := range tables {
		if t == nil {
			continue
		}
		total += t.rows
		for _, c := range t.columns {
			tp, seen := types[c.Name]
			if !seen {
				names = append(names, c.Name)
				types[c.Name] = c.Type
				continue
			}
			types[c.Name] = commonType(tp, c.Type)
		}
	}
	result := Empty()
	for _, name := range names {
		tp := types[name]
		values := make([]interface{}, 0, total)
		for _, t := range tables {
			if t == nil {
				continue
			}
			c, ok := t.Column(name)
			if !ok {
				for i := 0; i < t.rows; i++ {
					values = append(values, nil)
				}
				continue
			}
			for _, v := range c.Values {
				if tp == Float64 && c.Type == Int64 {
					v, _ = Convert(v, Float64)
				}
				values = append(values, v)
			}
		}
		result.AddColumn(NewColumn(name, tp, values...))
	}
	result.rows = total
	return result
}

func commonType(a, b ColumnType) ColumnType {
	if a == b {
		return a
	}
	if a.numeric() && b.numeric() {
		return Float64
	}
	return Any
}
