package table

import (
	"github.com/bmizerany/assert"
	"math"
	"testing"
)

func mustTable(t *testing.T, columns ...*Column) *Table {
	tb, err := New(columns...)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return tb
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(NewColumn("id", Int64, int64(1)), NewColumn("id", Int64, int64(2)))
	assert.NotEqual(t, nil, err)
	_, err = New(NewColumn("id", Int64, int64(1)), NewColumn("mean", Float64, 1.0, 2.0))
	assert.NotEqual(t, nil, err)
}

func TestTable_Shape(t *testing.T) {
	tb := mustTable(t, NewColumn("id", Int64, int64(1), int64(2)), NewColumn("mean", Float64, 1.5, nil))
	rows, cols := tb.Shape()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, []string{"id", "mean"}, tb.ColumnNames())
	assert.Equal(t, map[string]interface{}{"id": int64(2), "mean": nil}, tb.Row(1))
	assert.Equal(t, nil, tb.Value(0, "missing"))
}

func TestConcat_PromotesMixedNumericTypes(t *testing.T) {
	a := mustTable(t, NewColumn("id", Int64, int64(1), int64(2)), NewColumn("sum", Float64, 1.0, 2.0))
	b := mustTable(t, NewColumn("id", Float64, 3.0), NewColumn("sum", Float64, 3.0), NewColumn("values", FloatArray, []float64{1, 2}))
	c := Concat(a, nil, b)
	assert.Equal(t, 3, c.NumRows())
	id, _ := c.Column("id")
	assert.Equal(t, Float64, id.Type)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, id.Values)
	values, _ := c.Column("values")
	assert.Equal(t, FloatArray, values.Type)
	assert.Equal(t, []interface{}{nil, nil, []float64{1, 2}}, values.Values)
}

func TestConcat_MixedTypesBecomeAny(t *testing.T) {
	a := mustTable(t, NewColumn("id", Int64, int64(1)))
	b := mustTable(t, NewColumn("id", String, "2"))
	c := Concat(a, b)
	id, _ := c.Column("id")
	assert.Equal(t, Any, id.Type)
	assert.Equal(t, []interface{}{int64(1), "2"}, id.Values)
}

func TestConcat_Empty(t *testing.T) {
	c := Concat()
	rows, cols := c.Shape()
	assert.Equal(t, 0, rows)
	assert.Equal(t, 0, cols)
}

func TestTable_Cast(t *testing.T) {
	tb := mustTable(t, NewColumn("id", Float64, 1.0, nil, 7.0))
	cast, err := tb.Cast("id", Int64)
	assert.Equal(t, nil, err)
	id, _ := cast.Column("id")
	assert.Equal(t, Int64, id.Type)
	assert.Equal(t, []interface{}{int64(1), nil, int64(7)}, id.Values)
	orig, _ := tb.Column("id")
	assert.Equal(t, Float64, orig.Type)

	_, err = mustTable(t, NewColumn("id", Float64, math.NaN())).Cast("id", Int64)
	assert.NotEqual(t, nil, err)
	_, err = tb.Cast("missing", Int64)
	assert.NotEqual(t, nil, err)

	str, err := mustTable(t, NewColumn("id", Int64, int64(12))).Cast("id", String)
	assert.Equal(t, nil, err)
	assert.Equal(t, "12", str.Value(0, "id"))
}

func TestTable_Rename(t *testing.T) {
	tb := mustTable(t, NewColumn("id", Int64, int64(1)), NewColumn("mean", Float64, 2.0))
	renamed, err := tb.Rename(map[string]string{"mean": "elev_mean"})
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"id", "elev_mean"}, renamed.ColumnNames())
	assert.Equal(t, []string{"id", "mean"}, tb.ColumnNames())

	_, err = tb.Rename(map[string]string{"mean": "id"})
	assert.NotEqual(t, nil, err)
}

func TestLeftJoin(t *testing.T) {
	left := mustTable(t,
		NewColumn("id", Int64, int64(1), int64(2), int64(3)),
		NewColumn("name", String, "a", "b", "c"),
		NewColumn("mean", Float64, 0.0, 0.0, 0.0),
	)
	right := mustTable(t,
		NewColumn("id", Int64, int64(3), int64(1)),
		NewColumn("mean", Float64, 30.0, 10.0),
		NewColumn("sum", Float64, 300.0, 100.0),
	)
	joined, err := LeftJoin(left, right, "id")
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"id", "name", "mean_x", "mean_y", "sum"}, joined.ColumnNames())
	assert.Equal(t, 3, joined.NumRows())
	assert.Equal(t, 10.0, joined.Value(0, "mean_y"))
	assert.Equal(t, nil, joined.Value(1, "mean_y"))
	assert.Equal(t, nil, joined.Value(1, "sum"))
	assert.Equal(t, 300.0, joined.Value(2, "sum"))
	assert.Equal(t, "c", joined.Value(2, "name"))
}

func TestLeftJoin_DuplicateKeysRepeatRows(t *testing.T) {
	left := mustTable(t, NewColumn("id", Int64, int64(1), int64(2)))
	right := mustTable(t, NewColumn("id", Int64, int64(1), int64(1)), NewColumn("sum", Float64, 1.0, 2.0))
	joined, err := LeftJoin(left, right, "id")
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, joined.NumRows())
	sum, _ := joined.Column("sum")
	assert.Equal(t, []interface{}{1.0, 2.0, nil}, sum.Values)
}

func TestLeftJoin_KeyTypesMustMatch(t *testing.T) {
	left := mustTable(t, NewColumn("id", Int64, int64(1)))
	right := mustTable(t, NewColumn("id", Float64, 1.0), NewColumn("sum", Float64, 1.0))
	_, err := LeftJoin(left, right, "id")
	assert.NotEqual(t, nil, err)
	_, err = LeftJoin(left, right, "missing")
	assert.NotEqual(t, nil, err)
}

func TestConvert(t *testing.T) {
	v, err := Convert("42", Int64)
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(42), v)
	v, err = Convert(int64(3), Float64)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3.0, v)
	v, err = Convert([]interface{}{1.0, int64(2)}, FloatArray)
	assert.Equal(t, nil, err)
	assert.Equal(t, []float64{1, 2}, v)
	v, err = Convert(nil, Int64)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, v)
	_, err = Convert("abc", Float64)
	assert.NotEqual(t, nil, err)
	v, err = Convert(2.5, String)
	assert.Equal(t, nil, err)
	assert.Equal(t, "2.5", v)
}
