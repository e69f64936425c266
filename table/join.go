package table

import (
	"github.com/pkg/errors"
	"reflect"
)

const (
	leftSuffix  = "_x"
	rightSuffix = "_y"
)

//LeftJoin keep every row of left and attach the columns of right whose key equals the left key.
//Left rows without a match get nil in the right columns, left rows with several matches are
//repeated once per match. Non-key columns present on both sides get the _x / _y suffixes.
//Both key columns must have the same type, keys are compared as typed values.
func LeftJoin(left, right *Table, on string) (*Table, error) {
	lk, ok := left.Column(on)
	if !ok {
		return nil, errors.Errorf("left table has no join column:%v", on)
	}
	rk, ok := right.Column(on)
	if !ok {
		return nil, errors.Errorf("right table has no join column:%v", on)
	}
	if lk.Type != rk.Type {
		return nil, errors.Errorf("can not join on column:%v, key types %v and %v differ", on, lk.Type, rk.Type)
	}
	if lk.Type == FloatArray {
		return nil, errors.Errorf("can not join on array column:%v", on)
	}
	matches := make(map[interface{}][]int)
	for row, key := range rk.Values {
		if key == nil {
			continue
		}
		if !reflect.TypeOf(key).Comparable() {
			return nil, errors.Errorf("join key:%v of type %T is not comparable", key, key)
		}
		matches[key] = append(matches[key], row)
	}

	leftRows := make([]int, 0, left.rows)
	rightRows := make([]int, 0, left.rows)
	for row, key := range lk.Values {
		var found []int
		if key != nil && reflect.TypeOf(key).Comparable() {
			found = matches[key]
		}
		if len(found) == 0 {
			leftRows = append(leftRows, row)
			rightRows = append(rightRows, -1)
			continue
		}
		for _, r := range found {
			leftRows = append(leftRows, row)
			rightRows = append(rightRows, r)
		}
	}

	result := Empty()
	for _, c := range left.columns {
		name := c.Name
		if name != on {
			if _, clash := right.Column(name); clash {
				name += leftSuffix
			}
		}
		values := make([]interface{}, len(leftRows))
		for i, r := range leftRows {
			values[i] = c.Values[r]
		}
		if err := result.AddColumn(NewColumn(name, c.Type, values...)); err != nil {
			return nil, errors.Wrap(err, "left join")
		}
	}
	for _, c := range right.columns {
		if c.Name == on {
			continue
		}
		name := c.Name
		if _, clash := left.Column(name); clash {
			name += rightSuffix
		}
		values := make([]interface{}, len(rightRows))
		for i, r := range rightRows {
			if r >= 0 {
				values[i] = c.Values[r]
			}
		}
		if err := result.AddColumn(NewColumn(name, c.Type, values...)); err != nil {
			return nil, errors.Wrap(err, "left join")
		}
	}
	result.rows = len(leftRows)
	return result, nil
}
