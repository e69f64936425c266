package table

import (
	"fmt"
	"github.com/pkg/errors"
	"math"
	"strconv"
)

//Convert a single value to the representation of tp, nil stays nil
func Convert(v interface{}, tp ColumnType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch tp {
	case Int64:
		return toInt64(v)
	case Float64:
		return toFloat64(v)
	case String:
		return toString(v), nil
	case Bool:
		return toBool(v)
	case FloatArray:
		return toFloatArray(v)
	}
	return v, nil
}

func toInt64(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, errors.Errorf("value:%v overflows int64", val)
		}
		return int64(val), nil
	case float32:
		return floatToInt64(float64(val))
	case float64:
		return floatToInt64(val)
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(val, 64)
			if ferr != nil {
				return nil, errors.Errorf("can not parse %q as integer", val)
			}
			return floatToInt64(f)
		}
		return i, nil
	}
	return nil, errors.Errorf("can not convert %T to int64", v)
}

func floatToInt64(f float64) (interface{}, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.Errorf("can not convert non-finite value:%v to int64", f)
	}
	return int64(f), nil
}

func toFloat64(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, errors.Errorf("can not parse %q as float", val)
		}
		return f, nil
	case bool:
		if val {
			return 1.0, nil
		}
		return 0.0, nil
	}
	i, err := toInt64(v)
	if err != nil {
		return nil, errors.Errorf("can not convert %T to float64", v)
	}
	return float64(i.(int64)), nil
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

func toBool(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, errors.Errorf("can not parse %q as bool", val)
		}
		return b, nil
	}
	i, err := toInt64(v)
	if err != nil {
		return nil, errors.Errorf("can not convert %T to bool", v)
	}
	return i.(int64) != 0, nil
}

func toFloatArray(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case []float64:
		return val, nil
	case []interface{}:
		result := make([]float64, len(val))
		for i, item := range val {
			f, err := toFloat64(item)
			if err != nil {
				return nil, err
			}
			result[i] = f.(float64)
		}
		return result, nil
	}
	return nil, errors.Errorf("can not convert %T to float64[]", v)
}
