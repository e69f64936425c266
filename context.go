package zonalbatch

import (
	"encoding/json"
	"github.com/pkg/errors"
)

//RunContext named parameters of a run: output path placeholders resolve against it and it is
//stored with the run history
type RunContext struct {
	kvs map[string]interface{}
}

//NewRunContext new instance
func NewRunContext() *RunContext {
	return &RunContext{kvs: map[string]interface{}{}}
}

func (ctx *RunContext) Put(key string, value interface{}) {
	ctx.kvs[key] = value
}

func (ctx *RunContext) Exists(key string) bool {
	return ctx.kvs[key] != nil
}

func (ctx *RunContext) Remove(key string) {
	delete(ctx.kvs, key)
}

func (ctx *RunContext) Get(key string, def ...interface{}) interface{} {
	val := ctx.kvs[key]
	if val == nil && len(def) > 0 {
		val = def[0]
	}
	return val
}

func (ctx *RunContext) GetInt64(key string, def ...int64) (int64, error) {
	v := ctx.kvs[key]
	if v == nil && len(def) > 0 {
		return def[0], nil
	}
	switch r := v.(type) {
	case int:
		return int64(r), nil
	case int32:
		return int64(r), nil
	case int64:
		return r, nil
	case float64:
		return int64(r), nil
	}
	return 0, errors.Errorf("value is nil or not int64: %v", v)
}

func (ctx *RunContext) GetString(key string, def ...string) (string, error) {
	v := ctx.kvs[key]
	if v == nil && len(def) > 0 {
		return def[0], nil
	}
	if r, ok := v.(string); ok {
		return r, nil
	}
	return "", errors.Errorf("value is nil or not string: %v", v)
}

func (ctx *RunContext) DeepCopy() *RunContext {
	result := NewRunContext()
	for key, value := range ctx.kvs {
		result.Put(key, value)
	}
	return result
}

func (ctx *RunContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(ctx.kvs)
}

func (ctx *RunContext) UnmarshalJSON(b []byte) error {
	if ctx.kvs == nil {
		ctx.kvs = map[string]interface{}{}
	}
	return json.Unmarshal(b, &ctx.kvs)
}
