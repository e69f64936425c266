package util

import (
	"github.com/bmizerany/assert"
	"testing"
)

func TestCopyStrings(t *testing.T) {
	assert.T(t, CopyStrings(nil) == nil)
	src := []string{"mean", "sum"}
	dst := CopyStrings(src)
	dst[0] = "max"
	assert.Equal(t, "mean", src[0])
}

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"mean", "sum", "values"}, UniqueStrings([]string{"mean", "sum"}, []string{"values", "mean"}))
	assert.Equal(t, []string{}, UniqueStrings())
}

func TestMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5(""))
	str, err := JsonString(map[string]interface{}{"b": 1, "a": "x"})
	assert.Equal(t, nil, err)
	assert.Equal(t, `{"a":"x","b":1}`, str)
	var m map[string]interface{}
	assert.Equal(t, nil, ParseJson(str, &m))
	assert.Equal(t, "x", m["a"])
}
