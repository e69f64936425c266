package zonalbatch

import (
	"fmt"
	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"strings"
	"testing"
)

func TestBatchErr_Format(t *testing.T) {
	batchErr := NewBatchError(ErrCodeGeneral, "new error")
	assert.Equal(t, "batch err, code:general, message:new error", batchErr.Error())
	assert.NotEqual(t, 0, len(batchErr.StackTrace()))
	assert.T(t, strings.Contains(fmt.Sprintf("%+v", batchErr), "TestBatchErr_Format"))

	err := fmt.Errorf("some error raised from db")
	batchErr2 := NewBatchError(ErrCodeDbFail, "wrap error", err)
	assert.Equal(t, "wrap error", batchErr2.Message())
	assert.Equal(t, err, errors.Cause(batchErr2))
	assert.T(t, errors.Is(batchErr2, err))

	batchErr3 := NewBatchError(ErrCodeDbFail, "wrap error:%v", err)
	assert.Equal(t, "wrap error:some error raised from db", batchErr3.Message())
	assert.Equal(t, err, errors.Unwrap(batchErr3))

	batchErr4 := NewBatchError(ErrCodeCompute, "batch:%v rows:%d", "b0", 3)
	assert.Equal(t, "batch:b0 rows:3", batchErr4.Message())
	assert.Equal(t, nil, errors.Unwrap(batchErr4))
}

func TestBatchErr_Keep(t *testing.T) {
	inner := NewBatchError(ErrCodePersist, "write failed")
	assert.T(t, NewBatchError(ErrCodePersist, "", inner) == inner)
	outer := NewBatchError(ErrCodeGeneral, "save result", inner)
	assert.Equal(t, ErrCodeGeneral, outer.Code())
	assert.Equal(t, inner, errors.Unwrap(outer))
}
