package zonalbatch

import (
	"context"
	"fmt"
	"github.com/panjf2000/ants/v2"
	"runtime/debug"
)

type taskPool struct {
	pool *ants.Pool
}

func newTaskPool(size int) *taskPool {
	pool, _ := ants.NewPool(size)
	return &taskPool{
		pool: pool,
	}
}

// Future get result in future
type Future interface {
	Get() (interface{}, error)
}

type futureImpl struct {
	ch <-chan interface{}
}

func (f *futureImpl) Get() (interface{}, error) {
	result := <-f.ch
	err := <-f.ch
	if err == nil {
		return result, nil
	}
	e, ok := err.(error)
	if ok {
		return result, e
	}
	return result, fmt.Errorf("future get err:%v", err)
}

//Submit run fn on the pool, a panic in fn is reported as the error of the returned Future
func (pool *taskPool) Submit(ctx context.Context, fn func() (interface{}, error)) Future {
	result := make(chan interface{}, 2)
	err := pool.pool.Submit(func() {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(ctx, "task panic:%v, stack:%s", err, debug.Stack())
				result <- nil
				result <- NewBatchError(ErrCodeGeneral, "panic:%v", err)
				close(result)
			}
		}()
		val, err := fn()
		result <- val
		result <- err
		close(result)
	})
	if err != nil {
		result <- nil
		result <- NewBatchError(ErrCodeConcurrency, "submit task to pool failed", err)
		close(result)
	}
	return &futureImpl{
		ch: result,
	}
}

func (pool *taskPool) Release() {
	pool.pool.Release()
}

func (pool *taskPool) SetMaxSize(size int) {
	pool.pool.Tune(size)
}
