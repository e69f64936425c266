package zonalbatch

import (
	"context"
	"github.com/chararch/zonalbatch/status"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

//TaskFlag options of a task
type TaskFlag int

const (
	//CanCancel the task honours Cancel
	CanCancel TaskFlag = 1 << iota
	//Silent the task is not announced, only its failures are logged
	Silent
)

//TaskFunc body of a task, ctx is canceled when the task is canceled
type TaskFunc func(ctx context.Context, task *Task) (interface{}, error)

//Task a unit of work for a Scheduler. A task with sub tasks runs its body only after
//every sub task finished, whatever the sub task's final status.
type Task struct {
	name     string
	flags    TaskFlag
	fn       TaskFunc
	subTasks []*Task

	canceled  int32
	submitted int32

	mu           sync.Mutex
	status       status.TaskStatus
	result       interface{}
	err          error
	cancelFn     context.CancelFunc
	onCompleted  []func(*Task)
	onTerminated []func(*Task)
}

//NewTask create a pending task
func NewTask(name string, flags TaskFlag, fn TaskFunc) *Task {
	return &Task{
		name:   name,
		flags:  flags,
		fn:     fn,
		status: status.PENDING,
	}
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Flags() TaskFlag {
	return t.flags
}

//AddSubTask declare that t depends on sub, must be called before t is submitted
func (t *Task) AddSubTask(sub *Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subTasks = append(t.subTasks, sub)
}

func (t *Task) SubTasks() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := make([]*Task, len(t.subTasks))
	copy(subs, t.subTasks)
	return subs
}

//OnCompleted register fn to be called when t completes successfully
func (t *Task) OnCompleted(fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCompleted = append(t.onCompleted, fn)
}

//OnTerminated register fn to be called when t fails or is canceled
func (t *Task) OnTerminated(fn func(*Task)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTerminated = append(t.onTerminated, fn)
}

//Cancel raise the cancellation flag of t and its sub tasks, tasks without CanCancel ignore it
func (t *Task) Cancel() {
	if t.flags&CanCancel != 0 {
		atomic.StoreInt32(&t.canceled, 1)
		t.mu.Lock()
		cancel := t.cancelFn
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	for _, sub := range t.SubTasks() {
		sub.Cancel()
	}
}

func (t *Task) IsCanceled() bool {
	return atomic.LoadInt32(&t.canceled) == 1
}

func (t *Task) Status() status.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

//Result value returned by the body, nil until the task completed
func (t *Task) Result() interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) setStatus(st status.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = st
}

func (t *Task) finish(st status.TaskStatus, result interface{}, err error) []func(*Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status, t.result, t.err = st, result, err
	if st == status.COMPLETED {
		return append([]func(*Task){}, t.onCompleted...)
	}
	return append([]func(*Task){}, t.onTerminated...)
}

//Scheduler runs tasks concurrently honouring sub task dependencies
type Scheduler interface {
	//Submit start task and its sub tasks, it returns as soon as the tasks are queued
	Submit(ctx context.Context, task *Task) error
}

//PoolScheduler a Scheduler running task bodies on a bounded goroutine pool. Completion
//callbacks are delivered one at a time, in completion order, on a single dispatcher goroutine.
type PoolScheduler struct {
	pool      *taskPool
	callbacks chan func()
	done      chan struct{}
	closeOnce sync.Once
}

//NewPoolScheduler create a scheduler running at most size task bodies at a time
func NewPoolScheduler(size int) *PoolScheduler {
	s := &PoolScheduler{
		pool:      newTaskPool(size),
		callbacks: make(chan func(), 1024),
		done:      make(chan struct{}),
	}
	go s.dispatchLoop()
	return s
}

func (s *PoolScheduler) SetMaxSize(size int) {
	s.pool.SetMaxSize(size)
}

//Close stop the dispatcher and release the pool, callbacks not yet delivered are dropped
func (s *PoolScheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.pool.Release()
	})
}

func (s *PoolScheduler) Submit(ctx context.Context, task *Task) error {
	select {
	case <-s.done:
		return NewBatchError(ErrCodeConcurrency, "scheduler closed, can not submit task:%v", task.Name())
	default:
	}
	if !atomic.CompareAndSwapInt32(&task.submitted, 0, 1) {
		return NewBatchError(ErrCodeConcurrency, "task:%v already submitted", task.Name())
	}
	s.schedule(ctx, task, func() {})
	return nil
}

//schedule run the sub tasks of t, then t itself once the last of them finished, then done
func (s *PoolScheduler) schedule(ctx context.Context, t *Task, done func()) {
	taskCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancelFn = cancel
	t.mu.Unlock()
	if t.IsCanceled() {
		cancel()
	}
	run := func() {
		s.run(taskCtx, t)
		cancel()
		done()
	}
	subs := t.SubTasks()
	if len(subs) == 0 {
		go run()
		return
	}
	remaining := int32(len(subs))
	for _, sub := range subs {
		atomic.StoreInt32(&sub.submitted, 1)
		s.schedule(taskCtx, sub, func() {
			if atomic.AddInt32(&remaining, -1) == 0 {
				run()
			}
		})
	}
}

func (s *PoolScheduler) run(ctx context.Context, t *Task) {
	var st status.TaskStatus
	var val interface{}
	var err error
	if t.IsCanceled() {
		st, err = status.CANCELED, CanceledError
	} else {
		t.setStatus(status.RUNNING)
		if t.flags&Silent == 0 {
			logger.Info(ctx, "task:%v started", t.name)
		}
		val, err = s.pool.Submit(ctx, func() (interface{}, error) {
			return t.fn(ctx, t)
		}).Get()
		switch {
		case t.IsCanceled():
			st = status.CANCELED
			if err == nil {
				err = CanceledError
			}
		case err != nil:
			st = status.FAILED
		default:
			st = status.COMPLETED
		}
	}
	if st == status.FAILED || t.flags&Silent == 0 {
		logger.Info(ctx, "task:%v finished, status:%v, err:%v", t.name, st, err)
	}
	callbacks := t.finish(st, val, err)
	for _, cb := range callbacks {
		fn := cb
		s.dispatch(func() { fn(t) })
	}
}

func (s *PoolScheduler) dispatch(fn func()) {
	select {
	case s.callbacks <- fn:
	case <-s.done:
	}
}

func (s *PoolScheduler) dispatchLoop() {
	for {
		select {
		case fn := <-s.callbacks:
			s.call(fn)
		case <-s.done:
			return
		}
	}
}

func (s *PoolScheduler) call(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error(context.Background(), "task callback panic:%v, stack:%s", err, debug.Stack())
		}
	}()
	fn()
}
