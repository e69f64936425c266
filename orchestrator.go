package zonalbatch

import (
	"context"
	"fmt"
	"github.com/chararch/zonalbatch/exact"
	"github.com/chararch/zonalbatch/file"
	"github.com/chararch/zonalbatch/status"
	"github.com/chararch/zonalbatch/table"
	"github.com/google/uuid"
	"reflect"
	"runtime/debug"
	"sync"
	"time"
)

const coordinatorName = "Zonal ExactExtract task"

const (
	msgRunning  = "A calculation is already running"
	msgCanceled = "Zonal ExactExtract task canceled"
)

//runState everything a run owns, reset by clean
type runState struct {
	ctx         context.Context
	descriptor  *Descriptor
	tasks       []*Task
	results     *ResultList
	coordinator *Task
	inputTable  *table.Table
	execution   *RunExecution
}

//Orchestrator turns a calculation request into worker tasks fanned in by a coordinator task,
//then joins and persists the combined result. Calculate returns once the tasks are submitted,
//the rest is driven by task callbacks.
type Orchestrator struct {
	scheduler Scheduler
	extractor Extractor
	console   Console
	notifier  Notifier
	action    Action
	progress  ProgressBar
	project   Project
	persister Persister
	publisher *Publisher
	listeners []RunListener

	mu  sync.Mutex
	run runState
}

type orchestratorBuilder struct {
	o *Orchestrator
}

//NewOrchestrator initialize an orchestrator builder, every collaborator has a default
func NewOrchestrator() *orchestratorBuilder {
	console := &logConsole{}
	return &orchestratorBuilder{o: &Orchestrator{
		console:   console,
		notifier:  &consoleNotifier{console: console},
		action:    NewToggleAction(),
		progress:  &IntProgress{},
		project:   NewMemoryProject(),
		persister: &FilePersister{Store: &file.LocalFileSystem{}},
		listeners: make([]RunListener, 0),
	}}
}

func (builder *orchestratorBuilder) Scheduler(s Scheduler) *orchestratorBuilder {
	builder.o.scheduler = s
	return builder
}

func (builder *orchestratorBuilder) Extractor(e Extractor) *orchestratorBuilder {
	builder.o.extractor = e
	return builder
}

//Console set the console, the notifier follows it unless set explicitly
func (builder *orchestratorBuilder) Console(c Console) *orchestratorBuilder {
	builder.o.console = c
	if n, ok := builder.o.notifier.(*consoleNotifier); ok {
		n.console = c
	}
	return builder
}

func (builder *orchestratorBuilder) Notifier(n Notifier) *orchestratorBuilder {
	builder.o.notifier = n
	return builder
}

func (builder *orchestratorBuilder) Action(a Action) *orchestratorBuilder {
	builder.o.action = a
	return builder
}

func (builder *orchestratorBuilder) Progress(p ProgressBar) *orchestratorBuilder {
	builder.o.progress = p
	return builder
}

func (builder *orchestratorBuilder) Project(p Project) *orchestratorBuilder {
	builder.o.project = p
	return builder
}

func (builder *orchestratorBuilder) Persister(p Persister) *orchestratorBuilder {
	builder.o.persister = p
	return builder
}

func (builder *orchestratorBuilder) Publisher(p *Publisher) *orchestratorBuilder {
	builder.o.publisher = p
	return builder
}

func (builder *orchestratorBuilder) Listener(l ...RunListener) *orchestratorBuilder {
	builder.o.listeners = append(builder.o.listeners, l...)
	return builder
}

func (builder *orchestratorBuilder) Build() *Orchestrator {
	o := builder.o
	if o.scheduler == nil {
		o.scheduler = DefaultScheduler()
	}
	if o.extractor == nil {
		o.extractor = exact.NewExtractor()
	}
	return o
}

//Calculate validate values and submit the calculation. It returns the validation error, a
//concurrency error while a previous run is pending, or a submission error; computation and
//persistence failures are reported through the console.
func (o *Orchestrator) Calculate(ctx context.Context, values FormValues) (err BatchError) {
	o.action.SetEnabled(false)
	defer o.action.SetEnabled(true)
	defer func() {
		if r := recover(); r != nil {
			err = NewBatchError(ErrCodeGeneral, "calculate panic:%v", r)
			logger.Error(ctx, "ERROR: %v, stack:%s", err, debug.Stack())
			o.console.Error(err.Message())
		}
	}()

	if o.Running() {
		o.notifier.Warn(msgRunning)
		return ConcurrentError
	}
	descriptor, err := BuildDescriptor(values)
	if err != nil {
		logger.Warn(ctx, "invalid calculation request: %v", err.Message())
		o.notifier.Warn(err.Message())
		return err
	}
	execution, err := o.newRunExecution(descriptor)
	if err != nil {
		o.console.Error(err.Message())
		return err
	}

	for _, listener := range o.listeners {
		if e := listener.BeforeRun(execution); e != nil {
			logger.Error(ctx, "run listener executing error, runId:%v, listener:%v, err:%v", execution.RunID, reflect.TypeOf(listener).String(), e)
			o.console.Error(e.Message())
			return e
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run.coordinator != nil {
		o.notifier.Warn(msgRunning)
		return ConcurrentError
	}
	if err = o.process(ctx, descriptor, execution); err != nil {
		logger.Error(ctx, "ERROR: %v", err)
		o.console.Error(err.Message())
		o.clean()
		return err
	}
	return nil
}

func (o *Orchestrator) newRunExecution(d *Descriptor) (*RunExecution, BatchError) {
	now := time.Now()
	runCtx := NewRunContext()
	runCtx.Put("run_id", uuid.New().String())
	runCtx.Put("layer", d.Layer().Name())
	runCtx.Put("id_field", d.IDField())
	runCtx.Put("jobs", d.ParallelJobs())
	runCtx.Put("prefix", d.Prefix())
	runCtx.Put("date", now)
	execution := &RunExecution{
		RunID:        runCtx.Get("run_id").(string),
		RunKey:       d.Key(),
		LayerName:    d.Layer().Name(),
		Raster:       d.Raster(),
		RunContext:   runCtx,
		Status:       status.PENDING,
		FeatureCount: d.Layer().FeatureCount(),
		CreateTime:   now,
	}
	if !d.Virtual() {
		path, err := (&FilePath{NamePattern: d.OutputPath()}).Format(runCtx)
		if err != nil {
			return nil, NewBatchError(ErrCodeValidation, "invalid output path:%v", d.OutputPath(), err)
		}
		execution.OutputPath = path
	}
	return execution, nil
}

//process partition the layer, build one worker per batch under a single coordinator and submit it
func (o *Orchestrator) process(ctx context.Context, d *Descriptor, execution *RunExecution) BatchError {
	layer := d.Layer()
	batches, err := Partition(layer.FeatureCount(), d.ParallelJobs())
	if err != nil {
		return err
	}
	results := NewResultList()
	agg := &coordinator{results: results, indexColumn: d.IDField(), indexType: d.IDType(), prefix: d.Prefix()}
	coordinatorTask := NewTask(coordinatorName, CanCancel, agg.run)
	coordinatorTask.OnCompleted(o.onCoordinatorCompleted)
	coordinatorTask.OnTerminated(o.onCoordinatorTerminated)

	tasks := make([]*Task, 0, len(batches))
	for _, batch := range batches {
		layer.SelectByIDs(batch.IDs())
		polygons := layer.Materialize(layer.SelectedFeatureIDs())
		name := workerName(batch)
		batchExecution := newBatchExecution(name, batch)
		execution.AddBatch(batchExecution)
		worker := &statsWorker{
			batch:     batch,
			raster:    d.Raster(),
			polygons:  polygons,
			idField:   d.IDField(),
			stats:     d.Stats(),
			extractor: o.extractor,
			results:   results,
			console:   o.console,
			execution: batchExecution,
		}
		task := NewTask(name, Silent|CanCancel, worker.run)
		task.OnCompleted(o.onWorkerFinished)
		task.OnTerminated(o.onWorkerFinished)
		coordinatorTask.AddSubTask(task)
		tasks = append(tasks, task)
	}
	layer.RemoveSelection()
	logger.Info(ctx, "run:%v split %d features into %d batches", execution.RunID, layer.FeatureCount(), len(batches))

	o.run = runState{
		ctx:         ctx,
		descriptor:  d,
		tasks:       tasks,
		results:     results,
		coordinator: coordinatorTask,
		inputTable:  layer.AttributeTable(),
		execution:   execution,
	}
	execution.start()
	o.saveRun(ctx)
	if e := o.scheduler.Submit(ctx, coordinatorTask); e != nil {
		execution.finish(status.FAILED, e)
		o.saveRun(ctx)
		return NewBatchError(ErrCodeConcurrency, "submit %v failed", coordinatorName, e)
	}
	return nil
}

//updateProgress the coordinator counts as one more unit of work than the workers
func (o *Orchestrator) updateProgress() {
	change := 100 / (len(o.run.tasks) + 1)
	o.progress.SetValue(o.progress.Value() + change)
}

//isCurrent whether task belongs to the run in progress
func (o *Orchestrator) isCurrent(task *Task) bool {
	if o.run.coordinator == nil {
		return false
	}
	if task == o.run.coordinator {
		return true
	}
	for _, t := range o.run.tasks {
		if t == task {
			return true
		}
	}
	return false
}

func (o *Orchestrator) onWorkerFinished(task *Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.isCurrent(task) {
		return
	}
	o.updateProgress()
	execution := o.run.execution
	if task.Status() != status.COMPLETED {
		execution.addFailure(task.Err())
	}
	for _, b := range execution.Batches {
		if b.Name == task.Name() {
			if err := saveBatchExecution(o.run.ctx, execution.RunID, b); err != nil {
				logger.Error(o.run.ctx, "save batch execution failed, runId:%v, batch:%v, err:%v", execution.RunID, b.Name, err)
			}
		}
	}
}

func (o *Orchestrator) onCoordinatorCompleted(task *Task) {
	o.endRun(task, func(ctx context.Context, execution *RunExecution) (status.TaskStatus, error) {
		o.updateProgress()
		combined, _ := task.Result().(*table.Table)
		if combined == nil {
			combined = table.Empty()
		}
		if err := o.saveResult(ctx, combined); err != nil {
			return status.FAILED, err
		}
		if execution.FailError != nil {
			logger.Warn(ctx, "run:%v completed without the rows of failed batches: %v", execution.RunID, execution.FailError)
		}
		return status.COMPLETED, nil
	})
}

func (o *Orchestrator) onCoordinatorTerminated(task *Task) {
	o.endRun(task, func(ctx context.Context, execution *RunExecution) (status.TaskStatus, error) {
		if task.Status() == status.CANCELED {
			logger.Warn(ctx, msgCanceled)
			o.console.Warning(msgCanceled)
			return status.CANCELED, nil
		}
		logger.Error(ctx, "ERROR: %v", task.Err())
		o.console.Error(fmt.Sprintf("%v failed: %v", task.Name(), task.Err()))
		return status.FAILED, task.Err()
	})
}

//endRun close the run task belongs to with the status decided by body, then re-enable the
//action and notify listeners outside the lock
func (o *Orchestrator) endRun(task *Task, body func(ctx context.Context, execution *RunExecution) (status.TaskStatus, error)) {
	execution := o.closeRun(task, body)
	if execution == nil {
		return
	}
	ctx := context.Background()
	o.action.SetEnabled(true)
	logger.Info(ctx, "run:%v finished, status:%v, combined rows:%d, output rows:%d", execution.RunID, execution.Status, execution.CombinedRows, execution.OutputRows)
	for _, listener := range o.listeners {
		if e := listener.AfterRun(execution); e != nil {
			logger.Error(ctx, "run listener executing error, runId:%v, listener:%v, err:%v", execution.RunID, reflect.TypeOf(listener).String(), e)
		}
	}
}

//closeRun record the final status and clean up under o.mu. A panic fails the run and drops its
//state, nil means task is not part of the current run.
func (o *Orchestrator) closeRun(task *Task, body func(ctx context.Context, execution *RunExecution) (status.TaskStatus, error)) (execution *RunExecution) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.isCurrent(task) {
		return nil
	}
	ctx := o.run.ctx
	execution = o.run.execution
	defer func() {
		if r := recover(); r != nil {
			err := NewBatchError(ErrCodeGeneral, "finish run panic:%v", r)
			logger.Error(ctx, "ERROR: %v, stack:%s", err, debug.Stack())
			execution.finish(status.FAILED, err)
			o.run = runState{}
		}
	}()
	st, err := body(ctx, execution)
	execution.finish(st, err)
	o.saveRun(ctx)
	o.clean()
	return execution
}

func (o *Orchestrator) saveRun(ctx context.Context) {
	if err := saveRunExecution(ctx, o.run.execution); err != nil {
		logger.Error(ctx, "save run execution failed, runId:%v, err:%v", o.run.execution.RunID, err)
	}
}

//Cancel raise the cancellation flag of the pending run, if any
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	c := o.run.coordinator
	o.mu.Unlock()
	if c != nil {
		c.Cancel()
	}
}

//Running whether a run is pending
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run.coordinator != nil
}

//clean reset the run state and the progress, calling it again changes nothing
func (o *Orchestrator) clean() {
	o.run = runState{}
	o.progress.SetValue(0)
}

//storeOf the storage outputs are written to
func (o *Orchestrator) storeOf() file.FileStorage {
	if fp, ok := o.persister.(*FilePersister); ok && fp.Store != nil {
		return fp.Store
	}
	return &file.LocalFileSystem{}
}
