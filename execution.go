package zonalbatch

import (
	"github.com/chararch/zonalbatch/status"
	"github.com/hashicorp/go-multierror"
	"time"
)

//RunExecution the record of one calculation run
type RunExecution struct {
	RunID        string
	RunKey       string
	LayerName    string
	Raster       string
	RunContext   *RunContext
	Status       status.TaskStatus
	FeatureCount int
	Batches      []*BatchExecution
	CombinedRows int
	OutputRows   int
	OutputPath   string
	CreateTime   time.Time
	StartTime    time.Time
	EndTime      time.Time
	FailError    error
}

func (e *RunExecution) AddBatch(execution *BatchExecution) {
	e.Batches = append(e.Batches, execution)
}

//addFailure collect err into FailError, the run itself keeps going
func (e *RunExecution) addFailure(err error) {
	if err != nil {
		e.FailError = multierror.Append(e.FailError, err)
	}
}

func (e *RunExecution) start() {
	e.StartTime = time.Now()
	e.Status = status.RUNNING
}

func (e *RunExecution) finish(st status.TaskStatus, err error) {
	e.addFailure(err)
	e.Status = st
	e.EndTime = time.Now()
}

//BatchExecution the record of one stats worker
type BatchExecution struct {
	Name      string
	Start     int
	Size      int
	Status    status.TaskStatus
	RowCount  int
	StartTime time.Time
	EndTime   time.Time
	FailError error
}

func newBatchExecution(name string, batch Batch) *BatchExecution {
	return &BatchExecution{
		Name:   name,
		Start:  batch.Start,
		Size:   batch.Size,
		Status: status.PENDING,
	}
}

func (execution *BatchExecution) start() {
	execution.StartTime = time.Now()
	execution.Status = status.RUNNING
}

func (execution *BatchExecution) finish(rows int, err error) {
	execution.EndTime = time.Now()
	if err != nil {
		execution.Status = status.FAILED
		execution.FailError = err
		return
	}
	execution.Status = status.COMPLETED
	execution.RowCount = rows
}
