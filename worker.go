package zonalbatch

import (
	"context"
	"fmt"
	"github.com/chararch/zonalbatch/table"
	"github.com/chararch/zonalbatch/vector"
)

//Extractor computes exact overlap statistics of a raster for every polygon of a layer. The
//result holds one row per polygon: the includeCols attributes unchanged, then one column per stat.
type Extractor interface {
	Extract(ctx context.Context, rasterURI string, polygons *vector.Layer, stats []string, includeCols []string) (*table.Table, error)
}

//statsWorker computes the partial table of one batch
type statsWorker struct {
	batch     Batch
	raster    string
	polygons  *vector.Layer
	idField   string
	stats     []string
	extractor Extractor
	results   *ResultList
	console   Console
	execution *BatchExecution
}

//run is the body of a worker task. A failure is written to the console and nothing is appended.
func (w *statsWorker) run(ctx context.Context, task *Task) (rows interface{}, err error) {
	w.execution.start()
	defer func() {
		if r := recover(); r != nil {
			err = NewBatchError(ErrCodeCompute, "%v panic:%v", task.Name(), r)
		}
		if err != nil {
			w.console.Error(err.Error())
			w.execution.finish(0, err)
			rows = nil
		}
	}()
	partial, e := w.extractor.Extract(ctx, w.raster, w.polygons, w.stats, []string{w.idField})
	if e != nil {
		return nil, NewBatchError(ErrCodeCompute, "%v failed for features [%d, %d)", task.Name(), w.batch.Start, w.batch.End(), e)
	}
	if _, ok := partial.Column(w.idField); !ok {
		return nil, NewBatchError(ErrCodeCompute, "%v result misses the id column:%v", task.Name(), w.idField)
	}
	w.results.Append(partial)
	w.execution.finish(partial.NumRows(), nil)
	logger.Debug(ctx, "%v appended %d rows", task.Name(), partial.NumRows())
	return partial.NumRows(), nil
}

func workerName(batch Batch) string {
	return fmt.Sprintf("calculation subtask %d", batch.Start)
}
