package zonalbatch

import (
	"context"
	"database/sql"
	"github.com/chararch/zonalbatch/status"
	"github.com/chararch/zonalbatch/util"
	"github.com/pkg/errors"
	"time"
)

var schema = []string{
	`create table if not exists zonal_run (
	run_id varchar(64) not null primary key,
	run_key varchar(64) not null,
	layer_name varchar(255) not null,
	raster varchar(1024) not null,
	run_params text,
	status varchar(16) not null,
	feature_count int not null,
	batch_count int not null,
	combined_rows int not null,
	output_rows int not null,
	output_path varchar(1024) not null,
	create_time datetime not null,
	start_time datetime null,
	end_time datetime null,
	fail_error text
)`,
	`create table if not exists zonal_batch (
	run_id varchar(64) not null,
	batch_name varchar(255) not null,
	start_index int not null,
	size int not null,
	status varchar(16) not null,
	row_count int not null,
	start_time datetime null,
	end_time datetime null,
	fail_error text,
	primary key (run_id, batch_name)
)`,
}

//CreateSchema create the run history tables if they do not exist
func CreateSchema(ctx context.Context) BatchError {
	if db == nil {
		return NewBatchError(ErrCodeDbFail, "db is not set")
	}
	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return NewBatchError(ErrCodeDbFail, "create schema failed", err)
		}
	}
	return nil
}

type zonalRun struct {
	RunID        string
	RunKey       string
	LayerName    string
	Raster       string
	RunParams    sql.NullString
	Status       string
	FeatureCount int
	BatchCount   int
	CombinedRows int
	OutputRows   int
	OutputPath   string
	CreateTime   time.Time
	StartTime    sql.NullTime
	EndTime      sql.NullTime
	FailError    sql.NullString
}

type zonalBatch struct {
	RunID     string
	BatchName string
	Start     int
	Size      int
	Status    string
	RowCount  int
	StartTime sql.NullTime
	EndTime   sql.NullTime
	FailError sql.NullString
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func errorText(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

//saveRunExecution insert or update the run row, a nil db disables recording
func saveRunExecution(ctx context.Context, execution *RunExecution) BatchError {
	if db == nil {
		return nil
	}
	params := sql.NullString{}
	if execution.RunContext != nil {
		str, err := util.JsonString(execution.RunContext)
		if err != nil {
			return NewBatchError(ErrCodeGeneral, "serialize run context failed", err)
		}
		params = sql.NullString{String: str, Valid: true}
	}
	_, err := db.ExecContext(ctx, "replace into zonal_run(run_id, run_key, layer_name, raster, run_params, status, feature_count, batch_count, combined_rows, output_rows, output_path, create_time, start_time, end_time, fail_error) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		execution.RunID, execution.RunKey, execution.LayerName, execution.Raster, params, string(execution.Status),
		execution.FeatureCount, len(execution.Batches), execution.CombinedRows, execution.OutputRows, execution.OutputPath,
		execution.CreateTime, nullTime(execution.StartTime), nullTime(execution.EndTime), errorText(execution.FailError))
	if err != nil {
		return NewBatchError(ErrCodeDbFail, "save run:%v failed", execution.RunID, err)
	}
	return nil
}

func saveBatchExecution(ctx context.Context, runID string, execution *BatchExecution) BatchError {
	if db == nil {
		return nil
	}
	_, err := db.ExecContext(ctx, "replace into zonal_batch(run_id, batch_name, start_index, size, status, row_count, start_time, end_time, fail_error) values(?, ?, ?, ?, ?, ?, ?, ?, ?)",
		runID, execution.Name, execution.Start, execution.Size, string(execution.Status), execution.RowCount,
		nullTime(execution.StartTime), nullTime(execution.EndTime), errorText(execution.FailError))
	if err != nil {
		return NewBatchError(ErrCodeDbFail, "save batch:%v of run:%v failed", execution.Name, runID, err)
	}
	return nil
}

const runColumns = "run_id, run_key, layer_name, raster, run_params, status, feature_count, batch_count, combined_rows, output_rows, output_path, create_time, start_time, end_time, fail_error"

//FindRunExecution load a recorded run with its batches, nil when unknown
func FindRunExecution(ctx context.Context, runID string) (*RunExecution, BatchError) {
	executions, err := queryRunExecutions(ctx, "select "+runColumns+" from zonal_run where run_id=?", runID)
	if err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return nil, nil
	}
	return executions[0], nil
}

//FindRunExecutions load the latest recorded runs, newest first
func FindRunExecutions(ctx context.Context, limit int) ([]*RunExecution, BatchError) {
	return queryRunExecutions(ctx, "select "+runColumns+" from zonal_run order by create_time desc limit ?", limit)
}

func queryRunExecutions(ctx context.Context, query string, args ...interface{}) ([]*RunExecution, BatchError) {
	if db == nil {
		return nil, NewBatchError(ErrCodeDbFail, "db is not set")
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query runs failed", err)
	}
	defer rows.Close()
	records := make([]*zonalRun, 0)
	for rows.Next() {
		r := &zonalRun{}
		err = rows.Scan(&r.RunID, &r.RunKey, &r.LayerName, &r.Raster, &r.RunParams, &r.Status, &r.FeatureCount, &r.BatchCount,
			&r.CombinedRows, &r.OutputRows, &r.OutputPath, &r.CreateTime, &r.StartTime, &r.EndTime, &r.FailError)
		if err != nil {
			return nil, NewBatchError(ErrCodeDbFail, "scan run failed", err)
		}
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "iterate runs failed", err)
	}
	rows.Close()

	result := make([]*RunExecution, 0, len(records))
	for _, r := range records {
		execution := &RunExecution{
			RunID:        r.RunID,
			RunKey:       r.RunKey,
			LayerName:    r.LayerName,
			Raster:       r.Raster,
			Status:       status.TaskStatus(r.Status),
			FeatureCount: r.FeatureCount,
			CombinedRows: r.CombinedRows,
			OutputRows:   r.OutputRows,
			OutputPath:   r.OutputPath,
			CreateTime:   r.CreateTime,
			StartTime:    r.StartTime.Time,
			EndTime:      r.EndTime.Time,
		}
		if r.FailError.Valid {
			execution.FailError = errors.New(r.FailError.String)
		}
		if r.RunParams.Valid {
			runCtx := NewRunContext()
			if er := util.ParseJson(r.RunParams.String, runCtx); er != nil {
				return nil, NewBatchError(ErrCodeGeneral, "parse run params of run:%v failed", r.RunID, er)
			}
			execution.RunContext = runCtx
		}
		batches, err := findBatchExecutions(ctx, r.RunID)
		if err != nil {
			return nil, err
		}
		execution.Batches = batches
		result = append(result, execution)
	}
	return result, nil
}

func findBatchExecutions(ctx context.Context, runID string) ([]*BatchExecution, BatchError) {
	rows, err := db.QueryContext(ctx, "select run_id, batch_name, start_index, size, status, row_count, start_time, end_time, fail_error from zonal_batch where run_id=? order by start_index", runID)
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "query batches of run:%v failed", runID, err)
	}
	defer rows.Close()
	result := make([]*BatchExecution, 0)
	for rows.Next() {
		b := &zonalBatch{}
		err = rows.Scan(&b.RunID, &b.BatchName, &b.Start, &b.Size, &b.Status, &b.RowCount, &b.StartTime, &b.EndTime, &b.FailError)
		if err != nil {
			return nil, NewBatchError(ErrCodeDbFail, "scan batch failed", err)
		}
		execution := &BatchExecution{
			Name:      b.BatchName,
			Start:     b.Start,
			Size:      b.Size,
			Status:    status.TaskStatus(b.Status),
			RowCount:  b.RowCount,
			StartTime: b.StartTime.Time,
			EndTime:   b.EndTime.Time,
		}
		if b.FailError.Valid {
			execution.FailError = errors.New(b.FailError.String)
		}
		result = append(result, execution)
	}
	if err = rows.Err(); err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "iterate batches failed", err)
	}
	return result, nil
}
