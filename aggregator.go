package zonalbatch

import (
	"context"
	"github.com/chararch/zonalbatch/table"
	"github.com/chararch/zonalbatch/vector"
)

//Aggregate concatenate the partial tables, cast the index column to indexType unless it is
//table.Any, and prefix every other column with prefix+"_" when prefix is not empty
func Aggregate(partials []*table.Table, indexColumn string, indexType table.ColumnType, prefix string) (*table.Table, error) {
	combined := table.Concat(partials...)
	if _, ok := combined.Column(indexColumn); !ok {
		if err := combined.AddColumn(table.NewColumn(indexColumn, indexType, make([]interface{}, combined.NumRows())...)); err != nil {
			return nil, err
		}
	}
	if indexType != table.Any {
		var err error
		if combined, err = combined.Cast(indexColumn, indexType); err != nil {
			return nil, err
		}
	}
	if prefix == "" {
		return combined, nil
	}
	mapping := make(map[string]string)
	for _, name := range combined.ColumnNames() {
		if name != indexColumn {
			mapping[name] = prefix + "_" + name
		}
	}
	return combined.Rename(mapping)
}

//coordinator the fan-in task body: it runs after every worker finished and combines their results
type coordinator struct {
	results     *ResultList
	indexColumn string
	indexType   vector.FieldType
	prefix      string
}

func (c *coordinator) run(ctx context.Context, task *Task) (interface{}, error) {
	partials := c.results.Snapshot()
	combined, err := Aggregate(partials, c.indexColumn, c.indexType.ColumnType(), c.prefix)
	if err != nil {
		return nil, NewBatchError(ErrCodeCompute, "aggregate %d partial results", len(partials), err)
	}
	logger.Info(ctx, "%v combined %d partial results into %d rows", task.Name(), len(partials), combined.NumRows())
	return combined, nil
}
