package zonalbatch

import (
	"github.com/chararch/zonalbatch/table"
	"sync"
)

//ResultList the partial tables of a run, workers only append
type ResultList struct {
	mu     sync.Mutex
	tables []*table.Table
}

func NewResultList() *ResultList {
	return &ResultList{tables: make([]*table.Table, 0)}
}

func (l *ResultList) Append(t *table.Table) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tables = append(l.tables, t)
}

//Snapshot the tables appended so far, in append order
func (l *ResultList) Snapshot() []*table.Table {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]*table.Table, len(l.tables))
	copy(result, l.tables)
	return result
}

func (l *ResultList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tables)
}
