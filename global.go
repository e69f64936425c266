package zonalbatch

import (
	"database/sql"
	"github.com/chararch/zonalbatch/internal/logs"
	"os"
)

//log
var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

//SetLogger set a logger instance for zonalbatch
func SetLogger(l logs.Logger) {
	logger = l
}

//DefaultMaxRunningTasks default number of task bodies the default scheduler runs at a time
const DefaultMaxRunningTasks = 16

var defaultScheduler = NewPoolScheduler(DefaultMaxRunningTasks)

//DefaultScheduler the scheduler used by orchestrators built without one
func DefaultScheduler() *PoolScheduler {
	return defaultScheduler
}

//SetMaxRunningTasks set max number of task bodies the default scheduler runs at a time
func SetMaxRunningTasks(size int) {
	defaultScheduler.SetMaxSize(size)
}

//db
var db *sql.DB

//SetDB register a *sql.DB instance to record run history, nil disables recording
func SetDB(sqlDb *sql.DB) {
	db = sqlDb
}
