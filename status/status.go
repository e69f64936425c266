package status

//TaskStatus status of a scheduled task or of a whole calculation run
type TaskStatus string

const (
	//PENDING task is created or queued, its dependencies may not have finished yet
	PENDING TaskStatus = "PENDING"
	//RUNNING task body is executing
	RUNNING TaskStatus = "RUNNING"
	//COMPLETED task body returned without error
	COMPLETED TaskStatus = "COMPLETED"
	//CANCELED task was canceled before or while running
	CANCELED TaskStatus = "CANCELED"
	//FAILED task body returned an error or panicked
	FAILED TaskStatus = "FAILED"
)

var severities = map[TaskStatus]int{
	PENDING:   0,
	RUNNING:   1,
	COMPLETED: 2,
	CANCELED:  3,
	FAILED:    4,
}

//Finished reports whether s is a terminal status
func (s TaskStatus) Finished() bool {
	return s == COMPLETED || s == CANCELED || s == FAILED
}

//And returns the more severe of two statuses, unknown statuses lose against known ones
func (s TaskStatus) And(other TaskStatus) TaskStatus {
	i1, ok1 := severities[s]
	i2, ok2 := severities[other]
	if ok1 && ok2 {
		if i1 < i2 {
			return other
		}
		return s
	} else if ok1 {
		return s
	}
	return other
}
