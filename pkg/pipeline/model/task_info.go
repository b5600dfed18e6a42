package model

type taskType string

const (
	StartTaskType  taskType = "start"
	EndTaskType    taskType = "end"
	NormalTaskType taskType = "task"
	MemberTaskType taskType = "member"
)

// TaskInfo describes a registered task.
type TaskInfo struct {
	Type taskType
	Name string
	// Group is the name of the concurrent group a member belongs to.
	Group string
	// Stage is the position of the task's stage in the sequence.
	Stage int
}

var (
	StartTask = &TaskInfo{Type: StartTaskType, Name: "start", Stage: -1}
	EndTask   = &TaskInfo{Type: EndTaskType, Name: "end"}
)
