package model

import "time"

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error
	// PrepareTask runs when a task is registered. Parents are the tasks of the previous stage.
	PrepareTask(parents []*TaskInfo, task *TaskInfo) error
	// BeforeTask runs right before the task function is called.
	BeforeTask(task *TaskInfo) error
	// AfterTask runs when the task function returns, with its duration and error.
	AfterTask(task *TaskInfo, elapsed time.Duration, taskErr error) error
	// Finish runs after the pipeline is finished, whatever its outcome.
	Finish() error
}
