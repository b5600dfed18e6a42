// Package pipeline runs named build tasks in a fixed order.
//
// A pipeline is a list of stages. A stage is either a single task or a concurrent group of tasks
// that have no ordering requirement between them. Stages run strictly one after the other: a task
// never starts before every task of the previous stages has completed successfully.
//
// The pipeline stops on the first error. Inside a concurrent group the failing member cancels its
// siblings through the context, the group waits for them to return, and the first error is reported
// wrapped with the name of the task that produced it.
//
// Registered tasks form a directed graph (start -> stage 0 -> ... -> end) which options can observe
// through the model.PipelineOption hooks, for instance to measure durations or to draw the plan.
package pipeline
