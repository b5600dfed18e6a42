// Package model provides the data structures shared by the pipeline package and its options.
// It defines build targets, the description of every registered task,
// and the hook interface pipeline options implement.
package model
