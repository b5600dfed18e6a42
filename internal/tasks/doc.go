// Package tasks implements the named units of work the orchestrator sequences.
//
// Each task reads its inputs and writes its outputs under the project root described by a
// config.Config. Heavy lifting is delegated: Sass and autoprefixing to external executables
// through a Runner, minification to tdewolff/minify, template parsing to raymond.
//
// NewRegistry binds every task to its grunt-style name ("sass:dev", "copy:dist", ...).
package tasks
