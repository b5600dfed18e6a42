package drawer

import (
	"io"
	"time"

	"github.com/askiada/go-assetpipe/pkg/pipeline/measure"
)

// Drawer is an interface that defines the methods for drawing a pipeline.
type Drawer interface {
	// AddTask adds a task to the pipeline drawer.
	AddTask(name string) error
	// AddLink adds a link between a parent task and a task that depends on it.
	AddLink(parentName, childName string) error
	// Draw writes the pipeline graph.
	Draw() error
	// WriteTo writes the pipeline graph to wrt.
	WriteTo(wrt io.Writer) (int64, error)
	// SetTotalTime sets the total time for the task.
	SetTotalTime(name string, startTime time.Time) error
	// AddMeasure adds a measure to the pipeline drawer.
	AddMeasure(measure measure.Measure) error
}
