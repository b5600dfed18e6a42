package drawer_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-assetpipe/pkg/pipeline"
	"github.com/askiada/go-assetpipe/pkg/pipeline/drawer"
	"github.com/askiada/go-assetpipe/pkg/pipeline/measure"
)

func TestDOTDrawerWriteTo(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer("")
	require.NoError(t, d.AddTask("clean:dist"))
	require.NoError(t, d.AddTask("sass:dist"))
	require.NoError(t, d.AddLink("clean:dist", "sass:dist"))

	first := &bytes.Buffer{}
	_, err := d.WriteTo(first)
	require.NoError(t, err)

	second := &bytes.Buffer{}
	_, err = d.WriteTo(second)
	require.NoError(t, err)

	out := first.String()
	assert.True(t, strings.HasPrefix(out, "strict digraph {"))
	assert.Contains(t, out, `"clean:dist" -> "sass:dist"`)
	assert.Contains(t, out, `rankdir="TB"`)
	assert.Equal(t, out, second.String())
}

func TestDOTDrawerAddLinkUnknownTask(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer("")
	require.NoError(t, d.AddTask("clean:dist"))
	require.Error(t, d.AddLink("clean:dist", "usemin"))
}

func TestDOTDrawerAddMeasure(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer("")
	require.NoError(t, d.AddTask("sass:dist"))
	require.NoError(t, d.AddTask("templates:dist"))

	msr := measure.NewDefaultMeasure()
	msr.AddMetric("sass:dist").AddDuration(300 * time.Millisecond)
	msr.AddMetric("templates:dist").AddDuration(100 * time.Millisecond)

	failed := msr.AddMetric("templates:dist")
	failed.AddDuration(100 * time.Millisecond)
	failed.AddFailure()

	require.NoError(t, d.AddMeasure(msr))

	buf := &bytes.Buffer{}
	_, err := d.WriteTo(buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `color="#f00000"`)
	assert.Contains(t, out, `color="#0000f0"`)
	assert.Contains(t, out, "failed 1/2")
}

func TestPipelineDrawer(t *testing.T) {
	t.Parallel()

	fileName := filepath.Join(t.TempDir(), "build.dot")
	msr := measure.NewDefaultMeasure()

	pipe, err := pipeline.New("build",
		measure.PipelineMeasure(msr),
		drawer.PipelineDrawer(drawer.NewDOTDrawer(fileName), msr),
	)
	require.NoError(t, err)

	noop := func(context.Context) error { return nil }

	require.NoError(t, pipeline.AddTask(pipe, "clean:dist", noop))
	require.NoError(t, pipeline.AddConcurrent(pipe, "concurrent:dist",
		pipeline.Task{Name: "sass:dist", Fn: noop},
		pipeline.Task{Name: "templates:dist", Fn: noop},
	))

	require.NoError(t, pipe.Run(t.Context()))

	data, err := os.ReadFile(fileName)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, `"start" -> "clean:dist"`)
	assert.Contains(t, out, `"clean:dist" -> "sass:dist"`)
	assert.Contains(t, out, `"clean:dist" -> "templates:dist"`)
}
