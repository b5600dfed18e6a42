package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-assetpipe/internal/orchestrator"
	"github.com/askiada/go-assetpipe/pkg/pipeline/model"
)

func stageNames(stages []orchestrator.Stage) []string {
	res := make([]string, len(stages))
	for i, st := range stages {
		res[i] = st.Name
	}

	return res
}

func TestPlan(t *testing.T) {
	t.Parallel()

	build := []string{
		"clean:dist", "preprocess:dist", "bundles", "concurrent:dist", "autoprefixer:dist",
		"concat", "copy:dist", "cssmin", "uglify", "rev", "usemin",
	}

	tests := map[string]struct {
		sequence string
		target   model.Target
		want     []string
	}{
		"serve dev": {
			sequence: orchestrator.SequenceServe,
			target:   model.TargetDev,
			want: []string{
				"clean:dev", "env:dev", "preprocess:dev", "concurrent:dev",
				"autoprefixer:dev", "server:dev", "watch",
			},
		},
		"serve dist": {
			sequence: orchestrator.SequenceServe,
			target:   model.TargetDist,
			want:     append(append([]string{}, build...), "server:dist:keepalive"),
		},
		"build": {
			sequence: orchestrator.SequenceBuild,
			target:   model.TargetDev,
			want:     build,
		},
		"build ignores dist": {
			sequence: orchestrator.SequenceBuild,
			target:   model.TargetDist,
			want:     build,
		},
		"default": {
			sequence: orchestrator.SequenceDefault,
			target:   model.TargetDev,
			want:     build,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			stages, err := orchestrator.Plan(tt.sequence, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stageNames(stages))
		})
	}
}

func TestPlanGroups(t *testing.T) {
	t.Parallel()

	stages, err := orchestrator.Plan(orchestrator.SequenceServe, model.TargetDev)
	require.NoError(t, err)

	st := stages[3]
	assert.True(t, st.Concurrent)
	assert.Equal(t, []string{"sass:dev", "templates:dev"}, st.Tasks)

	for i, st := range stages {
		if i == 3 {
			continue
		}

		assert.False(t, st.Concurrent, st.Name)
		assert.Equal(t, []string{st.Name}, st.Tasks)
	}

	stages, err = orchestrator.Plan(orchestrator.SequenceBuild, model.TargetDev)
	require.NoError(t, err)
	assert.Equal(t, []string{"sass:dist", "templates:dist"}, stages[3].Tasks)
}

func TestPlanUnknownSequence(t *testing.T) {
	t.Parallel()

	_, err := orchestrator.Plan("deploy", model.TargetDev)
	require.ErrorIs(t, err, orchestrator.ErrUnknownSequence)
}

func TestSequences(t *testing.T) {
	t.Parallel()

	for _, sequence := range orchestrator.Sequences() {
		_, err := orchestrator.Plan(sequence, model.TargetDev)
		require.NoError(t, err, sequence)
	}
}
