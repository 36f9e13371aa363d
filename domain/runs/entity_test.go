package runs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun_Status(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		run  Run
		want Status
	}{
		{"created", Run{}, StatusCreated},
		{"started", Run{StartedAt: &now}, StatusStarted},
		{"solved", Run{StartedAt: &now, EndedAt: &now, Ran: true, Solved: true}, StatusSolved},
		{"unsolved", Run{StartedAt: &now, EndedAt: &now, Ran: true, Error: Ptr(NoSolutions)}, StatusUnsolved},
		{"errored", Run{StartedAt: &now, EndedAt: &now, Ran: true, Error: Ptr("exit status 2")}, StatusErrored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.run.Status())
		})
	}
}

func TestPatch_Apply(t *testing.T) {
	run := &Run{Stdout: "before", Ran: true}

	cols := Patch{}.Apply(run)
	assert.Empty(t, cols)
	assert.Equal(t, "before", run.Stdout)

	cols = Patch{Ran: Ptr(false), Stderr: Ptr("warn"), RawSolutions: []string{}}.Apply(run)
	assert.Equal(t, []string{"ran", "raw_solutions", "stderr"}, cols)
	assert.False(t, run.Ran)
	assert.Equal(t, "warn", run.Stderr)
	assert.Equal(t, "before", run.Stdout)
	assert.NotNil(t, run.RawSolutions)
}
