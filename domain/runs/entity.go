package runs

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

// NoSolutions is the error text of a Run that finished without a solution.
const NoSolutions = "no solutions"

// Status is derived from a Run's timestamps and flags.
type Status string

const (
	StatusCreated  Status = "created"
	StatusStarted  Status = "started"
	StatusSolved   Status = "solved"
	StatusUnsolved Status = "unsolved"
	StatusErrored  Status = "errored"
)

// Run is one compiled model and the outcome of solving it. There is at most
// one Run per model hash.
type Run struct {
	bun.BaseModel `bun:"table:runs,alias:r" json:"-"`

	ProblemID    uuid.UUID       `bun:"problem_id,pk,type:uuid" json:"problemId"`
	Hash         string          `bun:"hash,notnull" json:"hash"`
	Model        string          `bun:"model,notnull" json:"model"`
	IndexMap     json.RawMessage `bun:"index_map,type:jsonb" json:"indexMap,omitempty"`
	ProblemState json.RawMessage `bun:"problem_state,type:jsonb" json:"problemState,omitempty"`

	CreatedAt time.Time  `bun:"created_at,notnull,default:now()" json:"createdAt"`
	StartedAt *time.Time `bun:"started_at" json:"startedAt,omitempty"`
	EndedAt   *time.Time `bun:"ended_at" json:"endedAt,omitempty"`

	Ran    bool `bun:"ran,notnull" json:"ran"`
	Solved bool `bun:"solved,notnull" json:"solved"`

	RawSolutions    pq.StringArray `bun:"raw_solutions,type:text[],notnull" json:"rawSolutions"`
	ParsedSolutions pq.StringArray `bun:"parsed_solutions,type:text[],notnull" json:"parsedSolutions"`

	Error  *string `bun:"error" json:"error,omitempty"`
	Stdout string  `bun:"stdout,notnull" json:"stdout"`
	Stderr string  `bun:"stderr,notnull" json:"stderr"`
}

// Status reports where the Run is in its lifecycle.
func (r *Run) Status() Status {
	switch {
	case r.StartedAt == nil && r.EndedAt == nil:
		return StatusCreated
	case r.EndedAt == nil:
		return StatusStarted
	case r.Solved:
		return StatusSolved
	case r.Error != nil && *r.Error != NoSolutions:
		return StatusErrored
	default:
		return StatusUnsolved
	}
}

// Clone returns a deep copy.
func (r *Run) Clone() *Run {
	c := *r
	c.IndexMap = slices.Clone(r.IndexMap)
	c.ProblemState = slices.Clone(r.ProblemState)
	c.RawSolutions = slices.Clone(r.RawSolutions)
	c.ParsedSolutions = slices.Clone(r.ParsedSolutions)
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return &c
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	StartedAt       *time.Time
	EndedAt         *time.Time
	Ran             *bool
	Solved          *bool
	RawSolutions    []string
	ParsedSolutions []string
	Error           *string
	Stdout          *string
	Stderr          *string
}

// Apply writes the set fields of p onto r and returns the column names it
// touched.
func (p Patch) Apply(r *Run) []string {
	var cols []string
	if p.StartedAt != nil {
		r.StartedAt = p.StartedAt
		cols = append(cols, "started_at")
	}
	if p.EndedAt != nil {
		r.EndedAt = p.EndedAt
		cols = append(cols, "ended_at")
	}
	if p.Ran != nil {
		r.Ran = *p.Ran
		cols = append(cols, "ran")
	}
	if p.Solved != nil {
		r.Solved = *p.Solved
		cols = append(cols, "solved")
	}
	if p.RawSolutions != nil {
		r.RawSolutions = slices.Clone(p.RawSolutions)
		cols = append(cols, "raw_solutions")
	}
	if p.ParsedSolutions != nil {
		r.ParsedSolutions = slices.Clone(p.ParsedSolutions)
		cols = append(cols, "parsed_solutions")
	}
	if p.Error != nil {
		r.Error = p.Error
		cols = append(cols, "error")
	}
	if p.Stdout != nil {
		r.Stdout = *p.Stdout
		cols = append(cols, "stdout")
	}
	if p.Stderr != nil {
		r.Stderr = *p.Stderr
		cols = append(cols, "stderr")
	}
	return cols
}

// Ptr returns a pointer to v, for building Patches.
func Ptr[T any](v T) *T { return &v }
