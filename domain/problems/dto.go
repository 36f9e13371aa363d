package problems

import (
	"encoding/json"
	"time"

	"github.com/emergent-company/modelforge/domain/runs"
)

// SolveRequest is the body of POST /api/problems/solve.
type SolveRequest struct {
	FindTargets []string `json:"findTargets"`
}

// SolveResponse is returned by POST /api/problems/solve.
type SolveResponse struct {
	ProblemID string `json:"problemId"`
	Hash      string `json:"hash"`
	Cached    bool   `json:"cached"`
}

// RunResponse is the API view of a Run.
type RunResponse struct {
	ProblemID    string            `json:"problemId"`
	Hash         string            `json:"hash"`
	Status       runs.Status       `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	EndedAt      *time.Time        `json:"endedAt,omitempty"`
	Ran          bool              `json:"ran"`
	Solved       bool              `json:"solved"`
	Error        *string           `json:"error,omitempty"`
	IndexMap     json.RawMessage   `json:"indexMap,omitempty"`
	RawSolutions []string          `json:"rawSolutions"`
	Solutions    []json.RawMessage `json:"solutions"`
	Stdout       string            `json:"stdout,omitempty"`
	Stderr       string            `json:"stderr,omitempty"`
}

// NewRunResponse converts a Run. Parsed solutions that are not valid JSON
// are returned as JSON strings.
func NewRunResponse(r *runs.Run) RunResponse {
	resp := RunResponse{
		ProblemID:    r.ProblemID.String(),
		Hash:         r.Hash,
		Status:       r.Status(),
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		Ran:          r.Ran,
		Solved:       r.Solved,
		Error:        r.Error,
		IndexMap:     r.IndexMap,
		RawSolutions: append([]string{}, r.RawSolutions...),
		Solutions:    make([]json.RawMessage, 0, len(r.ParsedSolutions)),
		Stdout:       r.Stdout,
		Stderr:       r.Stderr,
	}
	if len(resp.IndexMap) == 0 {
		resp.IndexMap = nil
	}
	for _, s := range r.ParsedSolutions {
		if json.Valid([]byte(s)) {
			resp.Solutions = append(resp.Solutions, json.RawMessage(s))
			continue
		}
		quoted, _ := json.Marshal(s)
		resp.Solutions = append(resp.Solutions, quoted)
	}
	return resp
}
