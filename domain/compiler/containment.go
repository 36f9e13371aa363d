package compiler

import (
	"log/slog"

	"github.com/emergent-company/modelforge/domain/graph"
	"github.com/emergent-company/modelforge/pkg/logger"
)

// ContainmentResolver walks putInto edges backwards from the find targets
// and fills ProblemState.Contents and Parents.
type ContainmentResolver struct {
	g   *graph.Graph
	log *slog.Logger
}

// NewContainmentResolver creates a resolver over g.
func NewContainmentResolver(g *graph.Graph, log *slog.Logger) *ContainmentResolver {
	return &ContainmentResolver{g: g, log: log.With(logger.Scope("compiler.containment"))}
}

// Resolve processes targets with an explicit worklist. A container Thing is
// queued only while none of its resolved names is a Contents key yet, so
// self-referential container types terminate.
func (r *ContainmentResolver) Resolve(state *ProblemState, targets []*graph.Thing) {
	var work []*graph.Thing
	queued := make(map[string]struct{})
	push := func(t *graph.Thing) {
		if _, ok := queued[t.ID]; ok {
			return
		}
		queued[t.ID] = struct{}{}
		work = append(work, t)
	}
	for _, t := range targets {
		if !t.Kind.IsContainer() {
			r.log.Warn("find target is not a container", slog.String("thing", t.ID), slog.String("kind", string(t.Kind)))
			continue
		}
		push(t)
	}

	for len(work) > 0 {
		container := work[0]
		work = work[1:]

		names := state.Expand(container)
		for _, name := range names {
			if _, ok := state.Contents.Get(name); !ok {
				state.Contents.Set(name, nil)
			}
		}

		for _, edge := range r.g.Edges(container.ID, graph.Incoming, graph.ConnPutInto) {
			member, ok := r.g.Thing(edge.SourceID)
			if !ok || !member.Kind.IsModel() {
				continue
			}
			state.Links = append(state.Links, Link{
				ConnectionID:  edge.ID,
				Member:        member.Name(),
				MemberKind:    member.Kind,
				Container:     container.Name(),
				ContainerKind: container.Kind,
				HowMany:       edge.ConnectorAttributes.HowMany,
			})

			memberNames := state.Expand(member)
			for _, c := range names {
				for _, m := range memberNames {
					if m == c {
						continue
					}
					state.AddContent(c, m)
				}
			}

			if member.Kind.IsContainer() && !anyKey(state, memberNames) {
				push(member)
			}
		}
	}
}

func anyKey(state *ProblemState, names []string) bool {
	for _, n := range names {
		if _, ok := state.Contents.Get(n); ok {
			return true
		}
	}
	return false
}
