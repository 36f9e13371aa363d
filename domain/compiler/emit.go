package compiler

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/emergent-company/modelforge/domain/graph"
)

const header = "language Essence 1.3"

// attrFunc is an emitted attribute function.
type attrFunc struct {
	ident    string
	enumType string
	integer  bool
	// values maps instance index to rendered value.
	values map[int]string
}

// definedOn reports whether the function has a value at every index.
func (f *attrFunc) definedOn(indices []int) bool {
	for _, i := range indices {
		if _, ok := f.values[i]; !ok {
			return false
		}
	}
	return true
}

// span is one container decision variable an aggregation ranges over.
type span struct {
	name     string
	ident    string
	index    int
	sequence bool
}

type selectorInfo struct {
	ident      string
	candidates []span
	alias      map[string]string
}

// emitter renders one ProblemState plus the constraint graph into text.
// Every section iterates either a sorted key list or an insertion-ordered
// map, so output depends only on the resolved state.
type emitter struct {
	g     *graph.Graph
	s     *ProblemState
	log   *slog.Logger
	names *namer

	typeIdents map[string]string
	funcs      map[string]*attrFunc
	enumValues map[string]string
	finds      map[string]span
	findOrder  []span
	selectors  map[string]*selectorInfo
	reducers   map[string]string

	walker *Walker
	seen   map[string]struct{}
}

func newEmitter(g *graph.Graph, s *ProblemState, log *slog.Logger) *emitter {
	e := &emitter{
		g:          g,
		s:          s,
		log:        log,
		names:      newNamer(),
		typeIdents: make(map[string]string),
		funcs:      make(map[string]*attrFunc),
		enumValues: make(map[string]string),
		finds:      make(map[string]span),
		selectors:  make(map[string]*selectorInfo),
		reducers:   make(map[string]string),
		seen:       make(map[string]struct{}),
	}
	e.names.reserve("set_containers", "mset_containers", "sequence_containers", "x", "i", "m")
	e.walker = NewWalker(g, Resolvers{
		Attribute:    e.attribute,
		Reducer:      e.reducer,
		Relationship: e.relationship,
		Aggregate:    e.aggregate,
		Constant:     e.constant,
	}, log)
	return e
}

func (e *emitter) emit() string {
	sections := [][]string{
		{header},
		e.indexBlock(),
		e.typeDomains(),
		e.attributeFunctions(),
		e.containerFinds(),
		e.groups(),
		e.selectorBlocks(),
		e.reducerLettings(),
		e.containment(),
		e.constraints(),
		e.objective(),
	}

	var b strings.Builder
	for _, lines := range sections {
		if len(lines) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		for _, l := range lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (e *emitter) indexBlock() []string {
	if e.s.Index.Len() == 0 {
		return nil
	}
	lines := []string{"$ index"}
	for pair := e.s.Index.Oldest(); pair != nil; pair = pair.Next() {
		lines = append(lines, fmt.Sprintf("$ %d: %s", pair.Value, pair.Key))
	}
	return lines
}

func (e *emitter) typeDomains() []string {
	var typeNames []string
	for pair := e.s.TypeMembers.Oldest(); pair != nil; pair = pair.Next() {
		typeNames = append(typeNames, pair.Key)
	}
	slices.Sort(typeNames)

	var lines []string
	for _, name := range typeNames {
		members, _ := e.s.TypeMembers.Get(name)
		ident := e.names.ident("type", name)
		e.typeIdents[name] = ident
		lines = append(lines, fmt.Sprintf("letting %s be %s", ident, intSet(e.s.Indices(members))))
	}
	return lines
}

func (e *emitter) attributeFunctions() []string {
	var keys []string
	for pair := e.s.Values.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	slices.Sort(keys)

	var lines []string
	for _, key := range keys {
		byInstance, _ := e.s.Values.Get(key)

		type entry struct {
			index int
			raw   string
		}
		var entries []entry
		integer := true
		for pair := byInstance.Oldest(); pair != nil; pair = pair.Next() {
			idx, ok := e.s.IndexOf(pair.Key)
			if !ok {
				continue
			}
			raw := strings.TrimSpace(pair.Value)
			if _, err := strconv.Atoi(raw); err != nil {
				integer = false
			}
			entries = append(entries, entry{idx, raw})
		}
		if len(entries) == 0 {
			continue
		}
		slices.SortFunc(entries, func(a, b entry) int { return a.index - b.index })

		f := &attrFunc{ident: e.names.ident("attr", key), integer: integer, values: make(map[int]string)}
		if !integer {
			var distinct []string
			for _, en := range entries {
				if !slices.Contains(distinct, en.raw) {
					distinct = append(distinct, en.raw)
				}
			}
			slices.Sort(distinct)
			idents := make([]string, len(distinct))
			for i, raw := range distinct {
				idents[i] = e.enumValue(raw)
			}
			f.enumType = e.names.ident("enum", key+"_values")
			lines = append(lines, fmt.Sprintf("letting %s be new type enum {%s}", f.enumType, strings.Join(idents, ", ")))
		}

		maplets := make([]string, len(entries))
		for i, en := range entries {
			v := en.raw
			if !integer {
				v = e.enumValue(en.raw)
			}
			f.values[en.index] = v
			maplets[i] = fmt.Sprintf("%d --> %s", en.index, v)
		}
		e.funcs[key] = f
		lines = append(lines, fmt.Sprintf("letting %s be function(%s)", f.ident, strings.Join(maplets, ", ")))
	}
	return lines
}

func (e *emitter) enumValue(raw string) string {
	if id, ok := e.enumValues[raw]; ok {
		return id
	}
	id := e.names.ident("value", raw)
	e.enumValues[raw] = id
	return id
}

func (e *emitter) containerFinds() []string {
	for pair := e.s.Contents.Oldest(); pair != nil; pair = pair.Next() {
		idx, ok := e.s.IndexOf(pair.Key)
		if !ok {
			continue
		}
		inst, _ := e.s.Containers.Get(pair.Key)
		sp := span{name: pair.Key, index: idx, sequence: inst != nil && inst.Shape != nil && inst.Shape.Ordered}
		e.findOrder = append(e.findOrder, sp)
	}
	slices.SortFunc(e.findOrder, func(a, b span) int { return a.index - b.index })

	var lines []string
	for i := range e.findOrder {
		sp := &e.findOrder[i]
		sp.ident = e.names.ident("container", sp.name)
		e.finds[sp.name] = *sp

		inst, _ := e.s.Containers.Get(sp.name)
		shape := Shape{}
		if inst != nil && inst.Shape != nil {
			shape = *inst.Shape
		}

		kind := "set"
		switch {
		case shape.Ordered:
			kind = "sequence"
		case shape.Repeated:
			kind = "mset"
		}

		var attrs []string
		if shape.Capacity != nil {
			if lo := shape.Capacity.Min(); lo >= 0 {
				attrs = append(attrs, fmt.Sprintf("minSize %d", lo))
			}
			if hi := shape.Capacity.Max(); hi >= 0 {
				attrs = append(attrs, fmt.Sprintf("maxSize %d", hi))
			}
		}
		if kind == "sequence" && !shape.Repeated {
			attrs = append(attrs, "injective")
		}
		decl := kind
		if len(attrs) > 0 {
			decl += " (" + strings.Join(attrs, ", ") + ")"
		}

		if shape.Circular {
			lines = append(lines, "$ circular "+sp.ident)
		}
		members, _ := e.s.Contents.Get(sp.name)
		lines = append(lines, fmt.Sprintf("find %s : %s of %s", sp.ident, decl, intDomain(e.s.Indices(members), e.s.Index.Len())))
	}
	return lines
}

// domainOf returns the candidate member indices of a container, or every
// index when it has no candidates.
func (e *emitter) domainOf(container string) []int {
	members, _ := e.s.Contents.Get(container)
	if idx := e.s.Indices(members); len(idx) > 0 {
		return idx
	}
	all := make([]int, e.s.Index.Len())
	for i := range all {
		all[i] = i + 1
	}
	return all
}

func (e *emitter) groups() []string {
	if len(e.findOrder) == 0 {
		return nil
	}
	var sets, msets, seqs []int
	for _, sp := range e.findOrder {
		inst, _ := e.s.Containers.Get(sp.name)
		switch {
		case sp.sequence:
			seqs = append(seqs, sp.index)
		case inst != nil && inst.Shape != nil && inst.Shape.Repeated:
			msets = append(msets, sp.index)
		default:
			sets = append(sets, sp.index)
		}
	}
	return []string{
		"letting set_containers be " + intSet(sets),
		"letting mset_containers be " + intSet(msets),
		"letting sequence_containers be " + intSet(seqs),
	}
}

func (e *emitter) selectorBlocks() []string {
	var lines []string
	for _, sel := range e.g.ThingsOfKind(graph.KindSelector) {
		var candidates []span
		for _, src := range e.g.Neighbors(sel.ID, graph.Incoming, graph.ConnSelector) {
			if !src.Kind.IsContainer() {
				continue
			}
			for _, name := range e.s.Expand(src) {
				if sp, ok := e.finds[name]; ok {
					candidates = append(candidates, sp)
				}
			}
			break
		}
		if len(candidates) == 0 {
			e.log.Warn("selector has no container candidates", slog.String("selector", sel.ID))
			continue
		}

		info := &selectorInfo{
			ident:      e.names.ident("selector", sel.Name()),
			candidates: candidates,
			alias:      make(map[string]string),
		}
		idx := spanIndices(candidates)
		lines = append(lines, fmt.Sprintf("find %s : int(%s)", info.ident, joinInts(idx)))

		for n, rep := range e.g.Neighbors(sel.ID, graph.Incoming, graph.ConnRepresentative) {
			ri, ok := e.s.IndexOf(rep.Name())
			if n > 0 || !ok || !slices.Contains(idx, ri) {
				e.log.Warn("ignoring representative", slog.String("selector", sel.ID), slog.String("representative", rep.ID))
				continue
			}
			lines = append(lines, fmt.Sprintf("such that %s = %d", info.ident, ri))
		}

		for _, pa := range sel.PickedAttributes {
			parentKey, ok := e.s.AttributeKeys.Get(pa.ParentAttributeID)
			if !ok {
				continue
			}
			f := e.funcs[parentKey]
			if f == nil || !f.definedOn(idx) {
				e.log.Warn("picked attribute not defined on every candidate",
					slog.String("selector", sel.ID), slog.String("attribute", parentKey))
				continue
			}
			alias := parentKey
			for _, a := range sel.Attributes {
				if a.MergeKey() == pa.AttributeID {
					alias = a.Key
					break
				}
			}
			aliasIdent := e.names.ident("picked", sel.Name()+"_"+alias)
			info.alias[pa.AttributeID] = aliasIdent

			domain := f.enumType
			if f.integer {
				var vals []int
				for _, i := range idx {
					v, _ := strconv.Atoi(f.values[i])
					vals = append(vals, v)
				}
				slices.Sort(vals)
				domain = fmt.Sprintf("int(%s)", joinInts(slices.Compact(vals)))
			}
			lines = append(lines,
				fmt.Sprintf("find %s : %s", aliasIdent, domain),
				fmt.Sprintf("such that %s = %s(%s)", aliasIdent, f.ident, info.ident),
			)
		}
		e.selectors[sel.ID] = info
	}
	return lines
}

func (e *emitter) reducerLettings() []string {
	var lines []string
	for _, r := range e.g.ThingsOfKind(graph.KindReducer) {
		text, ok := e.walker.Expr(r.ID)
		if !ok {
			continue
		}
		ident := e.names.ident("reducer", r.Name())
		e.reducers[r.ID] = ident
		lines = append(lines, fmt.Sprintf("letting %s be %s", ident, text))
	}
	return lines
}

func (e *emitter) containment() []string {
	var lines []string
	add := func(l string) {
		if _, dup := e.seen[l]; dup {
			return
		}
		e.seen[l] = struct{}{}
		lines = append(lines, l)
	}

	for _, link := range e.s.Links {
		var containers []span
		for _, name := range e.s.ExpandName(link.Container, link.ContainerKind) {
			if sp, ok := e.finds[name]; ok {
				containers = append(containers, sp)
			}
		}
		if len(containers) == 0 {
			continue
		}

		if !link.MemberKind.IsType() {
			mi, ok := e.s.IndexOf(link.Member)
			if !ok {
				continue
			}
			var alts []string
			for _, c := range containers {
				if c.name != link.Member {
					alts = append(alts, membership(strconv.Itoa(mi), c))
				}
			}
			if len(alts) > 0 {
				add("such that " + disjunction(alts))
			}
			continue
		}

		if link.HowMany == nil {
			continue
		}
		typeIdent, ok := e.typeIdents[link.Member]
		if !ok || len(e.s.ExpandName(link.Member, link.MemberKind)) == 0 {
			continue
		}
		for _, c := range containers {
			count := fmt.Sprintf("sum([toInt(%s) | m <- %s])", membership("m", c), typeIdent)
			if lo := link.HowMany.Min(); lo > 0 {
				add(fmt.Sprintf("such that %s >= %d", count, lo))
			}
			if hi := link.HowMany.Max(); hi >= 0 {
				add(fmt.Sprintf("such that %s <= %d", count, hi))
			}
		}
	}
	return lines
}

func (e *emitter) constraints() []string {
	var lines []string
	for _, node := range e.g.ThingsOfKind(graph.KindOperator, graph.KindAggregate) {
		if len(e.g.Edges(node.ID, graph.Outgoing, graph.ConnOperand)) > 0 {
			continue
		}
		text, ok := e.walker.Expr(node.ID)
		if !ok {
			continue
		}
		if !e.walker.IsBoolean(node.ID) {
			e.log.Debug("dropping non-boolean root", slog.String("node", node.ID))
			continue
		}
		lines = append(lines, "such that "+text)
	}
	return lines
}

func (e *emitter) objective() []string {
	directives := e.g.ThingsOfKind(graph.KindDirective)
	if len(directives) == 0 {
		return nil
	}
	for _, extra := range directives[1:] {
		e.log.Warn("ignoring additional directive", slog.String("directive", extra.ID))
	}

	d := directives[0]
	keyword, ok := objectiveKeyword(opName(d.TypeAttributes.Operator, d.Name()))
	if !ok {
		e.log.Warn("unknown directive", slog.String("directive", d.ID))
		return nil
	}
	edge := rangeEdge(e.g.Edges(d.ID, graph.Incoming, graph.ConnOperand))
	if edge == nil {
		return nil
	}
	text, ok := e.walker.operand(edge)
	if !ok {
		return nil
	}
	return []string{keyword + " " + text}
}

// attribute is resolver (a).
func (e *emitter) attribute(src *graph.Thing, attributeID string) (string, bool) {
	key, ok := e.s.AttributeKeys.Get(attributeID)
	if !ok {
		key = attributeID
	}

	if src.Kind == graph.KindSelector {
		sel := e.selectors[src.ID]
		if sel == nil {
			return "", false
		}
		if alias, ok := sel.alias[attributeID]; ok {
			return alias, true
		}
		f := e.funcs[key]
		if f == nil || !f.definedOn(spanIndices(sel.candidates)) {
			return "", false
		}
		return fmt.Sprintf("%s(%s)", f.ident, sel.ident), true
	}

	f := e.funcs[key]
	if f == nil {
		return "", false
	}
	idx, ok := e.s.IndexOf(src.Name())
	if !ok {
		return "", false
	}
	if _, ok := f.values[idx]; !ok {
		return "", false
	}
	return fmt.Sprintf("%s(%d)", f.ident, idx), true
}

// reducer is resolver (b).
func (e *emitter) reducer(src *graph.Thing) (string, bool) {
	ident, ok := e.reducers[src.ID]
	return ident, ok
}

// relationship is resolver (c). A relationship with any picked entry flagged
// relationshipAttribute counts memberships; otherwise it requires them.
func (e *emitter) relationship(src *graph.Thing) (string, bool) {
	if len(src.PickedRelationships) == 0 {
		return "", false
	}
	numeric := slices.ContainsFunc(src.PickedRelationships, func(pr graph.PickedRelationship) bool {
		return pr.RelationshipAttribute
	})

	var parts []string
	for _, pr := range src.PickedRelationships {
		conn, ok := e.g.Connection(pr.ConnectionID)
		if !ok || conn.Type != graph.ConnPutInto {
			return "", false
		}
		member, ok1 := e.g.Thing(conn.SourceID)
		container, ok2 := e.g.Thing(conn.DestinationID)
		if !ok1 || !ok2 {
			return "", false
		}

		members := e.s.Indices(e.s.Expand(member))
		var containers []span
		for _, name := range e.s.Expand(container) {
			if sp, ok := e.finds[name]; ok {
				containers = append(containers, sp)
			}
		}
		if len(members) == 0 || len(containers) == 0 {
			return "", false
		}

		if numeric {
			var terms []string
			for _, c := range containers {
				for _, m := range members {
					terms = append(terms, "toInt("+membership(strconv.Itoa(m), c)+")")
				}
			}
			parts = append(parts, group(terms, " + "))
			continue
		}
		for _, m := range members {
			var alts []string
			for _, c := range containers {
				alts = append(alts, membership(strconv.Itoa(m), c))
			}
			parts = append(parts, disjunction(alts))
		}
	}

	if numeric {
		return group(parts, " + "), true
	}
	return group(parts, ` /\ `), true
}

// aggregate renders op over the containers src designates. A selector
// source switches to representative mode: only the selected container
// contributes.
func (e *emitter) aggregate(op AggregateOp, src *graph.Thing, attributeID string) (string, bool) {
	var spans []span
	var sel *selectorInfo
	switch {
	case src.Kind == graph.KindSelector:
		sel = e.selectors[src.ID]
		if sel == nil {
			return "", false
		}
		spans = sel.candidates
	case src.Kind.IsContainer():
		for _, name := range e.s.Expand(src) {
			if sp, ok := e.finds[name]; ok {
				spans = append(spans, sp)
			}
		}
	}
	if len(spans) == 0 {
		return "", false
	}

	var f *attrFunc
	if op != AggCount {
		key, ok := e.s.AttributeKeys.Get(attributeID)
		if !ok {
			return "", false
		}
		f = e.funcs[key]
		if f == nil || !f.integer {
			return "", false
		}
		for _, sp := range spans {
			if !f.definedOn(e.domainOf(sp.name)) {
				e.log.Warn("aggregated attribute not defined on every candidate member",
					slog.String("container", sp.name), slog.String("attribute", key))
				return "", false
			}
		}
	}

	list := func(sp span) string {
		if sp.sequence {
			return fmt.Sprintf("[%s(%s(i)) | i <- defined(%s)]", f.ident, sp.ident, sp.ident)
		}
		return fmt.Sprintf("[%s(x) | x <- %s]", f.ident, sp.ident)
	}
	size := func(sp span) string { return "|" + sp.ident + "|" }

	if sel != nil {
		terms := make([]string, len(spans))
		for i, sp := range spans {
			var l string
			if f != nil {
				l = list(sp)
			}
			terms[i] = fmt.Sprintf("toInt(%s = %d) * %s", sel.ident, sp.index, reduce(op, l, size(sp)))
		}
		return group(terms, " + "), true
	}

	if len(spans) == 1 {
		var l string
		if f != nil {
			l = list(spans[0])
		}
		return reduce(op, l, size(spans[0])), true
	}

	lists := make([]string, len(spans))
	sizes := make([]string, len(spans))
	for i, sp := range spans {
		if f != nil {
			lists[i] = list(sp)
		}
		sizes[i] = size(sp)
	}
	return reduce(op, "flatten(["+strings.Join(lists, ", ")+"])", "("+strings.Join(sizes, " + ")+")"), true
}

func reduce(op AggregateOp, list, size string) string {
	switch op {
	case AggSum:
		return "sum(" + list + ")"
	case AggMax:
		return "max(" + list + ")"
	case AggMin:
		return "min(" + list + ")"
	case AggAvg:
		return "(sum(" + list + ") / " + size + ")"
	case AggSpread:
		return "(max(" + list + ") - min(" + list + "))"
	default:
		return size
	}
}

func (e *emitter) constant(v string) (string, bool) {
	if id, ok := e.enumValues[strings.TrimSpace(v)]; ok {
		return id, true
	}
	return literal(v)
}

func membership(member string, c span) string {
	if c.sequence {
		return fmt.Sprintf("%s in range(%s)", member, c.ident)
	}
	return fmt.Sprintf("%s in %s", member, c.ident)
}

func disjunction(alts []string) string {
	return group(alts, ` \/ `)
}

// group joins parts, parenthesizing when there is more than one.
func group(parts []string, sep string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func spanIndices(spans []span) []int {
	out := make([]int, len(spans))
	for i, sp := range spans {
		out[i] = sp.index
	}
	slices.Sort(out)
	return out
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

func intSet(xs []int) string {
	if len(xs) == 0 {
		return "{} : `set of int`"
	}
	return "{" + joinInts(xs) + "}"
}

func intDomain(xs []int, n int) string {
	if len(xs) == 0 {
		return fmt.Sprintf("int(1..%d)", n)
	}
	return "int(" + joinInts(xs) + ")"
}
