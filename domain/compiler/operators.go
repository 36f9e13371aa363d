package compiler

import "strings"

type fixity int

const (
	infix fixity = iota
	prefix
)

type operator struct {
	symbol  string
	fixity  fixity
	minArgs int
	// maxArgs is -1 for associative operators that fold any number of operands.
	maxArgs int
	boolean bool
}

var operators = map[string]operator{
	"+":       {symbol: "+", minArgs: 2, maxArgs: -1},
	"-":       {symbol: "-", minArgs: 2, maxArgs: 2},
	"*":       {symbol: "*", minArgs: 2, maxArgs: -1},
	"/":       {symbol: "/", minArgs: 2, maxArgs: 2},
	">":       {symbol: ">", minArgs: 2, maxArgs: 2, boolean: true},
	">=":      {symbol: ">=", minArgs: 2, maxArgs: 2, boolean: true},
	"<":       {symbol: "<", minArgs: 2, maxArgs: 2, boolean: true},
	"<=":      {symbol: "<=", minArgs: 2, maxArgs: 2, boolean: true},
	"=":       {symbol: "=", minArgs: 2, maxArgs: 2, boolean: true},
	"!=":      {symbol: "!=", minArgs: 2, maxArgs: 2, boolean: true},
	"and":     {symbol: `/\`, minArgs: 2, maxArgs: -1, boolean: true},
	"or":      {symbol: `\/`, minArgs: 2, maxArgs: -1, boolean: true},
	"not":     {symbol: "!", fixity: prefix, minArgs: 1, maxArgs: 1, boolean: true},
	"implies": {symbol: "->", minArgs: 2, maxArgs: 2, boolean: true},
}

var operatorAliases = map[string]string{
	"plus": "+", "minus": "-", "times": "*", "×": "*", "divide": "/", "÷": "/",
	"gt": ">", "ge": ">=", "≥": ">=", "lt": "<", "le": "<=", "≤": "<=",
	"eq": "=", "==": "=", "ne": "!=", "≠": "!=", "<>": "!=",
	"&&": "and", "||": "or", "!": "not", "->": "implies", "=>": "implies",
}

func lookupOperator(name string) (operator, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := operatorAliases[name]; ok {
		name = alias
	}
	op, ok := operators[name]
	return op, ok
}

// render combines resolved operands with the operator symbol.
func (op operator) render(args []string) (string, bool) {
	if len(args) < op.minArgs || (op.maxArgs >= 0 && len(args) > op.maxArgs) {
		return "", false
	}
	if op.fixity == prefix {
		return op.symbol + "(" + args[0] + ")", true
	}
	return "(" + strings.Join(args, " "+op.symbol+" ") + ")", true
}

// AggregateOp is an aggregation over container members.
type AggregateOp string

const (
	AggSum    AggregateOp = "sum"
	AggAvg    AggregateOp = "avg"
	AggSpread AggregateOp = "spread"
	AggMax    AggregateOp = "max"
	AggMin    AggregateOp = "min"
	AggCount  AggregateOp = "count"
)

func lookupAggregate(name string) (AggregateOp, bool) {
	switch op := AggregateOp(strings.ToLower(strings.TrimSpace(name))); op {
	case AggSum, AggAvg, AggSpread, AggMax, AggMin, AggCount:
		return op, true
	case "average", "mean":
		return AggAvg, true
	case "range":
		return AggSpread, true
	}
	return "", false
}

// objectiveKeyword maps a directive to its keyword.
func objectiveKeyword(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "maximise", "maximize", "max":
		return "maximising", true
	case "minimise", "minimize", "min":
		return "minimising", true
	}
	return "", false
}

// opName prefers TypeAttributes.Operator and falls back to the node name.
func opName(operator, name string) string {
	if operator != "" {
		return operator
	}
	return name
}
