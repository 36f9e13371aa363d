package compiler

import (
	"regexp"
	"strconv"
)

var invalidIdentRun = regexp.MustCompile(`[^A-Za-z0-9_]+`)

var reserved = map[string]struct{}{
	"language": {}, "find": {}, "given": {}, "letting": {}, "be": {}, "such": {}, "that": {},
	"where": {}, "domain": {}, "new": {}, "type": {}, "enum": {}, "of": {}, "in": {},
	"int": {}, "bool": {}, "set": {}, "mset": {}, "sequence": {}, "function": {},
	"relation": {}, "partition": {}, "matrix": {}, "indexed": {}, "by": {},
	"true": {}, "false": {}, "and": {}, "or": {}, "not": {}, "sum": {}, "min": {},
	"max": {}, "toInt": {}, "range": {}, "defined": {}, "flatten": {}, "forAll": {},
	"exists": {}, "maximising": {}, "minimising": {}, "minSize": {}, "maxSize": {},
	"size": {}, "injective": {}, "allDiff": {}, "union": {}, "intersect": {},
	"subset": {}, "subsetEq": {}, "product": {}, "image": {}, "preImage": {},
}

// Sanitize maps an arbitrary name onto the identifier alphabet: runs of
// characters outside [A-Za-z0-9_] become "_" and a leading digit gets "n_".
func Sanitize(name string) string {
	id := invalidIdentRun.ReplaceAllString(name, "_")
	switch {
	case id == "":
		return "n_"
	case id[0] >= '0' && id[0] <= '9':
		id = "n_" + id
	}
	if _, ok := reserved[id]; ok {
		id += "_"
	}
	return id
}

// namer hands out unique identifiers. The same (scope, name) pair always
// gets the same identifier; clashes get a numeric suffix in request order.
type namer struct {
	byKey map[string]string
	taken map[string]struct{}
}

func newNamer() *namer {
	return &namer{
		byKey: make(map[string]string),
		taken: make(map[string]struct{}),
	}
}

func (n *namer) ident(scope, name string) string {
	key := scope + "\x00" + name
	if id, ok := n.byKey[key]; ok {
		return id
	}
	base := Sanitize(name)
	id := base
	for i := 2; ; i++ {
		if _, clash := n.taken[id]; !clash {
			break
		}
		id = base + "_" + strconv.Itoa(i)
	}
	n.byKey[key] = id
	n.taken[id] = struct{}{}
	return id
}

// reserve blocks an identifier the emitter writes literally.
func (n *namer) reserve(ids ...string) {
	for _, id := range ids {
		n.taken[id] = struct{}{}
	}
}
