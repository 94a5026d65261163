// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package reader implements the File Reader Factory: opening a data file
// with a projected value type and an optional pushed-down predicate,
// applying the deletion vector on the fly.
package reader

// Predicate is a conjunctive filter expression. Compound conjunctions are
// represented as a flat list of top-level AND'd leaves, matching the
// "decomposed on top-level AND" model.
type Predicate struct {
	Leaves []Leaf
}

// Leaf is a single comparison against one column.
type Leaf struct {
	Column string
	Op     Op
	Value  interface{}
}

// Op is a comparison operator.
type Op int

const (
	// Eq tests equality.
	Eq Op = iota
	// Gte tests greater-than-or-equal.
	Gte
	// Lte tests less-than-or-equal.
	Lte
)

// And combines predicates by concatenating their top-level leaves.
func And(predicates ...Predicate) Predicate {
	var out Predicate
	for _, p := range predicates {
		out.Leaves = append(out.Leaves, p.Leaves...)
	}
	return out
}

// SplitByColumns partitions a predicate's leaves into those mentioning
// only columns in keyColumns (key-filter eligible) and the rest
// (value-filter only). Rationale: in overlapping sections, pushing a
// value predicate into individual files could drop rows that would have
// been superseded by a merge.
func SplitByColumns(p Predicate, keyColumns []string) (keyFilter, valueFilter Predicate) {
	keySet := make(map[string]bool, len(keyColumns))
	for _, c := range keyColumns {
		keySet[c] = true
	}
	for _, leaf := range p.Leaves {
		if keySet[leaf.Column] {
			keyFilter.Leaves = append(keyFilter.Leaves, leaf)
		} else {
			valueFilter.Leaves = append(valueFilter.Leaves, leaf)
		}
	}
	return keyFilter, valueFilter
}

// Eval evaluates the predicate against a named-column lookup function,
// used by readers applying an "unpushed" sub-predicate themselves.
func (p Predicate) Eval(get func(column string) (interface{}, bool)) bool {
	for _, leaf := range p.Leaves {
		v, ok := get(leaf.Column)
		if !ok {
			return false
		}
		if !evalLeaf(leaf, v) {
			return false
		}
	}
	return true
}

func evalLeaf(leaf Leaf, v interface{}) bool {
	c := compareAny(v, leaf.Value)
	switch leaf.Op {
	case Eq:
		return c == 0
	case Gte:
		return c >= 0
	case Lte:
		return c <= 0
	default:
		return false
	}
}

func compareAny(a, b interface{}) int {
	switch av := a.(type) {
	case int:
		return compareInt(int64(av), toInt(b))
	case int64:
		return compareInt(av, toInt(b))
	case float64:
		return compareFloat(av, toFloat(b))
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func toInt(v interface{}) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	}
	return 0
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
