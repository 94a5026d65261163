// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package merge implements the sort-merge reader across a section's
// sorted runs: ordering within a key, the reducer (merge function)
// abstraction, and drop-delete semantics.
package merge

import "github.com/storj-thirdparty/corelake/pkg/keyvalue"

// Reducer folds a same-key group of records, already ordered by
// UDS/sequence with ties broken by physical/seq order, into one output
// KeyValue.
type Reducer interface {
	Reduce(group []keyvalue.KeyValue) keyvalue.KeyValue
}

// ReducerFunc adapts a plain function to Reducer.
type ReducerFunc func(group []keyvalue.KeyValue) keyvalue.KeyValue

// Reduce implements Reducer.
func (f ReducerFunc) Reduce(group []keyvalue.KeyValue) keyvalue.KeyValue { return f(group) }

// Deduplicate keeps only the last record in the group (the one the
// within-key order ranks highest), matching upsert/dedup semantics.
var Deduplicate Reducer = ReducerFunc(func(group []keyvalue.KeyValue) keyvalue.KeyValue {
	return group[len(group)-1]
})

// PartialUpdate folds the group left-to-right, overlaying each later
// record's non-nil value columns onto the running result — the standard
// "last non-null wins per column" partial-update merge.
var PartialUpdate Reducer = ReducerFunc(func(group []keyvalue.KeyValue) keyvalue.KeyValue {
	result := group[0]
	result.Value = result.Value.Clone()
	for _, kv := range group[1:] {
		for i, v := range kv.Value {
			if v != nil && i < len(result.Value) {
				result.Value[i] = v
			}
		}
		result.SeqNumber = kv.SeqNumber
		result.Kind = kv.Kind
	}
	return result
})

// AggregateField combines the value at columnIndex across the whole
// group using combine, keeping every other column from the last record.
func AggregateField(columnIndex int, combine func(a, b interface{}) interface{}) Reducer {
	return ReducerFunc(func(group []keyvalue.KeyValue) keyvalue.KeyValue {
		result := group[len(group)-1]
		result.Value = result.Value.Clone()
		acc := group[0].Value[columnIndex]
		for _, kv := range group[1:] {
			acc = combine(acc, kv.Value[columnIndex])
		}
		if columnIndex < len(result.Value) {
			result.Value[columnIndex] = acc
		}
		return result
	})
}

// ReducerMergeFunctionWrapper folds each same-key group produced by the
// merge engine into a single output record, then applies drop-delete
// semantics: if the reduced output is a DELETE and keepDelete is false,
// the group is dropped rather than emitted.
type ReducerMergeFunctionWrapper struct {
	Reducer    Reducer
	KeepDelete bool
}

// Merge reduces a group and reports whether it should be emitted.
func (w ReducerMergeFunctionWrapper) Merge(group []keyvalue.KeyValue) (keyvalue.KeyValue, bool) {
	out := w.Reducer.Reduce(group)
	if out.Kind == keyvalue.Delete && !w.KeepDelete {
		return keyvalue.KeyValue{}, false
	}
	return out, true
}
