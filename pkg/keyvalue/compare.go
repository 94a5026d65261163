// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package keyvalue

import "fmt"

// Comparator orders two rows of equal shape, returning a negative number,
// zero, or a positive number depending on whether a sorts before, equal to,
// or after b.
type Comparator func(a, b Row) int

// DefaultComparator compares rows field by field, in order, using natural
// ordering for the common scalar types. The first unequal field decides
// the result.
func DefaultComparator(a, b Row) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValue(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareValue(a, b interface{}) int {
	switch av := a.(type) {
	case int:
		return compareInt64(int64(av), toInt64(b))
	case int32:
		return compareInt64(int64(av), toInt64(b))
	case int64:
		return compareInt64(av, toInt64(b))
	case float32:
		return compareFloat64(float64(av), toFloat64(b))
	case float64:
		return compareFloat64(av, toFloat64(b))
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
	case nil:
		if b == nil {
			return 0
		}
		return -1
	default:
		panic(fmt.Sprintf("keyvalue: unsupported comparable type %T", a))
	}
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float32:
		return float64(t)
	case float64:
		return t
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
