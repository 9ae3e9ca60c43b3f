// Package reducers provides ready-made ReduceOperations for common
// aggregations
package reducers

import (
	"fmt"

	sieve "github.com/go-sif/sieve"
)

// SumFloat64 returns a ReduceOperation which sums numeric values as float64s
func SumFloat64() sieve.ReduceOperation {
	return func(left interface{}, right interface{}) (interface{}, error) {
		l, err := toFloat64(left)
		if err != nil {
			return nil, err
		}
		r, err := toFloat64(right)
		if err != nil {
			return nil, err
		}
		return l + r, nil
	}
}

// SumUint64 returns a ReduceOperation which sums uint64 values
func SumUint64() sieve.ReduceOperation {
	return func(left interface{}, right interface{}) (interface{}, error) {
		l, ok := left.(uint64)
		if !ok {
			return nil, fmt.Errorf("Value type %T is not a uint64", left)
		}
		r, ok := right.(uint64)
		if !ok {
			return nil, fmt.Errorf("Value type %T is not a uint64", right)
		}
		return l + r, nil
	}
}

// Count returns a ReduceOperation which counts occurrences. Pair it with a
// ValueExtractor which produces uint64(1) per item.
func Count() sieve.ReduceOperation {
	return SumUint64()
}

// MaxUint64 returns a ReduceOperation which keeps the larger of two uint64 values
func MaxUint64() sieve.ReduceOperation {
	return func(left interface{}, right interface{}) (interface{}, error) {
		l, ok := left.(uint64)
		if !ok {
			return nil, fmt.Errorf("Value type %T is not a uint64", left)
		}
		r, ok := right.(uint64)
		if !ok {
			return nil, fmt.Errorf("Value type %T is not a uint64", right)
		}
		if r > l {
			return r, nil
		}
		return l, nil
	}
}

// MinUint64 returns a ReduceOperation which keeps the smaller of two uint64 values
func MinUint64() sieve.ReduceOperation {
	return func(left interface{}, right interface{}) (interface{}, error) {
		l, ok := left.(uint64)
		if !ok {
			return nil, fmt.Errorf("Value type %T is not a uint64", left)
		}
		r, ok := right.(uint64)
		if !ok {
			return nil, fmt.Errorf("Value type %T is not a uint64", right)
		}
		if r < l {
			return r, nil
		}
		return l, nil
	}
}

// First returns a ReduceOperation which keeps the value combined first. Note
// that combine order follows run order during external merges, so First is
// only deterministic for tables which never spill.
func First() sieve.ReduceOperation {
	return func(left interface{}, right interface{}) (interface{}, error) {
		return left, nil
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("Value type %T cannot be summed as a float64", v)
}
