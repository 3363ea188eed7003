package countsort

import (
	"math"
	"strconv"
)

// MaxKey is the largest key the frequency table can index. Sorting a larger
// value would need a table of more than 2^32 counters.
const MaxKey = min(1<<32-1, math.MaxInt-1)

// Integer is the set of key types the sort accepts.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Sort orders values ascending in place. On error the slice is left untouched.
func Sort[K Integer](values []K) error {
	sorted, err := Sorted(values)
	if err != nil {
		return err
	}
	copy(values, sorted)
	return nil
}

// Sorted returns a sorted copy of values and leaves the input unchanged.
func Sorted[K Integer](values []K) ([]K, error) {
	return SortBy(values, func(v K) K { return v })
}

// SortBy returns items ordered by key. Items with equal keys keep their input
// order. Every key must be non-negative.
func SortBy[E any, K Integer](items []E, key func(E) K) ([]E, error) {
	if len(items) == 0 {
		return nil, ErrInvalidSize
	}
	keys := make([]int, len(items))
	maxKey := 0
	for i, item := range items {
		k := key(item)
		if err := checkKey(i, k); err != nil {
			return nil, err
		}
		keys[i] = int(k)
		if keys[i] > maxKey {
			maxKey = keys[i]
		}
	}

	frequency := make([]int, maxKey+1)
	for _, k := range keys {
		frequency[k]++
	}
	// frequency[k] becomes the number of elements with key <= k.
	for k := 1; k <= maxKey; k++ {
		frequency[k] += frequency[k-1]
	}

	// Walking backwards places the last occurrence of each key in the last
	// free slot for that key, which keeps equal keys in input order.
	output := make([]E, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		k := keys[i]
		frequency[k]--
		output[frequency[k]] = items[i]
	}
	return output, nil
}

// Max returns the largest value in values.
func Max[K Integer](values []K) (K, error) {
	if len(values) == 0 {
		return 0, ErrInvalidSize
	}
	largest := values[0]
	for _, v := range values[1:] {
		if v > largest {
			largest = v
		}
	}
	return largest, nil
}

// Validate checks that values can be sorted. A positive limit additionally
// rejects any value above it.
func Validate[K Integer](values []K, limit K) error {
	if len(values) == 0 {
		return ErrInvalidSize
	}
	for i, v := range values {
		if err := checkKey(i, v); err != nil {
			return err
		}
		if limit > 0 && v > limit {
			return &ValueError{Index: i, Value: formatKey(v), Limit: formatKey(limit), Err: ErrValueTooLarge}
		}
	}
	return nil
}

func checkKey[K Integer](i int, k K) error {
	if k < 0 {
		return &ValueError{Index: i, Value: formatKey(k), Err: ErrInvalidValue}
	}
	if uint64(k) > MaxKey {
		return &ValueError{
			Index: i,
			Value: formatKey(k),
			Limit: strconv.FormatUint(MaxKey, 10),
			Err:   ErrKeyOutOfRange,
		}
	}
	return nil
}

// formatKey renders k without narrowing it to a fixed-width type.
func formatKey[K Integer](k K) string {
	if k < 0 {
		return strconv.FormatInt(int64(k), 10)
	}
	return strconv.FormatUint(uint64(k), 10)
}
