// Package countsort implements a stable counting sort for non-negative integers.
//
// Running time and memory are O(n + max), where max is the largest value in the
// input. Callers that accept untrusted input should bound max with Validate
// before sorting.
package countsort
