package common

import "fmt"

// Align8 rounds the given integer up to the nearest multiple of 8.
func Align8(n int) int {
	return (n + 7) &^ 7
}

// Assert checks a condition and panics if it is false.
//
// Assertions guard invariants of the engine itself: truths about internal state that must always hold
// (a schema with no fields, a switch case that cannot be reached). Anything a caller can get wrong, such
// as calling Next before Open or comparing mismatched types, is reported through an error instead.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
