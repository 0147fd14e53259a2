package util

import (
	"fmt"
	"reflect"
)

// Assert panics with a formatted message if the condition is false.
// It is reserved for programming-contract violations (malformed compiled
// programs, opcode sets out of sync): a failure is a bug in the caller,
// never a runtime condition to recover from.
// Usage: util.Assert(len(seq) > 0, "program must not be empty")
func Assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

// AssertNotNil panics if the value is nil (including typed nils like (*int)(nil)).
func AssertNotNil(value interface{}, name string) {
	if value == nil {
		panic(fmt.Sprintf("assertion failed: %s must not be nil", name))
	}
	v := reflect.ValueOf(value)
	if (v.Kind() == reflect.Ptr || v.Kind() == reflect.Slice) && v.IsNil() {
		panic(fmt.Sprintf("assertion failed: %s must not be nil", name))
	}
}
