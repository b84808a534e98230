package testkit

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertSubset checks that every value in expected appears in actual.
// Objects may carry extra keys; arrays must have the same length.
func AssertSubset(t *testing.T, expected, actual []byte, label string) bool {
	t.Helper()

	var exp, act any
	if !assert.NoError(t, json.Unmarshal(expected, &exp), "%s: expected body is not valid JSON", label) {
		return false
	}
	if !assert.NoError(t, json.Unmarshal(actual, &act), "%s: response is not valid JSON\nbody: %s", label, actual) {
		return false
	}
	diffs := Diff("", exp, act)
	return assert.Empty(t, diffs, "%s: response body mismatch\nbody: %s", label, actual)
}

// Diff lists where actual does not contain expected.
func Diff(path string, expected, actual any) []string {
	var diffs []string
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("%s: expected object, got %T", keyPath(path), actual)}
		}
		for k, ev := range exp {
			av, exists := act[k]
			if !exists {
				diffs = append(diffs, fmt.Sprintf("%s.%s: missing", keyPath(path), k))
				continue
			}
			diffs = append(diffs, Diff(path+"."+k, ev, av)...)
		}
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return []string{fmt.Sprintf("%s: expected array, got %T", keyPath(path), actual)}
		}
		if len(exp) != len(act) {
			diffs = append(diffs, fmt.Sprintf("%s: length %d, want %d", keyPath(path), len(act), len(exp)))
		}
		for i := 0; i < len(exp) && i < len(act); i++ {
			diffs = append(diffs, Diff(fmt.Sprintf("%s.%d", path, i), exp[i], act[i])...)
		}
	default:
		if !assert.ObjectsAreEqual(expected, actual) {
			diffs = append(diffs, fmt.Sprintf("%s: got %v, want %v", keyPath(path), actual, expected))
		}
	}
	return diffs
}

func keyPath(path string) string {
	if path == "" {
		return "root"
	}
	return strings.TrimPrefix(path, ".")
}
