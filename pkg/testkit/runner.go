package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	outbound "github.com/shashiranjanraj/storefront/pkg/http"
)

// Run executes the scenario at path against handler as a subtest.
func Run(t *testing.T, handler http.Handler, path string) {
	t.Helper()
	s, err := Load(path)
	require.NoError(t, err)
	t.Run(s.Name, func(t *testing.T) { RunScenario(t, handler, s) })
}

// RunDir runs every scenario in dir as its own subtest.
func RunDir(t *testing.T, handler http.Handler, dir string) {
	t.Helper()
	scenarios, err := LoadDir(dir)
	assert.NoError(t, err)
	for _, s := range scenarios {
		s := s
		t.Run(s.Name, func(t *testing.T) { RunScenario(t, handler, s) })
	}
}

// RunScenario fires every step of s in order and returns the captured
// variables. A failing step stops the scenario.
func RunScenario(t *testing.T, handler http.Handler, s *Scenario) map[string]string {
	t.Helper()

	mt := NewMockTransport(s.Mocks, s.MockRequired)
	outbound.DefaultClient.Transport = mt
	defer outbound.ResetTransport()

	vars := map[string]string{}
	for _, st := range s.Steps {
		if !runStep(t, handler, s, st, vars) {
			return vars
		}
	}
	for _, err := range mt.Unmet() {
		assert.NoError(t, err, "[%s]", s.Name)
	}
	return vars
}

func runStep(t *testing.T, handler http.Handler, s *Scenario, st Step, vars map[string]string) bool {
	t.Helper()
	label := fmt.Sprintf("[%s] %s", s.Name, st.Name)

	body, err := s.requestBody(st)
	if !assert.NoError(t, err, "%s: request body", label) {
		return false
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader([]byte(expand(string(body), vars)))
	}

	req := httptest.NewRequest(strings.ToUpper(st.Method), expand(st.URL, vars), rdr)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range st.Headers {
		req.Header.Set(k, expand(v, vars))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	ok := assert.Equal(t, st.ExpectedCode, rec.Code, "%s: status code\nbody: %s", label, rec.Body.String())

	want, err := s.expected(st)
	if !assert.NoError(t, err, "%s: expected body", label) {
		return false
	}
	if want != nil {
		ok = AssertSubset(t, []byte(expand(string(want), vars)), rec.Body.Bytes(), label) && ok
	}

	for name, src := range st.Capture {
		v, err := capture(src, rec)
		if !assert.NoError(t, err, "%s: capture %s", label, name) {
			return false
		}
		vars[name] = v
	}
	return ok
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// expand replaces {{name}} with captured values. Unknown names are left as is.
func expand(s string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

func parseCapture(src string) (kind, key string, err error) {
	kind, key, found := strings.Cut(src, ":")
	if !found || key == "" || (kind != "header" && kind != "body") {
		return "", "", fmt.Errorf("capture %q must be header:<Name> or body:<path>", src)
	}
	return kind, key, nil
}

func capture(src string, rec *httptest.ResponseRecorder) (string, error) {
	kind, key, err := parseCapture(src)
	if err != nil {
		return "", err
	}
	if kind == "header" {
		v := rec.Header().Get(key)
		if v == "" {
			return "", fmt.Errorf("response has no %s header", key)
		}
		return v, nil
	}

	var doc any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		return "", fmt.Errorf("response is not JSON: %w", err)
	}
	v, ok := lookup(doc, key)
	if !ok {
		return "", fmt.Errorf("response has no %q", key)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, _ := json.Marshal(v)
	return string(b), nil
}

// lookup walks a dot path ("data.order.orderId", "data.lines.0.itemId").
func lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			var i int
			if _, err := fmt.Sscanf(part, "%d", &i); err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
