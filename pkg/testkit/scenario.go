// Package testkit drives HTTP API tests from JSON scenario files.
//
// A scenario is a named sequence of requests fired against one handler.
// Values captured from one response (a header, a field of the body) can be
// used by later steps as {{name}}:
//
//	{
//	  "name": "cash checkout",
//	  "steps": [
//	    {"method": "POST", "url": "/api/cart/items", "body": {"itemId": "burger"},
//	     "expectedCode": 201, "capture": {"token": "header:X-Cart-Token"}},
//	    {"method": "POST", "url": "/api/checkout", "headers": {"X-Cart-Token": "{{token}}"},
//	     "body": {"paymentMethod": "cash", "customer": {...}},
//	     "expectedCode": 201, "expect": {"data": {"status": "pending"}}}
//	  ]
//	}
//
// "expect" is a subset match: every key it names must be present with the
// same value, extra keys in the response are ignored.
//
// Outgoing calls made through pkg/http are answered by the scenario's mocks:
//
//	"mocks": [{"matchUrl": "https://payments.test/", "statusCode": 200,
//	           "body": {"result": {"success": true}}}]
//
// Example _test.go:
//
//	func TestAPI(t *testing.T) {
//	    testkit.RunDir(t, srv.Handler(), "testdata")
//	}
package testkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
)

// Scenario is one test case loaded from a JSON file.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	Steps []Step `json:"steps"`

	// Mocks answer outgoing HTTP calls. With MockRequired an unmatched call
	// fails instead of getting a 404.
	Mocks        []Mock `json:"mocks"`
	MockRequired bool   `json:"isMockRequired"`

	dir string
}

// Step is one request and its expectations.
type Step struct {
	Name    string            `json:"name"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`

	// Body is sent as-is. BodyFile is read relative to the scenario file
	// and wins over Body.
	Body     json.RawMessage `json:"body"`
	BodyFile string          `json:"bodyFile"`

	ExpectedCode int             `json:"expectedCode"`
	Expect       json.RawMessage `json:"expect"`
	ExpectFile   string          `json:"expectFile"`

	// Capture maps a variable name to "header:<Name>" or "body:<dot.path>".
	Capture map[string]string `json:"capture"`
}

// Mock is a canned answer for outgoing requests whose URL starts with
// MatchURL. An empty MatchURL matches everything.
type Mock struct {
	MatchURL   string          `json:"matchUrl"`
	Method     string          `json:"method"`
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`

	// Times is the exact number of calls expected. Zero means at least one.
	Times int `json:"times"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve %q: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}
	s.dir = filepath.Dir(abs)
	return &s, nil
}

// LoadDir loads every *.json file in dir that holds a scenario, sorted by
// file name. Files ending in .body.json or .expect.json are step payloads
// and are skipped.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var (
		out  []*Scenario
		errs []error
	)
	for _, p := range paths {
		if isPayload(p) {
			continue
		}
		s, err := Load(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 && len(errs) == 0 {
		return nil, fmt.Errorf("testkit: no scenario files found in %q", dir)
	}
	return out, errors.Join(errs...)
}

func isPayload(path string) bool {
	for _, suffix := range []string{".body.json", ".expect.json"} {
		if len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix {
			return true
		}
	}
	return false
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("at least one step is required")
	}
	for i := range s.Steps {
		st := &s.Steps[i]
		if st.URL == "" {
			return fmt.Errorf("steps[%d].url is required", i)
		}
		if st.ExpectedCode == 0 {
			return fmt.Errorf("steps[%d].expectedCode is required", i)
		}
		if st.Method == "" {
			st.Method = http.MethodGet
		}
		if st.Name == "" {
			st.Name = fmt.Sprintf("%d %s %s", i+1, st.Method, st.URL)
		}
		for name, src := range st.Capture {
			if _, _, err := parseCapture(src); err != nil {
				return fmt.Errorf("steps[%d].capture[%s]: %w", i, name, err)
			}
		}
	}
	return nil
}

func (s *Scenario) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

// requestBody returns the raw body for step st, or nil.
func (s *Scenario) requestBody(st Step) ([]byte, error) {
	if st.BodyFile != "" {
		return os.ReadFile(s.path(st.BodyFile))
	}
	if len(st.Body) == 0 {
		return nil, nil
	}
	return st.Body, nil
}

// expected returns the expected body subset for step st, or nil.
func (s *Scenario) expected(st Step) ([]byte, error) {
	if st.ExpectFile != "" {
		return os.ReadFile(s.path(st.ExpectFile))
	}
	if len(st.Expect) == 0 {
		return nil, nil
	}
	return st.Expect, nil
}
