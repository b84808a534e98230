package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockTransport is an http.RoundTripper that answers from a scenario's mocks
// instead of the network. Install it on pkg/http's client:
//
//	mt := testkit.NewMockTransport(s.Mocks, true)
//	http.DefaultClient.Transport = mt
//	defer http.ResetTransport()
type MockTransport struct {
	mu      sync.Mutex
	mocks   []mockEntry
	require bool
}

type mockEntry struct {
	mock   Mock
	calls  int
	bodies [][]byte
}

func NewMockTransport(mocks []Mock, require bool) *MockTransport {
	mt := &MockTransport{require: require}
	for _, m := range mocks {
		mt.mocks = append(mt.mocks, mockEntry{mock: m})
	}
	return mt
}

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	for i := range mt.mocks {
		e := &mt.mocks[i]
		if !strings.HasPrefix(req.URL.String(), e.mock.MatchURL) {
			continue
		}
		if e.mock.Method != "" && !strings.EqualFold(e.mock.Method, req.Method) {
			continue
		}
		e.calls++
		e.bodies = append(e.bodies, body)
		return respond(req, e.mock.StatusCode, e.mock.Body), nil
	}

	if mt.require {
		return nil, fmt.Errorf("testkit: unexpected outgoing %s %s", req.Method, req.URL)
	}
	return respond(req, http.StatusNotFound, []byte(`{"error":"no mock configured"}`)), nil
}

// Requests returns the bodies sent to the mock matching url, in call order.
func (mt *MockTransport) Requests(url string) [][]byte {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	var out [][]byte
	for _, e := range mt.mocks {
		if strings.HasPrefix(url, e.mock.MatchURL) {
			out = append(out, e.bodies...)
		}
	}
	return out
}

// Unmet lists the mocks whose call count does not match their expectation.
func (mt *MockTransport) Unmet() []error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var errs []error
	for _, e := range mt.mocks {
		switch {
		case e.mock.Times == 0 && e.calls == 0:
			errs = append(errs, fmt.Errorf("testkit: mock %q was never called", e.mock.MatchURL))
		case e.mock.Times > 0 && e.calls != e.mock.Times:
			errs = append(errs, fmt.Errorf("testkit: mock %q called %d times, want %d", e.mock.MatchURL, e.calls, e.mock.Times))
		}
	}
	return errs
}

func respond(req *http.Request, code int, body []byte) *http.Response {
	if code == 0 {
		code = http.StatusOK
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}
}
