package chef

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ylchen07/chefkit/pkg/session"
)

const (
	testBaseURL = "https://chef.example.com"
	testOrgURL  = testBaseURL + "/organizations/acme"
)

type request struct {
	method string
	url    string
	params url.Values
	body   any
}

// fakeRequester answers the authentication probe itself and hands every
// other call to handle. It records all calls.
type fakeRequester struct {
	indexes map[string]any
	handle  func(request) (*session.Response, error)

	// probe replaces the answer to the authentication probe when set
	probe *session.Response

	mu    sync.Mutex
	calls []request
}

func (f *fakeRequester) serve(r request) (*session.Response, error) {
	if r.method == http.MethodGet && r.url == testOrgURL+"/search" {
		if f.probe != nil {
			return f.probe, nil
		}
		return jsonResponse(http.StatusOK, f.indexes), nil
	}
	f.mu.Lock()
	f.calls = append(f.calls, r)
	f.mu.Unlock()
	if f.handle == nil {
		return jsonResponse(http.StatusNotFound, map[string]any{"error": []string{"not found"}}), nil
	}
	return f.handle(r)
}

func (f *fakeRequester) Get(_ context.Context, rawURL string, params url.Values) (*session.Response, error) {
	return f.serve(request{method: http.MethodGet, url: rawURL, params: params})
}

func (f *fakeRequester) Post(_ context.Context, rawURL string, params url.Values, body any) (*session.Response, error) {
	return f.serve(request{method: http.MethodPost, url: rawURL, params: params, body: body})
}

func (f *fakeRequester) Put(_ context.Context, rawURL string, body any) (*session.Response, error) {
	return f.serve(request{method: http.MethodPut, url: rawURL, body: body})
}

func (f *fakeRequester) Delete(_ context.Context, rawURL string) (*session.Response, error) {
	return f.serve(request{method: http.MethodDelete, url: rawURL})
}

// requests returns the recorded calls with the given method whose URL
// starts with prefix
func (f *fakeRequester) requests(method, prefix string) []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []request
	for _, r := range f.calls {
		if r.method == method && strings.HasPrefix(r.url, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func jsonResponse(status int, v any) *session.Response {
	b, _ := json.Marshal(v)
	return &session.Response{StatusCode: status, Body: b}
}

func defaultIndexes() map[string]any {
	return map[string]any{
		"client":      testOrgURL + "/search/client",
		"environment": testOrgURL + "/search/environment",
		"node":        testOrgURL + "/search/node",
		"role":        testOrgURL + "/search/role",
		"users":       testOrgURL + "/search/users",
	}
}

func newTestChef(t *testing.T, handle func(request) (*session.Response, error), opts ...Option) (*Chef, *fakeRequester) {
	t.Helper()
	fake := &fakeRequester{indexes: defaultIndexes(), handle: handle}
	c, err := New(context.Background(), fake, testBaseURL, "acme", opts...)
	require.NoError(t, err)
	return c, fake
}

// searchPage serves the slice of total rows selected by the start and rows
// parameters
func searchPage(r request, total int, row func(i int) map[string]any) *session.Response {
	start, _ := strconv.Atoi(r.params.Get("start"))
	rows, _ := strconv.Atoi(r.params.Get("rows"))
	out := []map[string]any{}
	for i := start; i < start+rows && i < total; i++ {
		out = append(out, row(i))
	}
	return jsonResponse(http.StatusOK, map[string]any{"total": total, "start": start, "rows": out})
}

func nodeRow(i int) map[string]any {
	return map[string]any{
		"name":             nodeName(i),
		"chef_type":        "node",
		"chef_environment": "_default",
		"automatic":        map[string]any{"ipaddress": "10.0.0." + strconv.Itoa(i)},
	}
}

func nodeName(i int) string {
	return "node-" + strconv.Itoa(1000 + i)[1:]
}

// diagnostics collects reports from concurrent pages
type diagnostics struct {
	mu   sync.Mutex
	seen []Diagnostic
}

func (d *diagnostics) record(diag Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, diag)
}

func (d *diagnostics) all() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.seen...)
}
