package chef

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylchen07/chefkit/pkg/session"
)

func TestOffsets(t *testing.T) {
	tests := []struct {
		name  string
		total int
		rows  int
		want  []int
	}{
		{name: "empty", total: 0, rows: 10, want: nil},
		{name: "single page", total: 10, rows: 10, want: nil},
		{name: "one extra row", total: 11, rows: 10, want: []int{10}},
		{name: "exact pages", total: 30, rows: 10, want: []int{10, 20}},
		{name: "partial last page", total: 25, rows: 10, want: []int{10, 20}},
		{name: "bad rows", total: 25, rows: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, offsets(tt.total, tt.rows))
		})
	}
}

func TestSearchSinglePage(t *testing.T) {
	c, fake := newTestChef(t, func(r request) (*session.Response, error) {
		return searchPage(r, 3, nodeRow), nil
	})

	seq, err := c.Nodes().Search(context.Background(), "*:*", nil)
	require.NoError(t, err)

	var names []string
	for node := range seq {
		names = append(names, node.Name())
	}

	assert.Equal(t, []string{"node-000", "node-001", "node-002"}, names)
	calls := fake.requests(http.MethodGet, testOrgURL+"/search/node")
	require.Len(t, calls, 1)
	assert.Equal(t, "*:*", calls[0].params.Get("q"))
	assert.Equal(t, "0", calls[0].params.Get("start"))
	assert.Equal(t, strconv.Itoa(DefaultPageSize), calls[0].params.Get("rows"))
}

func TestSearchFetchesEveryPage(t *testing.T) {
	c, fake := newTestChef(t, func(r request) (*session.Response, error) {
		return searchPage(r, 25, nodeRow), nil
	}, WithPageSize(10))

	seq, err := c.Nodes().Search(context.Background(), "*:*", nil)
	require.NoError(t, err)

	var names []string
	for node := range seq {
		names = append(names, node.Name())
	}

	require.Len(t, names, 25)
	for i := 0; i < 10; i++ {
		assert.Equal(t, nodeName(i), names[i], "first page keeps server order")
	}
	want := make([]string, 25)
	for i := range want {
		want[i] = nodeName(i)
	}
	assert.ElementsMatch(t, want, names)

	starts := map[string]bool{}
	for _, call := range fake.requests(http.MethodGet, testOrgURL+"/search/node") {
		starts[call.params.Get("start")] = true
		assert.Equal(t, "10", call.params.Get("rows"))
	}
	assert.Equal(t, map[string]bool{"0": true, "10": true, "20": true}, starts)
}

func TestSearchBoundsConcurrentPages(t *testing.T) {
	var inFlight, peak atomic.Int32
	c, _ := newTestChef(t, func(r request) (*session.Response, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return searchPage(r, 100, nodeRow), nil
	}, WithPageSize(10), WithWorkers(2))

	seq, err := c.Nodes().Search(context.Background(), "*:*", nil)
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
	}

	assert.Equal(t, 100, count)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSearchDropsFailedPage(t *testing.T) {
	diags := &diagnostics{}
	c, _ := newTestChef(t, func(r request) (*session.Response, error) {
		if r.params.Get("start") == "10" {
			return jsonResponse(http.StatusInternalServerError, map[string]any{"error": []string{"boom"}}), nil
		}
		return searchPage(r, 25, nodeRow), nil
	}, WithPageSize(10), WithDiagnostics(diags.record))

	seq, err := c.Nodes().Search(context.Background(), "*:*", nil)
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
	}

	assert.Equal(t, 15, count)
	seen := diags.all()
	require.Len(t, seen, 1)
	assert.Equal(t, DiagPageDropped, seen[0].Kind)
	assert.Equal(t, "node", seen[0].Index)
	assert.Equal(t, 10, seen[0].Start)
	assert.True(t, errors.Is(seen[0].Err, ErrSearchFailed))
}

func TestSearchFirstPageFails(t *testing.T) {
	diags := &diagnostics{}
	c, fake := newTestChef(t, func(r request) (*session.Response, error) {
		if r.params.Get("start") == "0" {
			return jsonResponse(http.StatusInternalServerError, map[string]any{"error": []string{"boom"}}), nil
		}
		return searchPage(r, 25, nodeRow), nil
	}, WithPageSize(10), WithDiagnostics(diags.record))

	seq, err := c.Nodes().Search(context.Background(), "*:*", nil)
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
	}

	assert.Zero(t, count)
	assert.Len(t, fake.requests(http.MethodGet, testOrgURL+"/search/node"), 1, "no fan-out without a total")
	seen := diags.all()
	require.Len(t, seen, 1)
	assert.Equal(t, DiagPageDropped, seen[0].Kind)
	assert.Equal(t, 0, seen[0].Start)
	assert.True(t, errors.Is(seen[0].Err, ErrSearchFailed))
}

func TestSearchTransportErrorDropsPage(t *testing.T) {
	diags := &diagnostics{}
	c, _ := newTestChef(t, func(r request) (*session.Response, error) {
		if r.params.Get("start") == "20" {
			return nil, errors.New("connection reset")
		}
		return searchPage(r, 25, nodeRow), nil
	}, WithPageSize(10), WithDiagnostics(diags.record))

	seq, err := c.Nodes().Search(context.Background(), "*:*", nil)
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
	}

	assert.Equal(t, 20, count)
	require.Len(t, diags.all(), 1)
	assert.Equal(t, 20, diags.all()[0].Start)
}

func TestSearchStopsEarly(t *testing.T) {
	c, _ := newTestChef(t, func(r request) (*session.Response, error) {
		return searchPage(r, 50, nodeRow), nil
	}, WithPageSize(10), WithWorkers(1))

	seq, err := c.Nodes().Search(context.Background(), "*:*", nil)
	require.NoError(t, err)

	var first string
	for node := range seq {
		first = node.Name()
		break
	}
	assert.Equal(t, "node-000", first)
}

func TestSearchRejectsUnknownIndex(t *testing.T) {
	c, fake := newTestChef(t, nil)

	_, err := c.Search(context.Background(), "missing", "*:*", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSearchIndex))
	assert.Empty(t, fake.requests(http.MethodGet, testOrgURL+"/search/"))
}

func TestSearchKindWithoutIndex(t *testing.T) {
	c, _ := newTestChef(t, nil)

	_, err := c.Cookbooks().Search(context.Background(), "*:*", nil)
	assert.True(t, errors.Is(err, ErrInvalidSearchIndex))
}

func TestSearchFullRowsPrimeCache(t *testing.T) {
	c, fake := newTestChef(t, func(r request) (*session.Response, error) {
		return searchPage(r, 2, nodeRow), nil
	})

	seq, err := c.Nodes().Search(context.Background(), "*:*", nil)
	require.NoError(t, err)

	for node := range seq {
		assert.True(t, node.Loaded())
		env, err := node.ChefEnvironment(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "_default", env)
	}
	assert.Empty(t, fake.requests(http.MethodGet, testOrgURL+"/nodes/"))
}

func TestSearchWithProjection(t *testing.T) {
	c, fake := newTestChef(t, func(r request) (*session.Response, error) {
		return searchPage(r, 2, func(i int) map[string]any {
			return map[string]any{
				"url":  testOrgURL + "/nodes/" + nodeName(i),
				"data": map[string]any{"ip": "10.0.0." + strconv.Itoa(i)},
			}
		}), nil
	})

	projection := map[string][]string{"ip": {"ipaddress"}}
	seq, err := c.Search(context.Background(), "node", "role:web", projection)
	require.NoError(t, err)

	var hits []*Entity
	for e := range seq {
		hits = append(hits, e)
	}

	require.Len(t, hits, 2)
	assert.Equal(t, "node-000", hits[0].Name())
	assert.Equal(t, testOrgURL+"/nodes/node-000", hits[0].URL())
	assert.Equal(t, map[string]any{"ip": "10.0.0.0"}, hits[0].Partial())
	assert.False(t, hits[0].Loaded())

	posts := fake.requests(http.MethodPost, testOrgURL+"/search/node")
	require.Len(t, posts, 1)
	assert.Equal(t, projection, posts[0].body)
	assert.Equal(t, "role:web", posts[0].params.Get("q"))
}

func TestFilterUsesSmallerPages(t *testing.T) {
	c, fake := newTestChef(t, func(r request) (*session.Response, error) {
		return searchPage(r, 1, nodeRow), nil
	})

	seq, err := c.Nodes().Filter(context.Background(), "name:web*", nil)
	require.NoError(t, err)
	for range seq {
	}

	calls := fake.requests(http.MethodGet, testOrgURL+"/search/node")
	require.Len(t, calls, 1)
	assert.Equal(t, strconv.Itoa(DefaultFilterPageSize), calls[0].params.Get("rows"))
}
