package chef

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylchen07/chefkit/pkg/session"
)

func TestNewRejectsCredentials(t *testing.T) {
	fake := &fakeRequester{probe: &session.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       []byte(`{"error":["bad signature"]}`),
	}}

	_, err := New(context.Background(), fake, testBaseURL, "acme")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAuthentication))
	assert.Contains(t, errors.FlattenDetails(err), "bad signature")
	assert.NotEmpty(t, errors.GetAllHints(err))
}

// failingRequester fails every call at the transport level
type failingRequester struct{}

func (failingRequester) Get(context.Context, string, url.Values) (*session.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (failingRequester) Post(context.Context, string, url.Values, any) (*session.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (failingRequester) Put(context.Context, string, any) (*session.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func (failingRequester) Delete(context.Context, string) (*session.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestNewTransportFailure(t *testing.T) {
	_, err := New(context.Background(), failingRequester{}, testBaseURL, "acme")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAuthentication))
}

func TestNewReadsIndexes(t *testing.T) {
	c, _ := newTestChef(t, nil)

	assert.Equal(t, []string{"client", "environment", "node", "role", "users"}, c.SearchIndexes())
	assert.Equal(t, testOrgURL, c.OrganizationURL())
	assert.Equal(t, "acme", c.Organization())
}

func TestNewAcceptsIndexList(t *testing.T) {
	resp := &session.Response{StatusCode: http.StatusOK, Body: []byte(`["role","node"]`)}
	indexes, err := parseIndexes(resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"node", "role"}, indexes)
}

func TestNodeByName(t *testing.T) {
	c, _ := newTestChef(t, func(r request) (*session.Response, error) {
		return jsonResponse(http.StatusOK, map[string]any{
			"Web-01": testOrgURL + "/nodes/Web-01",
			"db-01":  testOrgURL + "/nodes/db-01",
		}), nil
	})

	node, err := c.NodeByName(context.Background(), "web-01")
	require.NoError(t, err)
	assert.Equal(t, "Web-01", node.Name())

	_, err = c.NodeByName(context.Background(), "cache-01")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNodeByIPAddress(t *testing.T) {
	c, fake := newTestChef(t, func(r request) (*session.Response, error) {
		return searchPage(r, 1, func(int) map[string]any { return nodeRow(5) }), nil
	})

	node, err := c.NodeByIPAddress(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "node-005", node.Name())

	ip, err := node.IPAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ip)

	calls := fake.requests(http.MethodGet, testOrgURL+"/search/node")
	require.Len(t, calls, 1)
	assert.Equal(t, "ipaddress:10.0.0.5", calls[0].params.Get("q"))
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `web\-01`, escapeQuery("web-01"))
	assert.Equal(t, `fe80\:\:1`, escapeQuery("fe80::1"))
	assert.Equal(t, `a\ b`, escapeQuery("a b"))
	assert.Equal(t, `x\/y`, escapeQuery("x/y"))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Nodes")
	require.True(t, ok)
	assert.Equal(t, KindNode, k)

	k, ok = ParseKind("data_bags")
	require.True(t, ok)
	assert.Equal(t, KindDataBag, k)

	_, ok = ParseKind("users")
	assert.False(t, ok)
}

func TestKindURLs(t *testing.T) {
	assert.Equal(t, testOrgURL+"/clients/ci/keys", KindClientKey.collectionURL(testOrgURL, "ci"))
	assert.Equal(t, testOrgURL+"/data/users/alice", KindDataBagItem.entityURL(testOrgURL, "users", "alice"))
	assert.Equal(t, testOrgURL+"/cookbooks/apache2/_latest", KindCookbookVersion.entityURL(testOrgURL, "apache2", "_latest"))
	assert.Equal(t, "users", KindDataBagItem.searchIndex("users"))
	assert.Equal(t, "", KindCookbook.searchIndex(""))
}
