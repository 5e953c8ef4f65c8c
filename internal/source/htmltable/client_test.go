package htmltable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/transport"
)

const resultsPage = `<html><body>
<table class="results"><tbody>
<tr><td>2026-03-01</td><td>Arsenal</td><td>Chelsea</td><td>1-1</td></tr>
<tr><td>2026-03-02</td><td>Liverpool</td><td>Everton</td><td>2-0</td></tr>
</tbody></table>
</body></html>`

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	tr := transport.New(transport.Config{
		MaxRetries:  2,
		Timeout:     2 * time.Second,
		BaseBackoff: 10 * time.Millisecond,
	}, nil)
	client, err := New(Config{
		BaseURL:     baseURL,
		UserAgent:   "feedgate-test/1.0",
		RowSelector: "table.results tbody tr",
		Columns:     []string{"date", "home", "away", "score"},
	}, tr)
	require.NoError(t, err)
	return client
}

func TestFetchRawAndParse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	payload, err := client.FetchRaw(context.Background(), feed.FetchArgs{"path": "/results"})
	require.NoError(t, err)

	rec, err := client.Parse(payload)
	require.NoError(t, err)
	require.Len(t, rec.Rows, 2)
	assert.Equal(t, "Arsenal", rec.Rows[0]["home"])
	assert.Equal(t, "2-0", rec.Rows[1]["score"])
}

func TestFetchRawRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL)
	_, err := client.FetchRaw(context.Background(), feed.FetchArgs{"path": "/results"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestParseFailsWhenSelectorMatchesNothing(t *testing.T) {
	t.Parallel()

	client := testClient(t, "https://scores.example.com")
	_, err := client.Parse([]byte("<html><body><p>maintenance</p></body></html>"))
	require.Error(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	tr := transport.New(transport.Config{}, nil)
	_, err := New(Config{BaseURL: "https://x.example"}, tr)
	require.Error(t, err)

	_, err = New(Config{BaseURL: "https://x.example", RowSelector: "tr", Columns: []string{"a"}}, nil)
	require.Error(t, err)
}
