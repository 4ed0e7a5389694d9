package chi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/db/meili"
	"github.com/kailas-cloud/moviedex/internal/db/meili/meilitest"
	healthuc "github.com/kailas-cloud/moviedex/internal/usecase/health"
	movieuc "github.com/kailas-cloud/moviedex/internal/usecase/movie"
)

const testMasterKey = "masterKey"

type testAPI struct {
	handler http.Handler
	backend *meilitest.Server
}

type apiOptions struct {
	clientKey    string
	apiKeys      []string
	waitForTasks bool
}

// newTestAPI wires the real services against an in-process fake backend.
func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()

	backend := meilitest.NewServer(testMasterKey)
	t.Cleanup(backend.Close)

	key := opts.clientKey
	if key == "" {
		key = testMasterKey
	}
	gw, err := meili.New(meili.Config{Address: backend.URL, APIKey: key, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	movies := movieuc.New(gw, nil, nil, movieuc.Options{
		WaitForTasks: opts.waitForTasks,
		PollInterval: 5 * time.Millisecond,
	})
	health := healthuc.New(gw, nil, nil)
	srv := NewServer(movies, health, zap.NewNop())

	return &testAPI{handler: NewRouter(srv, opts.apiKeys), backend: backend}
}

func (a *testAPI) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rr.Body.String())
	}
	return resp
}

func titles(t *testing.T, rr *httptest.ResponseRecorder) []string {
	t.Helper()
	var resp struct {
		Movies []struct {
			ID     uint64   `json:"id"`
			Title  string   `json:"title"`
			Genres []string `json:"genres"`
		} `json:"movies"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode movies: %v", err)
	}
	out := make([]string, len(resp.Movies))
	for i, m := range resp.Movies {
		out[i] = m.Title
	}
	return out
}
