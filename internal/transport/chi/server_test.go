package chi

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestHello(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rr := api.do(t, "GET", "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if rr.Body.String() != "Hello world!" {
		t.Errorf("body: got %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type: got %q", ct)
	}
}

func TestAddThenSearch(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rr := api.do(t, "GET", "/add", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("add: got %d, body %s", rr.Code, rr.Body.String())
	}
	var msg MessageResponse
	if err := json.NewDecoder(rr.Body).Decode(&msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Message != "Movies have been added." {
		t.Errorf("message: got %q", msg.Message)
	}
	if n := api.backend.Documents("movies"); n != 6 {
		t.Fatalf("expected 6 documents, got %d", n)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"Drama", []string{"Carol", "Life of Pi", "Philadelphia"}},
		{"Moana", []string{"Moana"}},
		{"zzz", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			rr := api.do(t, "GET", "/movies?q="+tc.query, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("got %d, body %s", rr.Code, rr.Body.String())
			}
			got := titles(t, rr)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("movies[%d]: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSearch_EmptyResultIsEmptyList(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	api.do(t, "GET", "/add", "")

	rr := api.do(t, "GET", "/movies?q=zzz", "")
	if got := strings.TrimSpace(rr.Body.String()); got != `{"movies":[]}` {
		t.Errorf("body: got %s", got)
	}
}

func TestAdd_Idempotent(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	for i := 0; i < 2; i++ {
		if rr := api.do(t, "GET", "/add", ""); rr.Code != http.StatusOK {
			t.Fatalf("add #%d: got %d", i+1, rr.Code)
		}
	}
	if n := api.backend.Documents("movies"); n != 6 {
		t.Errorf("expected 6 documents after repeated add, got %d", n)
	}
}

func TestSearch_QueryForwardedVerbatim(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	api.do(t, "GET", "/add", "")

	api.do(t, "GET", "/movies?q=Life%20of%20Pi", "")
	calls := api.backend.Searches()
	if len(calls) != 1 || calls[0].Query != "Life of Pi" || calls[0].Index != "movies" {
		t.Errorf("unexpected backend calls: %+v", calls)
	}
}

func TestSearch_BadQuery(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	for _, target := range []string{"/movies", "/movies?title=Carol", "/movies?q=%zz"} {
		t.Run(target, func(t *testing.T) {
			rr := api.do(t, "GET", target, "")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", rr.Code)
			}
			if e := decodeError(t, rr); e.Code != ErrorCodeBadRequest {
				t.Errorf("code: got %q", e.Code)
			}
			if len(api.backend.Searches()) != 0 {
				t.Error("backend must not be called for a bad query")
			}
		})
	}
}

func TestUpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(api *testAPI)
		opts   apiOptions
		target string
		status int
		code   ErrorCode
	}{
		{
			name:   "backend unreachable on search",
			setup:  func(api *testAPI) { api.backend.Close() },
			target: "/movies?q=Drama",
			status: http.StatusServiceUnavailable,
			code:   ErrorCodeUpstreamUnavailable,
		},
		{
			name:   "backend unreachable on add",
			setup:  func(api *testAPI) { api.backend.Close() },
			target: "/add",
			status: http.StatusServiceUnavailable,
			code:   ErrorCodeUpstreamUnavailable,
		},
		{
			name:   "wrong credential",
			opts:   apiOptions{clientKey: "wrong"},
			target: "/add",
			status: http.StatusBadGateway,
			code:   ErrorCodeUpstreamError,
		},
		{
			name:   "backend error",
			setup:  func(api *testAPI) { api.backend.FailWith(http.StatusInternalServerError) },
			target: "/movies?q=Drama",
			status: http.StatusBadGateway,
			code:   ErrorCodeUpstreamError,
		},
		{
			name:   "backend overloaded",
			setup:  func(api *testAPI) { api.backend.FailWith(http.StatusServiceUnavailable) },
			target: "/movies?q=Drama",
			status: http.StatusServiceUnavailable,
			code:   ErrorCodeUpstreamUnavailable,
		},
		{
			name:   "index missing",
			target: "/movies?q=Drama",
			status: http.StatusBadGateway,
			code:   ErrorCodeUpstreamError,
		},
		{
			name:   "malformed hits",
			setup:  func(api *testAPI) { api.backend.ReplySearch(`{"hits":[{"id":"x","title":1}]}`) },
			target: "/movies?q=Drama",
			status: http.StatusBadGateway,
			code:   ErrorCodeUpstreamError,
		},
		{
			name:   "indexing failed while waiting",
			opts:   apiOptions{waitForTasks: true},
			setup:  func(api *testAPI) { api.backend.FailTasks() },
			target: "/add",
			status: http.StatusBadGateway,
			code:   ErrorCodeIndexingFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI(t, tc.opts)
			if tc.setup != nil {
				tc.setup(api)
			}

			rr := api.do(t, "GET", tc.target, "")
			if rr.Code != tc.status {
				t.Fatalf("status: got %d, want %d (body %s)", rr.Code, tc.status, rr.Body.String())
			}
			e := decodeError(t, rr)
			if e.Code != tc.code {
				t.Errorf("code: got %q, want %q", e.Code, tc.code)
			}
			if strings.Contains(e.Message, "127.0.0.1") || strings.Contains(e.Message, "forced") {
				t.Errorf("message leaks backend details: %q", e.Message)
			}
		})
	}
}

func TestAdd_WaitForTasks(t *testing.T) {
	api := newTestAPI(t, apiOptions{waitForTasks: true})

	rr := api.do(t, "GET", "/add", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestCreateMovies(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rr := api.do(t, "POST", "/movies",
		`{"movies":[{"id":7,"title":"Arrival","genres":["Science Fiction","Drama"]}]}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("got %d, body %s", rr.Code, rr.Body.String())
	}
	var resp AcceptedResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TaskUID != 1 || resp.Status != "enqueued" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if _, ok := api.backend.Document("movies", "7"); !ok {
		t.Error("document 7 not indexed")
	}

	rr = api.do(t, "GET", "/movies?q=Arrival", "")
	if got := titles(t, rr); len(got) != 1 || got[0] != "Arrival" {
		t.Errorf("search after create: got %v", got)
	}
}

func TestCreateMovies_Invalid(t *testing.T) {
	tooMany := `{"movies":[` + strings.TrimSuffix(strings.Repeat(`{"id":1,"title":"x"},`, 1001), ",") + `]}`

	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"movies":`, ErrorCodeBadRequest},
		{"wrong type", `{"movies":[{"id":"seven","title":"x"}]}`, ErrorCodeBadRequest},
		{"missing movies", `{}`, ErrorCodeValidationFailed},
		{"empty batch", `{"movies":[]}`, ErrorCodeValidationFailed},
		{"empty title", `{"movies":[{"id":1,"title":""}]}`, ErrorCodeValidationFailed},
		{"too many", tooMany, ErrorCodeValidationFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI(t, apiOptions{})

			rr := api.do(t, "POST", "/movies", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400 (body %s)", rr.Code, rr.Body.String())
			}
			if e := decodeError(t, rr); e.Code != tc.code {
				t.Errorf("code: got %q, want %q (%s)", e.Code, tc.code, e.Message)
			}
			if api.backend.Documents("movies") != 0 {
				t.Error("nothing should be indexed")
			}
		})
	}
}

func TestGetTask(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	api.do(t, "GET", "/add", "")

	rr := api.do(t, "GET", "/tasks/1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rr.Code, rr.Body.String())
	}
	var resp TaskResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TaskUID != 1 || resp.Status != "succeeded" {
		t.Errorf("unexpected task: %+v", resp)
	}

	if rr := api.do(t, "GET", "/tasks/abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad uid: got %d, want 400", rr.Code)
	}
	rr = api.do(t, "GET", "/tasks/999", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown task: got %d, want 404", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeTaskNotFound {
		t.Errorf("code: got %q", e.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rr := api.do(t, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["search"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}

	api.backend.Close()
	rr = api.do(t, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("backend down: got %d, want 503", rr.Code)
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["search"] != "error" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	api.do(t, "GET", "/", "")

	rr := api.do(t, "GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
}

func TestRouter_Auth(t *testing.T) {
	api := newTestAPI(t, apiOptions{apiKeys: []string{"secret"}})

	if rr := api.do(t, "GET", "/", ""); rr.Code != http.StatusOK {
		t.Errorf("greeting must stay public, got %d", rr.Code)
	}
	if rr := api.do(t, "GET", "/add", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("add without token: got %d, want 401", rr.Code)
	}
	if rr := api.do(t, "GET", "/movies?q=x", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("search without token: got %d, want 401", rr.Code)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rr := api.do(t, "GET", "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeNotFound {
		t.Errorf("code: got %q", e.Code)
	}

	rr = api.do(t, "DELETE", "/movies", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got %d, want 405", rr.Code)
	}
}

func TestRouter_RequestID(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rr := api.do(t, "GET", "/", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}
