// Package meilitest provides an in-process stand-in for the subset of the
// Meilisearch HTTP API used by moviedex. Test-only.
package meilitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Server is a fake Meilisearch. Search is a case-insensitive substring match
// over every string field, ranked by primary key.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	apiKey   string
	docs     map[string]map[string]map[string]any // index -> id -> document
	embeds   map[string]map[string]int            // index -> embedder -> dimensions
	tasks    map[int64]task
	nextTask int64

	failStatus int
	failTasks  bool
	searchBody string

	searches []SearchCall
}

// SearchCall records one received search request.
type SearchCall struct {
	Index  string
	Query  string
	Vector []float32
	Hybrid map[string]any
}

type task struct {
	UID      int64  `json:"uid"`
	IndexUID string `json:"indexUid"`
	Status   string `json:"status"`
	Type     string `json:"type"`
	Error    *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Type    string `json:"type"`
		Link    string `json:"link"`
	} `json:"error,omitempty"`
}

// NewServer starts a fake backend. An empty apiKey disables auth.
func NewServer(apiKey string) *Server {
	s := &Server{
		apiKey: apiKey,
		docs:   make(map[string]map[string]map[string]any),
		embeds: make(map[string]map[string]int),
		tasks:  make(map[int64]task),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.route))
	return s
}

// FailWith forces every API call (except /health) to answer with status. Zero clears it.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	s.failStatus = status
	s.mu.Unlock()
}

// FailTasks makes every new task finish as failed.
func (s *Server) FailTasks() {
	s.mu.Lock()
	s.failTasks = true
	s.mu.Unlock()
}

// ReplySearch replaces the search response body verbatim.
func (s *Server) ReplySearch(body string) {
	s.mu.Lock()
	s.searchBody = body
	s.mu.Unlock()
}

// Searches returns the search calls received so far.
func (s *Server) Searches() []SearchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SearchCall, len(s.searches))
	copy(out, s.searches)
	return out
}

// Documents returns the number of documents stored in index.
func (s *Server) Documents(index string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[index])
}

// Document returns a stored document by index and primary key value.
func (s *Server) Document(index, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[index][id]
	return d, ok
}

// Embedders returns the userProvided embedders declared on index with their dimensions.
func (s *Server) Embedders(index string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.embeds[index]))
	for name, dims := range s.embeds[index] {
		out[name] = dims
	}
	return out
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "available"})
		return
	}

	if s.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+s.apiKey {
		writeAPIError(w, http.StatusForbidden, "The provided API key is invalid.", "invalid_api_key", "auth")
		return
	}

	s.mu.Lock()
	fail := s.failStatus
	s.mu.Unlock()
	if fail != 0 {
		writeAPIError(w, fail, "forced failure", "internal", "internal")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "indexes" && parts[2] == "search" && r.Method == http.MethodPost:
		s.search(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "indexes" && parts[2] == "documents" && r.Method == http.MethodPost:
		s.addDocuments(w, r, parts[1])
	case len(parts) == 4 && parts[0] == "indexes" && parts[2] == "settings" && parts[3] == "embedders" &&
		r.Method == http.MethodPatch:
		s.updateEmbedders(w, r, parts[1])
	case len(parts) == 2 && parts[0] == "tasks" && r.Method == http.MethodGet:
		s.getTask(w, parts[1])
	default:
		writeAPIError(w, http.StatusNotFound, "not found", "not_found", "invalid_request")
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, index string) {
	var body struct {
		Q      string         `json:"q"`
		Limit  int            `json:"limit"`
		Vector []float32      `json:"vector"`
		Hybrid map[string]any `json:"hybrid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error(), "bad_request", "invalid_request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.searches = append(s.searches, SearchCall{Index: index, Query: body.Q, Vector: body.Vector, Hybrid: body.Hybrid})

	if s.searchBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.searchBody))
		return
	}

	docs, ok := s.docs[index]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "Index `"+index+"` not found.", "index_not_found", "invalid_request")
		return
	}

	if body.Hybrid != nil {
		name, _ := body.Hybrid["embedder"].(string)
		dims, declared := s.embeds[index][name]
		if !declared {
			writeAPIError(w, http.StatusBadRequest,
				"Cannot find embedder with name `"+name+"`.", "invalid_search_embedder", "invalid_request")
			return
		}
		if len(body.Vector) != dims {
			writeAPIError(w, http.StatusBadRequest,
				"Invalid vector dimensions: expected: `"+strconv.Itoa(dims)+"`, found: `"+strconv.Itoa(len(body.Vector))+"`.",
				"invalid_vector_dimensions", "invalid_request")
			return
		}
	}

	ids := make([]string, 0, len(docs))
	for id, d := range docs {
		if matches(d, body.Q) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	if body.Limit > 0 && len(ids) > body.Limit {
		ids = ids[:body.Limit]
	}

	hits := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		hit := make(map[string]any, len(docs[id])+1)
		for k, v := range docs[id] {
			if k == "_vectors" {
				continue
			}
			hit[k] = v
		}
		hit["_rankingScore"] = 1.0
		hits = append(hits, hit)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hits":               hits,
		"query":              body.Q,
		"processingTimeMs":   1,
		"limit":              body.Limit,
		"offset":             0,
		"estimatedTotalHits": len(hits),
	})
}

func (s *Server) addDocuments(w http.ResponseWriter, r *http.Request, index string) {
	var docs []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error(), "malformed_payload", "invalid_request")
		return
	}
	pk := r.URL.Query().Get("primaryKey")
	if pk == "" {
		pk = "id"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTask++
	t := task{UID: s.nextTask, IndexUID: index, Status: "succeeded", Type: "documentAdditionOrUpdate"}

	if s.failTasks {
		t.Status = "failed"
		t.Error = &struct {
			Message string `json:"message"`
			Code    string `json:"code"`
			Type    string `json:"type"`
			Link    string `json:"link"`
		}{Message: "forced task failure", Code: "internal", Type: "internal"}
	} else {
		if s.docs[index] == nil {
			s.docs[index] = make(map[string]map[string]any)
		}
		for _, d := range docs {
			s.docs[index][keyOf(d[pk])] = d
		}
	}
	s.tasks[t.UID] = t

	writeJSON(w, http.StatusAccepted, map[string]any{
		"taskUid":    t.UID,
		"indexUid":   index,
		"status":     "enqueued",
		"type":       t.Type,
		"enqueuedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) updateEmbedders(w http.ResponseWriter, r *http.Request, index string) {
	var settings map[string]struct {
		Source     string `json:"source"`
		Dimensions int    `json:"dimensions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error(), "bad_request", "invalid_request")
		return
	}
	for name, e := range settings {
		if e.Source != "userProvided" || e.Dimensions <= 0 {
			writeAPIError(w, http.StatusBadRequest,
				"`.embedders."+name+"`: userProvided source requires positive `dimensions`.",
				"invalid_settings_embedders", "invalid_request")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[index] == nil {
		s.docs[index] = make(map[string]map[string]any)
	}
	if s.embeds[index] == nil {
		s.embeds[index] = make(map[string]int)
	}
	for name, e := range settings {
		s.embeds[index][name] = e.Dimensions
	}

	s.nextTask++
	t := task{UID: s.nextTask, IndexUID: index, Status: "succeeded", Type: "settingsUpdate"}
	s.tasks[t.UID] = t

	writeJSON(w, http.StatusAccepted, map[string]any{
		"taskUid":    t.UID,
		"indexUid":   index,
		"status":     "enqueued",
		"type":       t.Type,
		"enqueuedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) getTask(w http.ResponseWriter, rawUID string) {
	uid, err := strconv.ParseInt(rawUID, 10, 64)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid task uid", "invalid_task_uids", "invalid_request")
		return
	}

	s.mu.Lock()
	t, ok := s.tasks[uid]
	s.mu.Unlock()
	if !ok {
		writeAPIError(w, http.StatusNotFound, "Task `"+rawUID+"` not found.", "task_not_found", "invalid_request")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func matches(doc map[string]any, q string) bool {
	if q == "" {
		return true
	}
	needle := strings.ToLower(q)
	for k, v := range doc {
		if k == "_vectors" {
			continue
		}
		switch val := v.(type) {
		case string:
			if strings.Contains(strings.ToLower(val), needle) {
				return true
			}
		case []any:
			for _, item := range val {
				if str, ok := item.(string); ok && strings.Contains(strings.ToLower(str), needle) {
					return true
				}
			}
		}
	}
	return false
}

func keyOf(v any) string {
	switch id := v.(type) {
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case string:
		return id
	default:
		b, _ := json.Marshal(id)
		return string(b)
	}
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message, code, typ string) {
	writeJSON(w, status, map[string]string{
		"message": message,
		"code":    code,
		"type":    typ,
		"link":    "https://docs.meilisearch.com/errors#" + code,
	})
}
