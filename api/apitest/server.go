// Package apitest runs an in-memory blog API for tests.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cppla/blogdeck/models"
)

// Server is a fake blog API serving /blogs and /blogs/{id}.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	posts  []models.Post
	nextID int

	gate     chan struct{}
	listGate chan struct{}

	lists   atomic.Int64
	gets    atomic.Int64
	creates atomic.Int64
	headers atomic.Value
}

// NewServer starts a fake blog API seeded with posts. Callers must Close it.
func NewServer(posts ...models.Post) *Server {
	s := &Server{posts: append([]models.Post(nil), posts...), nextID: len(posts) + 1}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Hold blocks every request until release is called.
func (s *Server) Hold() (release func()) {
	return s.hold(&s.gate)
}

// HoldListResponse lets GET /blogs read the posts as they are now but delays the
// response until release is called. Lists counts a held read once its posts are read.
func (s *Server) HoldListResponse() (release func()) {
	return s.hold(&s.listGate)
}

func (s *Server) hold(slot *chan struct{}) func() {
	gate := make(chan struct{})
	s.mu.Lock()
	*slot = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			*slot = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Lists returns how many GET /blogs requests were served.
func (s *Server) Lists() int64 { return s.lists.Load() }

// Gets returns how many GET /blogs/{id} requests were served.
func (s *Server) Gets() int64 { return s.gets.Load() }

// Creates returns how many POST /blogs requests were served.
func (s *Server) Creates() int64 { return s.creates.Load() }

// Total returns the number of requests served.
func (s *Server) Total() int64 { return s.Lists() + s.Gets() + s.Creates() }

// LastHeaders returns the headers of the most recent request.
func (s *Server) LastHeaders() http.Header {
	h, _ := s.headers.Load().(http.Header)
	return h
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.headers.Store(r.Header.Clone())
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	rest, ok := strings.CutPrefix(r.URL.EscapedPath(), "/blogs")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch {
	case rest == "" && r.Method == http.MethodGet:
		s.mu.Lock()
		posts := append([]models.Post{}, s.posts...)
		gate := s.listGate
		s.mu.Unlock()
		s.lists.Add(1)
		if gate != nil {
			<-gate
		}
		writeJSON(w, http.StatusOK, posts)
	case rest == "" && r.Method == http.MethodPost:
		s.creates.Add(1)
		s.create(w, r)
	case strings.HasPrefix(rest, "/") && r.Method == http.MethodGet:
		s.gets.Add(1)
		id, err := url.PathUnescape(rest[1:])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if p, ok := s.find(id); ok {
			writeJSON(w, http.StatusOK, p)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var in models.CreatePostInput
	if err := json.Unmarshal(b, &in); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, "Title required")
		return
	}

	s.mu.Lock()
	p := models.Post{
		ID:          strconv.Itoa(s.nextID),
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		CoverImage:  in.CoverImage,
		Category:    in.Category,
		Date:        in.Date,
	}
	s.nextID++
	s.posts = append(s.posts, p)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) find(id string) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
