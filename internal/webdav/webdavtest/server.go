// Package webdavtest provides an in-memory WebDAV server for tests, covering
// just the verbs the sync engine uses (PUT, GET, HEAD, MKCOL, DELETE).
package webdavtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"time"
)

// Server is an in-process WebDAV endpoint backed by a map. PUT requires the
// parent collection to exist, like a strict WebDAV server.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	puts  map[string]int

	// Username and Password require basic auth on every request when set.
	Username string
	Password string

	// FailPut maps a path to an HTTP status returned instead of accepting
	// the upload. Used to simulate per-file failures.
	FailPut map[string]int

	// OnPut, when set, runs after a PUT has been accepted and stored.
	// Tests use it to interrupt a run at a known point.
	OnPut func(path string)

	// PutDelay slows every PUT down, making concurrency observable.
	PutDelay time.Duration

	active    int
	maxActive int
}

// New starts a Server. The caller must Close it.
func New() *Server {
	s := &Server{
		files:   make(map[string][]byte),
		dirs:    map[string]bool{"": true},
		puts:    make(map[string]int),
		FailPut: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if s.Username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	p := strings.Trim(r.URL.Path, "/")

	if r.Method == http.MethodPut {
		s.handlePut(w, r, p)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {

	case http.MethodGet:
		body, ok := s.files[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(body)

	case http.MethodHead:
		if _, ok := s.files[p]; !ok && !s.dirs[p] {
			w.WriteHeader(http.StatusNotFound)
			return
		}

	case http.MethodDelete:
		if _, ok := s.files[p]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(s.files, p)
		w.WriteHeader(http.StatusNoContent)

	case "MKCOL":
		if s.dirs[p] {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if parent := parentDir(p); !s.dirs[parent] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		s.dirs[p] = true
		w.WriteHeader(http.StatusCreated)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, p string) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	delay := s.PutDelay
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	if status, ok := s.FailPut[p]; ok {
		s.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	if parent := parentDir(p); !s.dirs[parent] {
		s.mu.Unlock()
		w.WriteHeader(http.StatusConflict)
		return
	}
	s.files[p] = body
	s.puts[p]++
	onPut := s.OnPut
	s.mu.Unlock()

	if onPut != nil {
		onPut(p)
	}
	w.WriteHeader(http.StatusCreated)
}

// File returns the stored content for a path.
func (s *Server) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.files[strings.Trim(p, "/")]
	return body, ok
}

// PutFile seeds a file (and its parent collections) directly.
func (s *Server) PutFile(p string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = strings.Trim(p, "/")
	for dir := parentDir(p); dir != ""; dir = parentDir(dir) {
		s.dirs[dir] = true
	}
	s.files[p] = body
}

// PutCount returns how many PUTs landed on a path.
func (s *Server) PutCount(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[strings.Trim(p, "/")]
}

// TotalPuts returns the number of accepted PUT requests across all paths.
func (s *Server) TotalPuts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.puts {
		total += n
	}
	return total
}

// MaxConcurrentPuts returns the highest number of PUT requests observed in
// flight at once.
func (s *Server) MaxConcurrentPuts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

// HasDir reports whether a collection exists.
func (s *Server) HasDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[strings.Trim(p, "/")]
}

func parentDir(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
