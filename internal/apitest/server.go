// Package apitest provides an in-process fake of the habit service for tests.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

// Request is a request the fake server received.
type Request struct {
	Method        string
	URI           string
	Authorization string
	RequestID     string
}

// Server serves the dashboard, stats, today and auth endpoints from memory.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []Request
	status    map[string]int
	holds     map[string]chan struct{}
	bodies    map[string]string
	stats     map[models.Window]models.Stats
	today     []models.TodayState
	users     map[string]string
	token     string
	authToken string
}

// NewServer starts a fake with one user (alice@example.com / secret) whose
// login returns token.
func NewServer(token string) *Server {
	s := &Server{
		status: make(map[string]int),
		holds:  make(map[string]chan struct{}),
		bodies: make(map[string]string),
		stats: map[models.Window]models.Stats{
			models.WindowDay:   {Window: models.WindowDay, Completed: 0, Total: 0},
			models.WindowWeek:  {Window: models.WindowWeek, Completed: 0, Total: 0},
			models.WindowMonth: {Window: models.WindowMonth, Completed: 0, Total: 0},
		},
		users: map[string]string{"alice@example.com": "secret"},
		token: token,
	}

	r := mux.NewRouter()
	r.Use(s.record)
	r.HandleFunc(constants.PathLogin, s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(constants.PathRegister, s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc(constants.PathDashboard, s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc(constants.PathStats, s.handleStats).Methods(http.MethodGet).Queries("window", "{window}")
	r.HandleFunc(constants.PathToday, s.handleToday).Methods(http.MethodGet)
	r.HandleFunc(constants.PathGoals+"{id}"+constants.PathCompleteSuffix, s.handleComplete).
		Methods(http.MethodPost, http.MethodDelete)

	s.Server = httptest.NewServer(r)
	return s
}

// RequireToken makes every authenticated endpoint answer 401 unless the
// request carries this bearer token.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = token
}

// Fail makes method+path answer with code until cleared with code 0.
// path is the route path without query, e.g. "/api/stats".
func (s *Server) Fail(method, path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		delete(s.status, method+" "+path)
		return
	}
	s.status[method+" "+path] = code
}

// Respond makes method+path answer 200 with a raw JSON body until cleared
// with an empty body.
func (s *Server) Respond(method, path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if body == "" {
		delete(s.bodies, method+" "+path)
		return
	}
	s.bodies[method+" "+path] = body
}

// Hold blocks responses for method+path until the returned func is called.
func (s *Server) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[method+" "+path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, method+" "+path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Server) SetStats(st models.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[st.Window] = st
}

func (s *Server) SetToday(today []models.TodayState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.today = append([]models.TodayState(nil), today...)
}

func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Reset forgets recorded requests.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// Count reports how many requests matched method and URI.
func (s *Server) Count(method, uri string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.URI == uri {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			URI:           r.URL.RequestURI(),
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get(constants.RequestIDHeader),
		})
		key := r.Method + " " + r.URL.Path
		code := s.status[key]
		hold := s.holds[key]
		body, canned := s.bodies[key]
		authToken := s.authToken
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}
		if authToken != "" && !isAuthPath(r.URL.Path) && r.Header.Get("Authorization") != "Bearer "+authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if canned {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAuthPath(p string) bool {
	return p == constants.PathLogin || p == constants.PathRegister
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	pw, ok := s.users[req.Email]
	token := s.token
	s.mu.Unlock()

	if !ok || pw != req.Password {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, models.AuthResponse{Token: token, User: map[string]any{"email": req.Email}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.Profile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.mu.Unlock()
		http.Error(w, "User already exists", http.StatusConflict)
		return
	}
	s.users[req.Email] = req.Password
	token := s.token
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: token})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	d := models.Dashboard{
		StatsDay:   s.stats[models.WindowDay],
		StatsWeek:  s.stats[models.WindowWeek],
		StatsMonth: s.stats[models.WindowMonth],
		Today:      append([]models.TodayState{}, s.today...),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	window := models.Window(mux.Vars(r)["window"])

	s.mu.Lock()
	st, ok := s.stats[window]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "Unknown window", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	today := append([]models.TodayState{}, s.today...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, today)
}

// handleComplete flips the goal and recomputes the day counter the way the
// real service does.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	completed := r.Method == http.MethodPost

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.today {
		if s.today[i].Goal.ID == id {
			s.today[i].Completed = completed
			found = true
		}
	}
	if !found {
		http.Error(w, "Goal not found", http.StatusNotFound)
		return
	}

	day := s.stats[models.WindowDay]
	day.Completed = 0
	for _, st := range s.today {
		if st.Completed {
			day.Completed++
		}
	}
	day.Total = len(s.today)
	s.stats[models.WindowDay] = day

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
