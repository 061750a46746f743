package mockapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/google/uuid"
)

// LoginPath is where the mock backend accepts credentials.
const LoginPath = "/api/auth/login"

// Options configures New.
type Options struct {
	Config   leads.Config
	Secret   string
	TokenTTL time.Duration
	Logger   *slog.Logger
}

type account struct {
	id    string
	email string
	role  string
	hash  string
}

type forced struct {
	status int
	body   any
}

// Server is an in-memory backend implementing the list, bulk-annotate, create and delete
// contracts the dashboard consumes.
type Server struct {
	cfg    leads.Config
	secret string
	ttl    time.Duration
	logger *slog.Logger
	router chi.Router

	mu          sync.Mutex
	collections map[string][]leads.Row
	accounts    map[string]account
	insights    leads.PageInsights
	patches     []json.RawMessage
	forced      map[string]forced
}

// New builds the mock backend with routes derived from cfg.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg.Stores == nil {
		cfg = leads.DefaultConfig()
	}
	secret := opts.Secret
	if secret == "" {
		secret = "leadboard-mock-secret"
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		cfg:         cfg,
		secret:      secret,
		ttl:         ttl,
		logger:      logger,
		collections: make(map[string][]leads.Row),
		accounts:    make(map[string]account),
		forced:      make(map[string]forced),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.forcedResponses)

	r.Post(LoginPath, s.login)

	r.Group(func(r chi.Router) {
		for name, store := range s.cfg.Stores {
			if !store.RequiresAuth() {
				s.mountStore(r, name, store)
			}
		}
	})
	r.Group(func(r chi.Router) {
		r.Use(requireAuth(s.secret))
		for name, store := range s.cfg.Stores {
			if store.RequiresAuth() {
				s.mountStore(r, name, store)
			}
		}
		for name, bulk := range s.cfg.Bulk {
			r.Patch(bulk.Path, s.bulkUpdate(name))
		}
		for name, entity := range s.cfg.Entities {
			if entity.Create != "" {
				r.Post(entity.Create, s.create(name))
			}
			if entity.Delete != "" {
				r.Delete(deletePattern(entity.Delete), s.remove(name))
			}
		}
	})
	return r
}

func (s *Server) mountStore(r chi.Router, name string, store leads.StoreConfig) {
	if name == leads.StorePageInsight {
		r.Get(store.Path, s.pageInsights)
		return
	}
	r.Get(store.Path, s.list(name, store.Collection))
}

func deletePattern(tmpl string) string {
	if strings.Contains(tmpl, "{id}") {
		return tmpl
	}
	return strings.TrimRight(tmpl, "/") + "/{id}"
}

// ServeHTTP lets the server be mounted or wrapped by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddAccount registers credentials accepted by the login route.
func (s *Server) AddAccount(email, password, role string) (string, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return "", fmt.Errorf("mockapi: hash password: %w", err)
	}
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(email)] = account{id: id, email: email, role: role, hash: hash}
	return id, nil
}

// Token issues a valid token without going through the login route.
func (s *Server) Token(role string) (string, error) {
	return IssueToken(s.secret, uuid.NewString(), "admin@example.com", role, s.ttl)
}

// Seed replaces the rows of one collection store.
func (s *Server) Seed(name string, rows []leads.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]leads.Row, len(rows))
	for i, row := range rows {
		copied[i] = cloneRow(row)
	}
	s.collections[name] = copied
}

// SetInsights replaces the page statistics.
func (s *Server) SetInsights(insights leads.PageInsights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = insights
}

// Rows returns a copy of a collection store.
func (s *Server) Rows(name string) []leads.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]leads.Row, len(s.collections[name]))
	for i, row := range s.collections[name] {
		out[i] = cloneRow(row)
	}
	return out
}

// Patches returns the raw bodies of every bulk PATCH received.
func (s *Server) Patches() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.patches)
}

// Force makes the next request to method+path answer with status and body.
func (s *Server) Force(method, path string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[method+" "+path] = forced{status: status, body: body}
}

func (s *Server) forcedResponses(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		f, ok := s.forced[key]
		if ok {
			delete(s.forced, key)
		}
		s.mu.Unlock()
		if ok {
			writeJSON(w, f.status, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("mock request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", r.Header.Get("X-Request-ID"),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || !checkPassword(req.Password, acct.hash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := IssueToken(s.secret, acct.id, acct.email, acct.role, s.ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"role":    acct.role,
		"userId":  acct.id,
	})
}

func (s *Server) list(name, collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows := s.Rows(name)
		if collection == "" {
			writeJSON(w, http.StatusOK, rows)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{collection: rows})
	}
}

func (s *Server) pageInsights(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	insights := s.insights
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, insights)
}

type bulkRequest struct {
	IDs        []string          `json:"ids"`
	UpdateData *leads.UpdateData `json:"updateData"`
	Updates    []leads.RowUpdate `json:"updates"`
}

func (s *Server) bulkUpdate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		var req bulkRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.patches = append(s.patches, json.RawMessage(body))
		updated := 0
		switch {
		case req.UpdateData != nil:
			for _, id := range req.IDs {
				if s.applyLocked(name, id, *req.UpdateData) {
					updated++
				}
			}
		case len(req.Updates) > 0:
			for _, u := range req.Updates {
				if s.applyLocked(name, u.ID, leads.UpdateData{Remarks1: u.Remarks1, Remarks2: u.Remarks2, Tags: u.Tags}) {
					updated++
				}
			}
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "nothing to update"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("%d rows updated", updated),
		})
	}
}

func (s *Server) applyLocked(name, id string, data leads.UpdateData) bool {
	for _, row := range s.collections[name] {
		key, ok := leads.DefaultKey(row)
		if !ok || key != id {
			continue
		}
		row[leads.FieldRemarks1] = data.Remarks1
		row[leads.FieldRemarks2] = data.Remarks2
		tags := make([]any, 0, len(data.Tags))
		for _, tag := range data.Tags {
			tags = append(tags, map[string]any{"text": tag.Text, "colorClass": tag.ColorClass})
		}
		row[leads.FieldTags] = tags
		return true
	}
	return false
}

func (s *Server) create(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var row leads.Row
		if err := readJSON(r, &row); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid request body"})
			return
		}
		if row == nil {
			row = leads.Row{}
		}
		if _, ok := leads.DefaultKey(row); !ok {
			row[leads.FieldID] = uuid.NewString()
		}
		s.mu.Lock()
		s.collections[name] = append(s.collections[name], row)
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": name + " created",
			"_id":     row[leads.FieldID],
		})
	}
}

func (s *Server) remove(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s.mu.Lock()
		defer s.mu.Unlock()
		rows := s.collections[name]
		for i, row := range rows {
			if key, ok := leads.DefaultKey(row); ok && key == id {
				s.collections[name] = slices.Delete(rows, i, i+1)
				writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": name + " deleted"})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": name + " not found"})
	}
}

func cloneRow(row leads.Row) leads.Row {
	out := make(leads.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
