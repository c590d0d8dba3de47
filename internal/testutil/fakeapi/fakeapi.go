// Package fakeapi is an in-process admin backend for tests.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/token"
)

// DefaultPageSize is the number of users per listing page.
const DefaultPageSize = 10

// SeedUser describes an account created before the test starts.
type SeedUser struct {
	ID               string
	Name             string
	Email            string
	Password         string
	Role             string
	Status           model.UserStatus
	CreatedAt        time.Time
	LastLoginTime    *time.Time
	LastActivityTime *time.Time
}

type account struct {
	user         model.User
	passwordHash []byte
}

type failure struct {
	status  int
	code    string
	message string
}

// Server is a chi router mimicking the admin backend, served over httptest.
type Server struct {
	mu       sync.Mutex
	accounts map[string]*account
	order    []string
	revoked  map[string]bool
	failures map[string][]failure
	hits     map[string]int
	pageSize int
	issuer   *token.Issuer
	now      func() time.Time

	srv *httptest.Server
}

// New starts a backend seeded with users.
func New(users ...SeedUser) *Server {
	s := &Server{
		accounts: make(map[string]*account),
		revoked:  make(map[string]bool),
		failures: make(map[string][]failure),
		hits:     make(map[string]int),
		pageSize: DefaultPageSize,
		issuer:   token.NewIssuer("fakeapi-secret", time.Hour),
		now:      time.Now,
	}
	for _, u := range users {
		s.Seed(u)
	}
	s.srv = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.countHits)
	r.Use(s.injectFailures)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/register", s.register)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/auth/me", s.me)
			r.Post("/auth/logout", s.logout)
			r.Get("/users", s.listUsers)
			r.Post("/users/{action}", s.bulkAction)
		})
	})
	return r
}

// URL is the base url of the backend.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the backend down.
func (s *Server) Close() { s.srv.Close() }

// SetPageSize changes the listing page size.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// Seed creates an account and returns its id.
func (s *Server) Seed(u SeedUser) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = model.UserStatusActive
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	acc := &account{
		user: model.User{
			ID:               u.ID,
			Name:             u.Name,
			Email:            u.Email,
			Role:             u.Role,
			Status:           u.Status,
			CreatedAt:        u.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:        u.CreatedAt.UTC().Format(time.RFC3339),
			LastLoginTime:    formatOptional(u.LastLoginTime),
			LastActivityTime: formatOptional(u.LastActivityTime),
		},
		passwordHash: hash,
	}
	s.accounts[u.ID] = acc
	s.order = append(s.order, u.ID)
	return u.ID
}

// Token issues a valid token for an existing account.
func (s *Server) Token(userID string) string {
	s.mu.Lock()
	acc := s.accounts[userID]
	s.mu.Unlock()
	if acc == nil {
		return ""
	}
	raw, err := s.issuer.Issue(userID, acc.user.Role)
	if err != nil {
		panic(err)
	}
	return raw
}

// User returns the current state of an account.
func (s *Server) User(id string) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return model.User{}, false
	}
	return acc.user, true
}

// FailNext makes the next request to path (e.g. "GET /api/users") fail with status.
func (s *Server) FailNext(route string, status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, code: code, message: message})
}

// Hits counts requests served for route (e.g. "POST /api/users/block").
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		queue := s.failures[route]
		var f *failure
		if len(queue) > 0 {
			f = &queue[0]
			s.failures[route] = queue[1:]
		}
		s.mu.Unlock()

		if f != nil {
			writeError(w, f.status, f.code, f.message, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claimsKey struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "", "No token provided", "")
			return
		}
		claims, err := s.issuer.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "", "Invalid token", "")
			return
		}

		s.mu.Lock()
		acc := s.accounts[claims.Subject]
		revoked := s.revoked[claims.ID]
		s.mu.Unlock()

		if revoked || acc == nil {
			writeError(w, http.StatusUnauthorized, "", "Invalid token", "")
			return
		}
		if acc.user.Status == model.UserStatusBlocked {
			writeError(w, http.StatusUnauthorized, "", "Account is blocked", "")
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body", "")
		return
	}

	s.mu.Lock()
	acc := s.findByEmail(creds.Email)
	s.mu.Unlock()

	if acc == nil || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "", "Invalid credentials", "")
		return
	}
	if acc.user.Status == model.UserStatusBlocked {
		writeError(w, http.StatusForbidden, "ACCOUNT_BLOCKED", "Account is blocked", "")
		return
	}

	raw, err := s.issuer.Issue(acc.user.ID, acc.user.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "Failed to issue token", "")
		return
	}

	s.mu.Lock()
	now := s.now().UTC().Format(time.RFC3339)
	acc.user.LastLoginTime = &now
	user := acc.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, model.LoginResult{Token: raw, User: user})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body", "")
		return
	}
	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		writeError(w, http.StatusBadRequest, "", "All fields are required", "")
		return
	}
	if !strings.Contains(reg.Email, "@") {
		writeError(w, http.StatusBadRequest, "", "Invalid email address", "email")
		return
	}

	s.mu.Lock()
	exists := s.findByEmail(reg.Email) != nil
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusBadRequest, "", "Email already registered", "email")
		return
	}

	s.Seed(SeedUser{Name: reg.Name, Email: reg.Email, Password: reg.Password})
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	user, ok := s.User(claims.Subject)
	if !ok {
		writeError(w, http.StatusUnauthorized, "", "Invalid token", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.User{"user": user})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	s.mu.Lock()
	s.revoked[claims.ID] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	search := strings.ToLower(q.Get("search"))
	status := model.UserStatus(q.Get("status"))
	sortBy := model.SortColumn(q.Get("sortBy"))
	if !sortBy.Valid() {
		sortBy = model.SortByName
	}
	order := model.SortOrder(strings.ToUpper(q.Get("order")))
	if order != model.SortDesc {
		order = model.SortAsc
	}

	s.mu.Lock()
	users := make([]model.User, 0, len(s.order))
	for _, id := range s.order {
		acc, ok := s.accounts[id]
		if !ok {
			continue
		}
		u := acc.user
		if status != "" && u.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		users = append(users, u)
	}
	size := s.pageSize
	s.mu.Unlock()

	coll := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(users, func(i, j int) bool {
		c := compare(coll, users[i], users[j], sortBy)
		if order == model.SortDesc {
			return c > 0
		}
		return c < 0
	})

	totalPages := (len(users) + size - 1) / size
	if totalPages == 0 {
		totalPages = 1
	}
	from := (page - 1) * size
	if from > len(users) {
		from = len(users)
	}
	to := from + size
	if to > len(users) {
		to = len(users)
	}

	writeJSON(w, http.StatusOK, model.Page{Users: users[from:to], TotalPages: totalPages})
}

type bulkRequest struct {
	UserIDs []string `json:"userIds"`
}

func (s *Server) bulkAction(w http.ResponseWriter, r *http.Request) {
	action := model.BulkAction(chi.URLParam(r, "action"))
	if !action.Valid() {
		writeError(w, http.StatusNotFound, "", "Unknown action", "")
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.UserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "", "No users selected", "")
		return
	}

	self := claimsFrom(r.Context()).Subject
	includesSelf := false

	s.mu.Lock()
	now := s.now().UTC().Format(time.RFC3339)
	for _, id := range req.UserIDs {
		acc, ok := s.accounts[id]
		if !ok {
			continue
		}
		if id == self {
			includesSelf = true
		}
		switch action {
		case model.BulkBlock:
			acc.user.Status = model.UserStatusBlocked
		case model.BulkUnblock:
			acc.user.Status = model.UserStatusActive
		case model.BulkDelete:
			delete(s.accounts, id)
		}
		acc.user.UpdatedAt = now
	}
	s.mu.Unlock()

	result := model.BulkResult{Message: bulkMessage(action)}
	if includesSelf {
		switch action {
		case model.BulkBlock:
			result.SelfBlocked = true
			result.Message = "Users blocked successfully. You have blocked your own account."
		case model.BulkDelete:
			result.SelfDeleted = true
			result.Message = "Users deleted successfully. You have deleted your own account."
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func bulkMessage(action model.BulkAction) string {
	switch action {
	case model.BulkBlock:
		return "Users blocked successfully"
	case model.BulkUnblock:
		return "Users unblocked successfully"
	default:
		return "Users deleted successfully"
	}
}

func (s *Server) findByEmail(email string) *account {
	for _, id := range s.order {
		if acc, ok := s.accounts[id]; ok && strings.EqualFold(acc.user.Email, email) {
			return acc
		}
	}
	return nil
}

// compare orders text columns by case-insensitive collation and time columns
// by instant, missing first. coll is owned by the caller's sort.
func compare(coll *collate.Collator, a, b model.User, col model.SortColumn) int {
	if col.IsTime() {
		ta, tb := timeOf(a, col), timeOf(b, col)
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	}
	return coll.CompareString(textOf(a, col), textOf(b, col))
}

func textOf(u model.User, col model.SortColumn) string {
	switch col {
	case model.SortByEmail:
		return u.Email
	case model.SortByStatus:
		return string(u.Status)
	default:
		return u.Name
	}
}

func timeOf(u model.User, col model.SortColumn) time.Time {
	var raw string
	switch col {
	case model.SortByCreatedAt:
		raw = u.CreatedAt
	case model.SortByLastLoginTime:
		if u.LastLoginTime != nil {
			raw = *u.LastLoginTime
		}
	case model.SortByLastActivityTime:
		if u.LastActivityTime != nil {
			raw = *u.LastActivityTime
		}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Unix(0, 0)
	}
	return t
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, field string) {
	body := map[string]string{"message": message}
	if code != "" {
		body["code"] = code
	}
	if field != "" {
		body["field"] = field
	}
	writeJSON(w, status, body)
}
