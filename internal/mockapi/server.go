// Package mockapi is an in-process stand-in for the console's REST backend.
// Every endpoint answers with the console envelope
//
//	{"code": 200, "inside_code": 0, "msg": "ok", "data": ..., "success": true}
//
// so the orchestrator's classification can be exercised end to end.
package mockapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Business codes carried in inside_code.
const (
	InsideCodeBadCredentials  = 4001
	InsideCodeAlreadyApproved = 4003
	InsideCodeNotFound        = 4004
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type Envelope struct {
	Code       int    `json:"code"`
	InsideCode int    `json:"inside_code"`
	Msg        string `json:"msg"`
	Data       any    `json:"data,omitempty"`
	Success    bool   `json:"success"`
}

// Item is a monitoring item awaiting approval.
type Item struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Metric     string    `json:"metric"`
	Status     string    `json:"status"`
	ApprovedBy string    `json:"approved_by,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Page struct {
	Items    []Item `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type Todo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	ItemID int    `json:"item_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ApproveRequest struct {
	Comment string `json:"comment"`
}

type Server struct {
	mu       sync.Mutex
	items    map[int]*Item
	users    map[string]string
	sessions map[string]string
	latency  time.Duration

	identityHeader string
	echo           *echo.Echo
}

type Option func(*Server) *Server

// WithLatency delays every response, which makes in-flight supersession
// observable.
func WithLatency(d time.Duration) Option {
	return func(s *Server) *Server {
		s.latency = d
		return s
	}
}

// WithItems replaces the seeded monitoring items.
func WithItems(items ...Item) Option {
	return func(s *Server) *Server {
		s.items = make(map[int]*Item, len(items))
		for i := range items {
			item := items[i]
			s.items[item.ID] = &item
		}
		return s
	}
}

// WithUser registers a login.
func WithUser(username, password string) Option {
	return func(s *Server) *Server {
		s.users[username] = password
		return s
	}
}

// WithIdentityHeader sets the header the caller identity is read from.
func WithIdentityHeader(header string) Option {
	return func(s *Server) *Server {
		s.identityHeader = header
		return s
	}
}

// New builds the server with a few seeded items and the user admin/admin.
func New(options ...Option) *Server {
	s := &Server{
		items:          map[int]*Item{},
		users:          map[string]string{"admin": "admin"},
		sessions:       map[string]string{},
		identityHeader: "X-User",
	}
	for i, name := range []string{"disk usage /data", "cpu load", "memory pressure", "nginx 5xx rate", "redis latency"} {
		s.items[i+1] = &Item{ID: i + 1, Name: name, Metric: strings.ReplaceAll(name, " ", "_"), Status: StatusPending}
	}
	for _, opt := range options {
		s = opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(s.simulateLatency)

	api := e.Group("/api")
	api.POST("/user/login", s.login)

	authed := api.Group("", s.requireSession)
	authed.POST("/user/logout", s.logout)
	authed.GET("/monitor-items", s.listItems)
	authed.GET("/monitor-items/:id", s.getItem)
	authed.POST("/monitor-items/:id/approve", s.decide(StatusApproved))
	authed.POST("/monitor-items/:id/reject", s.decide(StatusRejected))
	authed.GET("/todos", s.todos)

	s.echo = e
	return s
}

// Echo exposes the router, for mounting extra routes such as /metrics.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// IssueToken creates a session for username without a login round trip.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.NewString()
	s.sessions[token] = username
	return token
}

// ExpireSessions revokes every token, so the next call answers 401.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]string{}
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{Code: http.StatusOK, Msg: "ok", Data: data, Success: true})
}

func businessFailure(c echo.Context, insideCode int, msg string) error {
	return c.JSON(http.StatusOK, Envelope{Code: http.StatusOK, InsideCode: insideCode, Msg: msg, Success: false})
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	_ = c.JSON(code, Envelope{Code: code, Msg: msg, Success: false})
}

func (s *Server) simulateLatency(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-c.Request().Context().Done():
				return c.Request().Context().Err()
			}
		}
		return next(c)
	}
}

func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, found := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !found || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		s.mu.Lock()
		user, ok := s.sessions[token]
		s.mu.Unlock()
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}

		c.Set("user", user)
		c.Set("token", token)
		return next(c)
	}
}

func (s *Server) login(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "can not understand the requested json")
	}

	s.mu.Lock()
	password, known := s.users[req.Username]
	s.mu.Unlock()
	if !known || password != req.Password {
		return businessFailure(c, InsideCodeBadCredentials, "invalid username or password")
	}

	return ok(c, map[string]string{"token": s.IssueToken(req.Username)})
}

func (s *Server) logout(c echo.Context) error {
	token, _ := c.Get("token").(string)

	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()

	return ok(c, nil)
}

func (s *Server) listItems(c echo.Context) error {
	query := c.QueryParams()
	keyword := strings.ToLower(query.Get("keyword"))
	statuses := query["status[]"]
	page := positiveInt(query.Get("page"), 1)
	pageSize := positiveInt(query.Get("page_size"), 10)

	s.mu.Lock()
	matched := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if keyword != "" && !strings.Contains(strings.ToLower(item.Name), keyword) {
			continue
		}
		if len(statuses) > 0 && !contains(statuses, item.Status) {
			continue
		}
		matched = append(matched, *item)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	result := Page{Items: []Item{}, Total: len(matched), Page: page, PageSize: pageSize}
	if start := (page - 1) * pageSize; start < len(matched) {
		end := min(start+pageSize, len(matched))
		result.Items = matched[start:end]
	}
	return ok(c, result)
}

func (s *Server) getItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "item id must be a number")
	}

	s.mu.Lock()
	item, found := s.items[id]
	var snapshot Item
	if found {
		snapshot = *item
	}
	s.mu.Unlock()

	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "monitoring item not found")
	}
	return ok(c, snapshot)
}

// decide moves a pending item to status. Deciding an item twice is a
// business failure, not an HTTP error.
func (s *Server) decide(status string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "item id must be a number")
		}
		req := new(ApproveRequest)
		if err := c.Bind(req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "can not understand the requested json")
		}

		operator := c.Request().Header.Get(s.identityHeader)
		if operator == "" {
			operator, _ = c.Get("user").(string)
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		item, found := s.items[id]
		if !found {
			return businessFailure(c, InsideCodeNotFound, "monitoring item not found")
		}
		if item.Status != StatusPending {
			return businessFailure(c, InsideCodeAlreadyApproved, "monitoring item was already "+item.Status)
		}

		item.Status = status
		item.ApprovedBy = operator
		item.Comment = req.Comment
		item.UpdatedAt = time.Now().UTC()
		return ok(c, *item)
	}
}

func (s *Server) todos(c echo.Context) error {
	s.mu.Lock()
	todos := make([]Todo, 0, len(s.items))
	for _, item := range s.items {
		if item.Status == StatusPending {
			todos = append(todos, Todo{
				ID:     "todo-" + strconv.Itoa(item.ID),
				Title:  "Approve monitoring item " + item.Name,
				ItemID: item.ID,
			})
		}
	}
	s.mu.Unlock()

	sort.Slice(todos, func(i, j int) bool { return todos[i].ItemID < todos[j].ItemID })
	return ok(c, todos)
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
