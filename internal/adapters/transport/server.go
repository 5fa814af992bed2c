// Package transport exposes the query coordinator, usage engine, project
// registry, and event hub over HTTP and WebSocket, grounded on the
// teacher's gorilla/mux + gorilla/websocket workspace server.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/convolog/convolog/internal/domain"
	"github.com/convolog/convolog/internal/domain/ports"
	"github.com/convolog/convolog/internal/hub"
	"github.com/convolog/convolog/internal/query"
	"github.com/convolog/convolog/internal/usage"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // configure for production deployments behind a reverse proxy
	},
}

// Coordinator is satisfied by both query.StreamingCoordinator and
// query.CachedCoordinator (§4.5/§4.6): the transport layer is agnostic to
// which one serves a given request.
type Coordinator interface {
	GetConversations(ctx context.Context, req query.Request) (*query.Page, error)
}

// ProjectLister is satisfied by *project.Registry.
type ProjectLister interface {
	ListProjects() ([]domain.Project, error)
}

// UsageReporter is satisfied by *usage.Engine.
type UsageReporter interface {
	GetUsage(ctx context.Context) *usage.Report
}

// Server is the HTTP/WebSocket front end for the query, usage, and event
// subsystems.
type Server struct {
	registry    ProjectLister
	coordinator Coordinator
	usageEngine UsageReporter
	eventHub    ports.EventHub
	location    *time.Location

	addr       string
	httpServer *http.Server

	mu          sync.RWMutex
	connections int
}

// NewServer constructs a Server bound to host:port.
func NewServer(host string, port int, registry ProjectLister, coordinator Coordinator, eng UsageReporter, eventHub ports.EventHub, location *time.Location) *Server {
	if location == nil {
		location = time.UTC
	}
	return &Server{
		registry:    registry,
		coordinator: coordinator,
		usageEngine: eng,
		eventHub:    eventHub,
		location:    location,
		addr:        fmt.Sprintf("%s:%d", host, port),
	}
}

// Start builds the router and begins serving in a background goroutine.
func (s *Server) Start() error {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/projects", s.handleListProjects).Methods("GET")
	api.HandleFunc("/conversations", s.handleGetConversations).Methods("GET")
	api.HandleFunc("/usage", s.handleGetUsage).Methods("GET")

	router.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      corsMiddleware(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("starting transport server")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("transport server error")
		}
	}()

	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	log.Info().Msg("stopping transport server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "convolog",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.registry.ListProjects()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]ProjectResponse, len(projects))
	for i, p := range projects {
		out[i] = newProjectResponse(p)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"projects": out})
}

func (s *Server) handleGetConversations(w http.ResponseWriter, r *http.Request) {
	req, err := parseConversationsRequest(r, s.location)
	if err != nil {
		if ve, ok := err.(*domain.ValidationError); ok {
			s.respondValidationError(w, ve)
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.coordinator.GetConversations(r.Context(), req)
	if err != nil {
		if ve, ok := err.(*domain.ValidationError); ok {
			s.respondValidationError(w, ve)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, newPageResponse(page))
}

func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	report := s.usageEngine.GetUsage(r.Context())
	s.respondJSON(w, http.StatusOK, newUsageResponse(report))
}

// handleWebSocket upgrades the connection and pumps hub events to the
// client until it disconnects. An optional repeated ?project= query
// parameter, mirroring /api/conversations' project filter (§6), restricts
// delivery to those projects' file_changed/usage_updated events; omitting
// it subscribes to every project.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.connections++
	connID := s.connections
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connections--
		s.mu.Unlock()
	}()

	projectIDs := r.URL.Query()["project"]

	subID := fmt.Sprintf("ws-%d", connID)
	sub := hub.NewChannelSubscriber(subID, 64)
	s.eventHub.Subscribe(sub, projectIDs...)
	defer func() {
		s.eventHub.Unsubscribe(subID)
		if dropped := sub.Dropped(); dropped > 0 {
			log.Warn().Str("subscriber_id", subID).Int64("dropped", dropped).Msg("websocket client missed events while disconnecting")
		}
	}()

	log.Info().Str("subscriber_id", subID).Strs("project_filter", projectIDs).Msg("websocket client connected")

	// Detect client-initiated close in the background; its only job is to
	// unblock the pump loop below once the connection is gone.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			log.Info().Str("subscriber_id", subID).Msg("websocket client disconnected")
			return
		case <-sub.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := ev.ToJSON()
			if err != nil {
				log.Warn().Err(err).Msg("failed to marshal event for websocket client")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warn().Err(err).Str("subscriber_id", subID).Msg("failed to write websocket message")
				return
			}
		}
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) respondValidationError(w http.ResponseWriter, ve *domain.ValidationError) {
	s.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Field: ve.Field})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseConversationsRequest builds a query.Request from the query string
// (§6): project (repeatable), start_date/end_date (YYYY-MM-DD, civil date
// in loc), keyword, show_related_threads, sort_order, offset, limit.
func parseConversationsRequest(r *http.Request, loc *time.Location) (query.Request, error) {
	q := r.URL.Query()

	req := query.Request{
		Projects:           q["project"],
		Keyword:            q.Get("keyword"),
		Location:           loc,
		ShowRelatedThreads: true,
		SortOrder:          query.SortDescending,
	}

	if v := q.Get("start_date"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return query.Request{}, domain.NewValidationError("start_date", "must be YYYY-MM-DD")
		}
		req.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, loc)
		if err != nil {
			return query.Request{}, domain.NewValidationError("end_date", "must be YYYY-MM-DD")
		}
		req.EndDate = &t
	}
	if v := q.Get("show_related_threads"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return query.Request{}, domain.NewValidationError("show_related_threads", "must be true or false")
		}
		req.ShowRelatedThreads = b
	}
	if v := q.Get("sort_order"); v != "" {
		req.SortOrder = query.SortOrder(v)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return query.Request{}, domain.NewValidationError("offset", "must be an integer")
		}
		req.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return query.Request{}, domain.NewValidationError("limit", "must be an integer")
		}
		req.Limit = n
	} else {
		req.Limit = query.DefaultLimit
	}

	if err := req.Validate(); err != nil {
		return query.Request{}, err
	}
	return req, nil
}
