// Package api provides REST API endpoints for the occupancy monitor.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pool_monitor/internal/activity"
	"pool_monitor/internal/engine"
	"pool_monitor/internal/geo"
	"pool_monitor/internal/monitor"
	"pool_monitor/internal/view"
)

// Server provides REST API access to the monitor's state.
type Server struct {
	engine      *engine.Engine
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewServer creates a new API server over a running engine.
func NewServer(eng *engine.Engine, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		engine:      eng,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Monitor API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/monitoring", s.handleMonitoring)
	r.Get("/monitoring/page", s.handlePage)
	r.Get("/monitoring/summary", s.handleSummary)
	r.Get("/supplies", s.handleSupplies)
	r.Get("/activity", s.handleActivity)
	r.Get("/status", s.handleStatus)
	r.Get("/places/{place_id}/boundary", s.handleBoundary)
	r.Put("/view", s.handleSetView)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data":         s.engine.Places(),
		"last_updated": s.engine.LastUpdated().UTC().Format(time.RFC3339),
	})
}

// handlePage serves the projected page. Query parameters override the
// stored view state for this request only; PUT /view changes it.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	st := s.engine.ViewState()
	q := r.URL.Query()

	if q.Has("search") {
		st.Search = q.Get("search")
	}
	if v := q.Get("sort"); v != "" {
		st.SortBy = view.ParseSortKey(v)
	}
	if v := q.Get("order"); v != "" {
		st.Ascending = v != "desc"
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		st.Page = page
	}
	if v := q.Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 {
			writeError(w, http.StatusBadRequest, "per_page must be a positive integer")
			return
		}
		st.ItemsPerPage = perPage
	}

	writeJSON(w, http.StatusOK, s.engine.PageWith(st))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum := s.engine.Summary()
	if sum == nil {
		// No poll has succeeded yet; derive a summary from the dataset.
		places := s.engine.Places()
		totals := s.engine.Totals()
		derived := monitor.Summary{
			TotalPlaces:     len(places),
			TotalDrivers:    totals.ActiveDrivers,
			OccupiedSpaces:  totals.TotalSpaces,
			AvailableSpaces: len(places)*view.MaxCapacity - totals.TotalSpaces,
		}
		if capacity := len(places) * view.MaxCapacity; capacity > 0 {
			derived.UtilizationRate = float64(totals.TotalSpaces) / float64(capacity)
		}
		sum = &derived
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"summary":   sum,
	})
}

func (s *Server) handleSupplies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": s.engine.Supplies(),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	filter := activity.Category(r.URL.Query().Get("filter"))
	switch filter {
	case "", "all", activity.CategorySummary, activity.CategoryPlace, activity.CategorySupply:
	default:
		writeError(w, http.StatusBadRequest, "unknown filter")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": s.engine.Activity(filter),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"streams":      s.engine.Statuses(),
		"last_updated": s.engine.LastUpdated().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "place_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "place_id must be an integer")
		return
	}

	for _, p := range s.engine.Places() {
		if p.PlaceID == id || int64(p.ID) == id {
			coords := geo.ParsePolygon(p.Polygon)
			if coords == nil {
				writeError(w, http.StatusNotFound, "Place has no boundary")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"place_id": id,
				"boundary": coords,
			})
			return
		}
	}

	writeError(w, http.StatusNotFound, "Place not found")
}

// ViewRequest is the request body for view state updates.
type ViewRequest struct {
	Search *string `json:"search,omitempty"`
	Sort   *string `json:"sort,omitempty"`
	Order  *string `json:"order,omitempty"`
	Page   *int    `json:"page,omitempty"`
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	if req.Search != nil {
		s.engine.SetSearch(*req.Search)
	}
	if req.Sort != nil || req.Order != nil {
		st := s.engine.ViewState()
		key := st.SortBy
		if req.Sort != nil {
			key = view.ParseSortKey(*req.Sort)
		}
		ascending := st.Ascending
		if req.Order != nil {
			ascending = *req.Order != "desc"
		}
		s.engine.SetSort(key, ascending)
	}
	if req.Page != nil {
		if *req.Page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		s.engine.SetPage(*req.Page)
	}

	writeJSON(w, http.StatusOK, s.engine.Page())
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
