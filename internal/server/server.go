//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/consistency"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/maintenance"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/landsales/internal/repository"
)

type Service interface {
	Check(ctx context.Context, pieceID string) (consistency.Report, error)
	Fix(ctx context.Context, pieceID string) (consistency.FixResult, error)
	ReapPiece(ctx context.Context, pieceID string, maxAge time.Duration) (consistency.ReapResult, error)
	Sweep(ctx context.Context, maxAge time.Duration) (consistency.ReapResult, error)
	Claim(ctx context.Context, pieceID string, opts ...consistency.ClaimOption) (consistency.ClaimResult, error)
	ClaimAndLock(ctx context.Context, pieceID string, opts ...consistency.ClaimOption) (consistency.ClaimResult, func(), error)
}

type OperatorRepo interface {
	Validate(ctx context.Context, username, password string) (bool, error)
}

// Locks is the in-process registry that background repairs consult before
// touching a piece.
type Locks interface {
	Lock(pieceID string) bool
	Unlock(pieceID string)
	Locked() []string
}

type MaintenanceStatus interface {
	Status() maintenance.Status
}

type Server struct {
	service      Service
	operators    OperatorRepo
	locks        Locks
	maintenance  MaintenanceStatus
	logger       *zap.Logger
	server       *http.Server
	AuditManager *AuditManager
}

// New builds the operator API. runner may be nil when no maintenance runner is wired.
func New(service Service, operators OperatorRepo, locks Locks, runner MaintenanceStatus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service:      service,
		operators:    operators,
		locks:        locks,
		maintenance:  runner,
		logger:       logger,
		AuditManager: NewAuditManager(2, 5, 500*time.Millisecond, logger.Named("audit")),
	}
}

func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.AuditManager.Start(ctx)

	s.logger.Info("HTTP server starting", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	s.AuditManager.Shutdown(ctx)
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet).Name("health")

	api := router.PathPrefix("/").Subrouter()
	api.Use(s.auditLogMiddleware, s.basicAuthMiddleware)

	api.HandleFunc("/pieces/{id}/consistency", s.handleCheck).Methods(http.MethodGet).Name("check")
	api.HandleFunc("/pieces/{id}/fix", s.handleFix).Methods(http.MethodPost).Name("fix")
	api.HandleFunc("/pieces/{id}/reap", s.handleReap).Methods(http.MethodPost).Name("reap")
	api.HandleFunc("/pieces/{id}/claim", s.handleClaim).Methods(http.MethodPost).Name("claim")
	api.HandleFunc("/maintenance/sweep", s.handleSweep).Methods(http.MethodPost).Name("sweep")
	api.HandleFunc("/pieces/{id}/lock", s.handleLock).Methods(http.MethodPost).Name("lock")
	api.HandleFunc("/pieces/{id}/lock", s.handleUnlock).Methods(http.MethodDelete).Name("unlock")
	api.HandleFunc("/locks", s.handleLocks).Methods(http.MethodGet).Name("locks")

	return router
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		valid, err := s.operators.Validate(r.Context(), username, password)
		if err != nil {
			s.logger.Error("operator validation failed", zap.String("username", username), zap.Error(err))
		}
		if err != nil || !valid {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondServiceError(w http.ResponseWriter, operation, pieceID string, err error) {
	metrics.OperationErrorsTotal.WithLabelValues(operation).Inc()
	if errors.Is(err, repository.ErrObjectNotFound) {
		respondError(w, http.StatusNotFound, "Error: "+err.Error())
		return
	}
	s.logger.Error("operation failed",
		zap.String("operation", operation), zap.String("piece_id", pieceID), zap.Error(err))
	respondError(w, http.StatusInternalServerError, "Error: "+err.Error())
}

var errInvalidMaxAge = errors.New("Invalid value for 'max_age' parameter")

// maxAgeParam returns zero when max_age is absent so the service default applies.
func maxAgeParam(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("max_age")
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errInvalidMaxAge
	}
	return d, nil
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	pieceID := mux.Vars(r)["id"]

	report, err := s.service.Check(r.Context(), pieceID)
	if err != nil {
		s.respondServiceError(w, "check", pieceID, err)
		return
	}
	if report.NotFound {
		respondJSON(w, http.StatusNotFound, report)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	pieceID := mux.Vars(r)["id"]

	result, err := s.service.Fix(r.Context(), pieceID)
	if err != nil {
		s.respondServiceError(w, "fix", pieceID, err)
		return
	}
	if result.ManualReview {
		respondJSON(w, http.StatusConflict, result)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReap(w http.ResponseWriter, r *http.Request) {
	pieceID := mux.Vars(r)["id"]

	maxAge, err := maxAgeParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.ReapPiece(r.Context(), pieceID, maxAge)
	if err != nil {
		s.respondServiceError(w, "reap", pieceID, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	pieceID := mux.Vars(r)["id"]

	maxAge, err := maxAgeParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts []consistency.ClaimOption
	if maxAge > 0 {
		opts = append(opts, consistency.WithMaxStaleAge(maxAge))
	}
	if raw := r.URL.Query().Get("cancel_stale"); raw != "" {
		cancelStale, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid value for 'cancel_stale' parameter")
			return
		}
		if !cancelStale {
			opts = append(opts, consistency.WithoutStaleCancel())
		}
	}

	hold := false
	if raw := r.URL.Query().Get("hold"); raw != "" {
		hold, err = strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid value for 'hold' parameter")
			return
		}
	}

	var result consistency.ClaimResult
	if hold {
		// The lock outlives the request; DELETE /pieces/{id}/lock releases it.
		result, _, err = s.service.ClaimAndLock(r.Context(), pieceID, opts...)
	} else {
		result, err = s.service.Claim(r.Context(), pieceID, opts...)
	}
	if err != nil {
		s.respondServiceError(w, "claim", pieceID, err)
		return
	}
	if !result.Success {
		respondJSON(w, http.StatusConflict, result)
		return
	}
	if hold {
		respondJSON(w, http.StatusOK, heldClaim{ClaimResult: result, Locked: true})
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type heldClaim struct {
	consistency.ClaimResult
	Locked bool `json:"locked"`
}

type lockState struct {
	PieceID string `json:"piece_id"`
	Locked  bool   `json:"locked"`
}

// handleLock holds a piece for an operator while they write a sale by hand.
// Sweeps and fixes skip the piece until it is unlocked.
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	pieceID := mux.Vars(r)["id"]

	if !s.locks.Lock(pieceID) {
		respondError(w, http.StatusConflict, "piece is already locked")
		return
	}
	s.logger.Info("piece locked by operator", zap.String("piece_id", pieceID))
	respondJSON(w, http.StatusOK, lockState{PieceID: pieceID, Locked: true})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	pieceID := mux.Vars(r)["id"]

	s.locks.Unlock(pieceID)
	s.logger.Info("piece unlocked by operator", zap.String("piece_id", pieceID))
	respondJSON(w, http.StatusOK, lockState{PieceID: pieceID, Locked: false})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	maxAge, err := maxAgeParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.Sweep(r.Context(), maxAge)
	if err != nil {
		s.respondServiceError(w, "sweep", "", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleLocks(w http.ResponseWriter, _ *http.Request) {
	locked := s.locks.Locked()
	if locked == nil {
		locked = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"locked": locked})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if s.maintenance != nil {
		st := s.maintenance.Status()
		body["maintenance"] = st
		if st.LastError != "" {
			body["status"] = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, body)
}
