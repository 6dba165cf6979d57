package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ThreatScanner/internal/chaos"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/usecase"
)

const (
	defaultTop     = 10
	requestTimeout = 15 * time.Second
)

// CycleController exposes the scheduler state machine to operators.
type CycleController interface {
	Status() domain.CycleStatus
	TriggerAsync() error
}

// Deps wires the ops server.
type Deps struct {
	Cycles  CycleController
	Store   ports.SlotStore
	Metrics http.Handler
	Logger  *slog.Logger
	Now     func() time.Time
}

// Server serves the operational endpoints: health, cycle status and trigger, slots, chaos.
type Server struct {
	cycles  CycleController
	store   ports.SlotStore
	metrics http.Handler
	logger  *slog.Logger
	now     func() time.Time
}

// New builds the ops server.
func New(deps Deps) *Server {
	s := &Server{
		cycles:  deps.Cycles,
		store:   deps.Store,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     deps.Now,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Routes returns a chi.Router with every ops endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/status", s.status)
	r.Post("/cycles", s.triggerCycle)
	r.Get("/threats", s.threats)
	r.Get("/chaos", s.chaos)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	if s.cycles == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.cycles.Status())
}

func (s *Server) triggerCycle(w http.ResponseWriter, r *http.Request) {
	if s.cycles == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is not configured")
		return
	}
	if err := s.cycles.TriggerAsync(); err != nil {
		if errors.Is(err, usecase.ErrCycleInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("manual trigger failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "trigger failed")
		return
	}
	s.logger.Info("manual cycle triggered", "request_id", middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

type slotView struct {
	Slot   string              `json:"slot"`
	Record domain.ThreatRecord `json:"record"`
}

func (s *Server) threats(w http.ResponseWriter, r *http.Request) {
	slots, ok := s.loadSlots(w, r)
	if !ok {
		return
	}
	views := make([]slotView, 0, len(slots))
	for _, slot := range slots {
		if slot.Record != nil {
			views = append(views, slotView{Slot: slot.Key, Record: *slot.Record})
		}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) chaos(w http.ResponseWriter, r *http.Request) {
	top := defaultTop
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
			return
		}
		top = n
	}

	slots, ok := s.loadSlots(w, r)
	if !ok {
		return
	}
	records := make([]domain.ThreatRecord, 0, len(slots))
	for _, slot := range slots {
		if slot.Record != nil {
			records = append(records, *slot.Record)
		}
	}
	writeJSON(w, http.StatusOK, chaos.BuildReport(records, s.now(), top))
}

func (s *Server) loadSlots(w http.ResponseWriter, r *http.Request) ([]domain.Slot, bool) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "slot store is not configured")
		return nil, false
	}
	slots, err := s.store.LoadSlots(r.Context())
	if err != nil {
		s.logger.Error("load slots", "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "cannot load slots")
		return nil, false
	}
	return slots, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
