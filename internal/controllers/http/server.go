package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/heatzyswitch/internal/metrics"
	"github.com/Agrid-Dev/heatzyswitch/internal/ports"
)

type Server struct {
	svc ports.SwitchService
	srv *http.Server
	log *zap.SugaredLogger
}

// New returns a runnable server.
func New(svc ports.SwitchService, addr string, log *zap.SugaredLogger) *Server {
	s := &Server{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Read
	r.Get("/v1", s.handleGet)
	r.Get("/v1/cached", s.handleGetCached)
	r.Get("/v1/info", s.handleGetInfo)

	// Write
	r.Post("/v1/on", s.handlePostOn)
	r.Post("/v1/refresh", s.handlePostRefresh)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Infow("http controller listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type stateDTO struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	On       bool   `json:"on"`
}

type cachedDTO struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	On       bool   `json:"on"`
	Known    bool   `json:"known"`
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	on, err := s.svc.Read(r.Context())
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondState(w, on)
}

func (s *Server) handleGetCached(w http.ResponseWriter, _ *http.Request) {
	s.respondCached(w)
}

func (s *Server) handleGetInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Info())
}

func (s *Server) handlePostOn(w http.ResponseWriter, r *http.Request) {
	// body: {"value": true}
	postValue(s, w, r, func(v bool) (bool, error) {
		return s.svc.Write(r.Context(), v)
	})
}

func (s *Server) handlePostRefresh(w http.ResponseWriter, r *http.Request) {
	s.svc.Refresh(r.Context())
	s.respondCached(w)
}

// ---- generic helpers ----

func (s *Server) respondCached(w http.ResponseWriter) {
	on, known := s.svc.Cached()
	info := s.svc.Info()
	writeJSON(w, http.StatusOK, cachedDTO{DeviceID: info.ID, Name: info.Name, On: on, Known: known})
}

func (s *Server) respondState(w http.ResponseWriter, on bool) {
	info := s.svc.Info()
	writeJSON(w, http.StatusOK, stateDTO{DeviceID: info.ID, Name: info.Name, On: on})
}

func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T) (bool, error)) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	on, err := apply(*req.Value)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}

	s.respondState(w, on)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
