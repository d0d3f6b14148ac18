package wearable

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/go_func_utils"
)

// Handler returns the HTTP control panel of the simulator.
func (s *Simulator) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/state", s.handleGetState)
	r.Post("/api/set", s.handleSet)
	r.Post("/api/raw", s.handleRaw)
	r.Post("/api/drop", s.handleDrop)
	r.Post("/api/fail", s.handleFail)
	r.Get("/api/writes", s.handleGetWrites)
	return r
}

// Panel serves the control panel until Shutdown.
type Panel struct {
	server *http.Server
	done   chan struct{}
}

func (s *Simulator) StartPanel(addr string) *Panel {
	p := &Panel{
		server: &http.Server{
			Addr:              addr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		done: make(chan struct{}),
	}
	go_func_utils.SafeGo(s.logger, func() {
		defer close(p.done)
		s.logger.Printf("Wearable: control panel listening on %s", addr)
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Wearable: control panel error: %v", err)
		}
	})
	return p
}

func (p *Panel) Shutdown(ctx context.Context) error {
	err := p.server.Shutdown(ctx)
	select {
	case <-p.done:
	case <-ctx.Done():
	}
	return err
}

func (s *Simulator) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.State(), http.StatusOK)
}

func (s *Simulator) handleSet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		bpm     *uint16
		spo2    *uint8
		battery *uint8
		voltage *float32
	)
	if v := q.Get("bpm"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			respondError(w, "bpm must be an integer", http.StatusBadRequest)
			return
		}
		val := uint16(n)
		bpm = &val
	}
	if v := q.Get("spo2"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			respondError(w, "spo2 must be an integer", http.StatusBadRequest)
			return
		}
		val := uint8(n)
		spo2 = &val
	}
	if v := q.Get("battery"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			respondError(w, "battery must be an integer", http.StatusBadRequest)
			return
		}
		val := uint8(n)
		battery = &val
	}
	if v := q.Get("voltage"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			respondError(w, "voltage must be a number", http.StatusBadRequest)
			return
		}
		val := float32(f)
		voltage = &val
	}

	s.Set(bpm, spo2, battery, voltage)
	respondJSON(w, s.State(), http.StatusOK)
}

func (s *Simulator) handleRaw(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 512))
	if err != nil {
		respondError(w, "could not read body", http.StatusBadRequest)
		return
	}
	if !s.SendRaw(body) {
		respondError(w, "not connected", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Simulator) handleDrop(w http.ResponseWriter, r *http.Request) {
	if !s.Drop() {
		respondError(w, "not connected", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Simulator) handleFail(w http.ResponseWriter, r *http.Request) {
	count := 1
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, "count must be a non-negative integer", http.StatusBadRequest)
			return
		}
		count = n
	}
	s.FailNextConnects(count)
	respondJSON(w, s.State(), http.StatusOK)
}

func (s *Simulator) handleGetWrites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.Writes(), http.StatusOK)
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
