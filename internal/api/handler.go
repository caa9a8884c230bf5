package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goonsradar/goonsradar/internal/command"
	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/query"
)

// maxCommandBytes bounds the body of POST /api/v1/command.
const maxCommandBytes = 4 << 10

// Options holds the optional parts of the HTTP surface.
type Options struct {
	// Stream is mounted at /ws/stream when non-nil.
	Stream http.Handler
	// Clients reports connected stream clients for /metrics.
	Clients func() int
	// Cert returns the last upstream certificate check, nil when unknown.
	Cert func() *feed.CertStatus
}

// Handler serves the /api/v1/* endpoints, /metrics and the optional stream.
type Handler struct {
	engine *query.Engine
	cmd    *command.Dispatcher
	opts   Options
	mux    *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(e *query.Engine, d *command.Dispatcher, opts Options) http.Handler {
	h := &Handler{engine: e, cmd: d, opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/goons", h.listAll)
	h.mux.HandleFunc("/api/v1/goons/", h.byMap) // subtree, extracts {map}
	h.mux.HandleFunc("/api/v1/refresh", h.refresh)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/command", h.runCommand)
	h.mux.HandleFunc("/metrics", h.metrics)
	if opts.Stream != nil {
		h.mux.Handle("/ws/stream", opts.Stream)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) cert() *feed.CertStatus {
	if h.opts.Cert == nil {
		return nil
	}
	return h.opts.Cert()
}

// --- route handlers ---------------------------------------------------------

// listAll returns GET /api/v1/goons: latest sighting per map and mode.
func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ov, err := h.engine.ListAll(r.Context())
	if err != nil {
		queryErr(w, err)
		return
	}
	if wantText(r) {
		textResp(w, query.RenderOverview(ov))
		return
	}
	jsonResp(w, http.StatusOK, ov)
}

// byMap returns GET /api/v1/goons/{map}: records of one map. An unknown map
// is a 200 report with found=false.
func (h *Handler) byMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/goons/")
	if name == "" {
		h.listAll(w, r)
		return
	}
	rep, err := h.engine.ByMap(r.Context(), name)
	if err != nil {
		queryErr(w, err)
		return
	}
	if wantText(r) {
		textResp(w, query.RenderMap(rep))
		return
	}
	jsonResp(w, http.StatusOK, rep)
}

// refresh handles POST /api/v1/refresh: forces one fetch.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rr, err := h.engine.Refresh(r.Context())
	if err != nil {
		slog.Warn("api: forced refresh failed", "err", err)
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, rr)
}

// status returns GET /api/v1/status: fetch statistics and freshness.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s := h.engine.Status(r.Context())
	if wantText(r) {
		textResp(w, query.RenderStatus(s))
		return
	}
	jsonResp(w, http.StatusOK, s)
}

// health returns GET /api/v1/health: derived state plus diagnostic hints.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, computeHealth(h.engine.Status(r.Context()), h.cert()))
}

// runCommand handles POST /api/v1/command: runs one chat command line.
func (h *Handler) runCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req CommandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply, err := h.cmd.Dispatch(r.Context(), req.Text)
	if errors.Is(err, command.ErrUnknownCommand) {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, CommandResponse{Reply: reply})
}

// --- helpers ----------------------------------------------------------------

func queryErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrNoData):
		jsonErr(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, query.ErrEmptyQuery):
		jsonErr(w, http.StatusBadRequest, err.Error())
	default:
		jsonErr(w, http.StatusInternalServerError, err.Error())
	}
}

func wantText(r *http.Request) bool {
	return r.URL.Query().Get("format") == "text"
}

func textResp(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s))
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
