package cmd

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tubeload/tubeload/internal/download"
	"github.com/tubeload/tubeload/internal/history"
	"github.com/tubeload/tubeload/internal/logger"
)

// APIHandler serves the loopback control API used by the CLI subcommands.
type APIHandler struct {
	manager          *download.Manager
	store            *history.Store
	port             int
	defaultOutputDir string
}

// NewAPIHandler creates an APIHandler over the manager.
func NewAPIHandler(m *download.Manager, store *history.Store, port int, defaultOutputDir string) *APIHandler {
	return &APIHandler{
		manager:          m,
		store:            store,
		port:             port,
		defaultOutputDir: defaultOutputDir,
	}
}

// DownloadRequest is the body of POST /download.
type DownloadRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	// DurationSeconds is the clip length when the caller knows it.
	DurationSeconds int `json:"duration_seconds,omitempty"`
}

func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "port": h.port})
}

func (h *APIHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing id parameter", http.StatusBadRequest)
			return
		}
		snap, err := h.manager.Get(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, snap)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	if req.URL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}
	if strings.Contains(req.Path, "..") || strings.Contains(req.Filename, "..") {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(req.Filename, "/\\") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	outPath := req.Path
	if outPath == "" {
		outPath = h.defaultOutputDir
	}
	if outPath == "" {
		outPath = "."
	}
	if err := os.MkdirAll(outPath, 0o755); err != nil {
		http.Error(w, "Failed to create output directory: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if abs, err := filepath.Abs(outPath); err == nil {
		outPath = abs
	}

	snap, err := h.manager.Enqueue(download.Request{
		URL:      req.URL,
		Filename: req.Filename,
		Dir:      outPath,
		Duration: time.Duration(req.DurationSeconds) * time.Second,
	})
	if err != nil {
		var restricted *download.RestrictionError
		if errors.As(err, &restricted) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Error(w, "Failed to add download: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{
		"status": "queued",
		"id":     snap.ID,
	})
}

func (h *APIHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	items := h.manager.Items()
	if items == nil {
		items = []download.Snapshot{}
	}
	writeJSON(w, items)
}

func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.store == nil {
		http.Error(w, "History unavailable", http.StatusServiceUnavailable)
		return
	}
	entries, err := h.store.List()
	if err != nil {
		http.Error(w, "Failed to retrieve history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, entries)
}

// action wraps the single-item manager operations behind POST endpoints.
func (h *APIHandler) action(name string, fn func(id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing id parameter", http.StatusBadRequest)
			return
		}
		if err := fn(id); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, download.ErrNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, map[string]string{"status": name, "id": id})
	}
}

func (h *APIHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}
	pos, err := strconv.Atoi(r.URL.Query().Get("pos"))
	if err != nil {
		http.Error(w, "Invalid pos parameter", http.StatusBadRequest)
		return
	}
	if err := h.manager.Reorder(id, pos); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, download.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, download.ErrNotQueued), errors.Is(err, download.ErrBadPosition):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, map[string]string{"status": "reordered", "id": id})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnw("failed to encode response", "error", err)
	}
}

// startHTTPServer serves the control API on an already-bound listener.
func startHTTPServer(ln net.Listener, handler *APIHandler) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handler.Health)
	mux.HandleFunc("/download", handler.Download)
	mux.HandleFunc("/list", handler.List)
	mux.HandleFunc("/history", handler.History)
	mux.HandleFunc("/reorder", handler.Reorder)
	mux.HandleFunc("/cancel", handler.action("cancelled", handler.manager.Cancel))
	mux.HandleFunc("/restart", handler.action("restarted", handler.manager.Restart))
	mux.HandleFunc("/pause", handler.action("paused", handler.manager.Pause))
	mux.HandleFunc("/resume", handler.action("resumed", handler.manager.Resume))
	mux.HandleFunc("/delete", handler.action("deleted", handler.manager.Remove))

	server := &http.Server{Handler: mux}
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Warnw("control server error", "error", err)
	}
}

// findAvailablePort tries loopback ports starting at start.
func findAvailablePort(start int) (int, net.Listener) {
	for port := start; port < start+100; port++ {
		ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
		if err == nil {
			return port, ln
		}
	}
	return 0, nil
}
