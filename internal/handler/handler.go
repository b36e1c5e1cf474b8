package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nodegraph/internal/apperr"
	"nodegraph/internal/codec"
	"nodegraph/internal/domain"
	"nodegraph/internal/service"
)

// Request body limits
const (
	maxNodeBody     = 1 << 20
	maxSnapshotBody = 32 << 20
)

// NodeHandler handles node graph API requests
type NodeHandler struct {
	svc    *service.NodeService
	logger *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(svc *service.NodeService, logger *zap.Logger) *NodeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeHandler{svc: svc, logger: logger.Named("handler")}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
	Type    apperr.Type    `json:"type"`
}

// MessageResponse acknowledges a completed action
type MessageResponse struct {
	Message string `json:"message"`
}

// SaveResponse is returned after a node is saved
type SaveResponse struct {
	Message string `json:"message"`
	NodeID  string `json:"nodeId"`
}

// ImportResponse is returned after a snapshot import
type ImportResponse struct {
	Message  string `json:"message"`
	Imported int    `json:"imported"`
}

// InitDB creates the tables
func (h *NodeHandler) InitDB(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.InitDB(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, MessageResponse{Message: "Database initialized successfully"}, http.StatusOK)
}

// DropTables removes the tables and all data
func (h *NodeHandler) DropTables(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DropTables(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, MessageResponse{Message: "Tables dropped successfully"}, http.StatusOK)
}

// SaveNode creates or replaces a node
func (h *NodeHandler) SaveNode(w http.ResponseWriter, r *http.Request) {
	var in domain.NodeInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNodeBody)).Decode(&in); err != nil {
		h.writeError(w, r, apperr.NewValidation("invalid request body").
			WithDetails(map[string]any{"cause": err.Error()}).
			WithCause(err))
		return
	}

	id, err := h.svc.SaveNode(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, SaveResponse{Message: "Node saved successfully", NodeID: id}, http.StatusOK)
}

// LoadNodes returns every node, or the members of ?graph_id=
func (h *NodeHandler) LoadNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.LoadNodes(r.Context(), r.URL.Query().Get("graph_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []domain.Node{}
	}

	h.writeJSON(w, nodes, http.StatusOK)
}

// GetNode returns a single node
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.svc.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, node, http.StatusOK)
}

// DeleteNode deletes a node and everything referencing it
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNode(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, MessageResponse{Message: "Node deleted successfully"}, http.StatusOK)
}

// Export writes a snapshot of the graph in ?format= (json by default)
func (h *NodeHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	c, err := codec.ForFormat(format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Buffer so a failed read still produces a JSON error
	var buf bytes.Buffer
	if err := h.svc.ExportTo(r.Context(), &buf, c.Format()); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", c.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="nodegraph.%s"`, c.Format()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("failed to write export", zap.Error(err))
	}
}

// Import loads a snapshot body. The format comes from ?format= or the
// Content-Type header.
func (h *NodeHandler) Import(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" && strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = codec.FormatYAML
	}

	count, err := h.svc.ImportFrom(r.Context(), http.MaxBytesReader(w, r.Body, maxSnapshotBody), format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, ImportResponse{Message: "Snapshot imported successfully", Imported: count}, http.StatusOK)
}

// Health reports liveness
func (h *NodeHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Ready reports whether the store answers queries
func (h *NodeHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		h.writeJSON(w, ErrorResponse{
			Error: "store unavailable",
			Type:  apperr.TypeStoreUnavailable,
		}, http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}

func (h *NodeHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode JSON", zap.Error(err))
	}
}

// writeError maps err onto its HTTP status. Internal causes are logged but
// never echoed to the client.
func (h *NodeHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.NewInternal("unexpected error").WithCause(err)
	}

	status := apperr.StatusOf(appErr)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	h.writeJSON(w, ErrorResponse{
		Error:   appErr.Message,
		Details: appErr.Details,
		Type:    appErr.Type,
	}, status)
}
