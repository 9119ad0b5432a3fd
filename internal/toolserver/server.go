package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/haasonsaas/relay/internal/observability"
	"github.com/haasonsaas/relay/internal/retrieval"
)

// Tool identity advertised by tools/list.
const (
	ToolID          = "retrieve"
	ToolName        = "Document retrieval"
	ToolDescription = "Searches the project document index and returns the most relevant passages for a query."
)

// Handler dispatches tool protocol requests. It is stateless: every
// call is routed independently by its method field.
type Handler struct {
	searcher retrieval.Searcher
	logger   *observability.Logger
	metrics  *observability.Metrics
	info     ServerInfo
}

// NewHandler creates the tool protocol handler.
func NewHandler(searcher retrieval.Searcher, logger *observability.Logger, metrics *observability.Metrics, info ServerInfo) *Handler {
	return &Handler{
		searcher: searcher,
		logger:   logger,
		metrics:  metrics,
		info:     info,
	}
}

// ServeHTTP handles POST /query.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeResponse(w, Response{
			JSONRPC: JSONRPCVersion,
			Error:   &Error{Code: ErrCodeParseError, Message: "parse error"},
		})
		return
	}

	ctx := r.Context()
	switch req.Method {
	case "initialize":
		h.metrics.ToolCallCounter.WithLabelValues(req.Method, "success").Inc()
		h.writeResult(w, req, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities: Capabilities{
				Tools:     &ToolsCapability{ListChanged: false},
				Resources: &ResourcesCapability{Subscribe: false, ListChanged: false},
				Prompts:   &PromptsCapability{ListChanged: false},
			},
			ServerInfo: h.info,
		})

	case "notifications/initialized":
		// One-way acknowledgement: no result, no error, just 204.
		h.metrics.ToolCallCounter.WithLabelValues(req.Method, "success").Inc()
		w.WriteHeader(http.StatusNoContent)

	case "tools/list":
		schema, err := RetrieveInputSchema()
		if err != nil {
			h.logger.Error(ctx, "tool schema unavailable", "error", err)
			h.metrics.ToolCallCounter.WithLabelValues(req.Method, "error").Inc()
			h.writeError(w, req, ErrCodeInternalError, "internal error")
			return
		}
		h.metrics.ToolCallCounter.WithLabelValues(req.Method, "success").Inc()
		h.writeResult(w, req, ListToolsResult{
			Tools: []Tool{{
				ID:          ToolID,
				Name:        ToolName,
				Description: ToolDescription,
				InputSchema: schema,
			}},
		})

	case ToolID:
		h.handleRetrieve(w, r, req)

	default:
		h.logger.Warn(ctx, "unknown tool protocol method", "method", req.Method)
		h.metrics.ToolCallCounter.WithLabelValues("unknown", "error").Inc()
		h.writeError(w, req, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (h *Handler) handleRetrieve(w http.ResponseWriter, r *http.Request, req Request) {
	ctx := r.Context()

	if err := validateRetrieveParams(req.Params); err != nil {
		h.logger.Warn(ctx, "retrieve params rejected", "error", err)
		h.metrics.ToolCallCounter.WithLabelValues(ToolID, "invalid_params").Inc()
		h.writeError(w, req, ErrCodeInvalidParams, "invalid params: query must be a string")
		return
	}

	var params RetrieveParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.metrics.ToolCallCounter.WithLabelValues(ToolID, "invalid_params").Inc()
		h.writeError(w, req, ErrCodeInvalidParams, "invalid params")
		return
	}

	items, err := h.searcher.Search(ctx, params.Query)
	if err != nil {
		h.logger.Error(ctx, "retrieval backend failed", "error", err)
		h.metrics.ToolCallCounter.WithLabelValues(ToolID, "error").Inc()
		h.metrics.ErrorCounter.WithLabelValues("toolserver", "retrieval_backend").Inc()
		h.writeError(w, req, ErrCodeInternalError, "retrieval failed")
		return
	}

	h.metrics.ToolCallCounter.WithLabelValues(ToolID, "success").Inc()
	h.writeResult(w, req, RetrieveResult{Documents: mapDocuments(items)})
}

// mapDocuments converts backend items to protocol documents, defaulting
// id and cursor to the item's ordinal position and metadata to an empty
// mapping.
func mapDocuments(items []retrieval.Item) []Document {
	docs := make([]Document, len(items))
	for i, item := range items {
		doc := Document{
			ID:       item.ID,
			Cursor:   item.Cursor,
			Text:     item.Text,
			Metadata: item.Metadata,
		}
		if doc.ID == "" {
			doc.ID = strconv.Itoa(i)
		}
		if doc.Cursor == "" {
			doc.Cursor = strconv.Itoa(i)
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		docs[i] = doc
	}
	return docs
}

func (h *Handler) writeResult(w http.ResponseWriter, req Request, result any) {
	h.writeResponse(w, Response{
		JSONRPC: JSONRPCVersion,
		ID:      req.ID,
		Result:  result,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, req Request, code int, message string) {
	h.writeResponse(w, Response{
		JSONRPC: JSONRPCVersion,
		ID:      req.ID,
		Error:   &Error{Code: code, Message: message},
	})
}

func (h *Handler) writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error(context.Background(), "write tool response", "error", err)
	}
}
