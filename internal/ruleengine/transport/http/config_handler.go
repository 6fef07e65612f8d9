package http

import (
	"io"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/callflow/engine/internal/ruleengine/app"
)

// ConfigHandler accepts configuration pushes from the remote sync service.
type ConfigHandler struct {
	engine *app.RuleEngine
	logger *slog.Logger
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(engine *app.RuleEngine, logger *slog.Logger) *ConfigHandler {
	return &ConfigHandler{
		engine: engine,
		logger: logger.With("handler", "config"),
	}
}

// HandleUpdateConfig handles PUT /api/v1/config. The body is the opaque
// configuration payload; a malformed payload leaves the previous snapshot
// in place and returns 400.
func (h *ConfigHandler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read config payload", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to read request body"})
		return
	}
	defer r.Body.Close()

	if err := h.engine.UpdateConfig(ctx, body); err != nil {
		logger.WarnContext(ctx, "Config payload rejected; previous snapshot retained", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	logger.InfoContext(ctx, "Config snapshot applied")
	writeJSON(w, http.StatusOK, map[string]string{"status": "config applied"})
}
