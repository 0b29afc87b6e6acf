package api

import (
	"net/http"

	"github.com/ayusman/shotcoach/internal/analysis"
	"github.com/ayusman/shotcoach/internal/log"
	"github.com/ayusman/shotcoach/internal/store"
)

// FeedbackSettingsHandler serves GET/PUT /api/settings/feedback.
type FeedbackSettingsHandler struct {
	store    *store.Store
	engines  *analysis.EngineRef
	onChange func(*analysis.Engine)
}

// NewFeedbackSettingsHandler creates a FeedbackSettingsHandler. A saved
// config replaces the engine in engines and is passed to onChange.
func NewFeedbackSettingsHandler(s *store.Store, engines *analysis.EngineRef, onChange func(*analysis.Engine)) *FeedbackSettingsHandler {
	if engines == nil {
		engines = analysis.NewEngineRef(nil)
	}
	return &FeedbackSettingsHandler{store: s, engines: engines, onChange: onChange}
}

func (h *FeedbackSettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := h.store.Settings().FeedbackConfig()
		if err != nil {
			log.Error("load feedback settings", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load feedback settings")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *FeedbackSettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var cfg analysis.FeedbackConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	engine, err := analysis.NewEngine(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Settings().SetFeedbackConfig(cfg); err != nil {
		log.Error("save feedback settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save feedback settings")
		return
	}

	h.engines.Store(engine)
	if h.onChange != nil {
		h.onChange(engine)
	}
	log.Info("feedback bands updated", "elbow", len(cfg.Elbow), "feet", len(cfg.Feet))
	writeJSON(w, http.StatusOK, cfg)
}
