package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/shotcoach/internal/analysis"
	"github.com/ayusman/shotcoach/internal/log"
	"github.com/ayusman/shotcoach/internal/store"
)

// AnalysisHandler serves /api/analyses. Submitted frames are re-checked and
// the aggregate is always recomputed here; client aggregates are ignored.
type AnalysisHandler struct {
	store   *store.Store
	cfg     analysis.Config
	engines *analysis.EngineRef
	onSaved func(*store.Analysis)
}

// NewAnalysisHandler creates an AnalysisHandler. onSaved, when not nil, is
// called after an analysis has been written to history.
func NewAnalysisHandler(s *store.Store, cfg analysis.Config, engines *analysis.EngineRef, onSaved func(*store.Analysis)) *AnalysisHandler {
	if engines == nil {
		engines = analysis.NewEngineRef(nil)
	}
	return &AnalysisHandler{store: s, cfg: cfg, engines: engines, onSaved: onSaved}
}

type submitAnalysisRequest struct {
	UserName string                 `json:"userName"`
	Frames   []analysis.FrameMetric `json:"frames"`
}

type analysisResultResponse struct {
	ID                  string   `json:"id,omitempty"`
	UserName            string   `json:"userName"`
	AverageElbowAngle   float64  `json:"averageElbowAngle"`
	AverageFeetDistance float64  `json:"averageFeetDistance"`
	Tips                []string `json:"tips"`
	FrameCount          int      `json:"frameCount"`
	RejectedFrames      int      `json:"rejectedFrames"`
	SavedToHistory      bool     `json:"savedToHistory"`
}

type listAnalysesResponse struct {
	Analyses []*store.Analysis `json:"analyses"`
}

type framesResponse struct {
	Frames []analysis.FrameMetric `json:"frames"`
}

func (h *AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/analyses, /api/analyses/{id}, /api/analyses/{id}/frames
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/analyses"), "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.submit(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]

	if len(parts) == 2 && parts[1] == "frames" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.frames(w, id)
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GuestName is reported for analyses submitted without a user name.
const GuestName = "Guest"

// submit handles POST /api/analyses. Analyses by anyone other than a
// registered user are returned but not saved.
func (h *AnalysisHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitAnalysisRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserName = strings.TrimSpace(req.UserName)

	frames, rejected := checkFrames(h.cfg.Bounds, req.Frames)
	if rejected > 0 {
		log.Debug("dropped submitted frames", "user", req.UserName, "rejected", rejected)
	}

	agg, err := analysis.Summarize(frames, h.cfg.MinFrames, h.engines.Load())
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to analyse frames")
		return
	}

	resp := analysisResultResponse{
		UserName:            req.UserName,
		AverageElbowAngle:   agg.AverageElbowAngle,
		AverageFeetDistance: agg.AverageFeetDistance,
		Tips:                agg.Tips,
		FrameCount:          agg.FrameCount,
		RejectedFrames:      rejected,
	}

	if req.UserName == "" {
		resp.UserName = GuestName
		writeJSON(w, http.StatusOK, resp)
		return
	}

	saved, err := h.store.Record(req.UserName, agg, frames)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusOK, resp)
		return
	case err != nil:
		log.Error("save analysis", "user", req.UserName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save analysis")
		return
	}

	log.Info("analysis saved", "id", saved.ID, "user", saved.UserName, "frames", saved.FrameCount)
	if h.onSaved != nil {
		h.onSaved(saved)
	}

	resp.ID = saved.ID
	resp.UserName = saved.UserName
	resp.SavedToHistory = true
	writeJSON(w, http.StatusCreated, resp)
}

// checkFrames drops frames outside b and renumbers the rest in order.
func checkFrames(b analysis.Bounds, in []analysis.FrameMetric) (out []analysis.FrameMetric, rejected int) {
	out = make([]analysis.FrameMetric, 0, len(in))
	for _, f := range in {
		if b.Check(f) != analysis.Accepted {
			rejected++
			continue
		}
		f.FrameIndex = len(out)
		out = append(out, f)
	}
	return out, rejected
}

// list handles GET /api/analyses?user=NAME[&limit=N].
func (h *AnalysisHandler) list(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("user"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	u, err := h.store.Users().GetByName(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	list, err := h.store.Analyses().ListByUser(u.ID, limit)
	if err != nil {
		log.Error("list analyses", "user", u.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if list == nil {
		list = []*store.Analysis{}
	}
	writeJSON(w, http.StatusOK, listAnalysesResponse{Analyses: list})
}

func (h *AnalysisHandler) get(w http.ResponseWriter, id string) {
	a, err := h.store.Analyses().GetByID(id)
	if err != nil {
		h.storeError(w, err, "failed to get analysis")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AnalysisHandler) frames(w http.ResponseWriter, id string) {
	frames, err := h.store.Analyses().Frames(id)
	if err != nil {
		h.storeError(w, err, "failed to get frames")
		return
	}
	writeJSON(w, http.StatusOK, framesResponse{Frames: frames})
}

func (h *AnalysisHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Analyses().Delete(id); err != nil {
		h.storeError(w, err, "failed to delete analysis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnalysisHandler) storeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	log.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}
