package api

import (
	"math"
	"net/http"
	"testing"

	"github.com/ayusman/shotcoach/internal/analysis"
	"github.com/ayusman/shotcoach/internal/store"
)

func goodFrames(n int) []analysis.FrameMetric {
	out := make([]analysis.FrameMetric, n)
	for i := range out {
		out[i] = analysis.FrameMetric{FrameIndex: i, ElbowAngle: 100, FeetDistance: 1.2}
	}
	return out
}

func newAnalysisHandler(t *testing.T, onSaved func(*store.Analysis)) (*AnalysisHandler, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	return NewAnalysisHandler(s, analysis.DefaultConfig(), nil, onSaved), s
}

func TestAnalysisHandler_SubmitRegisteredUser(t *testing.T) {
	var published []*store.Analysis
	h, s := newAnalysisHandler(t, func(a *store.Analysis) { published = append(published, a) })
	if _, err := s.Users().Create("Dirk"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Client-side aggregate fields are ignored.
	body := map[string]any{
		"userName":          "dirk",
		"frames":            goodFrames(12),
		"averageElbowAngle": 45,
		"tips":              []string{"fake"},
	}
	rr := do(t, h, http.MethodPost, "/api/analyses", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}

	var resp analysisResultResponse
	decode(t, rr, &resp)
	if !resp.SavedToHistory || resp.ID == "" {
		t.Errorf("response = %+v, want saved with id", resp)
	}
	if resp.UserName != "Dirk" || resp.FrameCount != 12 {
		t.Errorf("response = %+v", resp)
	}
	if math.Abs(resp.AverageElbowAngle-100) > 1e-9 {
		t.Errorf("AverageElbowAngle = %v, want 100", resp.AverageElbowAngle)
	}
	want := []string{analysis.TipElbowOptimal, analysis.TipFeetOptimal}
	if len(resp.Tips) != 2 || resp.Tips[0] != want[0] || resp.Tips[1] != want[1] {
		t.Errorf("Tips = %v, want %v", resp.Tips, want)
	}
	if len(published) != 1 || published[0].ID != resp.ID {
		t.Errorf("onSaved calls = %v", published)
	}
}

func TestAnalysisHandler_SubmitGuest(t *testing.T) {
	h, _ := newAnalysisHandler(t, func(*store.Analysis) { t.Error("guest analysis should not be published") })

	rr := do(t, h, http.MethodPost, "/api/analyses", submitAnalysisRequest{UserName: "guest", Frames: goodFrames(10)})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp analysisResultResponse
	decode(t, rr, &resp)
	if resp.SavedToHistory || resp.ID != "" {
		t.Errorf("guest response = %+v, want unsaved", resp)
	}
}

func TestAnalysisHandler_SubmitWithoutName(t *testing.T) {
	h, s := newAnalysisHandler(t, func(*store.Analysis) { t.Error("anonymous analysis should not be published") })

	rr := do(t, h, http.MethodPost, "/api/analyses", submitAnalysisRequest{UserName: "  ", Frames: goodFrames(12)})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp analysisResultResponse
	decode(t, rr, &resp)
	if resp.UserName != GuestName {
		t.Errorf("userName = %q, want %q", resp.UserName, GuestName)
	}
	if resp.SavedToHistory || resp.ID != "" {
		t.Errorf("response = %+v, want unsaved", resp)
	}
	if resp.FrameCount != 12 || len(resp.Tips) == 0 {
		t.Errorf("response = %+v, want 12 frames with tips", resp)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM analyses").Scan(&count); err != nil {
		t.Fatalf("count analyses: %v", err)
	}
	if count != 0 {
		t.Errorf("analyses saved = %d, want 0", count)
	}
}

func TestAnalysisHandler_SubmitRejectsOutOfBounds(t *testing.T) {
	h, _ := newAnalysisHandler(t, nil)

	frames := goodFrames(10)
	frames = append(frames,
		analysis.FrameMetric{ElbowAngle: 10, FeetDistance: 1},
		analysis.FrameMetric{ElbowAngle: 100, FeetDistance: 9},
		analysis.FrameMetric{ElbowAngle: 181, FeetDistance: 1},
	)

	rr := do(t, h, http.MethodPost, "/api/analyses", submitAnalysisRequest{UserName: "guest", Frames: frames})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp analysisResultResponse
	decode(t, rr, &resp)
	if resp.FrameCount != 10 || resp.RejectedFrames != 3 {
		t.Errorf("response = %+v, want 10 kept and 3 rejected", resp)
	}

	// Nine good frames are not enough once the bad ones are dropped.
	short := append(goodFrames(9), frames[10:]...)
	rr = do(t, h, http.MethodPost, "/api/analyses", submitAnalysisRequest{UserName: "guest", Frames: short})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 (body %s)", rr.Code, rr.Body.String())
	}
}

func TestAnalysisHandler_SubmitValidation(t *testing.T) {
	h, _ := newAnalysisHandler(t, nil)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"no frames", submitAnalysisRequest{UserName: "a"}, http.StatusUnprocessableEntity},
		{"nine frames", submitAnalysisRequest{UserName: "a", Frames: goodFrames(9)}, http.StatusUnprocessableEntity},
		{"bad body", []int{1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/analyses", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestCheckFrames(t *testing.T) {
	in := []analysis.FrameMetric{
		{FrameIndex: 4, ElbowAngle: 90, FeetDistance: 1},
		{FrameIndex: 5, ElbowAngle: 29.9, FeetDistance: 1},
		{FrameIndex: 6, ElbowAngle: 180, FeetDistance: 0.3},
		{FrameIndex: 7, ElbowAngle: 30, FeetDistance: 3.9},
	}
	out, rejected := checkFrames(analysis.DefaultBounds(), in)
	if rejected != 2 || len(out) != 2 {
		t.Fatalf("checkFrames() = %v, %d rejected", out, rejected)
	}
	if out[0].FrameIndex != 0 || out[1].FrameIndex != 1 || out[1].ElbowAngle != 30 {
		t.Errorf("checkFrames() = %v, want renumbered survivors", out)
	}
}

func TestAnalysisHandler_HistoryRoutes(t *testing.T) {
	h, s := newAnalysisHandler(t, nil)
	u, err := s.Users().Create("Luka")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var ids []string
	for _, n := range []int{10, 11, 12} {
		rr := do(t, h, http.MethodPost, "/api/analyses", submitAnalysisRequest{UserName: u.Name, Frames: goodFrames(n)})
		var resp analysisResultResponse
		decode(t, rr, &resp)
		ids = append(ids, resp.ID)
	}

	t.Run("list newest first", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/analyses?user=luka", nil)
		var list listAnalysesResponse
		decode(t, rr, &list)
		if len(list.Analyses) != 3 || list.Analyses[0].ID != ids[2] || list.Analyses[2].ID != ids[0] {
			t.Errorf("list order = %+v", list.Analyses)
		}

		rr = do(t, h, http.MethodGet, "/api/analyses?user=luka&limit=1", nil)
		decode(t, rr, &list)
		if len(list.Analyses) != 1 || list.Analyses[0].FrameCount != 12 {
			t.Errorf("limit=1 = %+v", list.Analyses)
		}
	})

	t.Run("list errors", func(t *testing.T) {
		if rr := do(t, h, http.MethodGet, "/api/analyses", nil); rr.Code != http.StatusBadRequest {
			t.Errorf("missing user status = %d", rr.Code)
		}
		if rr := do(t, h, http.MethodGet, "/api/analyses?user=nobody", nil); rr.Code != http.StatusNotFound {
			t.Errorf("unknown user status = %d", rr.Code)
		}
		if rr := do(t, h, http.MethodGet, "/api/analyses?user=luka&limit=x", nil); rr.Code != http.StatusBadRequest {
			t.Errorf("bad limit status = %d", rr.Code)
		}
	})

	t.Run("get and frames", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/analyses/"+ids[1], nil)
		var a store.Analysis
		decode(t, rr, &a)
		if a.ID != ids[1] || a.FrameCount != 11 {
			t.Errorf("get = %+v", a)
		}

		rr = do(t, h, http.MethodGet, "/api/analyses/"+ids[1]+"/frames", nil)
		var fr framesResponse
		decode(t, rr, &fr)
		if len(fr.Frames) != 11 || fr.Frames[10].FrameIndex != 10 {
			t.Errorf("frames = %+v", fr.Frames)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if rr := do(t, h, http.MethodDelete, "/api/analyses/"+ids[0], nil); rr.Code != http.StatusNoContent {
			t.Errorf("delete status = %d", rr.Code)
		}
		if rr := do(t, h, http.MethodGet, "/api/analyses/"+ids[0], nil); rr.Code != http.StatusNotFound {
			t.Errorf("get deleted status = %d", rr.Code)
		}
		if rr := do(t, h, http.MethodGet, "/api/analyses/"+ids[0]+"/frames", nil); rr.Code != http.StatusNotFound {
			t.Errorf("frames of deleted status = %d", rr.Code)
		}
		if rr := do(t, h, http.MethodDelete, "/api/analyses/"+ids[0], nil); rr.Code != http.StatusNotFound {
			t.Errorf("second delete status = %d", rr.Code)
		}
	})

	t.Run("bad paths", func(t *testing.T) {
		if rr := do(t, h, http.MethodGet, "/api/analyses/a/b/c", nil); rr.Code != http.StatusNotFound {
			t.Errorf("status = %d", rr.Code)
		}
		if rr := do(t, h, http.MethodPut, "/api/analyses/"+ids[1], nil); rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("PUT status = %d", rr.Code)
		}
	})
}
