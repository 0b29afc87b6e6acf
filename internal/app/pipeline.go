package app

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/shotcoach/internal/analysis"
	"github.com/ayusman/shotcoach/internal/capture"
	"github.com/ayusman/shotcoach/internal/detector"
	"github.com/ayusman/shotcoach/internal/log"
	"github.com/ayusman/shotcoach/internal/session"
)

// Estimate reads one camera frame, runs pose detection and publishes the
// annotated frame for the preview stream. It is the session's PoseSource.
//
// Outside countdown and capture the previous pose is reused for a still
// scene, so the detector only runs when something moves.
func (a *App) Estimate(ctx context.Context) (*detector.Pose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	cam, det := a.camera, a.detector
	a.mu.RUnlock()

	frame, err := cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	st := a.session.Status()
	moved, _ := a.activity.Measure(frame)
	capturing := st.State == session.Countdown || st.State == session.Analyzing

	pose := a.lastPose
	if moved || capturing || pose == nil {
		poses, err := det.Detect(frame)
		if err != nil {
			return nil, fmt.Errorf("detect pose: %w", err)
		}
		pose = bestPose(poses)
		a.lastPose = pose
	}

	a.annotate(frame, pose, st)
	return pose, nil
}

// bestPose returns the highest scoring pose, or nil.
func bestPose(poses []detector.Pose) *detector.Pose {
	var best *detector.Pose
	for i := range poses {
		if best == nil || poses[i].Score > best.Score {
			best = &poses[i]
		}
	}
	if best == nil {
		return nil
	}
	p := *best
	return &p
}

// annotate draws the skeleton and a status banner and stores the JPEG.
func (a *App) annotate(frame *gocv.Mat, pose *detector.Pose, st session.Status) {
	if frame.Empty() {
		return
	}
	if pose != nil {
		capture.DrawPose(frame, pose.Keypoints, a.config.Session.Analysis.PreviewConfidence)
	}
	text, ok := bannerText(st)
	capture.DrawBanner(frame, text, ok)

	buf, err := capture.EncodeJPEG(frame)
	if err != nil {
		log.Debug("encode preview frame", "error", err)
		return
	}

	a.frameMu.Lock()
	a.frame = buf
	a.frameSeq++
	a.frameMu.Unlock()
}

// LatestJPEG returns the newest annotated frame and its sequence number.
func (a *App) LatestJPEG() ([]byte, uint64) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	return a.frame, a.frameSeq
}

// bannerText returns the overlay line for st and whether it is good news.
func bannerText(st session.Status) (string, bool) {
	switch st.State {
	case session.Previewing:
		if text, ok := previewHint(st.Preview); !ok {
			return text, false
		}
		return "Ready", true
	case session.Countdown:
		return fmt.Sprintf("Get set: %d", st.Countdown), true
	case session.Analyzing:
		return "Shoot!", true
	case session.Completed:
		if text, ok := previewHint(st.Preview); !ok {
			return text, false
		}
		return "Done, ready for another shot", true
	case session.InsufficientData:
		return "Not enough data, try again", false
	case session.Failed:
		return "Camera error", false
	}
	return "", false
}

// previewHint returns what the player should fix before shooting, or ok.
func previewHint(p analysis.PreviewStatus) (string, bool) {
	switch {
	case !p.ArmsVisible:
		return "Step back so your arms are in view", false
	case !p.FeetVisible:
		return "Step back so your feet are in view", false
	case !p.InStance:
		return "Raise your elbows to shooting position", false
	}
	return "", true
}
