package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ServiceScript is the helper that hosts the pose model.
const ServiceScript = "pose_service.py"

// PoseServiceDetector implements Detector using a Python pose-model subprocess.
//
// Protocol: each request is a 4-byte big-endian length followed by a JPEG
// frame on stdin; each response is one JSON line on stdout of the form
// {"poses":[{"score":0.9,"keypoints":[{"name":"left_elbow","x":..,"y":..,"score":..}]}]}.
type PoseServiceDetector struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	idleTimer  *time.Timer
}

// NewPoseServiceDetector creates a new subprocess-backed detector.
// The Python process is started lazily on first detection.
func NewPoseServiceDetector(config Config) (*PoseServiceDetector, error) {
	scriptPath := findServiceScript()
	if scriptPath == "" {
		return nil, fmt.Errorf("%s not found", ServiceScript)
	}

	return &PoseServiceDetector{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// Detect analyzes a frame and returns the detected pose, if any.
func (d *PoseServiceDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	poses, err := parseServiceResponse([]byte(line), d.config.MinPoseScore)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()

	return poses, nil
}

// Close shuts down the Python process.
func (d *PoseServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *PoseServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.scriptPath, "--model", d.config.Model)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *PoseServiceDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *PoseServiceDetector) resetIdleTimer() {
	if d.config.IdleTimeoutSec <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(time.Duration(d.config.IdleTimeoutSec)*time.Second, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// serviceResponse is the JSON line written by the helper.
type serviceResponse struct {
	Poses []servicePose `json:"poses"`
	Error string        `json:"error,omitempty"`
}

type servicePose struct {
	Score     float64           `json:"score"`
	Keypoints []serviceKeypoint `json:"keypoints"`
}

type serviceKeypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// parseServiceResponse converts a helper response into at most one Pose.
// Keypoints with unknown names are skipped; the best-scoring pose wins.
func parseServiceResponse(line []byte, minScore float64) ([]Pose, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pose service: %s", resp.Error)
	}

	best := -1
	for i, p := range resp.Poses {
		if p.Score < minScore {
			continue
		}
		if best < 0 || p.Score > resp.Poses[best].Score {
			best = i
		}
	}
	if best < 0 {
		return nil, nil
	}

	src := resp.Poses[best]
	pose := Pose{
		Score:     src.Score,
		Keypoints: make([]Keypoint, 0, len(src.Keypoints)),
	}
	for _, kp := range src.Keypoints {
		id, ok := ParseJointID(kp.Name)
		if !ok {
			continue
		}
		pose.Keypoints = append(pose.Keypoints, Keypoint{
			Joint:      id,
			X:          kp.X,
			Y:          kp.Y,
			Confidence: kp.Score,
		})
	}

	return []Pose{pose}, nil
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", ServiceScript),
		filepath.Join("..", "scripts", ServiceScript),
		filepath.Join(execDir, "scripts", ServiceScript),
		filepath.Join(os.Getenv("HOME"), ".shotcoach", "scripts", ServiceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".shotcoach/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
