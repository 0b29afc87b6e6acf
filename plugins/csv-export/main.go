// Command csv-export is a shotcoach plugin that appends each completed
// analysis to a CSV file.
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Request is the executor's input.
type Request struct {
	Event    string          `json:"event"`
	Analysis *Analysis       `json:"analysis"`
	Config   json.RawMessage `json:"config"`
}

// Response is written back to the executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Analysis is the subset of the analysis payload this plugin records.
type Analysis struct {
	ID                  string    `json:"id"`
	UserName            string    `json:"userName"`
	CreatedAt           time.Time `json:"createdAt"`
	AverageElbowAngle   float64   `json:"averageElbowAngle"`
	AverageFeetDistance float64   `json:"averageFeetDistance"`
	FrameCount          int       `json:"frameCount"`
	Tips                []string  `json:"tips"`
}

// Config is read from the manifest's config block.
type Config struct {
	File string `json:"file"`
}

var header = []string{"id", "user", "created_at", "avg_elbow_angle", "avg_feet_distance", "frame_count", "tips"}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		reply(fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Event != "analysis.completed" {
		reply(fmt.Errorf("unsupported event: %s", req.Event))
		return
	}
	if req.Analysis == nil {
		reply(errors.New("request has no analysis"))
		return
	}

	cfg := Config{File: "shots.csv"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			reply(fmt.Errorf("decode config: %w", err))
			return
		}
	}

	if err := appendFile(cfg.File, req.Analysis); err != nil {
		reply(err)
		return
	}
	reply(nil)
}

// appendFile appends a to path, writing the header first if the file is new.
func appendFile(path string, a *Analysis) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return writeRow(f, a, info.Size() == 0)
}

func writeRow(w io.Writer, a *Analysis, withHeader bool) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	row := []string{
		a.ID,
		a.UserName,
		a.CreatedAt.UTC().Format(time.RFC3339),
		strconv.FormatFloat(a.AverageElbowAngle, 'f', 2, 64),
		strconv.FormatFloat(a.AverageFeetDistance, 'f', 3, 64),
		strconv.Itoa(a.FrameCount),
		strings.Join(a.Tips, " | "),
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func reply(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
