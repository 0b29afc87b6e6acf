// Package plugin runs external programs that react to shotcoach events, such
// as exporting each finished analysis.
package plugin

import (
	"encoding/json"
	"slices"
)

// EventAnalysisCompleted fires after a capture has been analysed.
const EventAnalysisCompleted = "analysis.completed"

// Manifest is the content of a plugin's plugin.json.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Subscribes reports whether the plugin wants event.
func (m Manifest) Subscribes(event string) bool {
	return slices.Contains(m.Events, event)
}

// Request is written as JSON to the plugin's stdin.
type Request struct {
	Event    string          `json:"event"`
	Analysis any             `json:"analysis,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// Response is read as JSON from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string // Plugin directory, used as the working directory
	Executable string // Absolute path of the program
}
