// Package gotestjson feeds a `go test -json` event stream into a
// listener.Listener: every package is a suite nested under the run, every
// failing test a failure.
package gotestjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Actions emitted by test2json, plus ActionRaw for non-JSON lines.
const (
	ActionStart       = "start"
	ActionRun         = "run"
	ActionPause       = "pause"
	ActionCont        = "cont"
	ActionPass        = "pass"
	ActionBench       = "bench"
	ActionFail        = "fail"
	ActionOutput      = "output"
	ActionSkip        = "skip"
	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
	ActionRaw         = "raw"
)

// Event is one test2json record.
type Event struct {
	Time       time.Time `json:"Time"`
	Action     string    `json:"Action"`
	Package    string    `json:"Package"`
	Test       string    `json:"Test"`
	Elapsed    float64   `json:"Elapsed"`
	Output     string    `json:"Output"`
	ImportPath string    `json:"ImportPath"`
}

// Terminal reports whether the event ends a package or a test.
func (e Event) Terminal() bool {
	switch e.Action {
	case ActionPass, ActionFail, ActionSkip:
		return true
	}
	return false
}

// Decode reads newline-delimited events from r and calls fn for each.
// Lines that are not JSON objects are delivered as ActionRaw events so that
// compiler errors interleaved in the stream are not lost. Decode stops at
// the first error returned by fn.
func Decode(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		var event Event
		if !strings.HasPrefix(trimmed, "{") || json.Unmarshal([]byte(trimmed), &event) != nil || event.Action == "" {
			event = Event{Action: ActionRaw, Output: line + "\n"}
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan test events: %w", err)
	}
	return nil
}
