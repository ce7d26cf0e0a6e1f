package matcher

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/matches"
)

type LogMode int

const (
	LogModeQuiet LogMode = iota
	LogModeSummary
	LogModeVerbose
)

func ParseLogMode(input string) LogMode {
	switch strings.ToLower(input) {
	case "summary":
		return LogModeSummary
	case "verbose":
		return LogModeVerbose
	default:
		return LogModeQuiet
	}
}

// Logger reports accepted matches to the process log and appends them to a
// JSON lines file when a path is set.
type Logger struct {
	mode LogMode
	path string
	mu   sync.Mutex
}

func NewLogger(mode LogMode, path string) *Logger {
	return &Logger{mode: mode, path: path}
}

func (l *Logger) Mode() LogMode {
	if l == nil {
		return LogModeQuiet
	}
	return l.mode
}

func (l *Logger) Enabled() bool {
	return l != nil && l.mode != LogModeQuiet
}

func (l *Logger) LogMatch(m matches.Match, threshold float64) {
	if !l.Enabled() {
		return
	}
	switch l.mode {
	case LogModeSummary:
		logging.Infof("[matcher] matched %s (%s) -> %s (%s) score=%.4f risk=%s threshold=%.2f",
			m.A.Venue, m.A.MatchText(), m.B.Venue, m.B.MatchText(), m.Confidence(), m.Risk, threshold)
	case LogModeVerbose:
		data, _ := json.MarshalIndent(m, "", "  ")
		logging.Infof("[matcher] match score=%.4f threshold=%.2f\n%s", m.Confidence(), threshold, string(data))
	}
	l.appendToFile(m, threshold)
}

func (l *Logger) appendToFile(m matches.Match, threshold float64) {
	if l.path == "" {
		return
	}
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"threshold": threshold,
		"match":     m,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		logging.Errorf("[matcher] log file marshal error: %v", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Errorf("[matcher] log file open error: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Errorf("[matcher] log file write error: %v", err)
	}
}
