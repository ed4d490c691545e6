package logger

import (
	"time"

	"github.com/google/uuid"

	"github.com/DataDog/supply-chain-firewall/internal/decision"
	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/redact"
	"github.com/DataDog/supply-chain-firewall/internal/target"
)

// Record is one firewall decision as delivered to loggers. Command text
// is redacted before it reaches any logger.
type Record struct {
	RunID      string   `json:"run_id"`
	Timestamp  string   `json:"timestamp"`
	Manager    string   `json:"manager"`
	Executable string   `json:"executable"`
	Ecosystem  string   `json:"ecosystem"`
	Command    []string `json:"command"`
	Targets    []string `json:"targets,omitempty"`
	Action     string   `json:"action"`
	Warned     bool     `json:"warned,omitempty"`
	Findings   int      `json:"findings,omitempty"`
}

// FirewallLogger receives decision records. Loggers are advisory: a
// delivery failure never affects the decision or the wrapped command.
type FirewallLogger interface {
	Name() string
	Log(record Record) error
	Close() error
}

// NewRecord assembles a record for a completed decision.
func NewRecord(manager, executable, eco string, command []string, d decision.Decision, targets []target.InstallTarget) Record {
	rec := Record{
		RunID:      uuid.NewString(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Manager:    manager,
		Executable: executable,
		Ecosystem:  eco,
		Command:    redact.RedactArgs(command),
		Action:     string(d.Action),
		Warned:     d.Warned,
	}
	if d.Report != nil {
		rec.Findings = d.Report.FindingCount()
	}
	for _, t := range targets {
		rec.Targets = append(rec.Targets, t.String())
	}
	return rec
}

// Deliver sends the record to every logger, downgrading failures to
// diagnostics.
func Deliver(loggers []FirewallLogger, rec Record) {
	for _, l := range loggers {
		if err := l.Log(rec); err != nil {
			logging.Get().Warn().Str("logger", l.Name()).Err(err).Msg("failed to deliver log record")
		}
	}
}

// CloseAll closes every logger, downgrading failures to diagnostics.
func CloseAll(loggers []FirewallLogger) {
	for _, l := range loggers {
		if err := l.Close(); err != nil {
			logging.Get().Warn().Str("logger", l.Name()).Err(err).Msg("failed to close logger")
		}
	}
}
