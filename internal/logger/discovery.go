package logger

import "github.com/DataDog/supply-chain-firewall/internal/logging"

// Discover assembles the logger set for a run. A logger that fails to
// construct is skipped with a diagnostic; decisions proceed regardless
// of how many loggers are live.
func Discover(logPath string) []FirewallLogger {
	var loggers []FirewallLogger
	if logPath != "" {
		fl, err := NewFileLogger(logPath)
		if err != nil {
			logging.Get().Warn().Str("path", logPath).Err(err).Msg("skipping file logger")
		} else {
			loggers = append(loggers, fl)
		}
	}
	return loggers
}
