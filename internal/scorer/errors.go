package scorer

import (
	"fmt"
	"time"
)

// ConfigurationError reports an invalid scorer configuration. It is fatal at
// startup.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scorer configuration: %s: %v", e.Msg, e.Err)
	}
	return "scorer configuration: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// ScorerTimeoutError reports a scorer that did not finish within its deadline.
type ScorerTimeoutError struct {
	Scorer  string
	Timeout time.Duration
}

func (e *ScorerTimeoutError) Error() string {
	return fmt.Sprintf("scorer %s timed out after %s", e.Scorer, e.Timeout)
}

// ScorerRuntimeError reports a scorer that failed while computing its score.
type ScorerRuntimeError struct {
	Scorer string
	Err    error
}

func (e *ScorerRuntimeError) Error() string {
	return fmt.Sprintf("scorer %s failed: %v", e.Scorer, e.Err)
}

func (e *ScorerRuntimeError) Unwrap() error { return e.Err }
