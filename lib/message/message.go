// Package message implements the one-way diagnostic channel either side of
// the protocol may use at any point.
//
// Severity plus formatted text is the wire contract. Internally the text is
// already formatted by the time it reaches the channel, and it is emitted as a
// structured zap entry so the host's logger decides presentation.
package message

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/status"
)

// Level is the severity of a reported message.
type Level int32

const (
	Info    Level = iota // advisory
	Warning              // advisory
	Error                // marks the current file or operation as failed
	Fatal                // aborts the session
)

// String returns the lower-case name of the level.
func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// Valid reports whether l is a defined level.
func (l Level) Valid() bool {
	return l >= Info && l <= Fatal
}

// Diagnostic is one retained report.
type Diagnostic struct {
	Text  string
	Level Level
}

// Reporter accepts leveled, pre-formatted text.
type Reporter interface {
	Report(level Level, text string) status.Status
}

// Channel retains every diagnostic it is given and forwards it to a zap logger.
type Channel struct {
	logger *zap.Logger

	mu     sync.Mutex
	diags  []Diagnostic
	errors int
	fatal  int
}

// NewChannel creates a channel logging to logger. A nil logger discards output.
func NewChannel(logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{logger: logger}
}

// Report records text at level. It returns Err for an undefined level and
// OK otherwise; a fatal report does not terminate the process, the driving
// host decides what to do with it.
func (c *Channel) Report(level Level, text string) status.Status {
	if !level.Valid() {
		c.logger.Warn("message with invalid level dropped",
			zap.Int32("level", int32(level)),
			zap.String("text", text))
		return status.Err
	}

	c.mu.Lock()
	c.diags = append(c.diags, Diagnostic{Level: level, Text: text})
	switch level {
	case Error:
		c.errors++
	case Fatal:
		c.fatal++
	}
	c.mu.Unlock()

	switch level {
	case Info:
		c.logger.Info(text)
	case Warning:
		c.logger.Warn(text)
	case Error:
		c.logger.Error(text)
	case Fatal:
		c.logger.Error(text, zap.Bool("fatal", true))
	}
	return status.OK
}

// Reportf formats according to format and reports the result. This is the
// shape of the host's message entry point. Without args, format is taken as
// already formatted text.
func (c *Channel) Reportf(level Level, format string, args ...any) status.Status {
	if len(args) == 0 {
		return c.Report(level, format)
	}
	return c.Report(level, fmt.Sprintf(format, args...))
}

// Diagnostics returns a copy of every retained report in arrival order.
func (c *Channel) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// ErrorCount returns the number of Error level reports.
func (c *Channel) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors
}

// Fatal returns the first fatal diagnostic, if one was reported.
func (c *Channel) Fatal() (Diagnostic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatal == 0 {
		return Diagnostic{}, false
	}
	for _, d := range c.diags {
		if d.Level == Fatal {
			return d, true
		}
	}
	return Diagnostic{}, false
}
