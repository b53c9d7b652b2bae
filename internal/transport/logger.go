package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Raimguzhinov/everest/pkg/logger"
	"github.com/fatih/color"
)

// Logger is an http.RoundTripper that logs every outgoing request with its
// status and duration.
type Logger struct {
	next http.RoundTripper
	log  *logger.Logger
}

func NewLogger(next http.RoundTripper, log *logger.Logger) *Logger {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Logger{
		next: next,
		log: log.With(
			slog.String("component", "transport/logger"),
		),
	}
}

func (l *Logger) RoundTrip(r *http.Request) (*http.Response, error) {
	t1 := time.Now()
	resp, err := l.next.RoundTrip(r)
	if err != nil {
		l.log.Warn(fmt.Sprintf("%s %s - failed", r.Method, r.URL.Redacted()),
			logger.Err(err),
			slog.String("duration", time.Since(t1).String()),
		)
		return nil, err
	}

	l.log.Debug(fmt.Sprintf("%s %s - %s", r.Method, r.URL.Redacted(), colorStatus(resp.StatusCode)),
		slog.Int64("bytes", resp.ContentLength),
		slog.String("duration", time.Since(t1).String()),
	)
	return resp, nil
}

func colorStatus(status int) string {
	switch {
	case status < 200:
		return color.New(color.FgBlue).Sprintf("%03d", status)
	case status < 300:
		return color.New(color.FgGreen).Sprintf("%03d", status)
	case status < 400:
		return color.New(color.FgCyan).Sprintf("%03d", status)
	case status < 500:
		return color.New(color.FgYellow).Sprintf("%03d", status)
	default:
		return color.New(color.FgRed).Sprintf("%03d", status)
	}
}

// NewClient returns an http.Client logging through l and bounded by timeout.
func NewClient(timeout time.Duration, l *logger.Logger) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewLogger(http.DefaultTransport, l),
	}
}
