package exceptions

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

const defaultFlushTimeout = time.Second * 5

// Reporter sends exceptions to an external source
type Reporter interface {
	ReportException(err error)
}

// New returns a SentryReporter when dsn is set. Otherwise exceptions
// are written to logger, or dropped when logger is nil.
func New(dsn, env string, logger logrus.FieldLogger) (Reporter, error) {
	if dsn == "" {
		if logger == nil {
			return &NoopReporter{}, nil
		}
		return &LogReporter{Logger: logger}, nil
	}
	r, err := NewSentryReporter(dsn, env)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NoopReporter is a no-op exception reporter
type NoopReporter struct{}

// ReportException does nothing
func (r *NoopReporter) ReportException(_ error) {}

// LogReporter writes exceptions to a logger
type LogReporter struct {
	Logger logrus.FieldLogger
}

// ReportException logs err at error level
func (r *LogReporter) ReportException(err error) {
	r.Logger.WithError(err).Error("exception")
}

// SentryReporter is an ErrorReporter that sends error information to Sentry
type SentryReporter struct{}

// NewSentryReporter creates and returns an instance of SentryReporter
func NewSentryReporter(dsn, env string) (*SentryReporter, error) {
	err := sentry.Init(sentry.ClientOptions{Dsn: dsn, Environment: env})
	if err != nil {
		return nil, err
	}

	return &SentryReporter{}, nil
}

// ReportException will send errors to Sentry
func (r *SentryReporter) ReportException(err error) {
	sentry.CaptureException(err)
	sentry.Flush(defaultFlushTimeout)
}
