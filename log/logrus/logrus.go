// Package logrus adapts a *logrus.Entry to remoteval.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/remoteval"
)

var _ remoteval.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=remoteval.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "remoteval")}
}

func (l LogrusLogger) entry(f remoteval.Fields) *logrus.Entry {
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			continue
		}
		fields[k] = v
	}
	return e.WithFields(fields)
}

func (l LogrusLogger) Debug(msg string, f remoteval.Fields) { l.entry(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f remoteval.Fields)  { l.entry(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f remoteval.Fields)  { l.entry(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f remoteval.Fields) { l.entry(f).Error(msg) }
