package pool

import "github.com/sirupsen/logrus"

// AuditLogger records every admin-capability use as a structured entry,
// independent of the general operational logger. A nil *AuditLogger is
// valid and simply drops records -- Manager falls back to this when none
// is supplied.
type AuditLogger struct {
	log *logrus.Logger
}

// NewAuditLogger wraps a logrus.Logger for capability-usage auditing. Pass
// logrus.StandardLogger() to use the default, or a purpose-built instance
// (e.g. one writing JSON to a dedicated audit file).
func NewAuditLogger(log *logrus.Logger) *AuditLogger {
	return &AuditLogger{log: log}
}

// Record logs one admin operation attempt with its outcome.
func (a *AuditLogger) Record(capID, operation, poolID string, programIdx int, err error) {
	if a == nil || a.log == nil {
		return
	}
	entry := a.log.WithFields(logrus.Fields{
		"capability_id": capID,
		"operation":     operation,
		"pool_id":       poolID,
	})
	if programIdx >= 0 {
		entry = entry.WithField("program_idx", programIdx)
	}
	if err != nil {
		entry.WithField("outcome", "denied").WithError(err).Warn("admin operation denied")
		return
	}
	entry.WithField("outcome", "allowed").Info("admin operation allowed")
}
