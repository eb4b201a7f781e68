package logger

// Domain-specific logging helpers. Every classified failure goes through one
// of these so the run log always carries profile, stream, item and category
// context for post-hoc auditing.

// LogItemFailure records a classified per-item failure.
func LogItemFailure(l Logger, profile, stream, shortcode, category string, err error) {
	l.WithFields(map[string]interface{}{
		"profile":   profile,
		"stream":    stream,
		"shortcode": shortcode,
		"category":  category,
	}).WithError(err).Error("item failed")
}

// LogProfileFailure records a profile-level failure.
func LogProfileFailure(l Logger, profile, category string, err error) {
	l.WithFields(map[string]interface{}{
		"profile":  profile,
		"category": category,
	}).WithError(err).Error("profile abandoned")
}

// LogRotation records a credential rotation.
func LogRotation(l Logger, reason, from, to string) {
	l.WithFields(map[string]interface{}{
		"reason": reason,
		"from":   from,
		"to":     to,
	}).Info("session rotated")
}

// LogDownload records a per-item download outcome.
func LogDownload(l Logger, profile, stream, shortcode string, success bool, err error) {
	fields := map[string]interface{}{
		"profile":   profile,
		"stream":    stream,
		"shortcode": shortcode,
		"success":   success,
	}
	entry := l.WithFields(fields)
	switch {
	case err != nil:
		entry.WithError(err).Error("download failed")
	case success:
		entry.Info("download completed")
	default:
		entry.Warn("download skipped")
	}
}

// NewNopLogger creates a logger that discards everything, for tests.
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
