package diag

// logSink is the subset of rtlog.Logger this package logs through,
// kept narrow so callers can pass a test double without importing
// rtlog.
type logSink interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// LogBufferStats logs a one-line-per-field summary of buffer's analysis
// to logger, escalating to Warn on clipping and Error on NaN content.
func LogBufferStats(logger logSink, buffer []float32, name string) {
	result := NewBufferAnalyzer().Analyze(buffer)

	logger.Info("buffer %q: %d samples, peak=%.3f rms=%.3f dc=%.6f", name, len(buffer), result.Peak, result.RMS, result.DC)
	if result.Clipping {
		logger.Warn("buffer %q: clipping (%d samples)", name, result.ClippedSamples)
	}
	if result.Silent {
		logger.Info("buffer %q: silent", name)
	}
	if result.HasNaN {
		logger.Error("buffer %q: %d NaN samples", name, result.NaNCount)
	}
}
