package metrics

import "clipstream/internal/filesystem"

// NewFilesystemObserver returns a filesystem.Observer that feeds the
// clipstream_filesystem_* series, labelled by operation and volume.
func NewFilesystemObserver() filesystem.Observer {
	return fsObserver{}
}

type fsObserver struct{}

func (fsObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volume).Inc()
}

func (fsObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volume).Inc()
}

func (fsObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volume).Inc()
}

func (fsObserver) ObserveRetryDuration(op, volume string, seconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, volume).Observe(seconds)
}

func (fsObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volume).Inc()
}
