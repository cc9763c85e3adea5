package errors

import sentry "github.com/getsentry/sentry-go"

// InitSentry configures process-wide Sentry reporting. Call once at
// startup with a DSN; Report is a no-op before this is called or when dsn
// is empty, so library use without a configured DSN never reports.
func InitSentry(dsn string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{Dsn: dsn})
}

// Report sends an InvariantViolated (or any error) to Sentry if InitSentry
// configured a client. Called right before a caller aborts the process on
// an invariant violation, so the crash is not silent in a hosted
// deployment.
func Report(err error) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.CaptureException(err)
	sentry.Flush(2)
}
