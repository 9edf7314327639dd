package sqlite

import (
	"context"
	stderrors "errors"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ha1tch/nudb/pkg/log"
)

// DefaultBusyInterval is how long to wait before retrying a locked database.
const DefaultBusyInterval = 250 * time.Millisecond

// Options tune how connections are opened and used.
type Options struct {
	// BusyInterval is the wait between retries when the database is locked.
	BusyInterval time.Duration

	// BusyMaxAttempts bounds the retries. Zero retries until the context
	// is done.
	BusyMaxAttempts int

	// HistoryName names the shared history database.
	HistoryName string

	Logger *log.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		BusyInterval: DefaultBusyInterval,
		HistoryName:  DefaultHistoryName,
	}
}

func (o Options) withDefaults() Options {
	if o.BusyInterval <= 0 {
		o.BusyInterval = DefaultBusyInterval
	}
	if o.HistoryName == "" {
		o.HistoryName = DefaultHistoryName
	}
	return o
}

func (o Options) logger(ctx context.Context) *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.FromContext(ctx)
}

// IsBusy reports whether err is SQLITE_BUSY from the driver.
func IsBusy(err error) bool {
	var se sqlite3.Error
	if stderrors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy
	}
	return false
}

// retryBusy runs fn until it returns something other than SQLITE_BUSY, the
// attempt limit is reached or ctx is done.
func retryBusy(ctx context.Context, opts Options, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !IsBusy(err) {
			return err
		}
		if opts.BusyMaxAttempts > 0 && attempt >= opts.BusyMaxAttempts {
			return err
		}

		opts.logger(ctx).Storage().Warn("SQLITE_BUSY, retrying",
			"op", op,
			"attempt", attempt,
			"interval", opts.BusyInterval.String(),
		)

		t := time.NewTimer(opts.BusyInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
