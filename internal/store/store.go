// Package store holds the in-memory state of one workspace: its links and
// its notification inbox. Unknown ids are reported with sentinel errors and
// never mutate anything.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrLinkNotFound         = errors.New("link not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrAmbiguousID          = errors.New("id prefix matches more than one link")
)

// Option customises a store. Tests use it to pin the clock and the ids.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
