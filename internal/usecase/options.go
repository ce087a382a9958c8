package usecase

import "time"

type options struct {
	now func() time.Time
}

// Option tunes use case construction; tests use it to pin the clock.
type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func collectOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
