// Package maintenance runs periodic housekeeping jobs.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper drops state that is no longer usable at now.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Daily parses at ("HH:MM") in the named zone.
type Daily struct {
	hour, min int
	loc       *time.Location
}

func ParseDaily(at, tzName string) (Daily, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return Daily{}, fmt.Errorf("maintenance: bad time %q: %w", at, err)
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Daily{}, fmt.Errorf("maintenance: %w", err)
	}
	return Daily{hour: t.Hour(), min: t.Minute(), loc: loc}, nil
}

// Next returns the first run strictly after now.
func (d Daily) Next(now time.Time) time.Time {
	now = now.In(d.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), d.hour, d.min, 0, 0, d.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartSessionSweep drops expired in-memory browser sessions once a day
// until ctx is done.
func StartSessionSweep(ctx context.Context, s Sweeper, d Daily, log *logrus.Entry) {
	go func() {
		for {
			timer := time.NewTimer(time.Until(d.Next(time.Now())))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case now := <-timer.C:
				if n := s.Sweep(now); n > 0 {
					log.WithField("dropped", n).Info("expired sessions swept")
				}
			}
		}
	}()
}
