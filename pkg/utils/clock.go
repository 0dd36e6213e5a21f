package utils

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// Clock returns the current time. Capture file names are derived from it.
type Clock func() time.Time

func LocalClock() Clock {
	return time.Now
}

// NTPClock queries server once and returns a clock corrected by the measured
// offset. Boards without an RTC start with a wrong wall clock, which would
// otherwise leak into file names.
func NTPClock(server string) (Clock, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return nil, fmt.Errorf("query ntp server %s: %w", server, err)
	}
	if err = resp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ntp response from %s: %w", server, err)
	}
	offset := resp.ClockOffset
	logger.Infof("ntp clock offset from %s: %s", server, offset)

	return func() time.Time {
		return time.Now().Add(offset)
	}, nil
}
