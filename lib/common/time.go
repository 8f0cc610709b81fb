package common

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
)

const (
	TIMEFORMAT_ISO8601 string = "2006-01-02T15:04:05.000000000Z07:00"
)

func FormatISO8601(t time.Time) string {
	return t.Format(TIMEFORMAT_ISO8601)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same time; for tests and replays.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// NTPClock corrects the local clock with the offset measured against an NTP
// server. Without a successful Sync the offset is zero.
type NTPClock struct {
	sync.RWMutex

	host   string
	offset time.Duration
	query  func(string) (*ntp.Response, error)
}

func NewNTPClock(host string) *NTPClock {
	return &NTPClock{host: host, query: ntp.Query}
}

func (c *NTPClock) Sync() error {
	response, err := c.query(c.host)
	if err != nil {
		log.Warn("failed to query ntp server", "host", c.host, "error", err)
		return err
	}

	c.Lock()
	c.offset = response.ClockOffset
	c.Unlock()

	log.Debug("clock synchronized", "host", c.host, "offset", response.ClockOffset)

	return nil
}

func (c *NTPClock) Offset() time.Duration {
	c.RLock()
	defer c.RUnlock()

	return c.offset
}

func (c *NTPClock) Now() time.Time {
	return time.Now().Add(c.Offset())
}
