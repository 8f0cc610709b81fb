package common

import (
	"time"
)

const (
	DefaultWorkerPoolSize     int           = 8
	DefaultDedupCacheSize     int           = 10000
	DefaultCatchupBufferLimit int           = 1000
	DefaultWitnessThreshold   string        = "majority"
	DefaultAcceptTimeout      time.Duration = 30 * time.Second
	DefaultPublishTimeout     time.Duration = 5 * time.Second
)

//
// Config has the runtime settings shared by the dispatcher and the engines.
//
type Config struct {
	WorkerPoolSize int

	// DedupCacheSize is the number of message ids kept in memory in front
	// of the message store.
	DedupCacheSize int

	// CatchupBufferLimit bounds the live deliveries buffered for a channel
	// while it is caught up. On overflow the buffer is discarded and the
	// channel is caught up again. It also bounds the messages parked per
	// organization.
	CatchupBufferLimit int

	WitnessThreshold string

	// AcceptTimeout is how long a proposer waits before it fails an
	// instance which did not reach a decision.
	AcceptTimeout  time.Duration
	PublishTimeout time.Duration
}

func NewConfig() Config {
	p := Config{}

	p.WorkerPoolSize = DefaultWorkerPoolSize
	p.DedupCacheSize = DefaultDedupCacheSize
	p.CatchupBufferLimit = DefaultCatchupBufferLimit
	p.WitnessThreshold = DefaultWitnessThreshold
	p.AcceptTimeout = DefaultAcceptTimeout
	p.PublishTimeout = DefaultPublishTimeout

	return p
}
