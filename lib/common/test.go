// Provide test utilities for the common package
package common

// Initialize a new config object for unittests
func NewTestConfig() Config {
	p := NewConfig()

	p.WorkerPoolSize = 2
	p.DedupCacheSize = 100
	p.CatchupBufferLimit = 100
	p.PublishTimeout = 0

	return p
}
