package runner

import (
	"time"
)

var (
	// FailExpiredInterval is how often the instances proposed by the local
	// node are checked against `Config.AcceptTimeout`.
	FailExpiredInterval time.Duration = time.Second * 5

	// DebugPProf exposes the pprof handlers under the debug router.
	DebugPProf bool = false
)
