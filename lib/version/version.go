package version

import "fmt"

const Name = "laocoord"

// GitCommit, GitState and BuildDate are set by the linker, like
// -X github.com/laonet/laocoord/lib/version.GitCommit=<commit>.
var (
	Version   = "0.1.0"
	GitCommit string
	GitState  string
	BuildDate string
)

func ToDetailVersion() string {
	commit := GitCommit
	if GitState == "dirty" {
		commit += "-dirty"
	}

	return fmt.Sprintf("%s version=%s git=%s build=%s", Name, Version, commit, BuildDate)
}
