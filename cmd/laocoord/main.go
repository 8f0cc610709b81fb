package main

import (
	"github.com/laonet/laocoord/cmd/laocoord/cmd"
)

func main() {
	cmd.Execute()
}
