package common

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/laonet/laocoord/lib/errors"
)

// PrintFlagsError issues a message on Stderr then exits with an error code.
func PrintFlagsError(cmd *cobra.Command, flagName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid '%s'; %s\n\n", flagName, errorString(err))
	}

	cmd.Help()

	os.Exit(1)
}

func PrintError(cmd *cobra.Command, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n\n", errorString(err))
	}

	cmd.Help()

	os.Exit(1)
}

func errorString(err error) string {
	if e, ok := err.(*errors.Error); ok {
		return e.Message
	}

	return err.Error()
}
