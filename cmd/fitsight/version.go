package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitsight-io/fitsight/cmd"
	"github.com/fitsight-io/fitsight/pkg/fitsight"
)

func versionMain(command *cobra.Command, arguments []string) error {
	fmt.Println(fitsight.Version)
	return nil
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run:   cmd.Mainify(versionMain),
}

var versionConfiguration struct {
	help bool
}

func init() {
	flags := versionCommand.Flags()
	flags.BoolVarP(&versionConfiguration.help, "help", "h", false, "Show help information")
}
