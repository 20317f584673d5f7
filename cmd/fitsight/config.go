package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fitsight-io/fitsight/cmd"
	"github.com/fitsight-io/fitsight/pkg/configuration"
)

func configInitMain(command *cobra.Command, arguments []string) error {
	path := "fitsight.toml"
	if len(arguments) == 1 {
		path = arguments[0]
	} else if len(arguments) > 1 {
		return errors.New("too many arguments")
	}

	if err := configuration.Default().Save(path); err != nil {
		return errors.Wrap(err, "unable to write configuration")
	}
	fmt.Println("Wrote default configuration to", path)
	return nil
}

var configCommand = &cobra.Command{
	Use:   "config",
	Short: "Manage the Fitsight configuration",
}

var configInitCommand = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Run:   cmd.Mainify(configInitMain),
}

var configConfiguration struct {
	help bool
}

func init() {
	flags := configCommand.Flags()
	flags.BoolVarP(&configConfiguration.help, "help", "h", false, "Show help information")
	configCommand.AddCommand(configInitCommand)
}
