package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumalabs/redigo3/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "redigo3-cli",
	Short: "A small CLI driving the redigo3 RESP3 client core",
	Long: `redigo3-cli

Usage
	redigo3-cli ping
	redigo3-cli exec <command> [args...]
	redigo3-cli subscribe <channel> [channel...]
`,
}

func init() {
	RootCmd.AddCommand(PingCmd)
	RootCmd.AddCommand(ExecCmd)
	RootCmd.AddCommand(SubscribeCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
