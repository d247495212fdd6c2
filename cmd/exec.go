package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumalabs/redigo3"
	"github.com/lumalabs/redigo3/resp3"
)

var ExecCmd = &cobra.Command{
	Use:   "exec <command> [args...]",
	Short: "Dial the server and run a single arbitrary command",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conn, _, closer, err := dialedConn(ctx)
		if err != nil {
			return err
		}
		defer closer()

		req := redigo3.NewRequest()
		cmdArgs := make([]interface{}, len(args)-1)
		for i, a := range args[1:] {
			cmdArgs[i] = a
		}
		req.Push(args[0], cmdArgs...)

		tree := resp3.NewTreeAdapter()

		execCtx, execCancel := context.WithTimeout(ctx, 5*time.Second)
		defer execCancel()
		if err := conn.Exec(execCtx, req, tree); err != nil {
			return err
		}

		for _, n := range tree.Nodes {
			fmt.Printf("%s %q\n", n.Type, n.Data)
		}
		return nil
	},
}

func init() {
	addConnFlags(ExecCmd.PersistentFlags())
}
