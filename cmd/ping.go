package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumalabs/redigo3"
	"github.com/lumalabs/redigo3/resp3"
)

var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Dial the server, run the RESP3 handshake and send one PING",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		conn, _, closer, err := dialedConn(ctx)
		if err != nil {
			return err
		}
		defer closer()

		req := redigo3.NewRequest()
		req.Push("PING")

		var reply string
		adapter, err := resp3.NewTupleAdapter(&reply)
		if err != nil {
			return err
		}

		execCtx, execCancel := context.WithTimeout(ctx, 5*time.Second)
		defer execCancel()
		if err := conn.Exec(execCtx, req, adapter); err != nil {
			return err
		}

		fmt.Println(reply)
		return nil
	},
}

func init() {
	addConnFlags(PingCmd.PersistentFlags())
}
