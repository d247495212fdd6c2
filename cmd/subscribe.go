package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumalabs/redigo3"
	"github.com/lumalabs/redigo3/resp3"
)

var SubscribeCmd = &cobra.Command{
	Use:   "subscribe <channel> [channel...]",
	Short: "Subscribe to one or more channels and print pushes until interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		conn, log, closer, err := dialedConn(ctx)
		if err != nil {
			return err
		}
		defer closer()

		req := redigo3.NewRequest()
		channels := make([]interface{}, len(args))
		for i, c := range args {
			channels[i] = c
		}
		req.Push("SUBSCRIBE", channels...)

		// SUBSCRIBE's reply arrives as a push, not a typed reply, so Exec
		// just writes the command and returns; the subscription
		// confirmation and every message land in the Receive loop below.
		subCtx, subCancel := context.WithTimeout(ctx, 5*time.Second)
		defer subCancel()
		if err := conn.Exec(subCtx, req, resp3.IgnoreAdapter{}); err != nil {
			return err
		}

		for {
			nodes, err := conn.Receive(ctx)
			if err != nil {
				log.Info("subscribe loop stopping", zap.Error(err))
				return nil
			}
			for _, n := range nodes {
				fmt.Printf("%s %q\n", n.Type, n.Data)
			}
		}
	},
}

func init() {
	addConnFlags(SubscribeCmd.PersistentFlags())
}
