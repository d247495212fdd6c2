package cmd

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lumalabs/redigo3"
	"github.com/lumalabs/redigo3/internal/env"
)

var (
	flagHost     string
	flagPort     int
	flagUsername string
	flagPassword string
	flagTLS      bool
)

func addConnFlags(flags *pflag.FlagSet) {
	flags.StringVar(&flagHost, "host", "", "Redis host (default from REDIGO3_HOST, falls back to 127.0.0.1)")
	flags.IntVar(&flagPort, "port", 0, "Redis port (default from REDIGO3_PORT, falls back to 6379)")
	flags.StringVar(&flagUsername, "username", "", "Redis ACL username, if authentication is required")
	flags.StringVar(&flagPassword, "password", "", "Redis password, if authentication is required")
	flags.BoolVar(&flagTLS, "tls", false, "Dial the server over TLS")
}

// dialedConn loads internal/env.Config for defaults, overrides with any
// flags set on the invoking command, starts Conn.Run in the background
// and blocks until the handshake completes or ctx expires.
func dialedConn(ctx context.Context) (*redigo3.Conn, *zap.Logger, func(), error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	endpoint := redigo3.Endpoint{
		Host:     orDefault(flagHost, conf.Host),
		Port:     orDefaultInt(flagPort, conf.Port),
		Username: orDefault(flagUsername, conf.Username),
		Password: orDefault(flagPassword, conf.Password),
	}
	if flagTLS {
		endpoint.TLSConfig = &tls.Config{}
	}

	timeouts := redigo3.DefaultTimeouts()
	if conf.ConnectTimeout > 0 {
		timeouts.ConnectTimeout = conf.ConnectTimeout
	}
	if conf.PingInterval > 0 {
		timeouts.PingInterval = conf.PingInterval
	}

	conn := redigo3.NewConn(log.Named("conn"))

	runCtx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := conn.Run(runCtx, endpoint, timeouts); err != nil {
			log.Warn("connection run loop exited", zap.Error(err))
		}
	}()

	for {
		if conn.RemoteAddr() != nil {
			break
		}
		select {
		case <-ctx.Done():
			cancel()
			return nil, nil, nil, ctx.Err()
		case <-runDone:
			cancel()
			return nil, nil, nil, redigo3.ErrConnectionLost
		case <-time.After(5 * time.Millisecond):
		}
	}

	closer := func() {
		cancel()
		<-runDone
	}
	return conn, log, closer, nil
}

func orDefault(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

func orDefaultInt(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}
