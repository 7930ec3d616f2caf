// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"relaychat/internal"
)

func main() {
	cfg, err := internal.LoadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "[USAGE]: relaychat [flags]\n%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin); err != nil {
		logrus.Fatal(err)
	}
}

// run serves until ctx is done, the operator quits or accepting fails.
// Operator commands are read from in unless the terminal UI is enabled.
func run(ctx context.Context, cfg internal.Config, in io.Reader) error {
	var out io.Writer = os.Stderr
	var chatUI *ChatUI
	if cfg.UI {
		var err error
		chatUI, err = NewChatUI(cfg.Address)
		if err != nil {
			return err
		}
		defer chatUI.Close()
		out = chatUI
	}

	logger, logfile, err := internal.NewLogger(cfg, out)
	if err != nil {
		return err
	}
	defer logfile.Close()

	// Bind before starting the console so address errors are reported right away.
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	metrics := internal.NewMetrics()
	server := internal.NewServer(cfg,
		internal.WithLogger(logger),
		internal.WithMetrics(metrics),
	)
	console := internal.NewConsole(server, out)

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	consoleErr := make(chan error, 1)
	go func() {
		if chatUI != nil {
			consoleErr <- chatUI.Run(ctx, server, console)
			return
		}
		consoleErr <- console.Run(ctx, in)
	}()

	var runErr error
wait:
	for {
		select {
		case <-ctx.Done():
			logger.Info("Got stop signal")
			break wait
		case err := <-consoleErr:
			if errors.Is(err, io.EOF) {
				// No operator input; keep serving until a signal arrives.
				consoleErr = nil
				continue
			}
			if !errors.Is(err, context.Canceled) {
				runErr = err
			}
			break wait
		case err := <-serveErr:
			if !errors.Is(err, internal.ErrServerClosed) {
				runErr = err
			}
			break wait
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	runErr = multierr.Append(runErr, server.Shutdown(shutdownCtx))
	if metricsServer != nil {
		runErr = multierr.Append(runErr, metricsServer.Shutdown(shutdownCtx))
	}
	return runErr
}
