package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/moep/moepserver/internal/env"
	"github.com/moep/moepserver/lobby"
	"github.com/moep/moepserver/roster"
	"github.com/moep/moepserver/transport"
)

// listenerConfig collects the start flags, MOEP_* variables and moep.yaml
var listenerConfig = viper.New()

func init() {
	flags := StartCmd.PersistentFlags()

	flags.IntP("port", "p", 7363, "The port to listen for game clients on")
	flags.String("http-port", "7362", "The port to listen to HTTP requests on")
	flags.StringP("host", "a", "0.0.0.0", "The host to listen on")
	flags.Int("listeners", 0, "The number of TCP listeners, one per CPU if 0")
	flags.Bool("reuseport", true, "Share the port between listeners with SO_REUSEPORT")

	if err := listenerConfig.BindPFlags(flags); err != nil {
		panic(err)
	}
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start up the Moep game server",
	Long: `Start up the Moep game server

Usage
	moepserver start

Settings are read from flags, MOEP_* environment variables and an
optional moep.yaml in the working directory.
`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		listener, err := env.LoadListener(listenerConfig, ".")
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.Debug)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		// Not tied to the signal, clients are kicked by tcp.Close on shutdown
		serveCtx, stopServing := context.WithCancel(context.Background())
		defer stopServing()

		players := roster.NewInmemoryRoster()

		l := lobby.New(lobby.Options{
			Roster: players,
			Log:    log.Named("lobby"),
		})
		l.Start(serveCtx)

		router := setupRouter(conf.DebugHTTP, log.Named("http"), l, players)

		s := &http.Server{
			Addr:    net.JoinHostPort(listener.Host, listener.HTTPPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		tcp := transport.NewTCP(transport.Options{
			Host:             listener.Host,
			Port:             listener.Port,
			Reuseport:        listener.Reuseport,
			NumListeners:     listener.NumListeners,
			MaxLineLength:    conf.MaxLineLength,
			WriteTimeout:     conf.WriteTimeout,
			ColorWishTimeout: conf.ColorWishTimeout,
			Handler:          l,
			Log:              log.Named("transport"),
		})

		if err := tcp.Start(serveCtx); err != nil {
			return err
		}

		log.Info("Listening",
			zap.Any("config", conf),
			zap.String("host", listener.Host),
			zap.Int("port", listener.Port),
			zap.String("httpPort", listener.HTTPPort))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if err := tcp.Close(); err != nil {
			log.Error("TCP server forced to shutdown", zap.Error(err))
		}

		if err := l.Close(); err != nil {
			log.Error("Lobby did not stop cleanly", zap.Error(err))
		}

		if err := players.Close(); err != nil {
			log.Error("Roster did not close cleanly", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
