// Command dialtoned is a small command-line harness that wires
// Settings -> Control Surface -> Dialog Engine -> Audio I/O for manual
// local testing, in the spirit of the teacher's own cmd/test_sip
// smoke-test binaries (SPEC_FULL.md §10). It is not the GUI shell —
// that remains an external collaborator out of this module's scope.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/arzzra/dialtone/pkg/controlsurface"
)

func main() {
	var (
		server      = flag.String("server", "", "SIP registrar, host[:port] (default port 5060)")
		user        = flag.String("user", "", "SIP account username")
		password    = flag.String("password", "", "SIP account password")
		logLevel    = flag.String("log-level", envOr("DIALTONE_LOG_LEVEL", "info"), "zerolog level: debug, info, warn, error")
		saveAccount = flag.Bool("save", false, "persist server/user/password to the settings store")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	if *server == "" || *user == "" {
		if savedServer, savedUser, savedPassword, err := controlsurface.LoadSavedAccount(); err == nil && savedServer != "" {
			logger.Info().Str("server", savedServer).Str("user", savedUser).Msg("loaded saved account")
			*server, *user, *password = savedServer, savedUser, savedPassword
		}
	}
	if *server == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "usage: dialtoned -server <pbx> -user <name> -password <pw> [-save]")
		os.Exit(2)
	}

	if *saveAccount {
		if err := controlsurface.SaveAccount(*server, *user, *password); err != nil {
			logger.Warn().Err(err).Msg("saving account settings")
		}
	}

	surface := controlsurface.New(logger, prometheus.DefaultRegisterer)
	if err := surface.Init(); err != nil {
		logger.Fatal().Err(err).Msg("initializing core")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logEvents(ctx, logger, surface)

	if err := surface.Register(*server, *user, *password); err != nil {
		logger.Error().Err(err).Msg("registration failed")
	}

	runREPL(ctx, logger, surface)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := surface.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown did not complete cleanly")
	}
}

// logEvents drains the control surface's event stream to the log
// until ctx is cancelled or the stream is closed (Shutdown leaves it
// open, so in practice until ctx is cancelled).
func logEvents(ctx context.Context, logger zerolog.Logger, surface *controlsurface.Surface) {
	for {
		select {
		case ev, ok := <-surface.Events():
			if !ok {
				return
			}
			logger.Info().
				Str("event", ev.Type).
				Bool("registered", ev.Registered).
				Str("state", ev.State).
				Str("reason", ev.Reason).
				Str("detail", ev.Detail).
				Msg("event")
		case <-ctx.Done():
			return
		}
	}
}

// runREPL offers the handful of control-surface commands as lines of
// text on stdin, for manual interactive testing against a real PBX.
func runREPL(ctx context.Context, logger zerolog.Logger, surface *controlsurface.Surface) {
	fmt.Println("commands: call <number> | hangup | devices-in | devices-out | mic [device] | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "call":
			if len(fields) < 2 {
				fmt.Println("usage: call <number>")
				continue
			}
			if err := surface.Call(fields[1]); err != nil {
				logger.Error().Err(err).Msg("call failed")
			}
		case "hangup":
			if err := surface.Hangup(); err != nil {
				logger.Error().Err(err).Msg("hangup failed")
			}
		case "devices-in":
			names, err := surface.ListAudioInputDevices()
			printDeviceList(logger, "input", names, err)
		case "devices-out":
			names, err := surface.ListAudioOutputDevices()
			printDeviceList(logger, "output", names, err)
		case "mic":
			device := "default"
			if len(fields) > 1 {
				device = fields[1]
			}
			result, err := surface.TestMicrophone(device)
			if err != nil {
				logger.Error().Err(err).Msg("microphone test failed")
				continue
			}
			fmt.Println(result)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func printDeviceList(logger zerolog.Logger, kind string, names []string, err error) {
	if err != nil {
		logger.Error().Err(err).Msgf("listing %s devices", kind)
		return
	}
	for i, name := range names {
		fmt.Printf("%d: %s\n", i, name)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
