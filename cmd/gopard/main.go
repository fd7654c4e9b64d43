//go:build linux

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/gopard/internal/supervisor"
)

func main() {
	var (
		selectTimeout time.Duration
		sampleWindow  time.Duration
		maxRun        int
		logLevel      string
	)

	root := &cobra.Command{
		Use:   "gopard <output-directory> <control-cmd> [control-arg...]",
		Short: "Single-threaded process supervisor and output-capture executor",
		Long: `gopard runs a control program, listens on its stdout for exec: and
print: commands, and supervises every job it spawns: capturing stdout and
stderr to per-run log files, sampling their growth into a per-run index, and
recording invoked/running/finished state to CSV ledgers under the control
run's own directory.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1:], runConfig{
				selectTimeout: selectTimeout,
				sampleWindow:  sampleWindow,
				maxRun:        maxRun,
				logLevel:      logLevel,
			})
		},
	}

	root.Flags().DurationVar(&selectTimeout, "select-timeout", 10*time.Second, "maximum time one readiness-poll iteration blocks with no pipe ready")
	root.Flags().DurationVar(&sampleWindow, "sample-interval", 9*time.Second, "minimum wall-clock gap between recorded growth samples of a single stream")
	root.Flags().IntVar(&maxRun, "max-run", supervisor.MaxRun, "maximum number of concurrently live runs")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type runConfig struct {
	selectTimeout time.Duration
	sampleWindow  time.Duration
	maxRun        int
	logLevel      string
}

func run(statusRoot string, controlArgv []string, cfg runConfig) error {
	log, err := newLogger(cfg.logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	instanceID := uuid.NewString()
	log = log.Named("gopard").With(zap.String("instance", instanceID))

	sv, err := supervisor.New(log, controlArgv, supervisor.Options{
		StatusRoot:    statusRoot,
		SelectTimeout: cfg.selectTimeout,
		SampleWindow:  cfg.sampleWindow,
		MaxRun:        cfg.maxRun,
	})
	if err != nil {
		log.Error("supervisor init failed", zap.Error(err))
		return err
	}

	stopCh := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		close(stopCh)
	}()

	return sv.Run(stopCh)
}

// newLogger builds a zap logger from zap's development config, with its
// verbosity driven by --log-level.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}
