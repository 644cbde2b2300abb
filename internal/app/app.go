// Package app is the smartgriev command line: the long-running service
// plus one-off commands for sweeps, classification and translation.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"smartgriev/internal/config"
	"smartgriev/internal/httpx"
	"smartgriev/internal/logging"
	"smartgriev/internal/metrics"
	"smartgriev/internal/storage/sqlite"
)

// runtime holds what every command needs after configuration is loaded.
type runtime struct {
	cfg     config.Config
	metrics *metrics.Metrics
	logFile io.Closer
	out     io.Writer
}

func (r *runtime) openStore() (*sqlite.Store, error) {
	store, err := sqlite.Open(r.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("Database initialized at %s", r.cfg.DBPath)
	return store, nil
}

func Main() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rt := &runtime{out: os.Stdout}
	var cfgFile string

	root := &cobra.Command{
		Use:           "smartgriev",
		Short:         "Complaint classification and escalation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				os.Setenv("CONFIG_PATH", cfgFile)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
			if err != nil {
				return err
			}
			applied := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
			log.Printf(
				"Config loaded. Providers=%v Model=%s DB=%s EscalationDays=%d Cooldown=%s Schedule=%q Workers=%d Timezone=%s ExternalHTTPTimeout=%s",
				[]string(cfg.LLMProviders), cfg.LLMModel, cfg.DBPath, cfg.EscalationDays, cfg.EscalationCooldown(),
				cfg.EscalationSchedule, cfg.EscalationWorkers, cfg.Timezone, applied,
			)
			rt.cfg = cfg
			rt.logFile = closer
			rt.metrics = metrics.New()
			rt.out = cmd.OutOrStdout()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logFile != nil {
				_ = rt.logFile.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $CONFIG_PATH)")

	root.AddCommand(
		newServeCommand(rt),
		newSweepCommand(rt),
		newClassifyCommand(rt),
		newTranslateCommand(rt),
		newDetectCommand(rt),
		newFileCommand(rt),
		newDepartmentsCommand(rt),
		newGlossaryCommand(rt),
		newComplaintsCommand(rt),
	)
	return root
}
