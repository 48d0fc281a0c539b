package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"hue-toys/internal/agent"
	"hue-toys/internal/config"
	"hue-toys/internal/logging"
)

// These variables will be set by the build script
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:           "hue-toys-agent",
		Short:         "Drive Hue lights from a web UI, MQTT, Lua patterns and schedules",
		Version:       fmt.Sprintf("%s, commit: %s, built: %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.Log); err != nil {
				return err
			}
			log.Printf("Starting hue-toys agent version: %s, commit: %s, built: %s", version, commit, date)

			a, err := agent.NewAgent(cfg)
			if err != nil {
				return fmt.Errorf("failed to create agent: %w", err)
			}

			a.Start()

			// Wait for termination signal for graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Println("Shutting down agent...")
			a.Shutdown()
			log.Println("Agent shut down gracefully.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
