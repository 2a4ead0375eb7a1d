package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moriagate/balrog/pkg/logger"
	"github.com/moriagate/balrog/relay"
)

const longDesc string = `Balrog relays chat messages to an OpenAI-compatible completion API
with a safety model in the loop: every user message is classified before it
reaches the completion model, and every reply is classified before it
reaches the user. The classifier fails open, so an outage on the safety
side never blocks conversations.

Examples:
  balrog --api https://api.openai.com/v1 \
         --api-key $BALROG_API_KEY \
         --model gpt-4o-mini \
         --safety-model meta-llama/Llama-Guard-7b

  balrog --config balrog.toml --listen :8080 --db balrog.sqlite`

type serveCommander struct {
	configPath string
	logLevel   string

	listen      string
	api         string
	apiKey      string
	model       string
	safetyModel string
	dbPath      string
}

func newRootCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:          "balrog",
		Short:        "Safety-gated LLM chat relay",
		Long:         longDesc,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.listen, "listen", ":5000", "Address to listen on")
	cmd.Flags().StringVar(&cmder.api, "api", "", "OpenAI-compatible API base URL")
	cmd.Flags().StringVar(&cmder.apiKey, "api-key", os.Getenv("BALROG_API_KEY"), "API key (default $BALROG_API_KEY)")
	cmd.Flags().StringVar(&cmder.model, "model", "", "Completion model name")
	cmd.Flags().StringVar(&cmder.safetyModel, "safety-model", "", "Safety classifier model name")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to SQLite transcript database (default: in-memory)")
	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to TOML config file")
	cmd.Flags().StringVar(&cmder.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	log := logger.NewLogger(c.logLevel)
	defer log.Sync()

	var cfg relay.Config
	if c.configPath != "" {
		if err := cfg.LoadFile(c.configPath); err != nil {
			return err
		}
	}

	// Command-line flags override config file values; flag defaults apply
	// when neither is set.
	override := func(name, val string, dst *string) {
		if cmd.Flags().Changed(name) || *dst == "" {
			*dst = val
		}
	}
	override("listen", c.listen, &cfg.ListenAddr)
	override("api", c.api, &cfg.UpstreamURL)
	override("api-key", c.apiKey, &cfg.APIKey)
	override("model", c.model, &cfg.Model)
	override("safety-model", c.safetyModel, &cfg.SafetyModel)
	override("db", c.dbPath, &cfg.DBPath)

	r, err := relay.New(cfg, log)
	if err != nil {
		return fmt.Errorf("could not create relay: %w", err)
	}
	defer r.Close()

	log.Info("balrog relay starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("model", cfg.Model),
		zap.String("safety_model", cfg.SafetyModel),
	)

	return r.Run()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
