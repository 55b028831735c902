package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/calprompt/calprompt/internal/app"
	"github.com/calprompt/calprompt/internal/config"
	"github.com/calprompt/calprompt/internal/database"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/calprompt/calprompt/pkg/prompt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var cfg config.Application

	root := &cobra.Command{
		Use:           "calprompt",
		Short:         "Turn natural-language prompts into calendar operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if strings.EqualFold(cfg.Log.Format, "json") {
				log.SetFormatter(&log.JSONFormatter{})
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./config/application.yaml", "path to the YAML configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				application, err := app.NewApplication(ctx, cfg)
				if err != nil {
					log.Errorf("failed to initialize application: %v", err)
					return err
				}
				return application.Run(ctx)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations for the credential store",
			RunE: func(cmd *cobra.Command, args []string) error {
				return database.Migrate(cmd.Context(), cfg.Database)
			},
		},
		newPromptCommand(&cfg),
	)
	return root
}

// newPromptCommand runs one prompt through the pipeline and prints the response envelope.
func newPromptCommand(cfg *config.Application) *cobra.Command {
	var timeZone string
	var token string

	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Run a single prompt against the configured calendar",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("CALPROMPT_TOKEN")
			}
			// The token comes from the flag, so no credential store is opened.
			oneShot := *cfg
			oneShot.Credentials.Source = "header"
			collaborators, err := app.BuildCollaborators(oneShot, nil)
			if err != nil {
				return err
			}
			deps := app.BuildDependencies(oneShot, collaborators)

			envelope, err := deps.PromptService.Handle(context.Background(), credential.Credential{AccessToken: token}, prompt.Request{
				Prompt:   strings.Join(args, " "),
				TimeZone: timeZone,
			})
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(envelope, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&timeZone, "tz", "UTC", "IANA time zone of the user")
	cmd.Flags().StringVar(&token, "token", "", "OAuth access token for the calendar (default $CALPROMPT_TOKEN)")
	return cmd
}
