// Command jfrctl controls recordings on a single target's agent.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/jfrlite/jfrlite/internal/commands"
	"github.com/jfrlite/jfrlite/internal/config"
	"github.com/jfrlite/jfrlite/internal/database"
	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/targets"
)

type options struct {
	Target     string        `validate:"required"`
	Username   string        `validate:"required_with=Password"`
	Password   string        `validate:"required_with=Username"`
	Timeout    time.Duration `validate:"gt=0"`
	ConfigPath string
}

var (
	opts = options{Timeout: 10 * time.Second}

	rootCmd = &cobra.Command{
		Use:           "jfrctl",
		Short:         "Control flight recordings on a target",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	startCmd = &cobra.Command{
		Use:   "start <name> <events>",
		Short: "Start a recording, e.g. start myrec jdk.CPULoad:enabled=true",
		RunE:  runStart,
	}

	validateCmd = &cobra.Command{
		Use:   "validate <name> <events>",
		Short: "Check a recording name and events pattern without contacting the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := commands.NewStartRecordingCommand(cmd.OutOrStdout(), nil, nil, targets.ConnectionDescriptor{})
			if !start.Validate(args) {
				return fmt.Errorf("validation failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.Target, "target", "t", "", "target as host:port or agent URL")
	flags.StringVarP(&opts.Username, "username", "u", "", "agent username")
	flags.StringVarP(&opts.Password, "password", "p", "", "agent password")
	flags.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "agent request timeout")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "server config; when it selects the postgres backend, started recordings are also written to the catalog")

	rootCmd.AddCommand(startCmd, validateCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if err := validator.New().Struct(opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	header := http.Header{}
	if opts.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		header.Set(targets.AuthorizationHeader, "Basic "+creds)
	}
	desc, err := targets.Resolve(nil, opts.Target, header)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	var catalog recordings.Catalog
	if opts.ConfigPath != "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Recordings.Backend == "postgres" {
			pool, err := database.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()
			catalog = recordings.NewPostgresCatalog(pool)
		}
	}

	start := commands.NewStartRecordingCommand(out, recordings.NewAgentClient(opts.Timeout), catalog, desc)
	if !start.Validate(args) {
		return fmt.Errorf("invalid arguments to %s", start.Name())
	}
	return start.Execute(ctx, args)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
