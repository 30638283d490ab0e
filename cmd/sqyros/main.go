package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avnova/sqyros/internal/app"
	"github.com/avnova/sqyros/internal/billing"
	"github.com/avnova/sqyros/internal/config"
	"github.com/avnova/sqyros/internal/routing"
	"github.com/avnova/sqyros/internal/security"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "sqyros",
		Short: "AV integration guide and maintenance chat backend",
		Long: `Sqyros serves integration guides and maintenance answers for AV equipment.
It routes every request to a fast or an advanced model tier, enforces free-tier
quotas, and books token usage and cost per call.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default config.yaml or $SQYROS_CONFIG)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.RunServer(ctx, config.AppConfig{ConfigPath: configFile}); err != nil {
				log.WithError(err).Error("server exited")
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate(cmd.Context(), config.AppConfig{ConfigPath: configFile})
		},
	}
}

// classifyOptions holds the classify command flags.
type classifyOptions struct {
	chat         bool
	system       string
	device       string
	connection   string
	force        string
	inputTokens  int64
	outputTokens int64
}

func classifyCmd() *cobra.Command {
	var opts classifyOptions

	cmd := &cobra.Command{
		Use:   "classify [message]",
		Short: "Print the routing decision and cost estimate for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ResolveConfigPath(configFile))
			if err != nil {
				return err
			}
			return runClassify(cmd.OutOrStdout(), cfg.Pricing, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.chat, "chat", false, "use the maintenance chat classifier")
	cmd.Flags().StringVar(&opts.system, "system", "", "selected control system")
	cmd.Flags().StringVar(&opts.device, "device", "", "selected device")
	cmd.Flags().StringVar(&opts.connection, "connection", "", "selected connection type")
	cmd.Flags().StringVar(&opts.force, "force", "", "force a tier (FAST or ADVANCED)")
	cmd.Flags().Int64Var(&opts.inputTokens, "input-tokens", 0, "input tokens for the cost estimate")
	cmd.Flags().Int64Var(&opts.outputTokens, "output-tokens", 0, "output tokens for the cost estimate (default: the decision's budget)")
	return cmd
}

func runClassify(w io.Writer, rates billing.RateTable, message string, opts classifyOptions) error {
	var (
		decision routing.Decision
		err      error
	)
	if opts.chat {
		decision, err = routing.ClassifyChat(message)
	} else {
		req := routing.Request{
			Text: message,
			Context: routing.Context{
				SelectedSystem:     opts.system,
				SelectedDevice:     opts.device,
				SelectedConnection: opts.connection,
			},
		}
		if opts.force != "" {
			tier, ok := routing.ParseTier(opts.force)
			if !ok {
				return fmt.Errorf("unknown tier %q", opts.force)
			}
			req.ForcedModel = &tier
		}
		decision, err = routing.Classify(req)
	}
	if err != nil {
		return err
	}

	outputTokens := opts.outputTokens
	if outputTokens <= 0 {
		outputTokens = decision.MaxOutputTokens
	}
	out := struct {
		routing.Decision
		InputTokens  int64 `json:"inputTokens"`
		OutputTokens int64 `json:"outputTokens"`
		CostCents    int64 `json:"estimatedCostCents"`
	}{
		Decision:     decision,
		InputTokens:  opts.inputTokens,
		OutputTokens: outputTokens,
		CostCents:    rates.EstimateCostCents(decision.ModelTier, opts.inputTokens, outputTokens),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a session token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ResolveConfigPath(configFile))
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt-secret or %s is required", config.EnvJWTSecret)
			}
			token, err := security.GenerateToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "user", "", "user id to place in the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
