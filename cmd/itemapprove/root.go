package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
	"github.com/Yuexixi123/ItemApprove-sub001/internal/config"
)

var (
	baseURL  string
	token    string
	identity string
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "itemapprove",
	Short: "Request orchestration client for the ItemApprove console backend",
	Long: `itemapprove drives the console's REST backend through the request
orchestrator: requests are keyed, debounced and de-duplicated (last write
wins), failures are classified as Network, HttpStatus, Business or
Cancelled, and a 401 clears the session and schedules a login redirect.

Configuration comes from ITEMAPPROVE_* environment variables (and a .env
file); flags override them.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Backend base URL (overrides ITEMAPPROVE_CLIENT__BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token to send")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", "", "Caller identity header value")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable orchestrator debug logging")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(mockServerCmd)
	rootCmd.AddCommand(versionCmd)
}

// client bundles an orchestrator with the resources it was built from.
type client struct {
	*itemapprove.Orchestrator
	cfg     *config.Config
	logger  *slog.Logger
	tokens  itemapprove.TokenStore
	cleanup func() error
}

// Close lets a pending login redirect print before shutting down, since
// closing the orchestrator cancels it.
func (c *client) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Session.RedirectDelay+time.Second)
	defer cancel()
	if err := c.WaitRedirect(ctx); err != nil {
		c.logger.Warn("login redirect did not run before exit", "error", err)
	}

	_ = c.Orchestrator.Close()
	if err := c.cleanup(); err != nil {
		c.logger.Warn("closing token store", "error", err)
	}
}

// newClient loads configuration and builds an orchestrator that prints
// notifications and login redirects to stderr.
func newClient(cmd *cobra.Command, extra ...itemapprove.Option) (*client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if baseURL != "" {
		cfg.Client.BaseURL = baseURL
	}
	if identity != "" {
		cfg.Client.Identity = identity
	}
	if debug {
		cfg.Logger.Level = "debug"
	}

	logger := cfg.NewLogger()
	tokens, cleanup := cfg.TokenStore()
	opts := cfg.Options(logger, tokens)

	stderr := cmd.ErrOrStderr()
	opts = append(opts,
		itemapprove.WithNotifier(itemapprove.NotifierFunc(func(_ context.Context, n itemapprove.Notification) {
			fmt.Fprintf(stderr, "%s: %s\n", n.Title, n.Description)
		})),
		itemapprove.WithSessionExpiredHandler(itemapprove.SessionExpiredFunc(func(_ context.Context, loginURL string) {
			fmt.Fprintf(stderr, "session expired, sign in again at %s\n", loginURL)
		})),
	)
	opts = append(opts, extra...)

	o := itemapprove.New(opts...)
	if err := o.ValidationError(); err != nil {
		_ = o.Close()
		_ = cleanup()
		return nil, err
	}

	c := &client{Orchestrator: o, cfg: cfg, logger: logger, tokens: tokens, cleanup: cleanup}
	if token != "" {
		if err := tokens.SetToken(cmd.Context(), token); err != nil {
			c.Close()
			return nil, fmt.Errorf("store token: %w", err)
		}
	}
	return c, nil
}
