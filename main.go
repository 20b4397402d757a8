// Package main is the grievedesk command line client for the grievance portal.
//
// Commands:
//   - admin: session, complaint list, departments, detail, status and reports
//   - chat, submit, track: the citizen intake flow
//   - watch: poll the portal and mirror new complaints to Telegram
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grievedesk/internal/api"
	"grievedesk/internal/config"
	"grievedesk/internal/logging"
	"grievedesk/internal/view"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "grievedesk",
		Short: "Grievance portal client",
		Long: `Grievance portal client

Administrators manage complaints from the terminal. Citizens can file a
complaint through the assistant, submit one directly or track a ticket.
The watch command runs unattended and mirrors complaints to Telegram.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			a.logger = logging.New(cfg.LogLevel, cfg.DebugMode)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(adminCommands(a))
	rootCmd.AddCommand(chatCmd(a), submitCmd(a), trackCmd(a))
	rootCmd.AddCommand(watchCmd(a))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// portal builds an API client from the configuration.
func (a *app) portal() (*api.Client, error) {
	client, err := api.NewClient(a.cfg.PortalURL, api.NewHTTPClient(a.cfg.HTTPTimeout), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create portal client: %w", err)
	}
	return client, nil
}

// toaster prints every toast to stderr as it is shown.
func (a *app) toaster(opts ...view.ToasterOption) *view.Toaster {
	opts = append(opts, view.WithSink(printToast))
	return view.NewToaster(view.RealClock{}, a.cfg.ToastDuration, opts...)
}

func printToast(t view.Toast) {
	icon := "ℹ️ "
	switch t.Level {
	case view.LevelSuccess:
		icon = "✓"
	case view.LevelError:
		icon = "✗"
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", icon, t.Message)
}
