package main

import (
	"fmt"

	"grievedesk/internal/health"
	"grievedesk/internal/storage"
	"grievedesk/internal/telegram"
	"grievedesk/internal/watch"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Mirror portal complaints to Telegram",
		Long: `Poll the portal every WATCH_INTERVAL and announce new complaints on Telegram.

Status changes made on the portal edit the Telegram message, and the
buttons under each message change the status on the portal. A health
endpoint is served on HEALTH_CHECK_PORT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := a.cfg, a.logger
			if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
				return fmt.Errorf("watch needs ADMIN_USERNAME and ADMIN_PASSWORD")
			}

			client, err := a.portal()
			if err != nil {
				return err
			}

			store, err := storage.Open(cfg.StoreBackend, cfg.StorePath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			logger.Infow("🔐 Logging in to portal", "url", cfg.PortalURL)
			if _, err := client.Login(cmd.Context(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
				return fmt.Errorf("initial login failed: %w", err)
			}
			logger.Info("✓ Login successful")

			bot := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramChatID, logger, telegram.WithDebug(cfg.DebugMode))
			monitor := health.NewMonitor(nil)
			watcher := watch.New(client, bot, store, watch.Options{
				Username:       cfg.AdminUsername,
				Password:       cfg.AdminPassword,
				WorkerPoolSize: cfg.WorkerPoolSize,
				Interval:       cfg.WatchInterval,
				Monitor:        monitor,
				Logger:         logger,
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return health.Serve(ctx, monitor, cfg.HealthCheckPort, logger)
			})
			g.Go(func() error {
				bot.HandleUpdates(ctx, client, store)
				return nil
			})
			g.Go(func() error {
				return watcher.Run(ctx)
			})
			return g.Wait()
		},
	}
}
