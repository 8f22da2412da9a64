package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"studio-pro/internal/database"
	"studio-pro/internal/metrics"
	"studio-pro/internal/server"
	"studio-pro/internal/worker"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the reconciliation worker",
	Long: `Start the studio HTTP API.

Examples:
  studio serve
  studio serve --config ./config.yaml --migrate`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "create missing tables before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveMigrate {
		if err := database.Migrate(ctx, a.db.DB()); err != nil {
			return err
		}
	}

	if a.cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.Register()

	rdb := database.NewRedisClient(a.cfg.Redis)
	if rdb != nil {
		if err := database.PingRedis(ctx, rdb); err != nil {
			a.log.WithError(err).Warn("redis unavailable, reconciliation runs without a lease")
			_ = database.CloseRedis(rdb)
			rdb = nil
		}
	}
	defer database.CloseRedis(rdb)

	if rc := a.cfg.Reconciliation; rc.Enabled {
		w := worker.NewReconciliationWorker(
			a.bookingRepo,
			a.paymentRepo,
			a.reconciler,
			worker.NewLocker(rdb, rc.LeaseTTL),
			worker.Settings{Interval: rc.Interval, Grace: rc.Grace, BatchSize: rc.BatchSize},
			a.log,
		)
		go w.Run(ctx)
	}

	srv := server.New(a.cfg.HTTP, a.bookings, a.payments, a.cards, a.db, a.log)
	return srv.Run(ctx)
}
