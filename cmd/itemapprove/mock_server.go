package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Yuexixi123/ItemApprove-sub001/internal/config"
	"github.com/Yuexixi123/ItemApprove-sub001/internal/mockapi"
)

var (
	mockAddr    string
	mockLatency time.Duration
	mockMetrics bool
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a stand-in for the console backend",
	Long: `Serve the console's REST endpoints (login, monitoring items, approvals,
todos) from memory. Sign in with admin/admin. --latency delays every response
so in-flight supersession can be observed.`,
	RunE: runMockServer,
}

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", "", "Listen address (overrides ITEMAPPROVE_MOCK__ADDR)")
	mockServerCmd.Flags().DurationVar(&mockLatency, "latency", -1, "Response delay (overrides ITEMAPPROVE_MOCK__LATENCY)")
	mockServerCmd.Flags().BoolVar(&mockMetrics, "metrics", false, "Expose Prometheus metrics on /metrics")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if mockAddr != "" {
		cfg.Mock.Addr = mockAddr
	}
	if mockLatency >= 0 {
		cfg.Mock.Latency = mockLatency
	}
	logger := cfg.NewLogger()

	srv := mockapi.New(mockapi.WithLatency(cfg.Mock.Latency))
	if mockMetrics || cfg.Metrics.Enabled {
		srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Mock.Addr)
	}()
	logger.Info("mock backend listening", "addr", cfg.Mock.Addr, "latency", cfg.Mock.Latency, "login", "admin/admin")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
