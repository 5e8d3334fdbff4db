package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/generator"
	"github.com/danielpatrickdp/aura-plan/internal/plan"
	"github.com/danielpatrickdp/aura-plan/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func init() {
	serveCmd.Flags().String("listen", ":50052", "gRPC listen address")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus /metrics address; empty disables it")
	serveCmd.Flags().Bool("serve-generator", false, "Also expose this process's generator as aura.v1.InsightGenerator")
	serveCmd.Flags().StringP("plan", "p", "", "Warm the cache from this plan file on startup")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the insight cache over gRPC",
	Args:  cobra.NoArgs,
	RunE:  handleServe,
}

// #region serve

func handleServe(cmd *cobra.Command, args []string) error {
	listenAddr, _ := cmd.Flags().GetString("listen")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	serveGen, _ := cmd.Flags().GetBool("serve-generator")
	planPath, _ := cmd.Flags().GetString("plan")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if serveGen && strings.EqualFold(a.cfg.Generator.Kind, "grpc") {
		return errors.New("--serve-generator needs a local generator, not grpc")
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(server.LoggingInterceptor(a.log)))
	server.New(a.ctrl).Register(srv)
	if serveGen {
		generator.RegisterServer(srv, a.gen)
	}

	ctx := cmd.Context()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.WithField("addr", lis.Addr().String()).Info("grpc listening")
		return srv.Serve(lis)
	})

	var metricsSrv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.log.WithField("addr", metricsAddr).Info("metrics listening")
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if planPath != "" {
		if err := warm(ctx, a, planPath); err != nil {
			a.log.WithError(err).Warn("cache warm-up skipped")
		}
	}

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("shutting down")
		srv.GracefulStop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// warm starts a background EnsureFresh for every horizon in the plan.
func warm(ctx context.Context, a *app, planPath string) error {
	p, err := plan.Load(planPath)
	if err != nil {
		return err
	}
	buckets := p.Buckets()
	for _, b := range buckets {
		a.ctrl.Go(ctx, b, p.Tasks(b), false)
	}
	a.log.WithFields(logrus.Fields{
		"plan":    planPath,
		"buckets": len(buckets),
	}).Info("cache warm-up started")
	return nil
}
