// Command order-watch is a terminal console for branch staff: it keeps the
// branch order list fresh and applies status changes typed on stdin.
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/client"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/ordersync"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		hc := &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
		}
		api := client.New(cfg.API, cfg.Token, hc)

		c := newConsole(os.Stdout, api)
		sync := ordersync.New(ordersync.SourceFunc(func(ctx context.Context) ([]order.Order, error) {
			list, err := api.ListBranchOrders(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]order.Order, len(list))
			for i, o := range list {
				out[i] = o.Order
			}
			return out, nil
		}), ordersync.Options{
			Interval:       cfg.Interval,
			Logger:         lg.Named("sync"),
			TracerProvider: m.TracerProvider(),
			Actor:          order.ActorSeller,
			OnChange:       c.render,
		})
		c.sync = sync

		if err := sync.Start(ctx); err != nil {
			return err
		}
		defer sync.Stop()

		lg.Info("Watching branch orders",
			zap.String("api", cfg.API),
			zap.Duration("interval", cfg.Interval),
		)
		return c.run(ctx, os.Stdin)
	})
}
