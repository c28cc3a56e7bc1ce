package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"dealer-portal/config"
	"dealer-portal/internal/metadata"
	"dealer-portal/internal/models"
	"dealer-portal/internal/service"
	"dealer-portal/internal/store"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "portalctl",
		Usage: "dealer portal maintenance",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", Usage: "database driver (postgres, pgx, mysql)", EnvVars: []string{"DB_DRIVER"}},
			&cli.StringFlag{Name: "dsn", Usage: "database connection string", EnvVars: []string{"DATABASE_URL"}},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "time limit for the command"},
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "create missing tables and indexes",
				Action: withStore(runMigrate),
			},
			{
				Name:  "seed-dealer",
				Usage: "create a dealer account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "phone"},
					&cli.StringFlag{Name: "business-name"},
				},
				Action: withStore(runSeedDealer),
			},
			{
				Name:  "inspect-order",
				Usage: "show an order with its notification history and outbox events",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dealer", Required: true},
					&cli.StringFlag{Name: "order", Required: true},
				},
				Action: withStore(runInspectOrder),
			},
			{
				Name:  "inspect-notification",
				Usage: "decode a notification's metadata and show the orders it refers to",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dealer", Required: true},
					&cli.Int64Flag{Name: "id", Required: true},
				},
				Action: withStore(runInspectNotification),
			},
			{
				Name:  "replay-outbox",
				Usage: "requeue dead outbox events",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "event", Usage: "event id; all dead events when empty"},
				},
				Action: withStore(runReplayOutbox),
			},
		},
	}
}

type storeAction func(ctx context.Context, c *cli.Context, st *store.Store) error

// withStore opens the database from config, overridden by flags, for the
// duration of one command.
func withStore(fn storeAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := config.Load()
		opts := store.Options{
			Driver:         cfg.Database.Driver,
			DSN:            cfg.Database.URL,
			MaxOpenConns:   2,
			MaxIdleConns:   1,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		}
		if v := c.String("driver"); v != "" {
			opts.Driver = v
		}
		if v := c.String("dsn"); v != "" {
			opts.DSN = v
		}

		st, err := store.NewStore(opts)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
		defer cancel()
		return fn(ctx, c, st)
	}
}

func runMigrate(ctx context.Context, c *cli.Context, st *store.Store) error {
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "schema up to date")
	return nil
}

func runSeedDealer(ctx context.Context, c *cli.Context, st *store.Store) error {
	cfg := config.Load()
	auth := service.NewAuthService(st, nil, cfg.Auth, cfg.Redis)
	res, err := auth.Signup(ctx, &service.SignupRequest{
		Name:         c.String("name"),
		Email:        c.String("email"),
		Password:     c.String("password"),
		Phone:        c.String("phone"),
		BusinessName: c.String("business-name"),
	})
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, res.Dealer)
}

func runInspectOrder(ctx context.Context, c *cli.Context, st *store.Store) error {
	dealerID, orderID := c.String("dealer"), c.String("order")
	order, err := st.GetOrder(ctx, orderID, dealerID)
	if err != nil {
		return err
	}
	history, err := st.ListOrderHistory(ctx, dealerID, orderID)
	if err != nil {
		return err
	}
	outbox, err := st.ListOutbox(ctx, orderID)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, orderReport{Order: order, History: history, Outbox: outbox})
}

type orderReport struct {
	Order   *models.Order         `json:"order"`
	History []models.Notification `json:"history"`
	Outbox  []models.OutboxEvent  `json:"outbox"`
}

func runInspectNotification(ctx context.Context, c *cli.Context, st *store.Store) error {
	n, err := st.GetNotification(ctx, c.Int64("id"), c.String("dealer"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, inspectNotification(n))
}

type notificationReport struct {
	Notification *models.Notification `json:"notification"`
	Snapshot     *metadata.Snapshot   `json:"snapshot,omitempty"`
	OrderIDs     []string             `json:"order_ids"`
	Problem      string               `json:"problem,omitempty"`
}

// inspectNotification never fails: decode problems are reported in the
// output so broken rows can be examined.
func inspectNotification(n *models.Notification) notificationReport {
	report := notificationReport{Notification: n, OrderIDs: []string{}}
	snap, err := metadata.Decode(n.Metadata)
	if err != nil {
		report.Problem = err.Error()
		return report
	}
	report.Snapshot = snap

	ids, err := service.ResolveOrderIDs(n, "")
	if err != nil {
		report.Problem = err.Error()
		return report
	}
	report.OrderIDs = ids
	return report
}

func runReplayOutbox(ctx context.Context, c *cli.Context, st *store.Store) error {
	n, err := st.ReplayDeadOutbox(ctx, c.String("event"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "requeued %d event(s)\n", n)
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
