// clockctl is the operator tool for the clock report: schema migrations,
// one-off report rendering and stale clock-in reminders.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clockreport.service/internal/config"
	"clockreport.service/internal/core"
	"clockreport.service/internal/core/model"
	"clockreport.service/internal/ports/messaging"
	"clockreport.service/internal/ports/repository"
	"clockreport.service/internal/render"
	"clockreport.service/pkg/aws"
	"clockreport.service/pkg/database"
	"clockreport.service/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "clockctl",
		Usage: "Operate the time clock report service.",
		Before: func(c *cli.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger.Setup(cfg.IsLocalDev, cfg.LogLevel)
			c.App.Metadata = map[string]interface{}{"config": cfg}
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			renderCommand(),
			notifyStaleCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("clockctl failed")
		os.Exit(1)
	}
}

func configFrom(c *cli.Context) config.Config {
	return c.App.Metadata["config"].(config.Config)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "Apply schema migrations (up, down, drop, version).",
		ArgsUsage: "[action]",
		Action: func(c *cli.Context) error {
			action := "up"
			if c.NArg() > 0 {
				action = c.Args().First()
			}

			if err := database.RunMigration(action, configFrom(c).DSN()); err != nil {
				return fmt.Errorf("migration %s failed: %w", action, err)
			}
			log.Info().Str("action", action).Msg("migration completed")
			return nil
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Print the report fragment, as embedded in other pages.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the report rows as JSON instead of HTML."},
		},
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			reports, closeDB, err := newReportService(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			presenter, err := render.NewPresenter(cfg.Location(), cfg.AdminBaseURL)
			if err != nil {
				return err
			}
			return writeReport(c.Context, os.Stdout, reports, presenter, c.Bool("json"))
		},
	}
}

func notifyStaleCommand() *cli.Command {
	return &cli.Command{
		Name:  "notify-stale",
		Usage: "Queue a reminder for every stale clock-in.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "watch", Usage: "Repeat every N seconds instead of running once; each stale event is reminded once per run of the watcher."},
		},
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			reports, closeDB, err := newReportService(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			awsCfg, err := aws.NewAWSConfig(c.Context, cfg)
			if err != nil {
				return fmt.Errorf("unable to load SDK config: %w", err)
			}
			producer := messaging.NewSQSProducer(sqs.NewFromConfig(awsCfg), cfg.ReminderSQSQueueURL)
			notifier := core.NewStaleNotifier(reports, producer)

			if !c.IsSet("watch") {
				_, err := notifier.Notify(c.Context, time.Now())
				return err
			}

			interval := time.Duration(c.Int("watch")) * time.Second
			if interval <= 0 {
				return fmt.Errorf("--watch must be positive")
			}
			log.Info().Dur("interval", interval).Msg("Starting stale clock-in watcher")
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if _, err := notifier.Notify(c.Context, time.Now()); err != nil {
					log.Error().Err(err).Msg("Stale clock-in notification failed")
				}
				select {
				case <-c.Context.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
}

func newReportService(cfg config.Config) (*core.ReportService, func(), error) {
	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewClockEventRepository(db, repository.StoreOptions{
		Keys:        cfg.MetaKeys(),
		EventType:   cfg.EventType,
		EventStatus: cfg.EventStatus,
	})
	return core.NewReportService(store, cfg.MetaKeys()), func() { db.Close() }, nil
}

type reportBuilder interface {
	BuildReport(ctx context.Context) model.Report
}

func writeReport(ctx context.Context, w io.Writer, reports reportBuilder, presenter *render.Presenter, asJSON bool) error {
	report := reports.BuildReport(ctx)
	if !asJSON {
		return presenter.RenderFragment(w, report)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(presenter.Present(report))
}
