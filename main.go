package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/reply4me/internal/analytics"
	"github.com/ibeckermayer/reply4me/internal/app"
	"github.com/ibeckermayer/reply4me/internal/config"
	"github.com/ibeckermayer/reply4me/internal/logging"
	"github.com/ibeckermayer/reply4me/internal/metrics"
	"github.com/ibeckermayer/reply4me/internal/scheduler"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	a := cli.App{
		Name:    "reply4me",
		Usage:   "social engagement bot: daily posts, mention replies, hashtag outreach",
		Version: versioninfo.Short(),
	}

	a.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to config.toml (default: user config dir)",
			EnvVars: []string{"REPLY4ME_CONFIG"},
		},
	}

	a.Commands = []*cli.Command{
		runCmd,
		oneShotCmd(app.JobPost, "publish today's quote"),
		oneShotCmd(app.JobPoll, "reply to new mentions"),
		oneShotCmd(app.JobScan, "engage with posts under the monitored hashtags"),
		oneShotCmd(app.JobRefresh, "refresh engagement metrics of recent posts"),
		rollupCmd,
		initConfigCmd,
	}

	return a.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the bot daemon with all jobs scheduled",
	Action: func(cctx *cli.Context) error {
		env, err := setup(cctx)
		if err != nil {
			return err
		}
		defer env.close()

		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := env.app.Register(env.sched); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return metrics.Serve(gctx, env.cfg.Metrics.ListenAddr)
		})
		g.Go(func() error {
			env.sched.Start(gctx)
			for _, j := range env.sched.ListJobs() {
				slog.Info("job scheduled", "job", j.Name, "next_run", j.NextRun)
			}
			<-gctx.Done()
			slog.Info("shutting down, waiting for running jobs")
			<-env.sched.Stop().Done()
			return nil
		})

		slog.Info("reply4me started", "version", versioninfo.Short(), "timezone", env.cfg.Schedule.Timezone)
		return g.Wait()
	},
}

func oneShotCmd(job, usage string) *cli.Command {
	return &cli.Command{
		Name:  job,
		Usage: usage + " once and exit",
		Action: func(cctx *cli.Context) error {
			env, err := setup(cctx)
			if err != nil {
				return err
			}
			defer env.close()
			return env.sched.RunNow(cctx.Context, job, env.app.Jobs()[job])
		},
	}
}

var rollupCmd = &cli.Command{
	Name:  app.JobRollup,
	Usage: "write the daily analytics row once and exit",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "date",
			Usage: "calendar day to roll up, YYYY-MM-DD in the bot timezone (default: today)",
		},
	},
	Action: func(cctx *cli.Context) error {
		env, err := setup(cctx)
		if err != nil {
			return err
		}
		defer env.close()

		var date time.Time
		if s := cctx.String("date"); s != "" {
			date, err = time.ParseInLocation(analytics.DateLayout, s, env.sched.Location())
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", s, err)
			}
		}
		return env.sched.RunNow(cctx.Context, app.JobRollup, func(ctx context.Context) error {
			return env.app.Rollup(ctx, date)
		})
	},
}

var initConfigCmd = &cli.Command{
	Name:  "init-config",
	Usage: "write the default config file",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite an existing file",
		},
	},
	Action: func(cctx *cli.Context) error {
		path := cctx.String("config")
		if path == "" {
			p, err := config.ConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil && !cctx.Bool("force") {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Println("Created default config at:", path)
		return nil
	},
}

type bot struct {
	cfg   *config.Config
	app   *app.App
	sched *scheduler.Scheduler
	close func()
}

// setup loads config, installs logging and wires the app. Callers must call
// close.
func setup(cctx *cli.Context) (*bot, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		JSON:  cfg.Log.JSON,
	})
	if err != nil {
		return nil, err
	}

	a, st, err := app.Build(cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	sched, err := scheduler.New(cfg.Schedule.Timezone, scheduler.WithLogger(logger))
	if err != nil {
		st.Close()
		logCloser.Close()
		return nil, err
	}

	return &bot{
		cfg:   cfg,
		app:   a,
		sched: sched,
		close: func() {
			if err := st.Close(); err != nil {
				logger.Warn("failed to close store", "error", err)
			}
			logCloser.Close()
		},
	}, nil
}
