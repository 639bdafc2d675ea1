package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rxtech-lab/tradermind/internal/config"
	"github.com/rxtech-lab/tradermind/internal/logger"
	"github.com/rxtech-lab/tradermind/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := newCommand()

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "tradermind",
		Usage:   "Cache market datasets and run strategy backtests over them",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("TRADERMIND_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			runCommand(),
			screenCommand(),
			cacheCommand(),
			strategiesCommand(),
			screenersCommand(),
			schemaCommand(),
			watchCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.addr",
			},
		},
		Action: serveAction,
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one backtest in the foreground",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "strategy",
				Aliases:  []string{"s"},
				Usage:    "Registry key of the strategy",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "dataset",
				Aliases: []string{"d"},
				Usage:   "Dataset key: all or group:<name>",
				Value:   "all",
			},
			&cli.StringSliceFlag{
				Name:  "symbol",
				Usage: "Restrict the run to a symbol, can be repeated",
			},
			&cli.TimestampFlag{
				Name:  "start",
				Usage: "First day in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:  "end",
				Usage: "Last day in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.Float64Flag{
				Name:  "capital",
				Usage: "Capital per position, overrides backtest.capital",
			},
			&cli.Float64Flag{
				Name:  "allocation",
				Usage: "Allocation fraction, overrides backtest.allocation_fraction",
			},
			&cli.StringMapFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "Strategy parameter as key=value, can be repeated",
			},
		},
		Action: runAction,
	}
}

func screenCommand() *cli.Command {
	return &cli.Command{
		Name:  "screen",
		Usage: "Scan a dataset with a screener in the foreground",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "screener",
				Aliases:  []string{"s"},
				Usage:    "Registry key of the screener",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "dataset",
				Aliases: []string{"d"},
				Usage:   "Dataset key: all or group:<name>",
				Value:   "all",
			},
			&cli.StringSliceFlag{
				Name:  "symbol",
				Usage: "Restrict the scan to a symbol, can be repeated",
			},
			&cli.TimestampFlag{
				Name:  "as-of",
				Usage: "Last day the screener sees in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringMapFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "Screener parameter as key=value, can be repeated",
			},
		},
		Action: screenAction,
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage cached datasets",
		Commands: []*cli.Command{
			{
				Name:      "refresh",
				Usage:     "Fetch a dataset again and replace the stored copy",
				ArgsUsage: "[dataset]",
				Action:    cacheRefreshAction,
			},
			{
				Name:      "show",
				Usage:     "Describe the stored copy of a dataset",
				ArgsUsage: "[dataset]",
				Action:    cacheShowAction,
			},
		},
	}
}

func strategiesCommand() *cli.Command {
	return &cli.Command{
		Name:   "strategies",
		Usage:  "List the registered strategies",
		Action: strategiesAction,
	}
}

func screenersCommand() *cli.Command {
	return &cli.Command{
		Name:   "screeners",
		Usage:  "List the registered screeners",
		Action: screenersAction,
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:   "schema",
		Usage:  "Print the JSON schema of the configuration file",
		Action: schemaAction,
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the status of a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Usage: "Base URL of the server",
				Value: "http://localhost:8080",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval",
				Value: time.Second,
			},
		},
		Action: watchAction,
	}
}

// loadApp reads the configuration named by the root flags and wires the app.
func loadApp(cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLoggerWithLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return newApp(cfg, log, nil)
}
