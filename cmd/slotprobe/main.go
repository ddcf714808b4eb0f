package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NodePath81/slotprobe/internal/app"
	"github.com/NodePath81/slotprobe/internal/config"
	"github.com/NodePath81/slotprobe/internal/mock"
	"github.com/NodePath81/slotprobe/internal/results"
	"github.com/NodePath81/slotprobe/internal/slot"
	"github.com/NodePath81/slotprobe/internal/store"
	"github.com/NodePath81/slotprobe/internal/util"
	"github.com/NodePath81/slotprobe/internal/version"
)

const (
	defaultConfigPath = "slotprobe.yaml"
	dotEnvPath        = ".env"
)

func main() {
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", dotEnvPath, err)
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runCmd := flag.NewFlagSet("run", flag.ExitOnError)
			configPath := runCmd.String("config", defaultConfigPath, "Path to config file")
			_ = runCmd.Parse(os.Args[2:])
			if *configPath == defaultConfigPath && runCmd.NArg() > 0 {
				*configPath = runCmd.Arg(0)
			}
			runProbe(*configPath)
			return
		case "check":
			checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
			configPath := checkCmd.String("config", defaultConfigPath, "Path to config file")
			_ = checkCmd.Parse(os.Args[2:])
			if *configPath == defaultConfigPath && checkCmd.NArg() > 0 {
				*configPath = checkCmd.Arg(0)
			}
			checkConfig(*configPath)
			return
		case "mock":
			runMock(os.Args[2:])
			return
		case "history":
			showHistory(os.Args[2:])
			return
		case "help", "-h", "--help":
			printHelp()
			return
		case "version", "-v", "--version":
			fmt.Println(version.Version)
			return
		}
	}

	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()
	if *configPath == defaultConfigPath && len(flag.Args()) > 0 {
		*configPath = flag.Arg(0)
	}
	runProbe(*configPath)
}

func runProbe(configPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor := app.NewSupervisor(configPath, os.Stdout, nil)
	if _, err := supervisor.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "slotprobe: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func checkConfig(path string) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config valid: %s, bet %s, %d iterations, output %s\n",
		cfg.Target.URL, cfg.Target.BetAmount, cfg.Run.Iterations, cfg.Output.CSVPath)
	os.Exit(0)
}

func runMock(args []string) {
	mockCmd := flag.NewFlagSet("mock", flag.ExitOnError)
	addr := mockCmd.String("addr", "127.0.0.1:44392", "Listen address")
	plain := mockCmd.Bool("plain", false, "Serve plain HTTP instead of TLS")
	player := mockCmd.String("player", mock.DefaultPlayerID, "Player ID to create")
	balance := mockCmd.String("balance", mock.DefaultBalance.String(), "Starting balance")
	rows := mockCmd.Int("rows", slot.DefaultRows, "Matrix rows")
	cols := mockCmd.Int("cols", slot.DefaultCols, "Matrix columns")
	logLevel := mockCmd.String("log-level", "info", "Log level")
	_ = mockCmd.Parse(args)

	logger := util.NewLogger(*logLevel)
	start, err := decimal.NewFromString(*balance)
	if err != nil {
		logger.Error("invalid balance", "value", *balance, "error", err)
		os.Exit(1)
	}
	engine, err := slot.NewEngine(*rows, *cols, rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		logger.Error("invalid grid", "error", err)
		os.Exit(1)
	}
	server := mock.NewServer(engine, logger)
	server.AddPlayer(*player, start)

	var cert *tls.Certificate
	if !*plain {
		c, err := mock.SelfSignedCertificate()
		if err != nil {
			logger.Error("certificate generation failed", "error", err)
			os.Exit(1)
		}
		cert = &c
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := server.ListenAndServe(ctx, *addr, cert); err != nil {
		logger.Error("mock server failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func showHistory(args []string) {
	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := historyCmd.String("db", os.Getenv("SLOTPROBE_HISTORY_DB"), "Path to history database")
	limit := historyCmd.Int("limit", 20, "Number of runs to list")
	runID := historyCmd.String("run", "", "Print the observations of one run as CSV")
	_ = historyCmd.Parse(args)

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "history: -db or SLOTPROBE_HISTORY_DB is required")
		os.Exit(2)
	}
	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	if *runID != "" {
		set, err := st.Observations(ctx, *runID)
		if err == nil {
			err = results.Write(os.Stdout, set)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			st.Close()
			os.Exit(1)
		}
		return
	}

	runs, err := st.ListRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		st.Close()
		os.Exit(1)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tTARGET\tBET\tPLANNED\tATTEMPTED\tRECORDED\tSTOP")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID, run.StartedAt.Format(time.RFC3339), run.Target, run.Bet.String(),
			run.Planned, run.Attempted, run.ObservationCount, run.StopReason)
	}
	_ = tw.Flush()
}

func printHelp() {
	fmt.Print(`slotprobe - slot machine spin API probe

Usage:
  slotprobe run --config <path>      Run the spin loop and write results
  slotprobe check --config <path>    Validate config file
  slotprobe mock [flags]             Serve a local mock spin API
  slotprobe history --db <path>      List recorded runs
  slotprobe history --db <path> --run <id>
                                     Print one run's observations as CSV
  slotprobe help                     Show this help
  slotprobe version                  Print version

A missing config file means defaults. SLOTPROBE_* environment variables and
a .env file in the working directory override config values.

Legacy:
  slotprobe --config <path>
  slotprobe <config-path>
`)
}
