package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joshharrison/fogsched/internal/config"
	"github.com/joshharrison/fogsched/internal/cost"
	"github.com/joshharrison/fogsched/internal/cpm"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/orchestrator"
	"github.com/joshharrison/fogsched/internal/planner"
	"github.com/joshharrison/fogsched/internal/reporter"
	"github.com/joshharrison/fogsched/internal/scenario"
	"github.com/joshharrison/fogsched/internal/session"
	"github.com/joshharrison/fogsched/internal/state"
	"github.com/joshharrison/fogsched/internal/store"
	"github.com/joshharrison/fogsched/internal/ui"
	"github.com/joshharrison/fogsched/internal/viewer"
)

var (
	flagConfig    string
	flagAlgorithm string
	flagScenario  string
	flagPortDelay float64
	flagJSON      bool
	flagVerbose   bool
	flagQuiet     bool
	flagFormat    string
	flagRunID     string
	flagLimit     int
	flagNoHistory bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fogsched",
		Short: "Plan and dispatch task DAGs across cloud and fog VMs",
		Long: `fogsched estimates execution and transfer costs for a task DAG on a
roster of VMs, plans it with HEFT or OCS or dispatches it online with
MinMin, MaxMin, FCFS or RoundRobin, then simulates the run and reconciles
job times against a per-port delay.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagAlgorithm, "algorithm", "", "Scheduling algorithm (heft, ocs, minmin, maxmin, fcfs, roundrobin, static)")
	rootCmd.PersistentFlags().StringVar(&flagScenario, "scenario", "", "Scenario JSON file")
	rootCmd.PersistentFlags().Float64Var(&flagPortDelay, "port-delay", 0, "Minimum spacing between job start and finish events")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("algorithm") {
		if cfg.Algorithm, err = session.ParseAlgorithm(flagAlgorithm); err != nil {
			return nil, err
		}
	}
	if flags.Changed("scenario") {
		cfg.Scenario = flagScenario
	}
	if flags.Changed("port-delay") {
		cfg.Planning.PortDelay = flagPortDelay
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.Level())
	return cfg, nil
}

// loadScenario is shared logic for the commands that work on a scenario.
func loadScenario(cfg *config.Config) (*scenario.Scenario, *graph.TaskGraph, error) {
	sc, err := scenario.Load(cfg.Scenario, cfg.SendingLatency)
	if err != nil {
		return nil, nil, err
	}
	g, err := sc.Graph()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "build graph of %s", sc.Name)
	}
	return sc, g, nil
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute a static HEFT or OCS plan without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Algorithm.IsPlanner() {
				return fmt.Errorf("%s is an online heuristic, use run to dispatch it", cfg.Algorithm)
			}
			sc, g, err := loadScenario(cfg)
			if err != nil {
				return err
			}

			s := session.New(cfg.Algorithm, cfg.Planning, session.WithLogger(log.StandardLogger()))
			p, err := planner.For(cfg.Algorithm)
			if err != nil {
				return err
			}
			a, err := p.Plan(s, g, sc.VMs)
			if err != nil {
				return errors.Wrapf(err, "plan %s", sc.Name)
			}

			if flagJSON {
				return outputJSON(a)
			}

			m, err := cost.Estimate(g, sc.VMs)
			if err != nil {
				return err
			}
			result, err := cpm.Analyze(g, m)
			if err != nil {
				return errors.Wrap(err, "CPM analysis")
			}
			printPlan(sc, g, a, result)
			return nil
		},
	}
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate the scenario with the configured algorithm",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sc, g, err := loadScenario(cfg)
			if err != nil {
				return err
			}

			// Setup signal handling
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintf(os.Stderr, "\n🛑 %s\n", ui.Yellow("Received interrupt, cancelling..."))
				cancel()
			}()

			if !flagJSON && !flagQuiet {
				ui.PrintLogo()
			}

			s := session.New(cfg.Algorithm, cfg.Planning, session.WithLogger(log.StandardLogger()))
			orch := orchestrator.New(s, g, sc.VMs, orchestrator.Config{Quiet: flagQuiet || flagJSON})
			res, runErr := orch.Run(ctx)
			if res == nil {
				return runErr
			}
			res.State.Scenario = sc.Name

			if err := res.State.Save(); err != nil {
				log.WithError(err).Warn("could not save run state")
			}
			if !flagNoHistory {
				if err := saveHistory(ctx, cfg, res.State); err != nil {
					log.WithError(err).Warn("could not record run history")
				}
			}

			rpt := reporter.New(res.State, res.Assignment)
			if runErr != nil {
				fmt.Fprintln(os.Stderr, rpt.Summary())
				return runErr
			}
			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			rpt.PrintSummaryReport(os.Stdout)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress per-job progress output")
	cmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "Do not record the run in the history database")

	return cmd
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Simulate the scenario with every algorithm and compare makespan and cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sc, g, err := loadScenario(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			var runs []*state.RunState
			for _, alg := range session.Algorithms {
				s := session.New(alg, cfg.Planning, session.WithLogger(log.StandardLogger()))
				res, err := orchestrator.New(s, g.Clone(), graph.CloneVMs(sc.VMs), orchestrator.Config{Quiet: true}).Run(ctx)
				if err != nil {
					log.WithError(err).WithField("algorithm", alg.String()).Warn("algorithm skipped")
					continue
				}
				res.State.Scenario = sc.Name
				runs = append(runs, res.State)
				if !flagNoHistory {
					if err := saveHistory(ctx, cfg, res.State); err != nil {
						log.WithError(err).Warn("could not record run history")
					}
				}
			}
			if len(runs) == 0 {
				return fmt.Errorf("no algorithm could schedule %s", sc.Name)
			}

			if flagJSON {
				return outputJSON(runs)
			}
			reporter.PrintComparison(os.Stdout, runs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "Do not record the runs in the history database")

	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the jobs of the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !state.Exists() {
				return fmt.Errorf("no fogsched run found (no .fogsched/state.json)")
			}
			st, err := state.Load()
			if err != nil {
				return err
			}
			rpt := reporter.New(st, nil)
			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			rpt.PrintStatus(os.Stdout)
			return nil
		},
	}
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or show one with --run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			if flagRunID != "" {
				st, err := db.LoadRun(ctx, flagRunID)
				if err != nil {
					return err
				}
				rpt := reporter.New(st, nil)
				if flagJSON {
					data, err := rpt.JSON()
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				}
				rpt.PrintStatus(os.Stdout)
				return nil
			}

			runs, err := db.ListRuns(ctx, flagLimit)
			if err != nil {
				return err
			}
			if flagJSON {
				return outputJSON(runs)
			}
			printHistory(runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagRunID, "run", "", "Show the jobs of one recorded run")
	cmd.Flags().IntVar(&flagLimit, "limit", 20, "Number of runs to list (0 for all)")

	return cmd
}

func vizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Print the task DAG with its critical path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sc, g, err := loadScenario(cfg)
			if err != nil {
				return err
			}
			m, err := cost.Estimate(g, sc.VMs)
			if err != nil {
				return err
			}
			result, err := cpm.Analyze(g, m)
			if err != nil {
				return errors.Wrap(err, "CPM analysis")
			}

			// Planners also annotate every node with its VM
			var a *planner.Assignment
			if cfg.Algorithm.IsPlanner() {
				p, err := planner.For(cfg.Algorithm)
				if err != nil {
					return err
				}
				s := session.New(cfg.Algorithm, cfg.Planning, session.WithLogger(log.StandardLogger()))
				if a, err = p.Plan(s, g.Clone(), graph.CloneVMs(sc.VMs)); err != nil {
					log.WithError(err).Warn("showing the graph without a plan")
					a = nil
				}
			}

			if flagFormat == "dot" {
				printDOT(g, result, a)
				return nil
			}
			printASCIIDAG(g, result, a)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "ascii", "Output format (ascii, dot)")

	return cmd
}

func serveCmd() *cobra.Command {
	var flagPort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve simulated runs as a JSON graph over HTTP",
		Long: `Starts an HTTP server. POST a scenario to /graph (optionally with
?algorithm=...) to simulate it; GET /graph returns the latest run graph.
The configured scenario is loaded at startup when it exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			srv := viewer.NewServer(viewer.Options{
				Algorithm:      cfg.Algorithm,
				Planning:       cfg.Planning,
				SendingLatency: cfg.SendingLatency,
			})
			if sc, err := scenario.Load(cfg.Scenario, cfg.SendingLatency); err == nil {
				if _, err := srv.Load(cmd.Context(), sc, cfg.Algorithm); err != nil {
					log.WithError(err).Warn("could not preload scenario")
				}
			}

			addr, err := srv.Start(flagPort)
			if err != nil {
				return err
			}
			fmt.Printf("🌐 %s %s\n", ui.BoldCyan("Serving graphs on"), addr)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			fmt.Fprintf(os.Stderr, "\n🛑 %s\n", ui.Yellow("Shutting down"))
			return nil
		},
	}

	cmd.Flags().IntVar(&flagPort, "port", 7171, "Port to listen on")

	return cmd
}

func saveHistory(ctx context.Context, cfg *config.Config, st *state.RunState) error {
	db, err := store.Open(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveRun(ctx, st)
}

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
