package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dev/bravebird/pagecheck/pkg/models"
	"dev/bravebird/pagecheck/pkg/scenario"
	"dev/bravebird/pagecheck/pkg/session"
	"dev/bravebird/pagecheck/pkg/verify"
)

type runOptions struct {
	Backend string
	Timeout time.Duration
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <scenario-file|dir>...",
		Short: "Run scenarios one after another",
		Long: `Run each scenario in its own session. A scenario stops at its first failing
step; the remaining scenarios still run. The command fails when any
scenario failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runScenarios(ctx, rootOpts, opts, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", "", "session backend (rod|memory); overrides browser.backend")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "default check timeout; overrides verify.timeout")

	return cmd
}

func runScenarios(ctx context.Context, rootOpts *rootOptions, opts *runOptions, args []string, out io.Writer) error {
	cfg, logger, err := setup(rootOpts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.Backend != "" {
		cfg.Browser.Backend = opts.Backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	scenarios, err := loadAll(args)
	if err != nil {
		return err
	}

	pool := session.NewPool(cfg.SessionConfig(), logger)
	defer func() {
		if err := pool.CloseAll(); err != nil {
			logger.Warn("failed to close sessions", zap.Error(err))
		}
	}()

	verifyOpts := cfg.VerifyOptions()
	if opts.Timeout > 0 {
		verifyOpts = append(verifyOpts, verify.WithTimeout(opts.Timeout))
	}

	results := make([]models.ScenarioResult, 0, len(scenarios))
	failed := 0
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		res, err := runOne(ctx, pool, sc, cfg.Todo.URL, cfg.Todo.StorageKey, logger, verifyOpts)
		if err != nil {
			failed++
		}
		results = append(results, res)
		if rootOpts.Format == "text" {
			printResult(out, res)
		}
	}

	if rootOpts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "\n%d passed, %d failed\n", len(results)-failed, failed)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func runOne(ctx context.Context, pool *session.Pool, sc *scenario.Scenario, url, key string, logger *zap.Logger, opts []verify.Option) (models.ScenarioResult, error) {
	s, err := pool.Open(ctx)
	if err != nil {
		return models.ScenarioResult{Scenario: sc.Name, Status: models.StatusFailed, ErrorMessage: err.Error()}, err
	}
	defer pool.Close(s.ID)

	// config fills in what the scenario leaves unset
	effective := *sc
	if effective.URL == "" {
		effective.URL = url
	}
	if effective.StorageKey == "" {
		effective.StorageKey = key
	}

	page := scenario.NewPage(s.Handle, &effective, logger, opts...)
	res, err := scenario.Run(ctx, page, &effective, logger)
	res.RunID = s.ID
	return res, err
}

// loadAll expands directories and parses every scenario, sorted by name
func loadAll(args []string) ([]*scenario.Scenario, error) {
	byName := make(map[string]*scenario.Scenario)
	add := func(sc *scenario.Scenario, from string) error {
		if _, dup := byName[sc.Name]; dup {
			return fmt.Errorf("duplicate scenario name %q in %s", sc.Name, from)
		}
		byName[sc.Name] = sc
		return nil
	}

	var errs []error
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.IsDir() {
			dir, err := scenario.LoadDir(arg)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, sc := range dir {
				if err := add(sc, arg); err != nil {
					errs = append(errs, err)
				}
			}
			continue
		}
		sc, err := scenario.Load(arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := add(sc, filepath.Base(arg)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	out := make([]*scenario.Scenario, 0, len(byName))
	for _, sc := range byName {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func printResult(out io.Writer, res models.ScenarioResult) {
	mark := "PASS"
	if !res.Passed() {
		mark = "FAIL"
	}
	fmt.Fprintf(out, "%s %s (%dms)\n", mark, res.Scenario, res.TotalDuration)
	for _, s := range res.Steps {
		if s.Status == models.StatusFailed {
			fmt.Fprintf(out, "    step %d %s: %s\n", s.Index, s.Op, s.ErrorMessage)
		}
	}
}
