// Command shadow_compare replays LearnHub read endpoints against the legacy and the Go API and
// reports status or body differences.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// defaultTargets cover the public catalog and the admin audit trail.
var defaultTargets = []target{
	{Method: http.MethodGet, Path: "/api/courses", Critical: true},
	{Method: http.MethodGet, Path: "/api/courses?keyword=go", Critical: true},
	{Method: http.MethodGet, Path: "/api/courses/enrolled/me", Auth: true},
	{Method: http.MethodGet, Path: "/api/activities", Auth: true, Critical: true},
	{Method: http.MethodGet, Path: "/api/activities/export", Auth: true, Critical: true},
}

type options struct {
	goBase      string
	legacyBase  string
	targetsPath string
	token       string
	timeout     time.Duration
	parallel    int
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "shadow_compare",
		Short:         "Diff read endpoints between the legacy and the Go API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := defaultTargets
			if opts.targetsPath != "" {
				loaded, err := loadTargets(opts.targetsPath)
				if err != nil {
					return fmt.Errorf("load targets: %w", err)
				}
				targets = loaded
			}

			results := run(cmd.Context(), &http.Client{Timeout: opts.timeout}, opts, targets)
			breaking, optional := printReport(cmd.OutOrStdout(), results)
			if breaking > 0 {
				return fmt.Errorf("%d breaking diffs (%d optional)", breaking, optional)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.goBase, "go-base", "http://localhost:5000", "Go API base URL")
	cmd.Flags().StringVar(&opts.legacyBase, "legacy-base", "http://localhost:3000", "Legacy API base URL")
	cmd.Flags().StringVar(&opts.targetsPath, "targets", "", "JSON targets file; built-in LearnHub targets when empty")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("SHADOW_TOKEN"), "bearer token sent to targets marked auth")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "HTTP client timeout")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 4, "concurrent comparisons")
	return cmd
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Targets []target `json:"targets"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

// run compares every target, at most opts.parallel at a time, keeping the input order.
func run(ctx context.Context, client *http.Client, opts options, targets []target) []comparison {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]comparison, len(targets))
	group, groupCtx := errgroup.WithContext(ctx)
	if opts.parallel > 0 {
		group.SetLimit(opts.parallel)
	}
	for i, tgt := range targets {
		group.Go(func() error {
			results[i] = compareTarget(groupCtx, client, opts, tgt)
			return nil
		})
	}
	_ = group.Wait()
	return results
}
