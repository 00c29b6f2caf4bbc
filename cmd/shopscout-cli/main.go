package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/use-agent/shopscout/app"
	"github.com/use-agent/shopscout/config"
	"github.com/use-agent/shopscout/models"
)

// searcher is the slice of the orchestrator the CLI drives.
type searcher interface {
	ScrapeSources(ctx context.Context, query string, ids []string) (*models.AggregateResult, error)
	Sources() []string
}

// buildSearcher constructs the in-process scrape stack. Tests replace it.
type buildSearcher func(verbose bool) (searcher, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultBuild).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func defaultBuild(verbose bool) (searcher, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return a.Orchestrator, nil
}

func newRootCmd(build buildSearcher) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "shopscout-cli",
		Short: "Search e-commerce sites for products from the command line",
		Long: `shopscout-cli runs one product search in-process using headless browsers
and prints the aggregated listings as JSON.

Configuration is read from the same SHOPSCOUT_* environment variables as the
server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log scrape progress to stderr")

	root.AddCommand(newSearchCmd(build, &verbose), newSourcesCmd(build, &verbose))
	return root
}

func newSearchCmd(build buildSearcher, verbose *bool) *cobra.Command {
	var (
		sourceList string
		compact    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search every configured source for a product",
		Example: `  shopscout-cli search iphone 15 pro
  shopscout-cli search "pixel 9" --sources flipkart`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := build(*verbose)
			if err != nil {
				return err
			}

			var ids []string
			for _, id := range strings.Split(sourceList, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}

			agg, err := s.ScrapeSources(cmd.Context(), strings.Join(args, " "), ids)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), agg, !compact); err != nil {
				return err
			}
			if failures := agg.Failures(); len(failures) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d source(s) failed: %s\n", len(failures), agg.ErrorSummary())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourceList, "sources", "s", "", "comma-separated source IDs (default: all)")
	cmd.Flags().BoolVar(&compact, "compact", false, "print JSON on a single line")
	return cmd
}

func newSourcesCmd(build buildSearcher, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured source IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := build(*verbose)
			if err != nil {
				return err
			}
			for _, id := range s.Sources() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
