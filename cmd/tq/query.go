package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/taskql/internal/cache"
	"github.com/steveyegge/taskql/internal/engine"
	"github.com/steveyegge/taskql/internal/live"
	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/ui"
	"github.com/steveyegge/taskql/internal/watch"
)

var queryCmd = &cobra.Command{
	Use:     "query [QUERY...]",
	GroupID: "query",
	Short:   "Run a query against the task source",
	Long: `Run a query and print the matching tasks.

The query is taken from the arguments (one instruction per argument),
from --file, or from standard input when neither is given. In files and
on stdin, instructions are separated by newlines:

  tq query "not done" "due before tomorrow" "sort by priority"
  tq query --file today.tq
  echo "tags include #work" | tq query

With --watch, the query is re-run whenever a task file or the global
filter profile changes. --serve additionally pushes every result to
WebSocket clients at ws://ADDR/ws, and --metrics-addr exposes Prometheus
metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := queryText(cmd, args)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		watchMode, _ := cmd.Flags().GetBool("watch")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		serveAddr, _ := cmd.Flags().GetString("serve")

		// Fail fast on syntax errors before touching the source.
		if _, err := query.Parse(text); err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if !watchMode {
			if metricsAddr != "" || serveAddr != "" {
				return errors.New("--metrics-addr and --serve require --watch")
			}
			return runOnce(cmd.Context(), a, text, asJSON)
		}
		return runWatch(cmd.Context(), a, text, watchOptions{
			json:        asJSON,
			metricsAddr: metricsAddr,
			serveAddr:   serveAddr,
		})
	},
}

func init() {
	queryCmd.Flags().StringP("file", "f", "", "read the query from a file")
	queryCmd.Flags().Bool("json", false, "print the result as JSON")
	queryCmd.Flags().BoolP("watch", "w", false, "re-run the query when tasks or the profile change")
	queryCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address in watch mode (e.g. :9464)")
	queryCmd.Flags().String("serve", "", "push results to WebSocket clients on this address in watch mode (e.g. 127.0.0.1:8080)")
	rootCmd.AddCommand(queryCmd)
}

// queryText resolves the query from args, --file, or stdin.
func queryText(cmd *cobra.Command, args []string) (string, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		if len(args) > 0 {
			return "", errors.New("give the query as arguments or with --file, not both")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}
		return string(data), nil
	}

	if len(args) > 0 {
		return strings.Join(args, "\n"), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read query from stdin: %w", err)
	}
	return string(data), nil
}

func runOnce(ctx context.Context, a *app, text string, asJSON bool) error {
	res, err := a.runner.Run(ctx, text, a.source)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(res)
	}
	ui.NewRenderer(os.Stdout, a.cfg.Color).Result(res)
	return nil
}

type watchOptions struct {
	json        bool
	metricsAddr string
	serveAddr   string
}

func runWatch(ctx context.Context, a *app, text string, opts watchOptions) error {
	w, err := watch.New(&watch.Config{Debounce: 150 * time.Millisecond, Logger: a.logger("watch")})
	if err != nil {
		return err
	}
	dirs, files := a.watchedPaths()
	for _, dir := range dirs {
		if err := w.AddDir(dir, ".json"); err != nil {
			return err
		}
	}
	for _, file := range files {
		if err := w.AddFile(file); err != nil {
			return err
		}
	}

	var feed *live.Server
	if opts.serveAddr != "" {
		feed = live.NewServer(&live.Config{Addr: opts.serveAddr, Logger: a.logger("live")})
		if err := feed.Start(); err != nil {
			return err
		}
		defer func() {
			if err := feed.Stop(); err != nil {
				a.logger("live").Printf("Error stopping server: %v", err)
			}
		}()
	}

	r := ui.NewRenderer(os.Stdout, a.cfg.Color)
	render := func(ctx context.Context) error {
		res, err := a.runner.Run(ctx, text, a.source)
		if err != nil {
			if feed != nil {
				feed.PublishError(err)
			}
			return err
		}
		if feed != nil {
			if err := feed.Publish(live.MessageTypeResult, res); err != nil {
				return err
			}
		}
		if opts.json {
			return printJSON(res)
		}
		r.Rule()
		r.Result(res)
		return nil
	}

	if err := render(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(ctx, func(ctx context.Context, paths []string) error {
			if a.cfg.ProfilePath != "" && containsPath(paths, a.cfg.ProfilePath) {
				if err := a.reloadFilter(); err != nil {
					r.Warning(err.Error())
				} else if feed != nil {
					_ = feed.Publish(live.MessageTypeReload, map[string]string{"profile": a.filter.Profile().Name})
				}
			}
			if a.db != nil {
				if err := syncChanged(ctx, a, paths); err != nil {
					r.Warning(err.Error())
				}
			}
			return render(ctx)
		})
	})

	if opts.metricsAddr != "" {
		srv := metricsServer(opts.metricsAddr, a.runner.Cache())
		g.Go(func() error {
			a.logger("metrics").Printf("Serving metrics on %s/metrics", opts.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if !opts.json {
		r.CacheMetrics(a.runner.Cache().Name(), a.runner.Cache().Metrics())
	}
	return err
}

// metricsServer exposes the default registry (engine metrics) together
// with the result cache collector.
func metricsServer(addr string, c *cache.Cache[*engine.Result]) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(cache.NewCollector(c))

	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, reg}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))

	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// containsPath reports whether paths (absolute) includes target.
func containsPath(paths []string, target string) bool {
	abs, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	for _, p := range paths {
		if p == abs {
			return true
		}
	}
	return false
}
