// Command backsyncctl runs searches and record operations directly against
// the backend named in a backsync config file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/backsync/internal/app"
	"github.com/kailas-cloud/backsync/internal/config"
	dombatch "github.com/kailas-cloud/backsync/internal/domain/batch"
	"github.com/kailas-cloud/backsync/internal/domain/record"
	logpkg "github.com/kailas-cloud/backsync/internal/logger"
	searchuc "github.com/kailas-cloud/backsync/internal/usecase/search"
	"github.com/kailas-cloud/backsync/internal/version"
)

// cli carries state shared by all subcommands.
type cli struct {
	out      io.Writer
	cfgPath  string
	env      string
	logLevel string

	// open builds the object graph; tests replace it.
	open func(ctx context.Context, c *cli) (*app.App, error)
}

func main() {
	c := &cli{out: os.Stdout, open: openFromConfig}
	if err := newRootCmd(c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openFromConfig(ctx context.Context, c *cli) (*app.App, error) {
	var (
		cfg config.Config
		err error
	)
	if c.cfgPath != "" {
		cfg, err = config.LoadFile(c.cfgPath)
	} else {
		cfg, err = config.Load(c.env)
	}
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.NewLogger(c.env, c.logLevel)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "backsyncctl",
		Short:         "Search and edit records in a backsync backend",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.PersistentFlags().StringVar(&c.cfgPath, "config", "", "path to a config file (default: config/<env>.yaml)")
	root.PersistentFlags().StringVar(&c.env, "env", config.GetEnv(), "environment: local, dev, prod")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newSearchCmd(c),
		newGetCmd(c),
		newPutCmd(c),
		newPatchCmd(c),
		newDeleteCmd(c),
		newLoadCmd(c),
	)
	return root
}

// withApp opens the backend for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := c.open(ctx, c)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v) //nolint:wrapcheck // terminal output
}

func parseObject(flag, raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", flag, err)
	}
	return m, nil
}

func newSearchCmd(c *cli) *cobra.Command {
	var (
		filter       string
		sortBy       string
		skip         int
		limit        int
		info         bool
		requestLimit int
		maxRequests  int
	)
	cmd := &cobra.Command{
		Use:   "search <collection>",
		Short: "Run a filtered, sorted search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseObject("filter", filter)
			if err != nil {
				return err
			}
			if sortBy != "" {
				q["$sort"] = sortBy
			}
			if cmd.Flags().Changed("skip") {
				q["$skip"] = skip
			}
			if cmd.Flags().Changed("limit") {
				q["$limit"] = limit
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Search.Search(ctx, args[0], searchuc.Options{
					Query:       q,
					PageSize:    requestLimit,
					MaxRequests: maxRequests,
					Info:        info,
				})
				if err != nil {
					return err
				}
				return c.print(res.Shape(info))
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", `filter as JSON, e.g. '{"age":{"$gte":18}}'`)
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort field; prefix with - for descending")
	cmd.Flags().IntVar(&skip, "skip", 0, "results to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results")
	cmd.Flags().BoolVar(&info, "info", false, "wrap results with scan metadata")
	cmd.Flags().IntVar(&requestLimit, "request-limit", 0, "rows per backend request")
	cmd.Flags().IntVar(&maxRequests, "max-requests", 0, "backend request budget (0 = config)")
	return cmd
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Read a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Documents.Get(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return c.print(rec.Map())
			})
		},
	}
}

func newPutCmd(c *cli) *cobra.Command {
	var data, rev string
	cmd := &cobra.Command{
		Use:   "put <collection> [id]",
		Short: "Create a record, or replace it when an id is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseObject("data", data)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var out record.Record
				if len(args) == 1 {
					out, err = a.Documents.Create(ctx, args[0], record.New("", "", fields))
				} else {
					out, err = a.Documents.Update(ctx, args[0], record.New(args[1], rev, fields))
				}
				if err != nil {
					return err
				}
				return c.print(out.Map())
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "record fields as a JSON object")
	cmd.Flags().StringVar(&rev, "rev", "", "expected revision when replacing")
	return cmd
}

func newPatchCmd(c *cli) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "patch <collection> <id>",
		Short: "Merge fields into a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseObject("data", data)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out, err := a.Documents.Patch(ctx, args[0], args[1], attrs)
				if err != nil {
					return err
				}
				return c.print(out.Map())
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "fields to merge as a JSON object")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	var rev string
	cmd := &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Documents.Delete(ctx, args[0], args[1], rev); err != nil {
					return err
				}
				return c.print(map[string]any{"id": args[1], "deleted": true})
			})
		},
	}
	cmd.Flags().StringVar(&rev, "rev", "", "expected revision (default: current)")
	return cmd
}

func newLoadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "load <collection> <file|->",
		Short: "Upsert records from a JSON array, in batches",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			var docs []map[string]any
			if err := json.NewDecoder(in).Decode(&docs); err != nil {
				return fmt.Errorf("input must be a JSON array of objects: %w", err)
			}
			recs := make([]record.Record, len(docs))
			for i, d := range docs {
				recs[i] = record.FromMap(d)
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var results []dombatch.Result
				size := a.Batch.MaxBatchSize()
				for start := 0; start < len(recs); start += size {
					end := min(start+size, len(recs))
					results = append(results, a.Batch.Upsert(ctx, args[0], recs[start:end])...)
				}

				type failure struct {
					ID    string `json:"id"`
					Error string `json:"error"`
				}
				failures := []failure{}
				for _, r := range results {
					if r.Err() != nil {
						failures = append(failures, failure{ID: r.ID(), Error: r.Err().Error()})
					}
				}
				if err := c.print(map[string]any{
					"succeeded": len(results) - len(failures),
					"failed":    failures,
				}); err != nil {
					return err
				}
				if len(failures) > 0 {
					return fmt.Errorf("%d of %d records failed", len(failures), len(results))
				}
				return nil
			})
		},
	}
}
