package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/pipeline"
	"github.com/sells-group/contract-extract/internal/store"
)

var (
	batchFromJSON bool
	batchStore    bool
	batchForce    bool
	batchOutDir   string
)

var batchCmd = &cobra.Command{
	Use:   "batch <glob-or-files...>",
	Short: "Extract contract fields from many documents concurrently",
	Long: `Runs the extraction pipeline over every matching file. Concurrency
is bounded by batch.max_concurrent. Individual document failures are logged
and do not stop the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		paths, err := expandArgs(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return eris.New("batch: no input files matched")
		}

		rec, err := buildRecognizer(batchFromJSON)
		if err != nil {
			return err
		}
		engine, err := buildEngine()
		if err != nil {
			return err
		}

		var st store.Store
		if batchStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		var runOpts []pipeline.RunOption
		if batchForce {
			runOpts = append(runOpts, pipeline.WithForceEscalation())
		}

		var (
			mu        sync.Mutex
			done      int
			failed    int
			escalated int
		)

		start := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Batch.MaxConcurrent)

		for _, path := range paths {
			g.Go(func() error {
				doc, err := rec.Recognize(gctx, path)
				if err != nil {
					zap.L().Error("batch: recognize failed",
						zap.String("source", path),
						zap.Error(err),
					)
					mu.Lock()
					failed++
					mu.Unlock()
					return nil
				}

				result, err := engine.Run(gctx, doc, runOpts...)
				if err != nil {
					zap.L().Error("batch: run failed",
						zap.String("source", path),
						zap.Error(err),
					)
					mu.Lock()
					failed++
					mu.Unlock()
					return nil
				}

				if st != nil {
					if err := st.SaveRun(gctx, result); err != nil {
						zap.L().Error("batch: save run failed",
							zap.String("run_id", result.RunID),
							zap.Error(err),
						)
					}
				}
				if batchOutDir != "" {
					if err := writeResultFile(batchOutDir, path, result); err != nil {
						zap.L().Error("batch: write result failed",
							zap.String("source", path),
							zap.Error(err),
						)
					}
				}

				mu.Lock()
				done++
				if result.Metrics.Escalate {
					escalated++
				}
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch")
		}

		zap.L().Info("batch complete",
			zap.Int("total", len(paths)),
			zap.Int("done", done),
			zap.Int("failed", failed),
			zap.Int("escalated", escalated),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

// expandArgs resolves glob patterns and plain paths into a de-duplicated,
// sorted file list.
func expandArgs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: bad pattern %s", arg)
		}
		if matches == nil {
			if _, err := os.Stat(arg); err != nil {
				return nil, eris.Wrapf(err, "batch: input %s", arg)
			}
			matches = []string{arg}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}

// writeResultFile writes one result to outDir, named after the source file.
func writeResultFile(outDir, source string, result *model.ExtractionResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return eris.Wrap(err, "batch: create output dir")
	}
	stem := filepath.Base(source)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	data, err := json.MarshalIndent(result.ToMap(), "", "  ")
	if err != nil {
		return eris.Wrap(err, "batch: marshal result")
	}
	return os.WriteFile(filepath.Join(outDir, stem+".json"), data, 0o644)
}

func init() {
	batchCmd.Flags().BoolVar(&batchFromJSON, "from-json", false, "treat inputs as saved recognition JSON files")
	batchCmd.Flags().BoolVar(&batchStore, "store", false, "persist each run to the configured store")
	batchCmd.Flags().BoolVar(&batchForce, "force-escalation", false, "send every run to model review regardless of confidence")
	batchCmd.Flags().StringVar(&batchOutDir, "out", "", "directory to write per-document result JSON files to")
	rootCmd.AddCommand(batchCmd)
}
