package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contract-extract/internal/model"
	"github.com/sells-group/contract-extract/internal/pipeline"
	"github.com/sells-group/contract-extract/internal/store"
)

var (
	servePort  int
	serveStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for extraction requests",
	Long: `Serves the extraction pipeline over HTTP. POST a recognition result
to /extract to run field resolution on it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		engine, err := buildEngine()
		if err != nil {
			return err
		}

		var st store.Store
		if serveStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /extract", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Force       bool                     `json:"force_escalation"`
				Recognition *model.RecognitionResult `json:"recognition"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.Recognition == nil || len(req.Recognition.Tokens) == 0 {
				http.Error(w, `{"error":"recognition with tokens is required"}`, http.StatusBadRequest)
				return
			}

			var runOpts []pipeline.RunOption
			if req.Force {
				runOpts = append(runOpts, pipeline.WithForceEscalation())
			}

			result, err := engine.Run(r.Context(), req.Recognition, runOpts...)
			if err != nil {
				zap.L().Error("serve: extraction failed",
					zap.String("source", req.Recognition.Source),
					zap.Error(err),
				)
				http.Error(w, `{"error":"extraction failed"}`, http.StatusInternalServerError)
				return
			}

			if st != nil {
				if err := st.SaveRun(r.Context(), result); err != nil {
					zap.L().Error("serve: save run failed",
						zap.String("run_id", result.RunID),
						zap.Error(err),
					)
				}
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(result.ToMap())
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveStore, "store", false, "persist each run to the configured store")
	rootCmd.AddCommand(serveCmd)
}
