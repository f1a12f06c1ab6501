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

	"github.com/labelkit/zeroshot/internal/model"
	"github.com/labelkit/zeroshot/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server for classification requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		sc, err := initScorer(cfg.Classify.MultiLabel)
		if err != nil {
			return err
		}
		runner := pipeline.NewRunner(sc, cfg.Classify.BatchSize)

		mux := newServeMux(runner)

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
	rootCmd.AddCommand(serveCmd)
}

type classifyRequest struct {
	Texts  []string `json:"texts"`
	Labels []string `json:"labels"`
}

type classifyResponse struct {
	Labels []string          `json:"labels"`
	Rows   []model.ResultRow `json:"rows"`
}

func newServeMux(runner *pipeline.Runner) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /classify", func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if len(req.Texts) == 0 {
			http.Error(w, `{"error":"texts is required"}`, http.StatusBadRequest)
			return
		}

		labels := model.LabelSet(req.Labels)
		if err := labels.Validate(); err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}

		records := make([]model.InputRecord, len(req.Texts))
		for i, text := range req.Texts {
			records[i] = model.InputRecord{Text: text}
		}

		report, err := runner.Run(r.Context(), records, labels)
		if err != nil {
			zap.L().Error("classification request failed", zap.Error(err))
			http.Error(w, `{"error":"classification failed"}`, http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(classifyResponse{
			Labels: report.Labels,
			Rows:   report.Rows,
		})
	})

	return mux
}
