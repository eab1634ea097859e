package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-verifier/internal/model"
	"github.com/sells-group/contact-verifier/internal/runner"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the batch status API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var insightGen runner.InsightGenerator
		if env.Insight != nil {
			insightGen = env.Insight
		}
		runs := runner.New(ctx, env.Store, env.Orchestrator, insightGen, cfg.Batch.MaxConcurrentBatches)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env, runs),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// Let in-flight batch runs finish before the store closes.
		runs.Wait()
		return nil
	},
}

func newRouter(env *env, runs *runner.Runner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/batches/{id}", func(r chi.Router) {
		r.Post("/verify", func(w http.ResponseWriter, req *http.Request) {
			batchID := chi.URLParam(req, "id")

			batch, err := env.Store.GetBatch(req.Context(), batchID)
			if err != nil {
				writeError(w, http.StatusNotFound, fmt.Sprintf("batch %s not found", batchID))
				return
			}
			if batch.Status != model.BatchUploaded {
				writeError(w, http.StatusConflict,
					fmt.Sprintf("batch %s is %s, only uploaded batches can start verification", batchID, batch.Status))
				return
			}

			runs.Start(batchID)
			writeJSON(w, http.StatusAccepted, map[string]string{
				"batch_id": batchID,
				"status":   "accepted",
			})
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			batchID := chi.URLParam(req, "id")

			progress, err := env.Orchestrator.GetBatchProgress(req.Context(), batchID)
			if err != nil {
				writeError(w, http.StatusNotFound, fmt.Sprintf("batch %s not found", batchID))
				return
			}
			writeJSON(w, http.StatusOK, progress)
		})
	})

	r.Get("/contacts/{id}", func(w http.ResponseWriter, req *http.Request) {
		contactID := chi.URLParam(req, "id")

		contact, err := env.Store.GetContact(req.Context(), contactID)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("contact %s not found", contactID))
			return
		}
		writeJSON(w, http.StatusOK, contact)
	})

	return r
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
