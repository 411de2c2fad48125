package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/partwise/parts-assistant/internal/bootstrap"
	"github.com/partwise/parts-assistant/internal/config"
	"github.com/partwise/parts-assistant/internal/observability/metrics"
)

const serviceName = "indexer"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	go serveMetrics(cfg.WorkerMetricsPort, workerMetrics)

	app.Logger.Info("indexer subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		if doc, lookupErr := app.Docs.GetByID(handlerCtx, documentID); lookupErr == nil {
			workerMetrics.ObserveQueueLag(serviceName, time.Since(doc.CreatedAt))
		}

		workerMetrics.StartDocument()
		start := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		processErr := app.ProcessUC.ProcessByID(processCtx, documentID)

		workerMetrics.FinishDocument(serviceName, time.Since(start), processErr)
		return processErr
	})
	if err != nil {
		log.Fatalf("indexer subscribe error: %v", err)
	}
}

func serveMetrics(port string, workerMetrics *metrics.WorkerMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Printf("worker metrics server error: %v", err)
	}
}
