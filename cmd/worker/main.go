package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"markupcheck-backend/internal/bootstrap"
	"markupcheck-backend/internal/queue"
	"markupcheck-backend/internal/shared/config"
	"markupcheck-backend/internal/shared/metrics"
	"markupcheck-backend/internal/shared/telemetry"
	"markupcheck-backend/internal/workerproc"
)

const receiveWait = 20 * time.Second

func main() {
	cfg := config.Load()
	cfg.Dispatch = config.DispatchQueue

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()
	if app.Queue == nil {
		log.Fatal("worker requires a reachable REDIS_URL")
	}

	if moved, err := app.Queue.Recover(ctx); err != nil {
		log.Printf("recover claimed messages: %v", err)
	} else if moved > 0 {
		log.Printf("returned %d unacknowledged messages to the queue", moved)
	}

	log.Printf("worker started queue=%s concurrency=%d", cfg.QueueName, cfg.WorkerConcurrency)
	run(ctx, app.Queue, app.AnalysesService, cfg.WorkerConcurrency, cfg.ShutdownTimeout)
}

// run claims deliveries until ctx is done, processing at most concurrency at
// once, then waits up to shutdownTimeout for in-flight work.
func run(ctx context.Context, consumer queue.Consumer, processor workerproc.Processor, concurrency int, shutdownTimeout time.Duration) {
	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		case sem <- struct{}{}:
		}

		d, ok, err := consumer.Receive(ctx, receiveWait)
		if err != nil || !ok {
			<-sem
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break pollLoop
			}
			if err != nil {
				log.Printf("receive message: %v", err)
				time.Sleep(time.Second)
			}
			continue
		}

		metrics.IncJobsReceived()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			handleDelivery(context.WithoutCancel(ctx), consumer, processor, d)
		}()
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

func handleDelivery(ctx context.Context, consumer queue.Consumer, processor workerproc.Processor, d queue.Delivery) {
	msg, meta, err := workerproc.ParseMessage(d.Body)
	if err != nil {
		fields := map[string]any{
			"body_len": meta.BodyLen,
			"error":    err.Error(),
		}
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		telemetry.Error("worker.analysis.invalid_message", fields)
		if ack(ctx, consumer, d, msg) {
			metrics.IncJobsDropped()
		}
		return
	}

	telemetry.Info("worker.analysis.received", baseFields(msg))

	if err := workerproc.HandleMessage(ctx, processor, msg); err != nil {
		fields := baseFields(msg)
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.analysis.dropped", fields)
			if ack(ctx, consumer, d, msg) {
				metrics.IncJobsDropped()
			}
			return
		}
		telemetry.Error("worker.analysis.failed", fields)
		metrics.IncJobsFailed()
		return
	}

	if ack(ctx, consumer, d, msg) {
		telemetry.Info("worker.analysis.completed", baseFields(msg))
		metrics.IncJobsCompleted()
	}
}

func ack(ctx context.Context, consumer queue.Consumer, d queue.Delivery, msg queue.Message) bool {
	if err := consumer.Ack(ctx, d); err != nil {
		fields := baseFields(msg)
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.ack_failed", fields)
		return false
	}
	return true
}

func baseFields(msg queue.Message) map[string]any {
	fields := map[string]any{"analysis_id": msg.AnalysisID}
	if msg.RequestID != "" {
		fields["request_id"] = msg.RequestID
	}
	if msg.EnqueuedAt != "" {
		fields["enqueued_at"] = msg.EnqueuedAt
	}
	return fields
}
