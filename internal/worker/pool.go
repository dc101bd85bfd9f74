package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReceipts = "jobs:receipts"
	QueueAlerts   = "jobs:alerts"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ReceiptJobPayload asks the receipt worker to render (and optionally mail)
// the PDF receipt for a finalized sale.
type ReceiptJobPayload struct {
	SaleID        string  `json:"sale_id"`
	CustomerEmail *string `json:"customer_email,omitempty"`
}

// LowStockJobPayload notifies the alert worker that a sale drove a product at
// or below its reorder point.
type LowStockJobPayload struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	StockOnHand  int    `json:"stock_on_hand"`
	ReorderPoint int    `json:"reorder_point"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueReceipt pushes a receipt generation job to Redis.
func (d *Dispatcher) EnqueueReceipt(ctx context.Context, payload ReceiptJobPayload) error {
	return d.enqueue(ctx, QueueReceipts, "receipt", payload)
}

// EnqueueLowStockAlert pushes a low stock notification job to Redis.
func (d *Dispatcher) EnqueueLowStockAlert(ctx context.Context, payload LowStockJobPayload) error {
	return d.enqueue(ctx, QueueAlerts, "low_stock", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Handlers bundles the per-queue job processors wired at the composition root.
type Handlers struct {
	Receipt  *ReceiptWorker
	LowStock *LowStockWorker
}

// StartPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so an idle pool burns no CPU.
func StartPool(ctx context.Context, rdb *redis.Client, handlers *Handlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *Handlers, id int) {
	queues := []string{QueueReceipts, QueueAlerts}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop waits up to 5s, then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, rdb *redis.Client, handlers *Handlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, job.Type, job.Payload, "unmarshal: "+err.Error(), 1)
		return
	}

	switch queue {
	case QueueReceipts:
		if handlers != nil && handlers.Receipt != nil {
			handlers.Receipt.Process(ctx, job.Payload)
		}
	case QueueAlerts:
		if handlers != nil && handlers.LowStock != nil {
			handlers.LowStock.Process(ctx, job.Payload)
		}
	default:
		log.Warn().Str("queue", queue).Str("type", job.Type).Msg("job from unknown queue dropped")
	}
}
