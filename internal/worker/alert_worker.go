package worker

// alert_worker.go
// Processes low-stock alert jobs: mails the configured supervisor address when
// a sale drives a product at or below its reorder point.

import (
	"context"
	"encoding/json"
	"fmt"

	"estancopro/internal/infra"

	"github.com/rs/zerolog/log"
)

type LowStockWorker struct {
	mailer      *infra.Mailer
	mailBreaker *infra.CircuitBreaker
	alertEmail  string
}

func NewLowStockWorker(mailer *infra.Mailer, mailBreaker *infra.CircuitBreaker, alertEmail string) *LowStockWorker {
	return &LowStockWorker{mailer: mailer, mailBreaker: mailBreaker, alertEmail: alertEmail}
}

func (w *LowStockWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload LowStockJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("alert_worker: invalid payload")
		return
	}
	if w.alertEmail == "" {
		log.Debug().Str("product", payload.ProductName).Msg("alert_worker: no alert email configured, dropping")
		return
	}

	subject := fmt.Sprintf("Low stock: %s", payload.ProductName)
	body := fmt.Sprintf(
		"Product %q is at %d units (reorder point %d).\nProduct id: %s",
		payload.ProductName, payload.StockOnHand, payload.ReorderPoint, payload.ProductID,
	)

	err := withRetry(ctx, 3, func(int) error {
		return w.mailBreaker.Execute(func() error {
			return w.mailer.SendAlert(w.alertEmail, subject, body)
		})
	})
	if err != nil {
		log.Warn().Err(err).Str("product", payload.ProductName).Msg("alert_worker: alert mail failed")
		return
	}
	log.Info().Str("product", payload.ProductName).Int("stock", payload.StockOnHand).
		Msg("alert_worker: low stock alert sent")
}
