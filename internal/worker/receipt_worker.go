package worker

// receipt_worker.go
// Processes receipt jobs from QueueReceipts: renders the PDF receipt for a
// finalized sale and, when the customer left an email, mails it. Mailing goes
// through the circuit breaker with exponential backoff so a dead SMTP server
// cannot stall the pool.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"estancopro/internal/infra"
	"estancopro/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ReceiptWorker struct {
	saleRepo    repository.SaleRepository
	mailer      *infra.Mailer
	mailBreaker *infra.CircuitBreaker
	storagePath string
	storeName   string
}

func NewReceiptWorker(
	saleRepo repository.SaleRepository,
	mailer *infra.Mailer,
	mailBreaker *infra.CircuitBreaker,
	storagePath, storeName string,
) *ReceiptWorker {
	return &ReceiptWorker{
		saleRepo:    saleRepo,
		mailer:      mailer,
		mailBreaker: mailBreaker,
		storagePath: storagePath,
		storeName:   storeName,
	}
}

// Process handles a single receipt job:
//  1. Parse ReceiptJobPayload from the job envelope
//  2. Fetch the sale (with lines) from DB
//  3. Render the PDF receipt
//  4. Mail it when a customer email is present
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return
	}

	saleID, err := uuid.Parse(payload.SaleID)
	if err != nil {
		log.Error().Str("sale_id", payload.SaleID).Msg("receipt_worker: invalid sale_id")
		return
	}

	sale, err := w.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		log.Error().Err(err).Str("sale_id", payload.SaleID).Msg("receipt_worker: sale not found")
		return
	}

	pdfPath, err := infra.GenerateReceiptPDF(sale, w.storagePath, w.storeName)
	if err != nil {
		log.Warn().Err(err).Str("sale_id", payload.SaleID).Msg("receipt_worker: PDF generation failed")
		return
	}
	log.Info().Str("pdf", pdfPath).Str("sale_id", payload.SaleID).Msg("receipt_worker: PDF generated")

	email := payload.CustomerEmail
	if email == nil {
		email = sale.CustomerEmail
	}
	if email == nil || *email == "" {
		return
	}

	subject := fmt.Sprintf("%s receipt %s", w.storeName, shortID(saleID))
	body := fmt.Sprintf("Attached is your purchase receipt.\nTotal: $%s", sale.GrandTotal.StringFixed(2))

	mailErr := withRetry(ctx, 3, func(attempt int) error {
		return w.mailBreaker.Execute(func() error {
			return w.mailer.SendReceipt(*email, subject, body, pdfPath)
		})
	})
	if mailErr != nil {
		log.Warn().Err(mailErr).Str("email", *email).Str("sale_id", payload.SaleID).
			Msg("receipt_worker: mail failed after retries")
		return
	}
	log.Info().Str("email", *email).Str("sale_id", payload.SaleID).Msg("receipt_worker: receipt mailed")
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// shortID renders the first uuid block for human-readable receipt subjects.
func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
