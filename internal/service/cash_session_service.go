package service

import (
	"context"
	"errors"
	"time"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/model"
	"estancopro/internal/repository"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// openSessionLockKey serializes concurrent Open calls across server instances.
// The partial unique index on cash_sessions is the hard guarantee; the lock
// just turns the race into a clean Conflict instead of a driver error.
const openSessionLockKey = "locks:cash-session:open"

type CashSessionService interface {
	Open(ctx context.Context, userID uuid.UUID, req dto.OpenSessionRequest) (*dto.CashSessionResponse, error)
	// GetOpen returns (nil, nil) when no session is open; the handler answers 204.
	GetOpen(ctx context.Context) (*dto.CashSessionResponse, error)
	Close(ctx context.Context, sessionID uuid.UUID, req dto.CloseSessionRequest) (*dto.CloseSessionResponse, error)
	Balance(ctx context.Context, sessionID uuid.UUID) (*dto.CashSessionBalanceResponse, error)
	RecordMovement(ctx context.Context, sessionID uuid.UUID, req dto.RecordMovementRequest) (*dto.MovementResponse, error)
	History(ctx context.Context, page, limit int) (*dto.CashSessionListResponse, error)

	// RequireOpen is called by SaleService to validate the session a draft
	// sale is attached to.
	RequireOpen(ctx context.Context, sessionID uuid.UUID) error
	// RecordSaleMovementTx is called by SaleService inside the finalize
	// transaction so the sale transition and its cash movement commit together.
	RecordSaleMovementTx(tx *gorm.DB, sessionID uuid.UUID, amount decimal.Decimal, saleID uuid.UUID) error
}

type cashSessionService struct {
	repo   repository.CashSessionRepository
	locker *redislock.Client // nil in unit tests
}

func NewCashSessionService(repo repository.CashSessionRepository, locker *redislock.Client) CashSessionService {
	return &cashSessionService{repo: repo, locker: locker}
}

// ── Open ─────────────────────────────────────────────────────────────────────

func (s *cashSessionService) Open(ctx context.Context, userID uuid.UUID, req dto.OpenSessionRequest) (*dto.CashSessionResponse, error) {
	if req.OpeningAmount.IsNegative() {
		return nil, apierror.Validation("opening amount must not be negative")
	}

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, openSessionLockKey, 5*time.Second, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, apierror.Conflict("another cash session is being opened")
		}
		if err != nil {
			return nil, err
		}
		defer func() { _ = lock.Release(ctx) }()
	}

	existing, err := s.repo.FindOpenSession(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.Conflict("a cash session is already open")
	}

	session := &model.CashSession{
		OpenedByID:    userID,
		OpeningAmount: req.OpeningAmount,
		Status:        model.SessionOpen,
		OpenedAt:      time.Now(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return sessionToResponse(session), nil
}

// ── GetOpen ──────────────────────────────────────────────────────────────────

func (s *cashSessionService) GetOpen(ctx context.Context) (*dto.CashSessionResponse, error) {
	session, err := s.repo.FindOpenSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	return sessionToResponse(session), nil
}

// ── Close ────────────────────────────────────────────────────────────────────
// The whole close runs in one transaction with the session row locked, so no
// movement can be appended between the sum and the status flip.

func (s *cashSessionService) Close(ctx context.Context, sessionID uuid.UUID, req dto.CloseSessionRequest) (*dto.CloseSessionResponse, error) {
	if req.ClosingAmount.IsNegative() {
		return nil, apierror.Validation("closing amount must not be negative")
	}

	var resp *dto.CloseSessionResponse
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		session, err := s.repo.FindSessionByIDForUpdate(tx, sessionID)
		if err != nil {
			return apierror.NotFound("cash session not found")
		}
		// A closed session is not "the open session with that id": NotFound,
		// mirroring the lookup semantics of GetOpen.
		if session.Status != model.SessionOpen {
			return apierror.NotFound("no open cash session with that id")
		}

		movementSum, err := s.repo.SumMovementsTx(tx, sessionID)
		if err != nil {
			return err
		}

		expected := session.OpeningAmount.Add(movementSum)
		difference := req.ClosingAmount.Sub(expected)
		now := time.Now()

		closing := req.ClosingAmount
		session.ExpectedAmount = &expected
		session.ClosingAmount = &closing
		session.Difference = &difference
		session.Status = model.SessionClosed
		session.ClosedAt = &now
		session.Notes = req.Notes

		if err := s.repo.UpdateSessionTx(tx, session); err != nil {
			return err
		}

		resp = &dto.CloseSessionResponse{
			SessionID:      session.ID.String(),
			ExpectedAmount: expected,
			ClosingAmount:  closing,
			Difference:     difference,
			Status:         model.SessionClosed,
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return resp, nil
}

// ── Balance ──────────────────────────────────────────────────────────────────

func (s *cashSessionService) Balance(ctx context.Context, sessionID uuid.UUID) (*dto.CashSessionBalanceResponse, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, apierror.NotFound("cash session not found")
	}

	expected := session.OpeningAmount
	movements := make([]dto.MovementResponse, 0, len(session.Movements))
	for _, m := range session.Movements {
		expected = expected.Add(m.Amount)
		movements = append(movements, movementToResponse(&m))
	}

	resp := &dto.CashSessionBalanceResponse{
		SessionID:      session.ID.String(),
		Status:         session.Status,
		OpeningAmount:  session.OpeningAmount,
		ExpectedAmount: expected,
		Movements:      movements,
	}
	// Actual and difference only exist once the drawer was counted.
	if session.Status == model.SessionClosed {
		resp.ActualAmount = session.ClosingAmount
		resp.Difference = session.Difference
	}
	return resp, nil
}

// ── RecordMovement ───────────────────────────────────────────────────────────
// Manual expense / adjustment / refund entries. Amount is signed: positive
// increases expected cash. Movements are immutable, no Update/Delete exists.

func (s *cashSessionService) RecordMovement(ctx context.Context, sessionID uuid.UUID, req dto.RecordMovementRequest) (*dto.MovementResponse, error) {
	if req.Amount.IsZero() {
		return nil, apierror.Validation("movement amount must not be zero")
	}

	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, apierror.NotFound("cash session not found")
	}
	if session.Status != model.SessionOpen {
		return nil, apierror.InvalidState("cannot record a movement on a closed session")
	}

	mov := &model.CashMovement{
		CashSessionID: sessionID,
		Type:          req.Type,
		Amount:        req.Amount,
		Reason:        req.Reason,
	}
	if err := s.repo.CreateMovement(ctx, mov); err != nil {
		return nil, err
	}
	resp := movementToResponse(mov)
	return &resp, nil
}

// ── History ──────────────────────────────────────────────────────────────────

func (s *cashSessionService) History(ctx context.Context, page, limit int) (*dto.CashSessionListResponse, error) {
	sessions, total, err := s.repo.ListSessions(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.CashSessionResponse, 0, len(sessions))
	for i := range sessions {
		data = append(data, *sessionToResponse(&sessions[i]))
	}
	return &dto.CashSessionListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// ── RequireOpen ──────────────────────────────────────────────────────────────

func (s *cashSessionService) RequireOpen(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return apierror.NotFound("cash session not found")
	}
	if session.Status != model.SessionOpen {
		return apierror.InvalidState("cash session is closed")
	}
	return nil
}

// ── RecordSaleMovementTx ─────────────────────────────────────────────────────

func (s *cashSessionService) RecordSaleMovementTx(tx *gorm.DB, sessionID uuid.UUID, amount decimal.Decimal, saleID uuid.UUID) error {
	session, err := s.repo.FindSessionByIDForUpdate(tx, sessionID)
	if err != nil {
		return apierror.NotFound("cash session not found")
	}
	if session.Status != model.SessionOpen {
		return apierror.InvalidState("cannot finalize a sale against a closed cash session")
	}

	related := "sale"
	saleRef := saleID
	return s.repo.CreateMovementTx(tx, &model.CashMovement{
		CashSessionID: sessionID,
		Type:          model.MovementSale,
		Amount:        amount,
		Reason:        "Sale " + saleID.String(),
		RelatedEntity: &related,
		RelatedID:     &saleRef,
	})
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func sessionToResponse(s *model.CashSession) *dto.CashSessionResponse {
	resp := &dto.CashSessionResponse{
		ID:            s.ID.String(),
		Status:        s.Status,
		OpeningAmount: s.OpeningAmount,
		ClosingAmount: s.ClosingAmount,
		Difference:    s.Difference,
		Notes:         s.Notes,
		OpenedAt:      s.OpenedAt.Format(time.RFC3339),
	}
	if s.ClosedAt != nil {
		t := s.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &t
	}
	return resp
}

func movementToResponse(m *model.CashMovement) dto.MovementResponse {
	resp := dto.MovementResponse{
		ID:            m.ID.String(),
		Type:          m.Type,
		Amount:        m.Amount,
		Reason:        m.Reason,
		RelatedEntity: m.RelatedEntity,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
	if m.RelatedID != nil {
		id := m.RelatedID.String()
		resp.RelatedID = &id
	}
	return resp
}
