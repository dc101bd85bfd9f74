package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"estancopro/internal/apierror"
	"estancopro/internal/dto"
	"estancopro/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory CashSessionRepository ──────────────────────────────────────────

type fakeSessionRepo struct {
	sessions  map[uuid.UUID]*model.CashSession
	movements []model.CashMovement
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*model.CashSession)}
}

// DB returns nil so runTx executes callbacks without a real transaction.
func (r *fakeSessionRepo) DB() *gorm.DB { return nil }

func (r *fakeSessionRepo) CreateSession(_ context.Context, s *model.CashSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) FindOpenSession(_ context.Context) (*model.CashSession, error) {
	for _, s := range r.sessions {
		if s.Status == model.SessionOpen {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*model.CashSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	s.Movements = nil
	for _, m := range r.movements {
		if m.CashSessionID == id {
			s.Movements = append(s.Movements, m)
		}
	}
	return s, nil
}

func (r *fakeSessionRepo) FindSessionByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (r *fakeSessionRepo) UpdateSessionTx(_ *gorm.DB, s *model.CashSession) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) CreateMovement(_ context.Context, m *model.CashMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeSessionRepo) CreateMovementTx(_ *gorm.DB, m *model.CashMovement) error {
	return r.CreateMovement(context.Background(), m)
}

func (r *fakeSessionRepo) ListMovements(_ context.Context, sessionID uuid.UUID) ([]model.CashMovement, error) {
	var result []model.CashMovement
	for _, m := range r.movements {
		if m.CashSessionID == sessionID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (r *fakeSessionRepo) SumMovements(_ context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	return r.SumMovementsTx(nil, sessionID)
}

func (r *fakeSessionRepo) SumMovementsTx(_ *gorm.DB, sessionID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, m := range r.movements {
		if m.CashSessionID == sessionID {
			sum = sum.Add(m.Amount)
		}
	}
	return sum, nil
}

func (r *fakeSessionRepo) ListSessions(_ context.Context, page, limit int) ([]model.CashSession, int64, error) {
	all := make([]model.CashSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, *s)
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func requireKind(t *testing.T, err error, kind apierror.Kind) {
	t.Helper()
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, kind, apiErr.Kind)
}

func openTestSession(t *testing.T, svc CashSessionService, opening string) uuid.UUID {
	t.Helper()
	resp, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{OpeningAmount: dec(opening)})
	require.NoError(t, err)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

// ── Open ─────────────────────────────────────────────────────────────────────

func TestOpenSession(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)

	resp, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{OpeningAmount: dec("100.00")})
	require.NoError(t, err)
	assert.Equal(t, model.SessionOpen, resp.Status)
	assert.True(t, resp.OpeningAmount.Equal(dec("100.00")))
}

func TestOpenSessionNegativeAmount(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)

	_, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{OpeningAmount: dec("-5")})
	requireKind(t, err, apierror.KindValidation)
}

func TestOpenSecondSessionRejected(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	openTestSession(t, svc, "100.00")

	_, err := svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{OpeningAmount: dec("50.00")})
	requireKind(t, err, apierror.KindConflict)
}

func TestOpenAfterCloseSucceeds(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	id := openTestSession(t, svc, "100.00")

	_, err := svc.Close(context.Background(), id, dto.CloseSessionRequest{ClosingAmount: dec("100.00")})
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), uuid.New(), dto.OpenSessionRequest{OpeningAmount: dec("80.00")})
	require.NoError(t, err)
}

// ── GetOpen ──────────────────────────────────────────────────────────────────

func TestGetOpenNone(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)

	resp, err := svc.GetOpen(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp)
}

// ── Close ────────────────────────────────────────────────────────────────────

func TestCloseComputesExpectedAndDifference(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	id := openTestSession(t, svc, "100.00")

	// expected = 100 + 50 - 20 = 130
	_, err := svc.RecordMovement(context.Background(), id, dto.RecordMovementRequest{
		Type: model.MovementAdjustment, Amount: dec("50.00"), Reason: "till top-up",
	})
	require.NoError(t, err)
	_, err = svc.RecordMovement(context.Background(), id, dto.RecordMovementRequest{
		Type: model.MovementExpense, Amount: dec("-20.00"), Reason: "cleaning supplies",
	})
	require.NoError(t, err)

	// counted 125 -> shortage of 5
	resp, err := svc.Close(context.Background(), id, dto.CloseSessionRequest{ClosingAmount: dec("125.00")})
	require.NoError(t, err)
	assert.True(t, resp.ExpectedAmount.Equal(dec("130.00")), "expected %s", resp.ExpectedAmount)
	assert.True(t, resp.Difference.Equal(dec("-5.00")), "difference %s", resp.Difference)
	assert.Equal(t, model.SessionClosed, resp.Status)
}

func TestCloseSurplus(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	id := openTestSession(t, svc, "100.00")

	resp, err := svc.Close(context.Background(), id, dto.CloseSessionRequest{ClosingAmount: dec("103.50")})
	require.NoError(t, err)
	assert.True(t, resp.Difference.Equal(dec("3.50")))
}

func TestCloseAlreadyClosedSession(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	id := openTestSession(t, svc, "100.00")

	_, err := svc.Close(context.Background(), id, dto.CloseSessionRequest{ClosingAmount: dec("100.00")})
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), id, dto.CloseSessionRequest{ClosingAmount: dec("100.00")})
	requireKind(t, err, apierror.KindNotFound)
}

func TestCloseUnknownSession(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)

	_, err := svc.Close(context.Background(), uuid.New(), dto.CloseSessionRequest{ClosingAmount: dec("10")})
	requireKind(t, err, apierror.KindNotFound)
}

// ── RecordMovement ───────────────────────────────────────────────────────────

func TestRecordMovementOnClosedSession(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	id := openTestSession(t, svc, "100.00")

	_, err := svc.Close(context.Background(), id, dto.CloseSessionRequest{ClosingAmount: dec("100.00")})
	require.NoError(t, err)

	_, err = svc.RecordMovement(context.Background(), id, dto.RecordMovementRequest{
		Type: model.MovementExpense, Amount: dec("-10.00"), Reason: "late expense",
	})
	requireKind(t, err, apierror.KindInvalidState)
}

func TestRecordMovementZeroAmount(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	id := openTestSession(t, svc, "100.00")

	_, err := svc.RecordMovement(context.Background(), id, dto.RecordMovementRequest{
		Type: model.MovementAdjustment, Amount: decimal.Zero, Reason: "noop",
	})
	requireKind(t, err, apierror.KindValidation)
}

// ── Balance ──────────────────────────────────────────────────────────────────

func TestBalanceOpenSessionHidesActual(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	id := openTestSession(t, svc, "200.00")

	_, err := svc.RecordMovement(context.Background(), id, dto.RecordMovementRequest{
		Type: model.MovementRefund, Amount: dec("-15.00"), Reason: "customer refund",
	})
	require.NoError(t, err)

	resp, err := svc.Balance(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, resp.ExpectedAmount.Equal(dec("185.00")))
	assert.Nil(t, resp.ActualAmount)
	assert.Nil(t, resp.Difference)
	assert.Len(t, resp.Movements, 1)
}

func TestBalanceClosedSessionShowsDifference(t *testing.T) {
	svc := NewCashSessionService(newFakeSessionRepo(), nil)
	id := openTestSession(t, svc, "200.00")

	_, err := svc.Close(context.Background(), id, dto.CloseSessionRequest{ClosingAmount: dec("190.00")})
	require.NoError(t, err)

	resp, err := svc.Balance(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, resp.ActualAmount)
	require.NotNil(t, resp.Difference)
	assert.True(t, resp.ActualAmount.Equal(dec("190.00")))
	assert.True(t, resp.Difference.Equal(dec("-10.00")))
}
