package repository

import (
	"context"
	"errors"

	"estancopro/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CashSessionRepository is the data access contract for cash sessions and
// their movement ledger. Movements have no Update/Delete, the ledger is
// append-only by construction.
type CashSessionRepository interface {
	CreateSession(ctx context.Context, s *model.CashSession) error
	FindOpenSession(ctx context.Context) (*model.CashSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error)
	// FindSessionByIDForUpdate locks the session row so the close sequence
	// reads a consistent movement snapshot. Callers must pass a live tx.
	FindSessionByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error)
	UpdateSessionTx(tx *gorm.DB, s *model.CashSession) error
	CreateMovement(ctx context.Context, m *model.CashMovement) error
	CreateMovementTx(tx *gorm.DB, m *model.CashMovement) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.CashMovement, error)
	SumMovements(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error)
	SumMovementsTx(tx *gorm.DB, sessionID uuid.UUID) (decimal.Decimal, error)
	ListSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in the service layer
}

type cashSessionRepo struct{ db *gorm.DB }

func NewCashSessionRepository(db *gorm.DB) CashSessionRepository {
	return &cashSessionRepo{db: db}
}

func (r *cashSessionRepo) DB() *gorm.DB { return r.db }

func (r *cashSessionRepo) CreateSession(ctx context.Context, s *model.CashSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// FindOpenSession returns (nil, nil) when no session is open: "no open
// session" is a normal answer, not an error.
func (r *cashSessionRepo) FindOpenSession(ctx context.Context) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Where("status = ?", model.SessionOpen).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *cashSessionRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Preload("Movements").First(&s, id).Error
	return &s, err
}

func (r *cashSessionRepo) FindSessionByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, id).Error
	return &s, err
}

func (r *cashSessionRepo) UpdateSessionTx(tx *gorm.DB, s *model.CashSession) error {
	return tx.Save(s).Error
}

func (r *cashSessionRepo) CreateMovement(ctx context.Context, m *model.CashMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *cashSessionRepo) CreateMovementTx(tx *gorm.DB, m *model.CashMovement) error {
	return tx.Create(m).Error
}

func (r *cashSessionRepo) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]model.CashMovement, error) {
	var movs []model.CashMovement
	err := r.db.WithContext(ctx).
		Where("cash_session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&movs).Error
	return movs, err
}

func (r *cashSessionRepo) SumMovements(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	return sumMovements(r.db.WithContext(ctx), sessionID)
}

func (r *cashSessionRepo) SumMovementsTx(tx *gorm.DB, sessionID uuid.UUID) (decimal.Decimal, error) {
	return sumMovements(tx, sessionID)
}

func sumMovements(db *gorm.DB, sessionID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := db.Model(&model.CashMovement{}).
		Where("cash_session_id = ?", sessionID).
		Select("SUM(amount)").
		Scan(&sum).Error
	if err != nil || !sum.Valid {
		return decimal.Zero, err
	}
	return sum.Decimal, nil
}

func (r *cashSessionRepo) ListSessions(ctx context.Context, page, limit int) ([]model.CashSession, int64, error) {
	var sessions []model.CashSession
	var total int64

	q := r.db.WithContext(ctx).Model(&model.CashSession{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := q.Order("opened_at DESC").Offset(offset).Limit(limit).Find(&sessions).Error
	return sessions, total, err
}
