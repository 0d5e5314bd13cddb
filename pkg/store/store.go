// Package store is the typed adapter between handlers and the
// relational store. Every call is scoped by an explicit equality filter
// (company for work orders, work order for notes and photos); rows are
// validated at this boundary before any write. No call spans more than
// one entity; there are no cross-entity transactions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"p9e.in/fixport/models"
)

// Store wraps an explicitly constructed *gorm.DB handle. Lifetime is
// per-process; it is passed to handlers, never imported as a global.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func upstream(op string, err error) error {
	// double-wrap so callers can classify with ErrUpstream and still
	// reach the driver error via errors.As
	return fmt.Errorf("%s: %w: %w", op, models.ErrUpstream, err)
}

// ---- companies ----

func (s *Store) CompanyBySlug(ctx context.Context, slug string) (*models.Company, error) {
	var c models.Company
	err := s.db.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", models.ErrTenantNotFound, slug)
	}
	if err != nil {
		return nil, upstream("company lookup", err)
	}
	return &c, nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return upstream("create user", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Company").
		Where("email = ? AND is_active = ?", email, true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, upstream("user lookup", err)
	}
	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Company").First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, upstream("user lookup", err)
	}
	return &u, nil
}

// ---- sessions ----

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return upstream("create session", err)
	}
	return nil
}

func (s *Store) SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, upstream("session lookup", err)
	}
	return &sess, nil
}

// RevokeUserSessions marks every live session of the user revoked.
func (s *Store) RevokeUserSessions(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
	if err != nil {
		return upstream("revoke sessions", err)
	}
	return nil
}

// CountActiveSessions is the post-sign-out verification probe.
func (s *Store) CountActiveSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, time.Now()).
		Count(&n).Error
	if err != nil {
		return 0, upstream("count sessions", err)
	}
	return n, nil
}

// ---- login tokens ----

func (s *Store) CreateLoginToken(ctx context.Context, t *models.LoginToken) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return upstream("create login token", err)
	}
	return nil
}

// ConsumeLoginToken burns a magic-link token and returns its row. The
// burn is a single conditional UPDATE, so of two concurrent callbacks
// racing on the same token exactly one wins; the loser, like expired,
// already-used and unknown tokens, gets ErrNotFound.
func (s *Store) ConsumeLoginToken(ctx context.Context, token string) (*models.LoginToken, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.LoginToken{}).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		Update("used_at", now)
	if res.Error != nil {
		return nil, upstream("consume login token", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrNotFound
	}

	var t models.LoginToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, upstream("login token lookup", err)
	}
	return &t, nil
}

// ---- work orders ----

// ListWorkOrders returns the company's work orders newest first,
// optionally filtered to one status.
func (s *Store) ListWorkOrders(ctx context.Context, companyID uuid.UUID, status models.WorkOrderStatus) ([]models.WorkOrder, error) {
	q := s.db.WithContext(ctx).Where("company_id = ?", companyID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []models.WorkOrder
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, upstream("list work orders", err)
	}
	return orders, nil
}

func (s *Store) GetWorkOrder(ctx context.Context, companyID, id uuid.UUID) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	err := s.db.WithContext(ctx).Where("company_id = ? AND id = ?", companyID, id).First(&wo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, upstream("work order lookup", err)
	}
	return &wo, nil
}

func (s *Store) CreateWorkOrder(ctx context.Context, wo *models.WorkOrder) error {
	if err := wo.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(wo).Error; err != nil {
		return upstream("create work order", err)
	}
	return nil
}

// UpdateWorkOrder writes the full row back. Last write wins; there is
// no optimistic-concurrency check.
func (s *Store) UpdateWorkOrder(ctx context.Context, wo *models.WorkOrder) error {
	if err := wo.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", wo.CompanyID, wo.ID).
		Save(wo).Error
	if err != nil {
		return upstream("update work order", err)
	}
	return nil
}

// DeleteWorkOrder hard-deletes a completed work order. The completed
// list is the only view that exposes delete, so anything else is
// rejected here as well.
func (s *Store) DeleteWorkOrder(ctx context.Context, companyID, id uuid.UUID) error {
	wo, err := s.GetWorkOrder(ctx, companyID, id)
	if err != nil {
		return err
	}
	if wo.Status != models.StatusCompleted {
		return fmt.Errorf("%w: only completed work orders can be deleted", models.ErrValidation)
	}
	if err := s.db.WithContext(ctx).Delete(&models.WorkOrder{}, "id = ?", id).Error; err != nil {
		return upstream("delete work order", err)
	}
	return nil
}

// ---- notes ----

// ListNotes returns a work order's notes oldest first (chronological).
func (s *Store) ListNotes(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderNote, error) {
	var notes []models.WorkOrderNote
	err := s.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("created_at ASC").
		Find(&notes).Error
	if err != nil {
		return nil, upstream("list notes", err)
	}
	return notes, nil
}

func (s *Store) AddNote(ctx context.Context, n *models.WorkOrderNote) error {
	if n.Note == "" {
		return fmt.Errorf("%w: note text is required", models.ErrValidation)
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return upstream("add note", err)
	}
	return nil
}

// ---- photos ----

// ListPhotos returns a work order's photo rows oldest first.
func (s *Store) ListPhotos(ctx context.Context, workOrderID uuid.UUID) ([]models.WorkOrderPhoto, error) {
	var photos []models.WorkOrderPhoto
	err := s.db.WithContext(ctx).
		Where("work_order_id = ?", workOrderID).
		Order("created_at ASC").
		Find(&photos).Error
	if err != nil {
		return nil, upstream("list photos", err)
	}
	return photos, nil
}

func (s *Store) AddPhoto(ctx context.Context, p *models.WorkOrderPhoto) error {
	if p.StoragePath == "" {
		return fmt.Errorf("%w: storage path is required", models.ErrValidation)
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return upstream("add photo", err)
	}
	return nil
}
