package handlers

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eventkasse/eventkasse/app/models"
)

// Repository provides the DB operations the event handlers need.
type Repository interface {
	GetRegistrationByPublicID(publicID string) (*models.Registration, error)
	MarkRegistrationPaid(registrationID uint, paidAt time.Time) error
	MarkRegistrationRefunded(registrationID uint) error
	CreatePaymentIfNotExists(payment *models.Payment) (bool, error)
	GetPaymentByProviderID(providerPaymentID string) (*models.Payment, error)
	UpdatePaymentStatus(providerPaymentID, status, failureMessage string) error
	GetOrganizerByConnectedAccountID(accountID string) (*models.Organizer, error)
	SetPayoutsEnabled(organizerID uint, enabled bool) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a handler repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetRegistrationByPublicID(publicID string) (*models.Registration, error) {
	var reg models.Registration
	if err := r.db.Where("public_id = ?", publicID).First(&reg).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *gormRepository) MarkRegistrationPaid(registrationID uint, paidAt time.Time) error {
	return r.db.Model(&models.Registration{}).
		Where("id = ?", registrationID).
		Updates(map[string]interface{}{
			"payment_status": models.RegistrationPaid,
			"paid_at":        &paidAt,
		}).Error
}

func (r *gormRepository) MarkRegistrationRefunded(registrationID uint) error {
	return r.db.Model(&models.Registration{}).
		Where("id = ?", registrationID).
		Updates(map[string]interface{}{
			"payment_status": models.RegistrationRefunded,
			"paid_at":        nil,
		}).Error
}

// CreatePaymentIfNotExists inserts the payment row unless the provider
// payment id was seen before. The unique index does the dedup work.
func (r *gormRepository) CreatePaymentIfNotExists(payment *models.Payment) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_payment_id"}},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetPaymentByProviderID(providerPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("provider_payment_id = ?", providerPaymentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) UpdatePaymentStatus(providerPaymentID, status, failureMessage string) error {
	return r.db.Model(&models.Payment{}).
		Where("provider_payment_id = ?", providerPaymentID).
		Updates(map[string]interface{}{
			"status":          status,
			"failure_message": failureMessage,
		}).Error
}

func (r *gormRepository) GetOrganizerByConnectedAccountID(accountID string) (*models.Organizer, error) {
	var org models.Organizer
	if err := r.db.Where("connected_account_id = ?", accountID).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *gormRepository) SetPayoutsEnabled(organizerID uint, enabled bool) error {
	return r.db.Model(&models.Organizer{}).
		Where("id = ?", organizerID).
		Update("payouts_enabled", enabled).Error
}
