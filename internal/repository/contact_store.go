package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberwizD/Distributed-Notification-System/services/sos_service/internal/models"
)

// ErrInvalidContact is returned when a contact cannot be stored.
var ErrInvalidContact = errors.New("invalid contact")

// EmergencyContact is one row of a user's ordered contact list. Position 0 is
// the primary contact.
type EmergencyContact struct {
	UserID    string `gorm:"primaryKey"`
	Position  int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string
	Phone     string
	Relation  string
	UpdatedAt time.Time
}

type ContactStore struct {
	db        *gorm.DB
	tableName string
}

func NewContactStore(db *gorm.DB, tableName string) (*ContactStore, error) {
	if tableName == "" {
		tableName = "emergency_contacts"
	}
	if err := db.Table(tableName).AutoMigrate(&EmergencyContact{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", tableName, err)
	}
	return &ContactStore{
		db:        db,
		tableName: tableName,
	}, nil
}

// ListContacts returns the user's contacts, primary first.
func (s *ContactStore) ListContacts(ctx context.Context, userID string) ([]models.Recipient, error) {
	var rows []EmergencyContact
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where("user_id = ?", userID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Recipient, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Recipient{Name: r.Name, Phone: r.Phone, Relation: r.Relation})
	}
	return out, nil
}

// ReplaceContacts stores contacts as the user's full ordered list.
func (s *ContactStore) ReplaceContacts(ctx context.Context, userID string, contacts []models.Recipient) error {
	if userID == "" {
		return fmt.Errorf("%w: user id required", ErrInvalidContact)
	}
	now := time.Now().UTC()
	rows := make([]EmergencyContact, 0, len(contacts))
	for i, c := range contacts {
		if strings.TrimSpace(c.Phone) == "" {
			return fmt.Errorf("%w: contact %d has no phone", ErrInvalidContact, i)
		}
		rows = append(rows, EmergencyContact{
			UserID:    userID,
			Position:  i,
			Name:      c.Name,
			Phone:     strings.TrimSpace(c.Phone),
			Relation:  c.Relation,
			UpdatedAt: now,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.tableName).
			Where("user_id = ? AND position >= ?", userID, len(rows)).
			Delete(&EmergencyContact{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Table(s.tableName).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "position"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "phone", "relation", "updated_at"}),
			}).Create(&rows).Error
	})
}
