package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrPreferencesNotFound is returned when a verifier has never saved settings
var ErrPreferencesNotFound = errors.New("preferences not found")

// Repository defines data access for verifier preferences
type Repository interface {
	Get(ctx context.Context, verifierID uuid.UUID) (*Preferences, error)
	Save(ctx context.Context, prefs *Preferences) error
}

// GormRepository implements Repository using gorm
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates a new preferences repository
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Get(ctx context.Context, verifierID uuid.UUID) (*Preferences, error) {
	var prefs Preferences
	err := r.db.WithContext(ctx).First(&prefs, "verifier_id = ?", verifierID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return &prefs, nil
}

func (r *GormRepository) Save(ctx context.Context, prefs *Preferences) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "verifier_id"}},
			UpdateAll: true,
		}).
		Create(prefs).Error
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
