package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"recur-planner/internal/model"
)

// DefinitionRepository persists recurring task definitions.
type DefinitionRepository struct {
	db *gorm.DB
}

func NewDefinitionRepository(db *gorm.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

func (r *DefinitionRepository) Create(ctx context.Context, def *model.RecurringTaskDefinition) error {
	if err := r.db.WithContext(ctx).Create(def).Error; err != nil {
		return fmt.Errorf("create definition: %w", err)
	}
	return nil
}

func (r *DefinitionRepository) ListByUser(ctx context.Context, userID uint) ([]model.RecurringTaskDefinition, error) {
	var defs []model.RecurringTaskDefinition
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("active DESC, next_due_at NULLS LAST, id ASC").
		Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

// ListActive returns active definitions across all users, for the
// periodic refresh sweep.
func (r *DefinitionRepository) ListActive(ctx context.Context) ([]model.RecurringTaskDefinition, error) {
	var defs []model.RecurringTaskDefinition
	if err := r.db.WithContext(ctx).Where("active = ?", true).
		Order("id ASC").
		Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *DefinitionRepository) FindByID(ctx context.Context, userID, defID uint) (*model.RecurringTaskDefinition, error) {
	var def model.RecurringTaskDefinition
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, defID).First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

// Save writes back the full definition row, including cleared pointer
// fields: Select("*") is needed so gorm persists NULLed next_due_at.
func (r *DefinitionRepository) Save(ctx context.Context, def *model.RecurringTaskDefinition) error {
	if err := r.db.WithContext(ctx).Model(def).Select("*").Omit("created_at").Updates(def).Error; err != nil {
		return fmt.Errorf("save definition: %w", err)
	}
	return nil
}

func (r *DefinitionRepository) SetActive(ctx context.Context, def *model.RecurringTaskDefinition, active bool) error {
	updates := map[string]interface{}{
		"active":      active,
		"next_due_at": nil,
	}
	if err := r.db.WithContext(ctx).Model(def).Updates(updates).Error; err != nil {
		return fmt.Errorf("set definition active: %w", err)
	}
	def.Active = active
	def.NextDueAt = nil
	return nil
}

func (r *DefinitionRepository) Delete(ctx context.Context, userID, defID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, defID).
		Delete(&model.RecurringTaskDefinition{}).Error; err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	return nil
}
