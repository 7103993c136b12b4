package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"recur-planner/internal/model"
)

// TemplateRepository handles CRUD for task templates.
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *model.TaskTemplate) error {
	if err := r.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) ListByUser(ctx context.Context, userID uint) ([]model.TaskTemplate, error) {
	var templates []model.TaskTemplate
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("title ASC").
		Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, userID, templateID uint) (*model.TaskTemplate, error) {
	var tpl model.TaskTemplate
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, templateID).First(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, userID, templateID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, templateID).
		Delete(&model.TaskTemplate{}).Error; err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
