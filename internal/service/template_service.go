package service

import (
	"context"
	"fmt"
	"strings"

	"recur-planner/internal/model"
	"recur-planner/internal/repository"
)

// TemplateInput represents data required to create a task template.
type TemplateInput struct {
	Title       string
	Description string
	Priority    model.Priority
	Tags        string
}

// TemplateService wraps template-related business logic.
type TemplateService struct {
	templateRepo *repository.TemplateRepository
}

func NewTemplateService(templateRepo *repository.TemplateRepository) *TemplateService {
	return &TemplateService{templateRepo: templateRepo}
}

func (s *TemplateService) Create(ctx context.Context, user *model.User, input TemplateInput) (*model.TaskTemplate, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	priority := input.Priority
	switch priority {
	case "":
		priority = model.PriorityMedium
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
	default:
		return nil, fmt.Errorf("unknown priority %q", priority)
	}

	tpl := model.TaskTemplate{
		UserID:      user.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Priority:    priority,
		Tags:        normalizeTags(input.Tags),
	}
	if err := s.templateRepo.Create(ctx, &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *TemplateService) List(ctx context.Context, user *model.User) ([]model.TaskTemplate, error) {
	return s.templateRepo.ListByUser(ctx, user.ID)
}

func (s *TemplateService) Get(ctx context.Context, user *model.User, templateID uint) (*model.TaskTemplate, error) {
	return s.templateRepo.FindByID(ctx, user.ID, templateID)
}

// Delete removes a template. Definitions still referencing it will fail
// generation with a template-unavailable error rather than silently
// producing empty tasks.
func (s *TemplateService) Delete(ctx context.Context, user *model.User, templateID uint) error {
	return s.templateRepo.Delete(ctx, user.ID, templateID)
}

func normalizeTags(raw string) string {
	parts := strings.Split(raw, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, ",")
}
