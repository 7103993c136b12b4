package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recur-planner/internal/model"
	"recur-planner/internal/recurrence"
	"recur-planner/internal/repository"
)

type serviceEnv struct {
	user          *model.User
	templateSvc   *TemplateService
	definitionSvc *DefinitionService
	taskRepo      *repository.TaskRepository
	defRepo       *repository.DefinitionRepository
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	defRepo := repository.NewDefinitionRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	user, err := userRepo.UpsertFromTelegram(context.Background(), 100500, "Test", "", "tester")
	require.NoError(t, err)

	return &serviceEnv{
		user:          user,
		templateSvc:   NewTemplateService(templateRepo),
		definitionSvc: NewDefinitionService(defRepo, templateRepo, taskRepo),
		taskRepo:      taskRepo,
		defRepo:       defRepo,
	}
}

func (e *serviceEnv) createTemplate(t *testing.T) *model.TaskTemplate {
	t.Helper()
	tpl, err := e.templateSvc.Create(context.Background(), e.user, TemplateInput{
		Title:    "Оплатить интернет",
		Priority: model.PriorityHigh,
		Tags:     "быт, платежи",
	})
	require.NoError(t, err)
	return tpl
}

func TestDefinitionServiceCreateRejectsInvalidRule(t *testing.T) {
	env := newServiceEnv(t)
	tpl := env.createTemplate(t)

	_, err := env.definitionSvc.Create(context.Background(), env.user, DefinitionInput{
		TemplateID:  tpl.ID,
		Frequency:   model.FrequencyCustom, // missing interval and unit
		AnchorStart: time.Date(2023, time.January, 4, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, recurrence.ErrInvalidRule)
}

func TestDefinitionServiceCreateRequiresTemplate(t *testing.T) {
	env := newServiceEnv(t)

	_, err := env.definitionSvc.Create(context.Background(), env.user, DefinitionInput{
		TemplateID:  999,
		Frequency:   model.FrequencyDaily,
		AnchorStart: time.Date(2023, time.January, 4, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, recurrence.ErrTemplateUnavailable)
}

func TestDefinitionServiceGenerateRoundTrip(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	tpl := env.createTemplate(t)

	anchor := time.Date(2023, time.January, 4, 0, 0, 0, 0, time.UTC)
	def, err := env.definitionSvc.Create(ctx, env.user, DefinitionInput{
		TemplateID:  tpl.ID,
		Frequency:   model.FrequencyWeekly,
		AnchorStart: anchor,
	})
	require.NoError(t, err)
	require.Nil(t, def.NextDueAt)

	// The first refresh schedules the anchor itself.
	require.NoError(t, env.definitionSvc.RefreshUser(ctx, env.user, anchor))
	stored, err := env.defRepo.FindByID(ctx, env.user.ID, def.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextDueAt)
	assert.True(t, stored.NextDueAt.Equal(anchor))

	task, advanced, err := env.definitionSvc.GenerateInstance(ctx, env.user, def.ID, anchor)
	require.NoError(t, err)
	assert.Equal(t, tpl.Title, task.Title)
	assert.Equal(t, tpl.Priority, task.Priority)
	assert.Equal(t, tpl.Tags, task.Tags)
	require.NotNil(t, task.DueAt)
	assert.True(t, task.DueAt.Equal(anchor))
	require.NotNil(t, task.DefinitionID)
	assert.Equal(t, def.ID, *task.DefinitionID)

	// The cleared due date must survive the round trip to the database.
	assert.Nil(t, advanced.NextDueAt)
	stored, err = env.defRepo.FindByID(ctx, env.user.ID, def.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.NextDueAt)
	require.NotNil(t, stored.LastGeneratedAt)
	assert.True(t, stored.LastGeneratedAt.Equal(anchor))

	// Same moment again: next occurrence is a week away.
	_, _, err = env.definitionSvc.GenerateInstance(ctx, env.user, def.ID, anchor)
	assert.ErrorIs(t, err, recurrence.ErrNotYetDue)

	// One week later the second occurrence materializes.
	weekLater := anchor.AddDate(0, 0, 7)
	task2, _, err := env.definitionSvc.GenerateInstance(ctx, env.user, def.ID, weekLater)
	require.NoError(t, err)
	require.NotNil(t, task2.DueAt)
	assert.True(t, task2.DueAt.Equal(weekLater))

	pending, err := env.taskRepo.ListPending(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestDefinitionServiceGenerateWithoutTemplate(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	tpl := env.createTemplate(t)

	anchor := time.Date(2023, time.January, 4, 0, 0, 0, 0, time.UTC)
	def, err := env.definitionSvc.Create(ctx, env.user, DefinitionInput{
		TemplateID:  tpl.ID,
		Frequency:   model.FrequencyDaily,
		AnchorStart: anchor,
	})
	require.NoError(t, err)

	require.NoError(t, env.templateSvc.Delete(ctx, env.user, tpl.ID))

	_, _, err = env.definitionSvc.GenerateInstance(ctx, env.user, def.ID, anchor)
	assert.ErrorIs(t, err, recurrence.ErrTemplateUnavailable)
}

func TestDefinitionServicePauseAndResume(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	tpl := env.createTemplate(t)

	anchor := time.Date(2023, time.January, 4, 0, 0, 0, 0, time.UTC)
	def, err := env.definitionSvc.Create(ctx, env.user, DefinitionInput{
		TemplateID:  tpl.ID,
		Frequency:   model.FrequencyDaily,
		AnchorStart: anchor,
	})
	require.NoError(t, err)

	paused, err := env.definitionSvc.Deactivate(ctx, env.user, def.ID)
	require.NoError(t, err)
	assert.False(t, paused.Active)
	assert.Nil(t, paused.NextDueAt)

	_, _, err = env.definitionSvc.GenerateInstance(ctx, env.user, def.ID, anchor)
	assert.ErrorIs(t, err, recurrence.ErrDefinitionInactive)

	resumed, err := env.definitionSvc.Reactivate(ctx, env.user, def.ID)
	require.NoError(t, err)
	assert.True(t, resumed.Active)

	task, _, err := env.definitionSvc.GenerateInstance(ctx, env.user, def.ID, anchor)
	require.NoError(t, err)
	require.NotNil(t, task.DueAt)
	assert.True(t, task.DueAt.Equal(anchor))
}

func TestDefinitionServiceRefreshAllDeactivatesFinishedRules(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	tpl := env.createTemplate(t)

	anchor := time.Date(2023, time.January, 4, 0, 0, 0, 0, time.UTC)
	end := anchor.AddDate(0, 0, -1) // bound before the first occurrence
	def, err := env.definitionSvc.Create(ctx, env.user, DefinitionInput{
		TemplateID:  tpl.ID,
		Frequency:   model.FrequencyWeekly,
		AnchorStart: anchor,
		EndBound:    &end,
	})
	require.NoError(t, err)

	changed, err := env.definitionSvc.RefreshAll(ctx, anchor)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	stored, err := env.defRepo.FindByID(ctx, env.user.ID, def.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Nil(t, stored.NextDueAt)
}
