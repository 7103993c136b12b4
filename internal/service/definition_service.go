package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"recur-planner/internal/model"
	"recur-planner/internal/recurrence"
	"recur-planner/internal/repository"
)

// DefinitionInput represents data required to create a recurring task definition.
type DefinitionInput struct {
	TemplateID   uint
	Frequency    model.Frequency
	Interval     int
	IntervalUnit model.IntervalUnit
	AnchorStart  time.Time
	EndBound     *time.Time
	CountBound   *int
}

// DefinitionService owns recurring task definitions: it validates rules on
// creation, runs the refresh sweep and materializes due occurrences.
//
// The engine assumes a monotonically non-decreasing now, so the service
// clamps every incoming timestamp to the process high-water mark. Generate
// is serialized per definition id: two racing calls over the same snapshot
// would materialize the same occurrence twice.
type DefinitionService struct {
	defRepo      *repository.DefinitionRepository
	templateRepo *repository.TemplateRepository
	taskRepo     *repository.TaskRepository

	mu       sync.Mutex
	lastNow  time.Time
	defLocks map[uint]*sync.Mutex
}

func NewDefinitionService(defRepo *repository.DefinitionRepository, templateRepo *repository.TemplateRepository, taskRepo *repository.TaskRepository) *DefinitionService {
	return &DefinitionService{
		defRepo:      defRepo,
		templateRepo: templateRepo,
		taskRepo:     taskRepo,
		defLocks:     make(map[uint]*sync.Mutex),
	}
}

// Create validates the rule up front and stores a fresh definition. The
// next due date stays unset until the first refresh.
func (s *DefinitionService) Create(ctx context.Context, user *model.User, input DefinitionInput) (*model.RecurringTaskDefinition, error) {
	rule := model.RecurrenceRule{
		Frequency:    input.Frequency,
		Interval:     input.Interval,
		IntervalUnit: input.IntervalUnit,
		AnchorStart:  input.AnchorStart,
		EndBound:     input.EndBound,
		CountBound:   input.CountBound,
	}
	if err := recurrence.ValidateRule(rule); err != nil {
		return nil, err
	}

	if _, err := s.templateRepo.FindByID(ctx, user.ID, input.TemplateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recurrence.ErrTemplateUnavailable
		}
		return nil, fmt.Errorf("find template: %w", err)
	}

	def := model.RecurringTaskDefinition{
		UserID:     user.ID,
		TemplateID: input.TemplateID,
		Rule:       rule,
		Active:     true,
	}
	if err := s.defRepo.Create(ctx, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *DefinitionService) List(ctx context.Context, user *model.User) ([]model.RecurringTaskDefinition, error) {
	return s.defRepo.ListByUser(ctx, user.ID)
}

func (s *DefinitionService) Get(ctx context.Context, user *model.User, defID uint) (*model.RecurringTaskDefinition, error) {
	return s.defRepo.FindByID(ctx, user.ID, defID)
}

// Deactivate pauses a definition. Reactivate clears the stale due date as
// well, so the next refresh recomputes it from the last generation.
func (s *DefinitionService) Deactivate(ctx context.Context, user *model.User, defID uint) (*model.RecurringTaskDefinition, error) {
	return s.setActive(ctx, user, defID, false)
}

func (s *DefinitionService) Reactivate(ctx context.Context, user *model.User, defID uint) (*model.RecurringTaskDefinition, error) {
	return s.setActive(ctx, user, defID, true)
}

func (s *DefinitionService) setActive(ctx context.Context, user *model.User, defID uint, active bool) (*model.RecurringTaskDefinition, error) {
	lock := s.definitionLock(defID)
	lock.Lock()
	defer lock.Unlock()

	def, err := s.defRepo.FindByID(ctx, user.ID, defID)
	if err != nil {
		return nil, err
	}
	if def.Active == active {
		return def, nil
	}
	if err := s.defRepo.SetActive(ctx, def, active); err != nil {
		return nil, err
	}
	return def, nil
}

func (s *DefinitionService) Delete(ctx context.Context, user *model.User, defID uint) error {
	lock := s.definitionLock(defID)
	lock.Lock()
	defer lock.Unlock()
	return s.defRepo.Delete(ctx, user.ID, defID)
}

// RefreshAll runs the refresh sweep over every active definition and
// persists the ones whose schedule state changed. Per-row failures are
// logged and skipped so one broken row does not stall the sweep.
func (s *DefinitionService) RefreshAll(ctx context.Context, now time.Time) (int, error) {
	now = s.clampNow(now)

	defs, err := s.defRepo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active definitions: %w", err)
	}

	changed := 0
	for i := range defs {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		if s.refreshOne(ctx, &defs[i], now) {
			changed++
		}
	}
	return changed, nil
}

// RefreshUser refreshes only one user's definitions, used before
// rendering their lists.
func (s *DefinitionService) RefreshUser(ctx context.Context, user *model.User, now time.Time) error {
	now = s.clampNow(now)

	defs, err := s.defRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	for i := range defs {
		if !defs[i].Active {
			continue
		}
		s.refreshOne(ctx, &defs[i], now)
	}
	return nil
}

func (s *DefinitionService) refreshOne(ctx context.Context, def *model.RecurringTaskDefinition, now time.Time) bool {
	lock := s.definitionLock(def.ID)
	lock.Lock()
	defer lock.Unlock()

	updated := recurrence.Refresh(*def, now)
	if !scheduleChanged(*def, updated) {
		return false
	}
	if err := s.defRepo.Save(ctx, &updated); err != nil {
		log.Printf("[warn] refresh definition id=%d: %v", def.ID, err)
		return false
	}
	if !updated.Active {
		log.Printf("[info] definition id=%d reached end of its rule, deactivated", def.ID)
	}
	*def = updated
	return true
}

// GenerateInstance materializes the due occurrence of one definition:
// refresh, template lookup, engine generate, then persist the task and
// the advanced definition.
func (s *DefinitionService) GenerateInstance(ctx context.Context, user *model.User, defID uint, now time.Time) (*model.Task, *model.RecurringTaskDefinition, error) {
	now = s.clampNow(now)

	lock := s.definitionLock(defID)
	lock.Lock()
	defer lock.Unlock()

	def, err := s.defRepo.FindByID(ctx, user.ID, defID)
	if err != nil {
		return nil, nil, err
	}

	refreshed := recurrence.Refresh(*def, now)

	var tpl *model.TaskTemplate
	tpl, err = s.templateRepo.FindByID(ctx, user.ID, def.TemplateID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("find template: %w", err)
	}

	task, advanced, genErr := recurrence.Generate(refreshed, tpl, now)
	if genErr != nil {
		// Persist what refresh learned (e.g. a deactivation) even when
		// generation is refused.
		if scheduleChanged(*def, refreshed) {
			if err := s.defRepo.Save(ctx, &refreshed); err != nil {
				log.Printf("[warn] save refreshed definition id=%d: %v", def.ID, err)
			}
		}
		return nil, &refreshed, genErr
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, nil, err
	}
	if err := s.defRepo.Save(ctx, &advanced); err != nil {
		return nil, nil, err
	}

	log.Printf("[info] generated task id=%d from definition id=%d due=%s", task.ID, advanced.ID, task.DueAt.Format("2006-01-02"))
	return &task, &advanced, nil
}

// clampNow keeps the engine's now monotonic across callers.
func (s *DefinitionService) clampNow(now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Before(s.lastNow) {
		return s.lastNow
	}
	s.lastNow = now
	return now
}

func (s *DefinitionService) definitionLock(defID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.defLocks[defID]
	if !ok {
		lock = &sync.Mutex{}
		s.defLocks[defID] = lock
	}
	return lock
}

func scheduleChanged(before, after model.RecurringTaskDefinition) bool {
	if before.Active != after.Active {
		return true
	}
	return !timePtrEqual(before.NextDueAt, after.NextDueAt) ||
		!timePtrEqual(before.LastGeneratedAt, after.LastGeneratedAt)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
