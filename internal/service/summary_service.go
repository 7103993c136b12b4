package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"recur-planner/internal/model"
	"recur-planner/internal/repository"
)

// SummaryService builds human-readable summaries for daily notifications:
// which recurring definitions are due, what comes next, and which
// materialized tasks are still open.
type SummaryService struct {
	defRepo      *repository.DefinitionRepository
	templateRepo *repository.TemplateRepository
	taskRepo     *repository.TaskRepository
}

func NewSummaryService(defRepo *repository.DefinitionRepository, templateRepo *repository.TemplateRepository, taskRepo *repository.TaskRepository) *SummaryService {
	return &SummaryService{defRepo: defRepo, templateRepo: templateRepo, taskRepo: taskRepo}
}

func (s *SummaryService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	defs, err := s.defRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}

	templates, err := s.templateRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	tplTitles := make(map[uint]string)
	for _, tpl := range templates {
		tplTitles[tpl.ID] = tpl.Title
	}

	tasks, err := s.taskRepo.ListPending(ctx, user.ID)
	if err != nil {
		return "", err
	}

	var due []model.RecurringTaskDefinition
	var upcoming []model.RecurringTaskDefinition
	for _, def := range defs {
		if !def.Active || def.NextDueAt == nil {
			continue
		}
		if now.Before(*def.NextDueAt) {
			upcoming = append(upcoming, def)
		} else {
			due = append(due, def)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].NextDueAt.Before(*upcoming[j].NextDueAt)
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔔 <b>Пора создать задачи</b>\n")
	if len(due) == 0 {
		builder.WriteString("— ничего не просрочено\n")
	} else {
		for _, def := range due {
			builder.WriteString(formatDueDefinition(def, tplTitles))
		}
	}

	builder.WriteString("\n🔁 <b>Ближайшие повторения</b>\n")
	if len(upcoming) == 0 {
		builder.WriteString("— нет запланированных повторений\n")
	} else {
		for _, def := range upcoming {
			builder.WriteString(formatUpcomingDefinition(def, tplTitles, now))
		}
	}

	builder.WriteString("\n📝 <b>Незакрытые задачи</b>\n")
	if len(tasks) == 0 {
		builder.WriteString("— все задачи закрыты\n")
	} else {
		for _, task := range tasks {
			builder.WriteString(formatPendingTask(task, now))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func definitionTitle(def model.RecurringTaskDefinition, tplTitles map[uint]string) string {
	if title, ok := tplTitles[def.TemplateID]; ok && strings.TrimSpace(title) != "" {
		return html.EscapeString(strings.TrimSpace(title))
	}
	return fmt.Sprintf("шаблон #%d недоступен", def.TemplateID)
}

func formatDueDefinition(def model.RecurringTaskDefinition, tplTitles map[uint]string) string {
	return fmt.Sprintf("• <b>#%d</b> %s — должна была появиться %s, набери /generate %d\n",
		def.ID, definitionTitle(def, tplTitles), def.NextDueAt.Format("2006-01-02"), def.ID)
}

func formatUpcomingDefinition(def model.RecurringTaskDefinition, tplTitles map[uint]string, now time.Time) string {
	daysLeft := int(def.NextDueAt.Sub(now).Hours()/24) + 1
	return fmt.Sprintf("• <b>#%d</b> %s — %s (через ≈%d дн.)\n",
		def.ID, definitionTitle(def, tplTitles), def.NextDueAt.Format("2006-01-02"), daysLeft)
}

func formatPendingTask(task model.Task, now time.Time) string {
	var sb strings.Builder
	icon := "🟢"
	if task.DueAt != nil {
		d := task.DueAt.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}
	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	if task.DueAt != nil {
		sb.WriteString(fmt.Sprintf(" · до %s", task.DueAt.Format("2006-01-02")))
	}
	sb.WriteByte('\n')
	return sb.String()
}
