package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"recur-planner/internal/model"
	"recur-planner/internal/recurrence"
	"recur-planner/internal/repository"
	"recur-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota

	stageTplTitle
	stageTplDescription
	stageTplPriority
	stageTplTags

	stageRuleTemplate
	stageRuleFrequency
	stageRuleInterval
	stageRuleUnit
	stageRuleStart
	stageRuleEnd
	stageRuleCount
)

const (
	cbGeneratePrefix   = "generate:"
	cbPausePrefix      = "pause:"
	cbResumePrefix     = "resume:"
	cbRuleDeletePrefix = "delrule:"
	cbCompletePrefix   = "complete:"
	cbTplDeletePrefix  = "deltpl:"
	cbTaskDeletePrefix = "deltask:"
)

const (
	btnSkip         = "⏭️ Пропустить"
	btnConfirm      = "✅ Подтвердить"
	btnCancel       = "↩️ Отмена"
	btnCancelDialog = "⏪ Отменить ввод"

	btnFreqDaily    = "Каждый день"
	btnFreqWeekly   = "Каждую неделю"
	btnFreqBiWeekly = "Раз в две недели"
	btnFreqMonthly  = "Каждый месяц"
	btnFreqCustom   = "Свой интервал"

	btnUnitDays   = "Дни"
	btnUnitWeeks  = "Недели"
	btnUnitMonths = "Месяцы"

	btnPriorityHigh   = "🔴 Высокий"
	btnPriorityMedium = "🟡 Средний"
	btnPriorityLow    = "🟢 Низкий"

	menuLabelNewTemplate = "➕ Шаблон"
	menuLabelRules       = "🔁 Правила"
	menuLabelTasks       = "📋 Задачи"
	menuLabelHelp        = "ℹ️ Помощь"
)

type conversationState struct {
	stage    conversationStage
	tplInput service.TemplateInput
	rulInput service.DefinitionInput
}

type confirmationAction int

const (
	actionDeleteRule confirmationAction = iota
	actionDeleteTemplate
	actionDeleteTask
)

type confirmationRequest struct {
	entityID uint
	action   confirmationAction
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	templateSvc   *service.TemplateService
	definitionSvc *service.DefinitionService
	taskSvc       *service.TaskService
	summarySvc    *service.SummaryService
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, templateSvc *service.TemplateService, definitionSvc *service.DefinitionService, taskSvc *service.TaskService, summarySvc *service.SummaryService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		templateSvc:   templateSvc,
		definitionSvc: definitionSvc,
		taskSvc:       taskSvc,
		summarySvc:    summarySvc,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог отменён. Начни заново, когда будешь готов.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newrule, чтобы настроить повторение, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "newtemplate":
		return b.startTemplateConversation(ctx, msg)
	case "templates":
		return b.handleListTemplates(ctx, msg)
	case "newrule":
		return b.startRuleConversation(ctx, msg)
	case "rules":
		return b.handleListRules(ctx, msg)
	case "due":
		return b.handleListDue(ctx, msg)
	case "generate":
		return b.handleGenerateCommand(ctx, msg)
	case "pause":
		return b.handlePause(ctx, msg)
	case "resume":
		return b.handleResume(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "deltask":
		return b.handleDeleteTask(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Текущий ввод отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я планировщик повторяющихся задач.</b>\n\n"+
			"Сначала создай шаблон задачи, потом правило повторения — а я буду считать, когда задача должна появиться снова.\n\n"+
			"Команды:\n"+
			"• /newtemplate — создать шаблон задачи\n"+
			"• /newrule — настроить повторение\n"+
			"• /rules — правила и ближайшие даты\n"+
			"• /due — что пора создать\n"+
			"• /tasks — текущие задачи\n"+
			"• /report — сводка на сегодня\n"+
			"• /help — подсказки",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /newtemplate — шаблон: название, описание, приоритет, теги\n" +
		"• /templates — список шаблонов\n" +
		"• /newrule — повторение: частота, дата старта, ограничения\n" +
		"• /rules — все правила, постановка на паузу и удаление\n" +
		"• /due — правила, по которым пора создать задачу\n" +
		"• /generate &lt;id&gt; — создать задачу по правилу вручную\n" +
		"• /pause &lt;id&gt; и /resume &lt;id&gt; — пауза и возобновление правила\n" +
		"• /tasks — созданные задачи, закрытие по кнопке\n" +
		"• /complete &lt;id&gt; — закрыть задачу по номеру\n" +
		"• /deltask &lt;id&gt; — удалить задачу\n" +
		"• /report — сводка: что пора создать и что не закрыто\n" +
		"• /cancel — отменить текущий ввод"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := b.definitionSvc.RefreshUser(ctx, user, now); err != nil {
		log.Printf("[warn] refresh before report user=%d: %v", user.ID, err)
	}
	text, err := b.summarySvc.DailySummary(ctx, *user, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сформировать отчёт: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		user := user
		if err := b.definitionSvc.RefreshUser(ctx, &user, now); err != nil {
			log.Printf("refresh for user %d: %v", user.TelegramID, err)
		}
		text, err := b.summarySvc.DailySummary(ctx, user, now)
		if err != nil {
			log.Printf("build summary for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("send summary to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

// --- Template conversation ---

func (b *Bot) startTemplateConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	log.Printf("[info] start template conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTplTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём шаблон задачи.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
}

// --- Rule conversation ---

func (b *Bot) startRuleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	templates, err := b.templateSvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить шаблоны: %s", escape(err.Error())))
	}
	if len(templates) == 0 {
		return b.sendText(msg.Chat.ID, "Сначала создай шаблон задачи через /newtemplate — правило повторения привязывается к шаблону.")
	}

	var builder strings.Builder
	builder.WriteString("🔁 Настраиваем повторение.\n<b>Шаг 1:</b> укажи номер шаблона:\n\n")
	for _, tpl := range templates {
		builder.WriteString(fmt.Sprintf("• <b>#%d</b> %s\n", tpl.ID, escape(normalizeTitle(tpl.Title))))
	}

	log.Printf("[info] start rule conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageRuleTemplate})
	return b.sendWithReplyMarkup(msg.Chat.ID, strings.TrimSpace(builder.String()), cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTplTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Название не может быть пустым. Попробуй ещё раз.", cancelKeyboard())
		}
		state.tplInput.Title = text
		state.stage = stageTplDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Добавь короткое описание (или нажми «Пропустить»).", skipKeyboard())
	case stageTplDescription:
		if !isSkipInput(text) {
			state.tplInput.Description = text
		}
		state.stage = stageTplPriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "⚖️ Выбери приоритет.", priorityKeyboard())
	case stageTplPriority:
		priority, ok := parsePriorityInput(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери приоритет кнопкой: высокий, средний или низкий.", priorityKeyboard())
		}
		state.tplInput.Priority = priority
		state.stage = stageTplTags
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Перечисли теги через запятую (или «Пропустить»).", skipKeyboard())
	case stageTplTags:
		if !isSkipInput(text) {
			state.tplInput.Tags = text
		}
		err := b.finishTemplateCreation(ctx, msg.From, state.tplInput, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err

	case stageRuleTemplate:
		templateID, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Номер шаблона должен быть числом, например 3.", cancelKeyboard())
		}
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		if _, err := b.templateSvc.Get(ctx, user, uint(templateID)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Шаблон с таким номером не найден. Посмотри список ещё раз: /templates.", cancelKeyboard())
			}
			return err
		}
		state.rulInput.TemplateID = uint(templateID)
		state.stage = stageRuleFrequency
		return b.sendWithReplyMarkup(msg.Chat.ID, "📅 Как часто повторять задачу?", frequencyKeyboard())
	case stageRuleFrequency:
		frequency, ok := parseFrequencyInput(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери частоту кнопкой.", frequencyKeyboard())
		}
		state.rulInput.Frequency = frequency
		if frequency == model.FrequencyCustom {
			state.stage = stageRuleInterval
			return b.sendWithReplyMarkup(msg.Chat.ID, "🔢 Каждые сколько? Укажи число, например 3.", cancelKeyboard())
		}
		state.stage = stageRuleStart
		return b.sendWithReplyMarkup(msg.Chat.ID, "🗓 С какой даты начать? Формат <code>2025-11-30</code> («Пропустить» = с сегодняшнего дня).", skipKeyboard())
	case stageRuleInterval:
		interval, err := strconv.Atoi(text)
		if err != nil || interval < 1 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Интервал должен быть положительным числом.", cancelKeyboard())
		}
		state.rulInput.Interval = interval
		state.stage = stageRuleUnit
		return b.sendWithReplyMarkup(msg.Chat.ID, "📐 В чём считать интервал?", unitKeyboard())
	case stageRuleUnit:
		unit, ok := parseUnitInput(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Выбери единицу кнопкой: дни, недели или месяцы.", unitKeyboard())
		}
		state.rulInput.IntervalUnit = unit
		state.stage = stageRuleStart
		return b.sendWithReplyMarkup(msg.Chat.ID, "🗓 С какой даты начать? Формат <code>2025-11-30</code> («Пропустить» = с сегодняшнего дня).", skipKeyboard())
	case stageRuleStart:
		if isSkipInput(text) {
			state.rulInput.AnchorStart = todayUTC()
		} else {
			parsed, err := time.Parse("2006-01-02", text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2025-11-30</code> или «Пропустить».", skipKeyboard())
			}
			state.rulInput.AnchorStart = parsed
		}
		state.stage = stageRuleEnd
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏁 До какой даты повторять? Формат <code>2026-11-30</code> (или «Пропустить» — без ограничения).", skipKeyboard())
	case stageRuleEnd:
		if !isSkipInput(text) {
			parsed, err := time.Parse("2006-01-02", text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2026-11-30</code> или «Пропустить».", skipKeyboard())
			}
			state.rulInput.EndBound = &parsed
		}
		state.stage = stageRuleCount
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔂 Сколько раз повторить максимум? Число (или «Пропустить» — без ограничения).", skipKeyboard())
	case stageRuleCount:
		if !isSkipInput(text) {
			count, err := strconv.Atoi(text)
			if err != nil || count < 1 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Количество должно быть положительным числом.", skipKeyboard())
			}
			state.rulInput.CountBound = &count
		}
		err := b.finishRuleCreation(ctx, msg.From, state.rulInput, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err

	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /newrule.")
	}
}

func (b *Bot) finishTemplateCreation(ctx context.Context, from *tgbotapi.User, input service.TemplateInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	tpl, err := b.templateSvc.Create(ctx, user, input)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сохранить шаблон: %s", escape(err.Error())))
	}

	log.Printf("[info] template created id=%d user=%d", tpl.ID, user.ID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Шаблон сохранён</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", tpl.ID))
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(tpl.Title))))
	if tpl.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Описание:</b> %s\n", escape(tpl.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Приоритет:</b> %s\n", priorityLabel(tpl.Priority)))
	if tpl.Tags != "" {
		summary.WriteString(fmt.Sprintf("• <b>Теги:</b> %s\n", escape(tpl.Tags)))
	}
	summary.WriteString("\nТеперь настрой повторение: /newrule")

	reply := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	reply.ReplyMarkup = mainMenuKeyboard()
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) finishRuleCreation(ctx context.Context, from *tgbotapi.User, input service.DefinitionInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	def, err := b.definitionSvc.Create(ctx, user, input)
	if err != nil {
		if errors.Is(err, recurrence.ErrInvalidRule) {
			return b.sendText(chatID, fmt.Sprintf("Правило не прошло проверку: %s", escape(err.Error())))
		}
		return b.sendText(chatID, fmt.Sprintf("Не удалось сохранить правило: %s", escape(err.Error())))
	}

	log.Printf("[info] rule created id=%d user=%d frequency=%s", def.ID, user.ID, def.Rule.Frequency)

	now := time.Now().UTC()
	if err := b.definitionSvc.RefreshUser(ctx, user, now); err != nil {
		log.Printf("[warn] refresh after rule creation user=%d: %v", user.ID, err)
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Правило сохранено</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", def.ID))
	summary.WriteString(fmt.Sprintf("• <b>Повтор:</b> %s\n", frequencyLabel(def.Rule)))
	summary.WriteString(fmt.Sprintf("• <b>Старт:</b> %s\n", def.Rule.AnchorStart.Format("2006-01-02")))
	if def.Rule.EndBound != nil {
		summary.WriteString(fmt.Sprintf("• <b>До:</b> %s\n", def.Rule.EndBound.Format("2006-01-02")))
	}
	if def.Rule.CountBound != nil {
		summary.WriteString(fmt.Sprintf("• <b>Максимум повторов:</b> %d\n", *def.Rule.CountBound))
	}

	reply := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	reply.ReplyMarkup = mainMenuKeyboard()
	reply.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(reply); err != nil {
		return err
	}
	return b.sendRuleList(ctx, chatID, user)
}

// --- Listings ---

func (b *Bot) handleListTemplates(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	templates, err := b.templateSvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить шаблоны: %s", escape(err.Error())))
	}
	if len(templates) == 0 {
		return b.sendText(msg.Chat.ID, "Шаблонов пока нет. Создай первый через /newtemplate.")
	}

	var builder strings.Builder
	builder.WriteString("📁 <b>Шаблоны задач</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, tpl := range templates {
		builder.WriteString(fmt.Sprintf("• <b>#%d</b> %s · %s\n", tpl.ID, escape(normalizeTitle(tpl.Title)), priorityLabel(tpl.Priority)))
		if tpl.Tags != "" {
			builder.WriteString(fmt.Sprintf("   🏷 %s\n", escape(tpl.Tags)))
		}
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🗑 #%d · %s", tpl.ID, shortTitle(tpl.Title, 20)), fmt.Sprintf("%s%d", cbTplDeletePrefix, tpl.ID)),
		})
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) handleListRules(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendRuleList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendRuleList(ctx context.Context, chatID int64, user *model.User) error {
	now := time.Now().UTC()
	if err := b.definitionSvc.RefreshUser(ctx, user, now); err != nil {
		log.Printf("[warn] refresh before rule list user=%d: %v", user.ID, err)
	}

	defs, err := b.definitionSvc.List(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить правила: %s", escape(err.Error())))
	}
	if len(defs) == 0 {
		return b.sendText(chatID, "Правил пока нет. Настрой первое через /newrule.")
	}

	tplTitles, err := b.templateTitles(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить шаблоны: %s", escape(err.Error())))
	}

	var builder strings.Builder
	builder.WriteString("🔁 <b>Правила повторения</b>\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, def := range defs {
		builder.WriteString(formatDefinition(def, tplTitles, now))

		var row []tgbotapi.InlineKeyboardButton
		switch {
		case def.Active && def.NextDueAt != nil && !now.Before(*def.NextDueAt):
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("▶️ Создать #%d", def.ID), fmt.Sprintf("%s%d", cbGeneratePrefix, def.ID)))
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("⏸ Пауза", fmt.Sprintf("%s%d", cbPausePrefix, def.ID)))
		case def.Active:
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("⏸ Пауза #%d", def.ID), fmt.Sprintf("%s%d", cbPausePrefix, def.ID)))
		default:
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("▶️ Возобновить #%d", def.ID), fmt.Sprintf("%s%d", cbResumePrefix, def.ID)))
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbRuleDeletePrefix, def.ID)))
		buttons = append(buttons, row)
	}

	reply := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) handleListDue(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := b.definitionSvc.RefreshUser(ctx, user, now); err != nil {
		log.Printf("[warn] refresh before due list user=%d: %v", user.ID, err)
	}

	defs, err := b.definitionSvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить правила: %s", escape(err.Error())))
	}

	tplTitles, err := b.templateTitles(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось получить шаблоны: %s", escape(err.Error())))
	}

	var builder strings.Builder
	builder.WriteString("🔔 <b>Пора создать задачи</b>\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	dueCount := 0
	for _, def := range defs {
		if !def.Active || def.NextDueAt == nil || now.Before(*def.NextDueAt) {
			continue
		}
		dueCount++
		builder.WriteString(formatDefinition(def, tplTitles, now))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("▶️ Создать #%d", def.ID), fmt.Sprintf("%s%d", cbGeneratePrefix, def.ID)),
		})
	}

	if dueCount == 0 {
		return b.sendText(msg.Chat.ID, "Сейчас ничего не ждёт создания. Загляни в /rules за ближайшими датами.")
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListPending(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "Открытых задач нет. Загляни в /due — возможно, пора создать новую.")
	}

	now := time.Now().UTC()
	var builder strings.Builder
	builder.WriteString("📋 <b>Текущие задачи</b>\nНажми на кнопку, чтобы закрыть задачу.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(formatTask(task, now))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbTaskDeletePrefix, task.ID)),
		})
	}

	reply := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

// --- Commands over ids ---

func (b *Bot) handleGenerateCommand(ctx context.Context, msg *tgbotapi.Message) error {
	defID, ok := b.parseIDArgument(msg, "Укажи номер правила: /generate 12")
	if !ok {
		return nil
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.generateAndReply(ctx, msg.Chat.ID, user, defID)
}

func (b *Bot) generateAndReply(ctx context.Context, chatID int64, user *model.User, defID uint) error {
	task, _, err := b.definitionSvc.GenerateInstance(ctx, user, defID, time.Now().UTC())
	switch {
	case err == nil:
	case errors.Is(err, recurrence.ErrNotYetDue):
		return b.sendText(chatID, "Срок ещё не наступил — создавать пока нечего. Ближайшие даты в /rules.")
	case errors.Is(err, recurrence.ErrDefinitionInactive):
		return b.sendText(chatID, "Правило завершено или стоит на паузе. Возобновить: /resume.")
	case errors.Is(err, recurrence.ErrTemplateUnavailable):
		return b.sendText(chatID, "Шаблон этого правила удалён — задачу не из чего создать. Удали правило или создай шаблон заново.")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return b.sendText(chatID, "Правило не найдено.")
	default:
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	info := fmt.Sprintf("✅ Задача «%s» создана, срок %s.", escape(normalizeTitle(task.Title)), task.DueAt.Format("2006-01-02"))
	if err := b.sendText(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handlePause(ctx context.Context, msg *tgbotapi.Message) error {
	defID, ok := b.parseIDArgument(msg, "Укажи номер правила: /pause 12")
	if !ok {
		return nil
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	def, err := b.definitionSvc.Deactivate(ctx, user, defID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Правило не найдено.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	log.Printf("[info] rule paused id=%d user=%d", def.ID, user.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏸ Правило #%d поставлено на паузу. Возобновить: /resume %d.", def.ID, def.ID))
}

func (b *Bot) handleResume(ctx context.Context, msg *tgbotapi.Message) error {
	defID, ok := b.parseIDArgument(msg, "Укажи номер правила: /resume 12")
	if !ok {
		return nil
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	def, err := b.definitionSvc.Reactivate(ctx, user, defID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Правило не найдено.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	log.Printf("[info] rule resumed id=%d user=%d", def.ID, user.ID)
	if err := b.sendText(msg.Chat.ID, fmt.Sprintf("▶️ Правило #%d снова активно.", def.ID)); err != nil {
		return err
	}
	return b.sendRuleList(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok := b.parseIDArgument(msg, "Укажи номер задачи: /complete 12")
	if !ok {
		return nil
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.completeTaskAndRefresh(ctx, msg.Chat.ID, user, taskID)
}

func (b *Bot) handleDeleteTask(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, ok := b.parseIDArgument(msg, "Укажи номер задачи: /deltask 12")
	if !ok {
		return nil
	}
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	text := fmt.Sprintf("Удалить задачу #%d?", taskID)
	b.setConfirmation(msg.From.ID, confirmationRequest{entityID: taskID, action: actionDeleteTask})
	return b.sendWithReplyMarkup(msg.Chat.ID, text, confirmKeyboard())
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.taskSvc.Get(ctx, user, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Задача не найдена или уже удалена.")
		}
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	if task.Status == model.StatusDone {
		return b.sendText(chatID, "Задача уже была закрыта.")
	}

	task, err = b.taskSvc.Complete(ctx, user, taskID, time.Now().UTC())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}

	log.Printf("[info] task completed id=%d user=%d", task.ID, user.ID)
	return b.sendText(chatID, fmt.Sprintf("✅ Задача «%s» закрыта.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) parseIDArgument(msg *tgbotapi.Message, usage string) (uint, bool) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		_ = b.sendText(msg.Chat.ID, usage)
		return 0, false
	}
	id64, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		_ = b.sendText(msg.Chat.ID, "Номер должен быть числом.")
		return 0, false
	}
	return uint(id64), true
}

// --- Callbacks and confirmations ---

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID

	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}

	switch {
	case strings.HasPrefix(data, cbGeneratePrefix):
		defID, err := parseEntityID(data, cbGeneratePrefix)
		if err != nil {
			return nil
		}
		log.Printf("[info] callback generate user=%d rule=%d", cb.From.ID, defID)
		return b.generateAndReply(ctx, chatID, user, defID)
	case strings.HasPrefix(data, cbPausePrefix):
		defID, err := parseEntityID(data, cbPausePrefix)
		if err != nil {
			return nil
		}
		if _, err := b.definitionSvc.Deactivate(ctx, user, defID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendText(chatID, "Правило не найдено.")
			}
			return err
		}
		log.Printf("[info] rule paused id=%d user=%d", defID, user.ID)
		return b.sendRuleList(ctx, chatID, user)
	case strings.HasPrefix(data, cbResumePrefix):
		defID, err := parseEntityID(data, cbResumePrefix)
		if err != nil {
			return nil
		}
		if _, err := b.definitionSvc.Reactivate(ctx, user, defID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendText(chatID, "Правило не найдено.")
			}
			return err
		}
		log.Printf("[info] rule resumed id=%d user=%d", defID, user.ID)
		return b.sendRuleList(ctx, chatID, user)
	case strings.HasPrefix(data, cbRuleDeletePrefix):
		defID, err := parseEntityID(data, cbRuleDeletePrefix)
		if err != nil {
			return nil
		}
		text := fmt.Sprintf("Удалить правило #%d? Уже созданные задачи останутся.", defID)
		b.setConfirmation(cb.From.ID, confirmationRequest{entityID: defID, action: actionDeleteRule})
		return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
	case strings.HasPrefix(data, cbTplDeletePrefix):
		tplID, err := parseEntityID(data, cbTplDeletePrefix)
		if err != nil {
			return nil
		}
		text := fmt.Sprintf("Удалить шаблон #%d? Правила на его основе перестанут создавать задачи.", tplID)
		b.setConfirmation(cb.From.ID, confirmationRequest{entityID: tplID, action: actionDeleteTemplate})
		return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
	case strings.HasPrefix(data, cbTaskDeletePrefix):
		taskID, err := parseEntityID(data, cbTaskDeletePrefix)
		if err != nil {
			return nil
		}
		text := fmt.Sprintf("Удалить задачу #%d?", taskID)
		b.setConfirmation(cb.From.ID, confirmationRequest{entityID: taskID, action: actionDeleteTask})
		return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseEntityID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.completeTaskAndRefresh(ctx, chatID, user, taskID)
	default:
		return nil
	}
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		user, err := b.ensureUser(ctx, msg.From)
		if err != nil {
			return err
		}
		switch req.action {
		case actionDeleteTemplate:
			if err := b.templateSvc.Delete(ctx, user, req.entityID); err != nil {
				return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
			}
			log.Printf("[info] template deleted id=%d user=%d", req.entityID, user.ID)
			return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Шаблон #%d удалён.", req.entityID))
		case actionDeleteTask:
			if err := b.taskSvc.Delete(ctx, user, req.entityID); err != nil {
				return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
			}
			log.Printf("[info] task deleted id=%d user=%d", req.entityID, user.ID)
			return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Задача #%d удалена.", req.entityID))
		default:
			if err := b.definitionSvc.Delete(ctx, user, req.entityID); err != nil {
				return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
			}
			log.Printf("[info] rule deleted id=%d user=%d", req.entityID, user.ID)
			return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Правило #%d удалено.", req.entityID))
		}
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Удаление отменено.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Подтверди или отмени удаление.", confirmKeyboard())
	}
}

// --- Plumbing ---

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) templateTitles(ctx context.Context, user *model.User) (map[uint]string, error) {
	templates, err := b.templateSvc.List(ctx, user)
	if err != nil {
		return nil, err
	}
	titles := make(map[uint]string, len(templates))
	for _, tpl := range templates {
		titles[tpl.ID] = tpl.Title
	}
	return titles, nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTemplate):
		return true, b.startTemplateConversation(ctx, msg)
	case strings.ToLower(menuLabelRules):
		return true, b.handleListRules(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func parseEntityID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// --- Keyboards ---

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTemplate),
			tgbotapi.NewKeyboardButton(menuLabelRules),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func frequencyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFreqDaily),
			tgbotapi.NewKeyboardButton(btnFreqWeekly),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFreqBiWeekly),
			tgbotapi.NewKeyboardButton(btnFreqMonthly),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFreqCustom),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func unitKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnUnitDays),
			tgbotapi.NewKeyboardButton(btnUnitWeeks),
			tgbotapi.NewKeyboardButton(btnUnitMonths),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnPriorityHigh),
			tgbotapi.NewKeyboardButton(btnPriorityMedium),
			tgbotapi.NewKeyboardButton(btnPriorityLow),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// --- Input parsing ---

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "подтвердить" || value == "да"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод"
}

func parseFrequencyInput(text string) (model.Frequency, bool) {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case strings.ToLower(btnFreqDaily), "daily":
		return model.FrequencyDaily, true
	case strings.ToLower(btnFreqWeekly), "weekly":
		return model.FrequencyWeekly, true
	case strings.ToLower(btnFreqBiWeekly), "biweekly":
		return model.FrequencyBiWeekly, true
	case strings.ToLower(btnFreqMonthly), "monthly":
		return model.FrequencyMonthly, true
	case strings.ToLower(btnFreqCustom), "custom":
		return model.FrequencyCustom, true
	default:
		return "", false
	}
}

func parseUnitInput(text string) (model.IntervalUnit, bool) {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case strings.ToLower(btnUnitDays), "дни", "days":
		return model.UnitDays, true
	case strings.ToLower(btnUnitWeeks), "недели", "weeks":
		return model.UnitWeeks, true
	case strings.ToLower(btnUnitMonths), "месяцы", "months":
		return model.UnitMonths, true
	default:
		return "", false
	}
}

func parsePriorityInput(text string) (model.Priority, bool) {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case strings.ToLower(btnPriorityHigh), "высокий", "high":
		return model.PriorityHigh, true
	case strings.ToLower(btnPriorityMedium), "средний", "medium":
		return model.PriorityMedium, true
	case strings.ToLower(btnPriorityLow), "низкий", "low":
		return model.PriorityLow, true
	default:
		return "", false
	}
}

// --- Formatting ---

func formatDefinition(def model.RecurringTaskDefinition, tplTitles map[uint]string, now time.Time) string {
	var sb strings.Builder

	title, ok := tplTitles[def.TemplateID]
	if !ok || strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("шаблон #%d недоступен", def.TemplateID)
	}

	icon := "🔁"
	if !def.Active {
		icon = "⏹"
	} else if def.NextDueAt != nil && !now.Before(*def.NextDueAt) {
		icon = "🔔"
	}

	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, def.ID, escape(normalizeTitle(title))))
	sb.WriteString(fmt.Sprintf("   🔄 %s\n", frequencyLabel(def.Rule)))

	switch {
	case !def.Active:
		sb.WriteString("   ⏹ Правило завершено или на паузе\n")
	case def.NextDueAt == nil:
		sb.WriteString("   ⏳ Дата ещё не рассчитана\n")
	case now.Before(*def.NextDueAt):
		sb.WriteString(fmt.Sprintf("   📆 Ближайшая дата: %s\n", def.NextDueAt.Format("2006-01-02")))
	default:
		sb.WriteString(fmt.Sprintf("   🔔 Пора создать задачу (срок %s)\n", def.NextDueAt.Format("2006-01-02")))
	}

	if def.Rule.EndBound != nil {
		sb.WriteString(fmt.Sprintf("   🏁 До: %s\n", def.Rule.EndBound.Format("2006-01-02")))
	}
	if def.Rule.CountBound != nil {
		sb.WriteString(fmt.Sprintf("   🔂 Повторов: %d из %d\n", recurrence.GeneratedCount(def), *def.Rule.CountBound))
	}
	if def.LastGeneratedAt != nil {
		sb.WriteString(fmt.Sprintf("   ✅ Последняя задача: %s\n", def.LastGeneratedAt.Format("2006-01-02")))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func frequencyLabel(rule model.RecurrenceRule) string {
	switch rule.Frequency {
	case model.FrequencyDaily:
		return "каждый день"
	case model.FrequencyWeekly:
		return "каждую неделю"
	case model.FrequencyBiWeekly:
		return "раз в две недели"
	case model.FrequencyMonthly:
		return "каждый месяц"
	case model.FrequencyCustom:
		unit := "дн."
		switch rule.IntervalUnit {
		case model.UnitWeeks:
			unit = "нед."
		case model.UnitMonths:
			unit = "мес."
		}
		return fmt.Sprintf("каждые %d %s", rule.Interval, unit)
	default:
		return string(rule.Frequency)
	}
}

func priorityLabel(priority model.Priority) string {
	switch priority {
	case model.PriorityHigh:
		return "🔴 высокий"
	case model.PriorityLow:
		return "🟢 низкий"
	default:
		return "🟡 средний"
	}
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder
	icon := "🟢"
	if task.DueAt != nil {
		d := task.DueAt.In(now.Location())
		if now.After(d) {
			icon = "⚠️"
		} else if d.Sub(now) <= 48*time.Hour {
			icon = "⏳"
		}
	}
	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s · %s\n", icon, task.ID, escape(normalizeTitle(task.Title)), priorityLabel(task.Priority)))
	if task.DueAt != nil {
		d := task.DueAt.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("   ⏰ Срок: %s — <b>просрочено</b>\n", d.Format("2006-01-02")))
		} else {
			sb.WriteString(fmt.Sprintf("   ⏰ Срок: %s\n", d.Format("2006-01-02")))
		}
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	if task.Tags != "" {
		sb.WriteString(fmt.Sprintf("   🏷 %s\n", escape(task.Tags)))
	}
	sb.WriteByte('\n')
	return sb.String()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func todayUTC() time.Time {
	now := time.Now().UTC()
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func escape(s string) string {
	return html.EscapeString(s)
}
