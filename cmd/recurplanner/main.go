package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recur-planner/internal/bot"
	"recur-planner/internal/config"
	"recur-planner/internal/repository"
	"recur-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	definitionRepo := repository.NewDefinitionRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	templateSvc := service.NewTemplateService(templateRepo)
	definitionSvc := service.NewDefinitionService(definitionRepo, templateRepo, taskRepo)
	taskSvc := service.NewTaskService(taskRepo)
	summarySvc := service.NewSummaryService(definitionRepo, templateRepo, taskRepo)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, templateSvc, definitionSvc, taskSvc, summarySvc)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.RefreshInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		changed, err := definitionSvc.RefreshAll(jobCtx, time.Now().UTC())
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("refresh sweep: %v", err)
			return
		}
		if changed > 0 {
			log.Printf("[info] refresh sweep advanced %d definitions", changed)
		}
	}); err != nil {
		log.Fatalf("schedule refresh: %v", err)
	}
	if _, err := scheduler.ScheduleDaily(cfg.ReportTime, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("report: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule reports: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Recurring task planner started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
