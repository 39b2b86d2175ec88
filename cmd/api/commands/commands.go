package commands

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/taskpilot/core/internal/adapters/notify"
	"github.com/taskpilot/core/internal/adapters/repository"
	"github.com/taskpilot/core/internal/application/services"
	"github.com/taskpilot/core/internal/infrastructure/config"
	"github.com/taskpilot/core/internal/infrastructure/database"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/infrastructure/metrics"
	"github.com/taskpilot/core/internal/infrastructure/server"
	"github.com/taskpilot/core/internal/ports"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the TaskPilot API server",
		Long:  "Start the TaskPilot API server with the reminder scheduler and all configured routes",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up", 0)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down", 0)
		},
	})

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	}
	migrateCmd.AddCommand(versionCmd)

	return migrateCmd
}

// NewNotifyCommand creates the notify command, a one-shot reminder tick
// for cron jobs that prefer a process over an HTTP call.
func NewNotifyCommand() *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Run one reminder tick and exit",
		Long:  "Materialize due recurring tasks, send any windowed reminders, then exit",
		Run: func(cmd *cobra.Command, args []string) {
			testMode, _ := cmd.Flags().GetBool("test")
			runNotifyTick(testMode)
		},
	}

	notifyCmd.Flags().Bool("test", false, "Send immediately, bypassing the window and the dedup ledger")

	return notifyCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print TaskPilot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("TaskPilot Core v1.0.0")
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	db, err := database.New(cfg.Database)
	if err != nil {
		appLogger.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	srv, err := server.New(cfg, db, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	appLogger.Infow("Starting TaskPilot API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
	)

	if err := srv.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		appLogger.Fatalw("Server failed to start", "error", err)
	}
}

func runNotifyTick(testMode bool) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	db, err := database.New(cfg.Database)
	if err != nil {
		appLogger.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	taskRepo := repository.NewTaskRepository(db)
	ledgerRepo := repository.NewNotificationLogRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	var emailSender ports.EmailSender
	if cfg.Notifications.ResendAPIKey != "" {
		emailSender = notify.NewResendEmailSender(cfg.Notifications.ResendAPIKey, cfg.Notifications.EmailFrom)
	}

	var smsSender ports.SMSSender
	if cfg.Notifications.TwilioAccountSID != "" {
		smsSender = notify.NewTwilioSMSSender(
			cfg.Notifications.TwilioAccountSID,
			cfg.Notifications.TwilioAuthToken,
			cfg.Notifications.TwilioFromNumber,
		)
	}

	m := metrics.NewUnregistered()
	recurrenceService := services.NewRecurrenceService(taskRepo, appLogger, m)
	dispatchService := services.NewDispatchService(emailSender, smsSender, cfg.Notifications, appLogger, m)
	reminderService := services.NewReminderService(
		taskRepo, ledgerRepo, settingsRepo,
		recurrenceService, dispatchService,
		cfg.Notifications, nil, appLogger, m,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	resp, err := reminderService.RunTick(ctx, ports.TriggerRequest{TestMode: testMode})
	if err != nil {
		appLogger.Fatalw("Reminder tick failed", "error", err)
	}

	fmt.Println(resp.Message)
}

func runMigration(direction string, steps int) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Migration failed: %v", err)
	}

	if err == migrate.ErrNoChange {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}
