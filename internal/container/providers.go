package container

import (
	"database/sql"
	"fmt"

	"github.com/garyjia/budget-gate/internal/application/dispatcher"
	"github.com/garyjia/budget-gate/internal/application/port"
	"github.com/garyjia/budget-gate/internal/application/service"
	"github.com/garyjia/budget-gate/internal/application/workflow"
	infraLark "github.com/garyjia/budget-gate/internal/infrastructure/external/lark"
	"github.com/garyjia/budget-gate/internal/infrastructure/external/openai"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/repository"
	"github.com/garyjia/budget-gate/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/budget-gate/internal/infrastructure/report"
	"github.com/garyjia/budget-gate/internal/infrastructure/worker"
	"github.com/garyjia/budget-gate/pkg/database"
	"github.com/garyjia/budget-gate/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, applies the embedded migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
		InMemory:        cfg.InMemory,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(database.Migrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Project:       repository.NewProjectRepository(sqlDB, logger),
		Expense:       repository.NewExpenseRepository(sqlDB, logger),
		PurchaseOrder: repository.NewPurchaseOrderRepository(sqlDB, logger),
		Quotation:     repository.NewQuotationRepository(sqlDB, logger),
		ActivityLog:   repository.NewActivityLogRepository(sqlDB, logger),
		Notification:  repository.NewNotificationRepository(sqlDB, logger),
		Budget:        repository.NewBudgetRepository(sqlDB, logger),
	}, nil
}

// ProvideMessenger creates the Lark message sender. It returns nil when Lark
// is not configured; notifications then stay queued.
func ProvideMessenger(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if cfg.AppID == "" {
		logger.Info("Lark not configured, notification delivery disabled")
		return nil, nil
	}

	larkCfg := infraLark.Config{
		AppID:      cfg.AppID,
		AppSecret:  cfg.AppSecret,
		RoleChats:  cfg.RoleChats,
		UserIDType: cfg.UserIDType,
	}
	client := infraLark.NewSDKClient(larkCfg, logger)
	return infraLark.NewMessenger(client, larkCfg, logger), nil
}

// ProvideNarrator creates the OpenAI alert narrator. It returns nil when no
// API key is configured.
func ProvideNarrator(cfg *OpenAIConfig, logger *zap.Logger) (port.AlertNarrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("openai config is required")
	}
	if cfg.APIKey == "" {
		logger.Info("OpenAI not configured, alert narration disabled")
		return nil, nil
	}

	prompts := openai.DefaultPrompts()
	if cfg.PromptsPath != "" {
		loaded, err := openai.LoadPrompts(cfg.PromptsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		prompts = loaded
	}
	if cfg.Temperature > 0 {
		prompts.AlertBriefing.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		prompts.AlertBriefing.MaxTokens = cfg.MaxTokens
	}

	return openai.NewNarrator(openai.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}, prompts, logger), nil
}

// ProvideDispatcher creates the event dispatcher. Async handler failures are
// reported on failures.
func ProvideDispatcher(logger *zap.Logger, failures chan<- dispatcher.Failure) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(utils.NewKVLogger(logger))}
	if failures != nil {
		opts = append(opts, dispatcher.WithFailures(failures))
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// ServiceDeps holds dependencies required for creating application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Messenger  port.MessageSender
	Narrator   port.AlertNarrator
	Anomaly    service.AnomalyConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the audit
// and notification side effects to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(deps.Logger)
	repos := deps.Repos
	gate := workflow.NewCommitmentGate(deps.TxManager)

	budget := service.NewBudgetService(repos.Budget, serviceLogger)
	bundle := &ServiceBundle{
		Budget:        budget,
		PurchaseOrder: service.NewPurchaseOrderService(repos.PurchaseOrder, repos.Expense, budget, deps.TxManager, gate, deps.Dispatcher, serviceLogger),
		Expense:       service.NewExpenseService(repos.Expense, repos.Project, gate, deps.Dispatcher, serviceLogger),
		Quotation:     service.NewQuotationService(repos.Quotation, repos.Project, deps.Dispatcher, serviceLogger),
		Anomaly: service.NewAnomalyService(repos.ActivityLog, repos.Expense, budget, deps.Narrator,
			report.NewXLSXWriter(deps.Logger), deps.Anomaly, serviceLogger),
		Audit:        service.NewAuditService(repos.ActivityLog, serviceLogger),
		Notification: service.NewNotificationService(repos.Notification, deps.Messenger, serviceLogger),
	}

	service.RegisterSideEffects(deps.Dispatcher, bundle.Audit, bundle.Notification)
	return bundle, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Config   WorkerConfig
	Services *ServiceBundle
	Failures <-chan dispatcher.Failure
	Logger   *zap.Logger
}

// ProvideWorkers creates the worker manager with the outbox and failure-drain workers.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Services == nil || deps.Services.Notification == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger)
	manager.Register(worker.NewNotificationWorker(worker.NotificationWorkerConfig{
		PollInterval: deps.Config.NotificationPollInterval,
		BatchSize:    deps.Config.NotificationBatchSize,
	}, deps.Services.Notification, deps.Logger))

	if deps.Failures != nil {
		manager.Register(worker.NewFailureWorker(deps.Failures, deps.Logger))
	}
	return manager, nil
}
