package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/quizdesk/exam-service/internal/events"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	EnableDebugLogging bool
	LogLevel           slog.Level

	// Background timeout sweeper
	SweepInterval time.Duration

	DefaultTimeout time.Duration
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	config    ServiceManagerConfig

	// Service instances
	examService      ExamService
	attemptService   AttemptService
	poolService      PoolService
	importService    ImportService
	reviewService    ReviewService
	studentService   StudentService
	dashboardService DashboardService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: v,
		publisher: publisher,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,
		SweepInterval:      15 * time.Second,
		DefaultTimeout:     30 * time.Second,
	}
	return NewServiceManager(db, repo, logger, v, publisher, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.examService = NewExamService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
	sm.attemptService = NewAttemptService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
	sm.poolService = NewPoolService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.importService = NewImportService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.reviewService = NewReviewService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
	sm.studentService = NewStudentService(sm.repo, sm.db, sm.logger, sm.validator, sm.examService, sm.reviewService)
	sm.dashboardService = NewDashboardService(sm.repo, sm.db, sm.logger)

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

// HealthCheck verifies all services are operational
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	return sm.repo.Ping(ctx)
}

// Shutdown gracefully stops all services
func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down")
	return nil
}

// ===== SERVICE GETTERS =====

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.examService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.attemptService
}

func (sm *serviceManager) Pool() PoolService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.poolService
}

func (sm *serviceManager) Import() ImportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.importService
}

func (sm *serviceManager) Review() ReviewService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.reviewService
}

func (sm *serviceManager) Student() StudentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.studentService
}

func (sm *serviceManager) Dashboard() DashboardService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.dashboardService
}

// SweepInterval exposes the configured sweep cadence for the background
// timeout worker in main.
func (sm *serviceManager) SweepInterval() time.Duration {
	if sm.config.SweepInterval <= 0 {
		return 15 * time.Second
	}
	return sm.config.SweepInterval
}
