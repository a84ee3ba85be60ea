package repositories

import "context"

// Repository aggregates all domain repositories behind one handle.
type Repository interface {
	Exam() ExamRepository
	Attempt() AttemptRepository
	Submission() SubmissionRepository
	Pool() PoolRepository
	User() UserRepository
	Dashboard() DashboardRepository

	// WithTransaction runs fn with a Repository whose operations share one
	// database transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
