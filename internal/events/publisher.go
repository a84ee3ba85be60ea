// Package events publishes domain events to the message broker. Publishing is
// best effort: a broker outage never fails the request that triggered the
// event.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the service.
const (
	EventExamPublished       = "exam.published"
	EventSubmissionCompleted = "submission.completed"
	EventSubmissionReviewed  = "submission.reviewed"
)

// Event is the envelope every published message shares.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent wraps a payload in the standard envelope.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "exam-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ExamPublishedEvent announces an exam going live.
type ExamPublishedEvent struct {
	ExamID    uint   `json:"exam_id"`
	Title     string `json:"title"`
	TeacherID string `json:"teacher_id"`
	Duration  int    `json:"duration"`
}

// SubmissionCompletedEvent announces a graded submission.
type SubmissionCompletedEvent struct {
	SubmissionID  uint   `json:"submission_id"`
	ExamID        uint   `json:"exam_id"`
	StudentID     string `json:"student_id"`
	TeacherID     string `json:"teacher_id"`
	Score         int    `json:"score"`
	Passed        bool   `json:"passed"`
	AutoSubmitted bool   `json:"auto_submitted"`
}

// SubmissionReviewedEvent announces a teacher finishing review.
type SubmissionReviewedEvent struct {
	SubmissionID uint   `json:"submission_id"`
	ExamID       uint   `json:"exam_id"`
	StudentID    string `json:"student_id"`
	ReviewedBy   string `json:"reviewed_by"`
	Score        int    `json:"score"`
}

// EventPublisher is implemented by the Kafka publisher and the test mock.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// MockEventPublisher records events in memory for tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (m *MockEventPublisher) Publish(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if m.logger != nil {
		m.logger.Debug("mock event published", "event_type", event.Type, "event_id", event.ID)
	}
	return nil
}

func (m *MockEventPublisher) Close() error { return nil }

// GetPublishedEvents returns a copy of everything published so far.
func (m *MockEventPublisher) GetPublishedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// ClearEvents resets the recorded events.
func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// NoopEventPublisher is used when no broker is configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NoopEventPublisher) Close() error                                   { return nil }
