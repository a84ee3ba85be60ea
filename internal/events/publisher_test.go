package events

import (
	"context"
	"log/slog"
	"os"
	"testing"
)

func TestMockEventPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	publisher := NewMockEventPublisher(logger)

	t.Run("records published events", func(t *testing.T) {
		publisher.ClearEvents()

		event := NewEvent(EventExamPublished, ExamPublishedEvent{
			ExamID:    42,
			Title:     "Algebra Midterm",
			TeacherID: "teacher-1",
			Duration:  45,
		})
		if err := publisher.Publish(context.Background(), event); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		recorded := publisher.GetPublishedEvents()
		if len(recorded) != 1 {
			t.Fatalf("expected 1 event, got %d", len(recorded))
		}
		if recorded[0].Type != EventExamPublished {
			t.Errorf("event type = %s, want %s", recorded[0].Type, EventExamPublished)
		}
		if recorded[0].Source != "exam-service" {
			t.Errorf("event source = %s, want exam-service", recorded[0].Source)
		}
		if recorded[0].Version != "1.0" {
			t.Errorf("event version = %s, want 1.0", recorded[0].Version)
		}
		if recorded[0].ID == "" {
			t.Error("event ID should not be empty")
		}
		if recorded[0].Timestamp.IsZero() {
			t.Error("event timestamp should be set")
		}
	})

	t.Run("clear removes recorded events", func(t *testing.T) {
		publisher.ClearEvents()
		_ = publisher.Publish(context.Background(), NewEvent(EventSubmissionCompleted, nil))
		_ = publisher.Publish(context.Background(), NewEvent(EventSubmissionReviewed, nil))

		if got := len(publisher.GetPublishedEvents()); got != 2 {
			t.Fatalf("expected 2 events, got %d", got)
		}
		publisher.ClearEvents()
		if got := len(publisher.GetPublishedEvents()); got != 0 {
			t.Errorf("expected 0 events after clear, got %d", got)
		}
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		publisher.ClearEvents()
		_ = publisher.Publish(context.Background(), NewEvent(EventExamPublished, nil))

		recorded := publisher.GetPublishedEvents()
		recorded[0].Type = "mutated"

		if publisher.GetPublishedEvents()[0].Type != EventExamPublished {
			t.Error("mutating the returned slice should not affect stored events")
		}
	})
}

func TestNewEvent(t *testing.T) {
	first := NewEvent(EventSubmissionCompleted, SubmissionCompletedEvent{SubmissionID: 1})
	second := NewEvent(EventSubmissionCompleted, SubmissionCompletedEvent{SubmissionID: 2})

	if first.ID == second.ID {
		t.Error("events should get unique IDs")
	}
}
