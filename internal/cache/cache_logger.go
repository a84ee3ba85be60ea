package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a cache pattern, logging instead of
// propagating failures. Cache invalidation must never fail a write path.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes cache keys, logging instead of propagating failures.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateExamCache drops everything cached for one exam: the exam itself,
// the creator's listings, and the exam's aggregated stats.
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID uint, creatorID string) {
	SafeDelete(ctx, cm.Exam,
		fmt.Sprintf("id:%d", examID),
		fmt.Sprintf("details:%d", examID))

	SafeInvalidatePattern(ctx, cm.Exam, fmt.Sprintf("creator:%s:*", creatorID))
	SafeInvalidatePattern(ctx, cm.Exam, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%d:*", examID))
}

// InvalidatePoolCache drops cached pool entries and listings for a teacher.
func InvalidatePoolCache(ctx context.Context, cm *CacheManager, entryID uint, teacherID string) {
	SafeDelete(ctx, cm.Pool, fmt.Sprintf("id:%d", entryID))
	SafeInvalidatePattern(ctx, cm.Pool, fmt.Sprintf("teacher:%s:*", teacherID))
}

// InvalidateSubmissionCache drops stats derived from an exam's submissions.
// Called after every completed or reviewed submission.
func InvalidateSubmissionCache(ctx context.Context, cm *CacheManager, examID uint, studentID string) {
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%d:*", examID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("student:%s:*", studentID))
	SafeInvalidatePattern(ctx, cm.Stats, "teacher:*")
}
