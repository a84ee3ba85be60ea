package engine

import "math"

// ScoredQuestion carries the grading key for one question, in original order.
type ScoredQuestion struct {
	Points       int
	CorrectIndex int
}

// Result is the outcome of grading one attempt.
type Result struct {
	EarnedPoints   int
	TotalPoints    int
	Score          int // percentage, rounded half away from zero, always in [0,100]
	CorrectCount   int
	AnsweredCount  int
	QuestionsCount int
}

// Score grades an answer set against the question list. Answers are keyed by
// ORIGINAL question index; unanswered questions earn zero. A question is all
// or nothing: full points when the selected option equals the correct index.
// An exam with zero total points scores 0.
func Score(questions []ScoredQuestion, answers map[int]int) Result {
	r := Result{QuestionsCount: len(questions)}
	for i, q := range questions {
		r.TotalPoints += q.Points
		selected, ok := answers[i]
		if !ok {
			continue
		}
		r.AnsweredCount++
		if selected == q.CorrectIndex {
			r.EarnedPoints += q.Points
			r.CorrectCount++
		}
	}
	r.Score = Percentage(r.EarnedPoints, r.TotalPoints)
	return r
}

// ScoreWithOverrides grades like Score, then replaces the earned points of any
// question present in overrides with the awarded value. Overrides are keyed by
// original index; an override is clamped to [0, question points].
func ScoreWithOverrides(questions []ScoredQuestion, answers map[int]int, overrides map[int]int) Result {
	r := Result{QuestionsCount: len(questions)}
	for i, q := range questions {
		r.TotalPoints += q.Points
		selected, answered := answers[i]
		if answered {
			r.AnsweredCount++
		}
		earned := 0
		if answered && selected == q.CorrectIndex {
			earned = q.Points
			r.CorrectCount++
		}
		if awarded, ok := overrides[i]; ok {
			if awarded < 0 {
				awarded = 0
			}
			if awarded > q.Points {
				awarded = q.Points
			}
			earned = awarded
		}
		r.EarnedPoints += earned
	}
	r.Score = Percentage(r.EarnedPoints, r.TotalPoints)
	return r
}

// Percentage converts earned/total points to an integer percentage, rounding
// half away from zero. total <= 0 yields 0.
func Percentage(earned, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(earned) * 100 / float64(total)))
}

// Passed applies the inclusive passing boundary: a score equal to the passing
// score passes.
func Passed(score, passingScore int) bool {
	return score >= passingScore
}
