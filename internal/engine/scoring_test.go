package engine

import "testing"

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		questions  []ScoredQuestion
		answers    map[int]int
		wantEarned int
		wantTotal  int
		wantScore  int
	}{
		{
			name: "partial credit by points",
			questions: []ScoredQuestion{
				{Points: 1, CorrectIndex: 0},
				{Points: 3, CorrectIndex: 2},
			},
			answers:    map[int]int{0: 0, 1: 1},
			wantEarned: 1,
			wantTotal:  4,
			wantScore:  25,
		},
		{
			name: "all correct",
			questions: []ScoredQuestion{
				{Points: 2, CorrectIndex: 1},
				{Points: 2, CorrectIndex: 3},
			},
			answers:    map[int]int{0: 1, 1: 3},
			wantEarned: 4,
			wantTotal:  4,
			wantScore:  100,
		},
		{
			name: "unanswered earns zero",
			questions: []ScoredQuestion{
				{Points: 5, CorrectIndex: 0},
				{Points: 5, CorrectIndex: 0},
			},
			answers:    map[int]int{0: 0},
			wantEarned: 5,
			wantTotal:  10,
			wantScore:  50,
		},
		{
			name:       "no answers at all",
			questions:  []ScoredQuestion{{Points: 4, CorrectIndex: 2}},
			answers:    map[int]int{},
			wantEarned: 0,
			wantTotal:  4,
			wantScore:  0,
		},
		{
			name:       "zero total points scores zero",
			questions:  nil,
			answers:    map[int]int{},
			wantEarned: 0,
			wantTotal:  0,
			wantScore:  0,
		},
		{
			name: "rounding half up",
			questions: []ScoredQuestion{
				{Points: 1, CorrectIndex: 0},
				{Points: 1, CorrectIndex: 0},
				{Points: 1, CorrectIndex: 0},
				{Points: 1, CorrectIndex: 0},
				{Points: 1, CorrectIndex: 0},
				{Points: 1, CorrectIndex: 0},
				{Points: 1, CorrectIndex: 0},
				{Points: 1, CorrectIndex: 0},
			},
			// 5/8 = 62.5 -> 63
			answers:    map[int]int{0: 0, 1: 0, 2: 0, 3: 0, 4: 0},
			wantEarned: 5,
			wantTotal:  8,
			wantScore:  63,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(tt.questions, tt.answers)
			if r.EarnedPoints != tt.wantEarned {
				t.Errorf("EarnedPoints = %d, want %d", r.EarnedPoints, tt.wantEarned)
			}
			if r.TotalPoints != tt.wantTotal {
				t.Errorf("TotalPoints = %d, want %d", r.TotalPoints, tt.wantTotal)
			}
			if r.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", r.Score, tt.wantScore)
			}
			if r.Score < 0 || r.Score > 100 {
				t.Errorf("Score %d outside [0,100]", r.Score)
			}
		})
	}
}

func TestPassedBoundary(t *testing.T) {
	tests := []struct {
		score   int
		passing int
		want    bool
	}{
		{60, 60, true},
		{59, 60, false},
		{61, 60, true},
		{0, 0, true},
		{100, 100, true},
	}

	for _, tt := range tests {
		if got := Passed(tt.score, tt.passing); got != tt.want {
			t.Errorf("Passed(%d, %d) = %v, want %v", tt.score, tt.passing, got, tt.want)
		}
	}
}

func TestScoreWithOverrides(t *testing.T) {
	questions := []ScoredQuestion{
		{Points: 2, CorrectIndex: 0},
		{Points: 3, CorrectIndex: 1},
		{Points: 5, CorrectIndex: 2},
	}
	answers := map[int]int{0: 0, 1: 0, 2: 2} // earns 2 + 0 + 5 = 7

	t.Run("no overrides matches Score", func(t *testing.T) {
		base := Score(questions, answers)
		r := ScoreWithOverrides(questions, answers, nil)
		if r != base {
			t.Errorf("got %+v, want %+v", r, base)
		}
	})

	t.Run("override grants partial credit", func(t *testing.T) {
		r := ScoreWithOverrides(questions, answers, map[int]int{1: 2})
		if r.EarnedPoints != 9 {
			t.Errorf("EarnedPoints = %d, want 9", r.EarnedPoints)
		}
		if r.Score != 90 {
			t.Errorf("Score = %d, want 90", r.Score)
		}
	})

	t.Run("override clamped to question points", func(t *testing.T) {
		r := ScoreWithOverrides(questions, answers, map[int]int{1: 50, 0: -3})
		if r.EarnedPoints != 8 { // 0 + 3 + 5
			t.Errorf("EarnedPoints = %d, want 8", r.EarnedPoints)
		}
	})

	t.Run("override can revoke credit", func(t *testing.T) {
		r := ScoreWithOverrides(questions, answers, map[int]int{2: 0})
		if r.EarnedPoints != 2 {
			t.Errorf("EarnedPoints = %d, want 2", r.EarnedPoints)
		}
	})
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		earned, total, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
	}
	for _, tt := range tests {
		if got := Percentage(tt.earned, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.earned, tt.total, got, tt.want)
		}
	}
}
