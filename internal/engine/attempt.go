package engine

import (
	"errors"
	"math/rand"
	"sort"
)

// State is the lifecycle of an in-memory attempt.
type State string

const (
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
)

// DefaultWarningThreshold is the remaining time, in seconds, at which the
// low-time warning fires.
const DefaultWarningThreshold = 300

var (
	ErrNotInProgress     = errors.New("attempt is not in progress")
	ErrNotSubmitting     = errors.New("attempt is not submitting")
	ErrOptionOutOfRange  = errors.New("selected option out of range")
	ErrNoQuestions       = errors.New("attempt has no questions")
	ErrInvalidTimeLimit  = errors.New("time limit must be positive")
	ErrAlreadySubmitting = errors.New("submission already claimed")
)

// Question is the per-question data the engine needs: point value, grading
// key, and the number of presented options.
type Question struct {
	Points       int
	CorrectIndex int
	OptionCount  int
}

// Config describes a new attempt. TimeLimitSeconds is the full exam duration;
// WarningThresholdSeconds defaults to DefaultWarningThreshold when zero.
type Config struct {
	Questions               []Question
	Shuffle                 bool
	TimeLimitSeconds        int
	WarningThresholdSeconds int
	Rand                    *rand.Rand
}

// TickEvent reports what a one-second tick caused. Warning fires exactly once
// per attempt, when remaining time first reaches the threshold. Expired fires
// exactly once, on the tick that claims the auto-submit.
type TickEvent struct {
	Warning bool
	Expired bool
}

// Attempt is the pure in-memory attempt state machine. It is not safe for
// concurrent use; callers serialize access.
type Attempt struct {
	state         State
	perm          Permutation
	questions     []Question
	answers       map[int]int // original index -> selected option
	bookmarks     map[int]bool
	flags         map[int]bool
	position      int // presentation index
	remaining     int
	warningAt     int
	warned        bool
	autoSubmitted bool
}

// NewAttempt starts an attempt: picks the presentation order, sets the clock,
// and positions the student at the first presented question.
func NewAttempt(cfg Config) (*Attempt, error) {
	if len(cfg.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if cfg.TimeLimitSeconds <= 0 {
		return nil, ErrInvalidTimeLimit
	}
	perm := Identity(len(cfg.Questions))
	if cfg.Shuffle {
		rng := cfg.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(rand.Int63()))
		}
		perm = Shuffled(len(cfg.Questions), rng)
	}
	warningAt := cfg.WarningThresholdSeconds
	if warningAt <= 0 {
		warningAt = DefaultWarningThreshold
	}
	return &Attempt{
		state:     StateInProgress,
		perm:      perm,
		questions: append([]Question(nil), cfg.Questions...),
		answers:   make(map[int]int),
		bookmarks: make(map[int]bool),
		flags:     make(map[int]bool),
		remaining: cfg.TimeLimitSeconds,
		warningAt: warningAt,
	}, nil
}

// Restore rebuilds an attempt from persisted state so a student can resume.
func Restore(cfg Config, order []int, answers map[int]int, bookmarks, flags []int, position, remaining int) (*Attempt, error) {
	if len(cfg.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	perm, err := FromOrder(order)
	if err != nil {
		return nil, err
	}
	a := &Attempt{
		state:     StateInProgress,
		perm:      perm,
		questions: append([]Question(nil), cfg.Questions...),
		answers:   make(map[int]int, len(answers)),
		bookmarks: make(map[int]bool, len(bookmarks)),
		flags:     make(map[int]bool, len(flags)),
		remaining: remaining,
		warningAt: cfg.WarningThresholdSeconds,
	}
	if a.warningAt <= 0 {
		a.warningAt = DefaultWarningThreshold
	}
	for orig, sel := range answers {
		a.answers[orig] = sel
	}
	for _, orig := range bookmarks {
		a.bookmarks[orig] = true
	}
	for _, orig := range flags {
		a.flags[orig] = true
	}
	if position >= 0 && position < perm.Len() {
		a.position = position
	}
	// A resumed attempt past the warning line must not re-warn.
	if a.remaining <= a.warningAt {
		a.warned = true
	}
	if a.remaining <= 0 {
		a.remaining = 0
	}
	return a, nil
}

func (a *Attempt) State() State          { return a.state }
func (a *Attempt) Remaining() int        { return a.remaining }
func (a *Attempt) Position() int         { return a.position }
func (a *Attempt) Order() []int          { return a.perm.Order() }
func (a *Attempt) Permutation() Permutation { return a.perm }
func (a *Attempt) AutoSubmitted() bool   { return a.autoSubmitted }

// Answer returns the stored selection for an original question index.
func (a *Attempt) Answer(original int) (int, bool) {
	sel, ok := a.answers[original]
	return sel, ok
}

// Answers returns a copy of the answer map, keyed by original index.
func (a *Attempt) Answers() map[int]int {
	out := make(map[int]int, len(a.answers))
	for k, v := range a.answers {
		out[k] = v
	}
	return out
}

// Bookmarked returns the bookmarked original indices in ascending order.
func (a *Attempt) Bookmarked() []int { return sortedKeys(a.bookmarks) }

// Flagged returns the flagged original indices in ascending order.
func (a *Attempt) Flagged() []int { return sortedKeys(a.flags) }

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// GoTo moves the student to a presented question.
func (a *Attempt) GoTo(presentation int) error {
	if a.state != StateInProgress {
		return ErrNotInProgress
	}
	if _, err := a.perm.Original(presentation); err != nil {
		return err
	}
	a.position = presentation
	return nil
}

// SelectAnswer records the option picked while viewing a presented question.
// The selection is stored under the question's ORIGINAL index, so grading is
// independent of shuffle order. Re-selecting replaces the previous choice.
func (a *Attempt) SelectAnswer(presentation, option int) error {
	if a.state != StateInProgress {
		return ErrNotInProgress
	}
	original, err := a.perm.Original(presentation)
	if err != nil {
		return err
	}
	if option < 0 || option >= a.questions[original].OptionCount {
		return ErrOptionOutOfRange
	}
	a.answers[original] = option
	return nil
}

// ToggleBookmark flips the bookmark on a presented question and reports the
// new value.
func (a *Attempt) ToggleBookmark(presentation int) (bool, error) {
	return a.toggle(presentation, a.bookmarks)
}

// ToggleFlag flips the review flag on a presented question and reports the
// new value.
func (a *Attempt) ToggleFlag(presentation int) (bool, error) {
	return a.toggle(presentation, a.flags)
}

func (a *Attempt) toggle(presentation int, set map[int]bool) (bool, error) {
	if a.state != StateInProgress {
		return false, ErrNotInProgress
	}
	original, err := a.perm.Original(presentation)
	if err != nil {
		return false, err
	}
	if set[original] {
		delete(set, original)
		return false, nil
	}
	set[original] = true
	return true, nil
}

// Tick advances the clock by one second. When the clock reaches zero it claims
// the submission exactly once, regardless of how many further ticks arrive.
func (a *Attempt) Tick() TickEvent {
	if a.state != StateInProgress {
		return TickEvent{}
	}
	if a.remaining > 0 {
		a.remaining--
	}
	var ev TickEvent
	if !a.warned && a.remaining <= a.warningAt && a.remaining > 0 {
		a.warned = true
		ev.Warning = true
	}
	if a.remaining <= 0 {
		a.state = StateSubmitting
		a.autoSubmitted = true
		ev.Expired = true
	}
	return ev
}

// BeginSubmit claims the submission on behalf of the student. It succeeds only
// from in_progress, so the manual path and the timer path cannot both win.
func (a *Attempt) BeginSubmit() error {
	if a.state != StateInProgress {
		if a.state == StateSubmitting {
			return ErrAlreadySubmitting
		}
		return ErrNotInProgress
	}
	a.state = StateSubmitting
	return nil
}

// Finalize grades the attempt. It is only valid while submitting; a failed
// write leaves the attempt in submitting so the caller can retry Finalize.
func (a *Attempt) Finalize() (Result, error) {
	if a.state != StateSubmitting {
		return Result{}, ErrNotSubmitting
	}
	key := make([]ScoredQuestion, len(a.questions))
	for i, q := range a.questions {
		key[i] = ScoredQuestion{Points: q.Points, CorrectIndex: q.CorrectIndex}
	}
	return Score(key, a.answers), nil
}

// Complete marks the submission durably recorded. Once completed the attempt
// accepts no further mutations.
func (a *Attempt) Complete() error {
	if a.state != StateSubmitting {
		return ErrNotSubmitting
	}
	a.state = StateCompleted
	return nil
}
