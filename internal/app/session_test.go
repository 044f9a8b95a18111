package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"affairs-quiz-web/internal/domain"
)

type staticSource struct {
	quiz domain.Quiz
	err  error
}

func (s *staticSource) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	if s.err != nil {
		return domain.Quiz{}, s.err
	}
	return s.quiz, nil
}

type countingSubmitter struct {
	mu     sync.Mutex
	calls  int
	last   domain.Submission
	result domain.SubmissionResult
	err    error
}

func (c *countingSubmitter) SubmitQuiz(ctx context.Context, quizID int64, sub domain.Submission) (domain.SubmissionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.last = sub
	return c.result, c.err
}

func (c *countingSubmitter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func affairsQuiz(timerSeconds int) domain.Quiz {
	return domain.Quiz{
		ID:           1,
		Title:        "Daily Affairs",
		TimerSeconds: timerSeconds,
		Questions: []domain.Question{
			{ID: 10, Text: "Capital of France?", Option1: "Paris", Option2: "Lyon", Option3: "Nice", Option4: "Lille"},
			{ID: 11, Text: "Largest ocean?", Option1: "Atlantic", Option2: "Pacific"},
		},
	}
}

func newReadySession(t *testing.T, timerSeconds int, sub *countingSubmitter) *Session {
	t.Helper()
	s := NewSessionWithInterval(1, "guest-a", &staticSource{quiz: affairsQuiz(timerSeconds)}, sub, 0)
	snap := s.Initialize(context.Background())
	if snap.State != "ready" {
		t.Fatalf("expected ready after initialize, got %s", snap.State)
	}
	return s
}

func TestInitializeReady(t *testing.T) {
	s := newReadySession(t, 30, &countingSubmitter{})
	snap := s.Snapshot()
	if snap.Countdown != "00:30" {
		t.Fatalf("expected 00:30, got %s", snap.Countdown)
	}
	if snap.Total != 2 || snap.Index != 0 || snap.OnLastQuestion {
		t.Fatalf("unexpected position: %+v", snap)
	}
	if snap.Question == nil || snap.Question.ID != 10 {
		t.Fatalf("expected first question, got %+v", snap.Question)
	}
	if len(snap.Question.Options) != 4 {
		t.Fatalf("expected 4 options, got %d", len(snap.Question.Options))
	}
}

func TestInitializeUnavailableOnFetchError(t *testing.T) {
	s := NewSessionWithInterval(1, "guest-a", &staticSource{err: errors.New("boom")}, &countingSubmitter{}, 0)
	snap := s.Initialize(context.Background())
	if snap.State != "unavailable" {
		t.Fatalf("expected unavailable on error, got %s", snap.State)
	}
	if _, err := s.Next(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from unavailable, got %v", err)
	}
}

func TestInitializeUnavailableOnEmptyQuiz(t *testing.T) {
	s := NewSessionWithInterval(1, "guest-a", &staticSource{quiz: domain.Quiz{ID: 1, Title: "Empty"}}, &countingSubmitter{}, 0)
	snap := s.Initialize(context.Background())
	if snap.State != "unavailable" {
		t.Fatalf("expected unavailable for empty quiz, got %s", snap.State)
	}
}

func TestPartialOptionSlotsKeepNumbers(t *testing.T) {
	sub := &countingSubmitter{}
	s := newReadySession(t, 0, sub)
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Question.Options) != 2 {
		t.Fatalf("expected 2 present options, got %d", len(snap.Question.Options))
	}
	if snap.Question.Options[0].Number != 1 || snap.Question.Options[1].Number != 2 {
		t.Fatalf("option numbers must stay slot positions: %+v", snap.Question.Options)
	}
}

func TestSelectOverwritesWithoutAdvancing(t *testing.T) {
	s := newReadySession(t, 0, &countingSubmitter{})
	if _, err := s.SelectOption(10, 2); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap, err := s.SelectOption(10, 3)
	if err != nil {
		t.Fatalf("re-select: %v", err)
	}
	if snap.Index != 0 {
		t.Fatalf("selection advanced the index to %d", snap.Index)
	}
	for _, o := range snap.Question.Options {
		if o.Number == 3 && !o.Selected {
			t.Fatalf("expected option 3 selected")
		}
		if o.Number == 2 && o.Selected {
			t.Fatalf("old selection not overwritten")
		}
	}
}

func TestSelectUnknownQuestion(t *testing.T) {
	s := newReadySession(t, 0, &countingSubmitter{})
	if _, err := s.SelectOption(99, 1); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestNavigationClampsAtBounds(t *testing.T) {
	s := newReadySession(t, 0, &countingSubmitter{})
	snap, err := s.Prev()
	if err != nil || snap.Index != 0 {
		t.Fatalf("prev at first question must hold: index=%d err=%v", snap.Index, err)
	}
	snap, _ = s.Next()
	if !snap.OnLastQuestion {
		t.Fatalf("expected last question")
	}
	snap, err = s.Next()
	if err != nil || snap.Index != 1 {
		t.Fatalf("next at last question must hold: index=%d err=%v", snap.Index, err)
	}
}

func TestSubmitOnlyOnLastQuestion(t *testing.T) {
	sub := &countingSubmitter{}
	s := newReadySession(t, 0, sub)
	if _, err := s.Submit(context.Background()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected rejection off the last question, got %v", err)
	}
	if sub.callCount() != 0 {
		t.Fatalf("submitter called despite rejection")
	}
}

func TestSubmitPayloadPairsEveryQuestion(t *testing.T) {
	sub := &countingSubmitter{result: domain.SubmissionResult{Score: 10, TotalQuestions: 2, TotalRight: 1, TotalWrong: 1}}
	s := newReadySession(t, 0, sub)
	if _, err := s.SelectOption(10, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	snap, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap.State != "submitted" {
		t.Fatalf("expected submitted, got %s", snap.State)
	}
	if sub.callCount() != 1 {
		t.Fatalf("expected one call, got %d", sub.callCount())
	}
	payload := sub.last
	if payload.GuestID != "guest-a" {
		t.Fatalf("missing guest credential: %+v", payload)
	}
	if len(payload.Answers) != 2 {
		t.Fatalf("expected one entry per question, got %d", len(payload.Answers))
	}
	if payload.Answers[0].QuestionID != 10 || payload.Answers[0].SelectedOption == nil || *payload.Answers[0].SelectedOption != 1 {
		t.Fatalf("unexpected first answer: %+v", payload.Answers[0])
	}
	if payload.Answers[1].QuestionID != 11 || payload.Answers[1].SelectedOption != nil {
		t.Fatalf("unanswered question must carry nil selection: %+v", payload.Answers[1])
	}
	if snap.Result == nil || snap.Result.RingPercent != 50 {
		t.Fatalf("unexpected result view: %+v", snap.Result)
	}
}

func TestSingleQuestionHappyPath(t *testing.T) {
	sub := &countingSubmitter{result: domain.SubmissionResult{Score: 1, TotalQuestions: 1, TotalRight: 1}}
	quiz := domain.Quiz{
		ID:           1,
		TimerSeconds: 30,
		Questions:    []domain.Question{{ID: 10, Option1: "A", Option2: "B"}},
	}
	s := NewSessionWithInterval(1, "guest-a", &staticSource{quiz: quiz}, sub, 0)
	snap := s.Initialize(context.Background())
	if !snap.OnLastQuestion {
		t.Fatalf("a one-question quiz starts on its last question")
	}
	if _, err := s.SelectOption(10, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.callCount() != 1 {
		t.Fatalf("expected one call, got %d", sub.callCount())
	}
	got := sub.last.Answers
	if len(got) != 1 || got[0].QuestionID != 10 || got[0].SelectedOption == nil || *got[0].SelectedOption != 1 {
		t.Fatalf("unexpected submission: %+v", got)
	}
	if snap.Result.RingPercent != 100 {
		t.Fatalf("expected a full ring, got %v", snap.Result.RingPercent)
	}
}

func TestTimeoutAutoSubmits(t *testing.T) {
	sub := &countingSubmitter{result: domain.SubmissionResult{TotalQuestions: 2}}
	s := newReadySession(t, 2, sub)

	snap := s.Tick(context.Background())
	if snap.State != "ready" || snap.Countdown != "00:01" {
		t.Fatalf("expected 00:01 ready, got %s %s", snap.Countdown, snap.State)
	}
	snap = s.Tick(context.Background())
	if snap.State != "submitted" {
		t.Fatalf("expected auto-submit at zero, got %s", snap.State)
	}
	if sub.callCount() != 1 {
		t.Fatalf("expected one call, got %d", sub.callCount())
	}
	if sub.last.Answers[0].SelectedOption != nil {
		t.Fatalf("timeout submit must keep unanswered questions nil")
	}
}

func TestSubmitAtMostOnceUnderRace(t *testing.T) {
	sub := &countingSubmitter{}
	s := newReadySession(t, 1, sub)
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Submit(context.Background())
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Tick(context.Background())
		}()
	}
	wg.Wait()

	if sub.callCount() != 1 {
		t.Fatalf("expected exactly one scoring call, got %d", sub.callCount())
	}
	if s.Snapshot().State != "submitted" {
		t.Fatalf("expected submitted after race, got %s", s.Snapshot().State)
	}
}

func TestManualSubmitHoldsLastQuestionUnderNavigation(t *testing.T) {
	// The last-question check and the Ready->Submitting transition share
	// one critical section, so a Prev racing a manual Submit can never
	// let a submission fire from an earlier question.
	for i := 0; i < 100; i++ {
		observer := &indexObservingSubmitter{}
		s := NewSessionWithInterval(1, "guest-a", &staticSource{quiz: affairsQuiz(0)}, observer, 0)
		observer.session = s
		if snap := s.Initialize(context.Background()); snap.State != "ready" {
			t.Fatalf("expected ready, got %s", snap.State)
		}
		if _, err := s.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Submit(context.Background())
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Prev()
		}()
		wg.Wait()

		if observer.callCount() == 1 && observer.indexSeen != 1 {
			t.Fatalf("submission fired from question index %d", observer.indexSeen)
		}
	}
}

type indexObservingSubmitter struct {
	countingSubmitter
	session   *Session
	indexSeen int
}

func (o *indexObservingSubmitter) SubmitQuiz(ctx context.Context, quizID int64, sub domain.Submission) (domain.SubmissionResult, error) {
	o.indexSeen = o.session.Snapshot().Index
	return o.countingSubmitter.SubmitQuiz(ctx, quizID, sub)
}

func TestTicksAfterSubmissionAreIgnored(t *testing.T) {
	sub := &countingSubmitter{}
	s := newReadySession(t, 1, sub)
	s.Tick(context.Background())
	for i := 0; i < 3; i++ {
		s.Tick(context.Background())
	}
	if sub.callCount() != 1 {
		t.Fatalf("late ticks re-submitted: %d calls", sub.callCount())
	}
}

func TestDegradedResultOnScoringFailure(t *testing.T) {
	sub := &countingSubmitter{err: errors.New("gateway down")}
	s := newReadySession(t, 0, sub)
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	snap, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap.State != "submitted" {
		t.Fatalf("scoring failure must still complete the attempt, got %s", snap.State)
	}
	if snap.Result == nil || snap.Result.Error == "" {
		t.Fatalf("expected degraded result, got %+v", snap.Result)
	}
	if snap.Result.Score != 0 || snap.Result.RingPercent != 0 {
		t.Fatalf("degraded result must not carry score numbers: %+v", snap.Result)
	}
}

func TestRestartOnlyFromSubmitted(t *testing.T) {
	sub := &countingSubmitter{}
	s := newReadySession(t, 30, sub)
	if _, err := s.Restart(context.Background()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected restart rejection while ready, got %v", err)
	}

	if _, err := s.SelectOption(10, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap, err := s.Restart(context.Background())
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if snap.State != "ready" || snap.Index != 0 {
		t.Fatalf("expected a fresh ready session, got %+v", snap)
	}
	if snap.Countdown != "00:30" {
		t.Fatalf("countdown not reset: %s", snap.Countdown)
	}
	for _, o := range snap.Question.Options {
		if o.Selected {
			t.Fatalf("answers survived restart: %+v", snap.Question.Options)
		}
	}
}

func TestCountdownFormats(t *testing.T) {
	s := newReadySession(t, 65, &countingSubmitter{})
	if got := s.Snapshot().Countdown; got != "01:05" {
		t.Fatalf("expected 01:05, got %s", got)
	}

	untimed := newReadySession(t, 0, &countingSubmitter{})
	if got := untimed.Snapshot().Countdown; got != "--:--" {
		t.Fatalf("expected --:-- for an untimed quiz, got %s", got)
	}
}

func TestSubscribeReceivesBroadcasts(t *testing.T) {
	s := newReadySession(t, 0, &countingSubmitter{})
	updates, cancel := s.Subscribe()
	defer cancel()

	first := <-updates
	if first.State != "ready" {
		t.Fatalf("expected current snapshot first, got %s", first.State)
	}

	if _, err := s.SelectOption(10, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	next := <-updates
	if next.Question == nil {
		t.Fatalf("expected question in broadcast snapshot")
	}
}
