package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"affairs-quiz-web/internal/domain"
	"affairs-quiz-web/internal/guest"
)

// State is the lifecycle phase of a quiz session.
type State int

const (
	StateLoading State = iota
	StateReady
	StateSubmitting
	StateSubmitted
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// QuizSource loads quiz content (remote gateway, cache, or local store).
type QuizSource interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// Submitter sends a completed submission for scoring.
type Submitter interface {
	SubmitQuiz(ctx context.Context, quizID int64, sub domain.Submission) (domain.SubmissionResult, error)
}

// Session is one guest's attempt at a quiz, modeled as an explicit state
// machine: Loading -> Ready -> Submitting -> Submitted, with Unavailable
// terminal from Loading. Submission fires at most once per session; the
// transition out of Ready disarms the countdown, so a timer expiry and a
// manual submit racing at the same tick boundary produce exactly one
// gateway call.
type Session struct {
	quizID       int64
	guestID      guest.Identity
	source       QuizSource
	submitter    Submitter
	tickInterval time.Duration

	mu          sync.Mutex
	state       State
	quiz        domain.Quiz
	index       int
	answers     map[int64]int
	hasTimer    bool
	timeLeft    int
	armed       bool
	stopTick    chan struct{}
	result      domain.SubmissionResult
	subscribers map[chan Snapshot]struct{}
}

// NewSession builds a session in Loading with a 1-second countdown tick.
func NewSession(quizID int64, guestID guest.Identity, source QuizSource, submitter Submitter) *Session {
	return NewSessionWithInterval(quizID, guestID, source, submitter, time.Second)
}

// NewSessionWithInterval is a test hook: a zero interval disables the
// background ticker so tests drive Tick directly.
func NewSessionWithInterval(quizID int64, guestID guest.Identity, source QuizSource, submitter Submitter, interval time.Duration) *Session {
	return &Session{
		quizID:       quizID,
		guestID:      guestID,
		source:       source,
		submitter:    submitter,
		tickInterval: interval,
		state:        StateLoading,
		answers:      make(map[int64]int),
		subscribers:  make(map[chan Snapshot]struct{}),
	}
}

// Initialize fetches the quiz and transitions to Ready, or to the
// terminal Unavailable state on fetch failure or an empty question set.
// No automatic retry is attempted.
func (s *Session) Initialize(ctx context.Context) Snapshot {
	quiz, err := s.source.GetQuiz(ctx, s.quizID)

	s.mu.Lock()
	if s.state != StateLoading {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	if err != nil || len(quiz.Questions) == 0 {
		s.state = StateUnavailable
	} else {
		s.quiz = quiz
		s.state = StateReady
		s.index = 0
		s.answers = make(map[int64]int)
		if quiz.TimerSeconds > 0 {
			s.hasTimer = true
			s.timeLeft = quiz.TimerSeconds
			s.armLocked()
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast(snap)
	return snap
}

// SelectOption records the guest's choice for a question, overwriting any
// prior selection. It does not advance the index. Option numbers are not
// validated against present slots; callers must not offer absent options.
func (s *Session) SelectOption(questionID int64, option int) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateReady {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, domain.ErrInvalidTransition
	}
	found := false
	for i := range s.quiz.Questions {
		if s.quiz.Questions[i].ID == questionID {
			found = true
			break
		}
	}
	if !found {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, domain.ErrQuestionNotFound
	}
	s.answers[questionID] = option
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast(snap)
	return snap, nil
}

// Next advances to the following question. Advancing past the last
// question is not permitted; submission is the only forward action there.
func (s *Session) Next() (Snapshot, error) {
	return s.move(1)
}

// Prev moves back one question and is a no-op at index 0.
func (s *Session) Prev() (Snapshot, error) {
	return s.move(-1)
}

func (s *Session) move(delta int) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateReady {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, domain.ErrInvalidTransition
	}
	next := s.index + delta
	if next >= 0 && next < len(s.quiz.Questions) {
		s.index = next
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast(snap)
	return snap, nil
}

// Tick decrements the countdown by one second while Ready with an armed
// timer. Reaching zero triggers submission; the Ready->Submitting
// transition disarms the timer so later ticks cannot submit again.
func (s *Session) Tick(ctx context.Context) Snapshot {
	s.mu.Lock()
	if s.state != StateReady || !s.armed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.timeLeft--
	expired := s.timeLeft <= 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if expired {
		snap, _ := s.submit(ctx, false)
		return snap
	}
	s.broadcast(snap)
	return snap
}

// Submit performs the manual submission. It is only offered on the last
// question; anywhere else, or outside Ready, it is rejected.
func (s *Session) Submit(ctx context.Context) (Snapshot, error) {
	snap, started := s.submit(ctx, true)
	if !started {
		return snap, domain.ErrInvalidTransition
	}
	return snap, nil
}

// submit moves Ready -> Submitting -> Submitted and reports whether this
// call performed the transition. The state guard makes the transition
// win-once: whichever of the timer expiry or a manual click gets here
// first performs the single gateway call. The last-question requirement
// for manual submits is checked inside the same critical section, so
// navigation cannot slip in between the check and the transition.
func (s *Session) submit(ctx context.Context, mustBeLast bool) (Snapshot, bool) {
	s.mu.Lock()
	if s.state != StateReady || (mustBeLast && s.index != len(s.quiz.Questions)-1) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}
	s.state = StateSubmitting
	s.disarmLocked()
	payload := s.payloadLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.broadcast(snap)

	result, err := s.submitter.SubmitQuiz(ctx, s.quizID, payload)

	s.mu.Lock()
	if err != nil {
		// Surface the failure as a degraded result rather than a separate
		// error state, so the completed attempt is not lost.
		s.result = domain.SubmissionResult{Err: "could not score submission"}
	} else {
		s.result = result
	}
	s.state = StateSubmitted
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast(snap)
	return snap, true
}

// payloadLocked pairs every question in quiz order with its recorded
// selection; unanswered questions carry a nil selected option.
func (s *Session) payloadLocked() domain.Submission {
	answers := make([]domain.AnswerSelection, 0, len(s.quiz.Questions))
	for _, q := range s.quiz.Questions {
		sel := domain.AnswerSelection{QuestionID: q.ID}
		if option, ok := s.answers[q.ID]; ok {
			chosen := option
			sel.SelectedOption = &chosen
		}
		answers = append(answers, sel)
	}
	return domain.Submission{
		GuestID: s.guestID.String(),
		Answers: answers,
	}
}

// Restart discards all session state and re-initializes from Loading.
// Valid only from Submitted; no partial carry-over.
func (s *Session) Restart(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateSubmitted {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, domain.ErrInvalidTransition
	}
	s.state = StateLoading
	s.quiz = domain.Quiz{}
	s.index = 0
	s.answers = make(map[int64]int)
	s.hasTimer = false
	s.timeLeft = 0
	s.result = domain.SubmissionResult{}
	s.mu.Unlock()

	return s.Initialize(ctx), nil
}

// Close disarms the countdown and drops all subscribers.
func (s *Session) Close() {
	s.mu.Lock()
	s.disarmLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
}

func (s *Session) armLocked() {
	if s.armed {
		return
	}
	s.armed = true
	if s.tickInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	s.stopTick = stop
	go func() {
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

func (s *Session) disarmLocked() {
	if !s.armed {
		return
	}
	s.armed = false
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

// Subscribe returns a channel receiving state snapshots, starting with
// the current one. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcast(snap Snapshot) {
	s.mu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	s.mu.Unlock()
}

// Snapshot returns the current visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		QuizID:      s.quizID,
		State:       s.state.String(),
		Title:       s.quiz.Title,
		Countdown:   s.countdownLocked(),
		SecondsLeft: s.timeLeft,
	}
	switch s.state {
	case StateReady, StateSubmitting:
		snap.Total = len(s.quiz.Questions)
		snap.Index = s.index
		snap.OnLastQuestion = s.index == len(s.quiz.Questions)-1
		q := s.quiz.Questions[s.index]
		snap.Question = questionView(q, s.index, s.answers[q.ID])
	case StateSubmitted:
		snap.Result = resultView(s.result)
	}
	return snap
}

// countdownLocked renders the timer as zero-padded MM:SS; an untimed quiz
// shows the sentinel placeholder.
func (s *Session) countdownLocked() string {
	if !s.hasTimer {
		return "--:--"
	}
	left := s.timeLeft
	if left < 0 {
		left = 0
	}
	return fmt.Sprintf("%02d:%02d", left/60, left%60)
}

// Snapshot is the serialized view of a session, consumed by the REST and
// websocket transports.
type Snapshot struct {
	QuizID         int64         `json:"quiz_id"`
	State          string        `json:"state"`
	Title          string        `json:"title,omitempty"`
	Countdown      string        `json:"countdown"`
	SecondsLeft    int           `json:"seconds_left"`
	Index          int           `json:"index"`
	Total          int           `json:"total"`
	OnLastQuestion bool          `json:"on_last_question"`
	Question       *QuestionView `json:"question,omitempty"`
	Result         *ResultView   `json:"result,omitempty"`
}

// QuestionView renders one question with its present option slots only.
// Option numbers stay 1-based slot positions.
type QuestionView struct {
	ID      int64        `json:"id"`
	Number  int          `json:"number"`
	Text    string       `json:"question"`
	Options []OptionView `json:"options"`
}

type OptionView struct {
	Number   int    `json:"number"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

func questionView(q domain.Question, index, selected int) *QuestionView {
	view := &QuestionView{
		ID:     q.ID,
		Number: index + 1,
		Text:   q.Text,
	}
	for i, text := range q.Options() {
		if text == "" {
			continue
		}
		number := i + 1
		view.Options = append(view.Options, OptionView{
			Number:   number,
			Text:     text,
			Selected: selected == number,
		})
	}
	return view
}

// ResultView is the score breakdown shown after submission. It is a pure
// reduction over server-supplied numbers.
type ResultView struct {
	Score          int                  `json:"score"`
	TotalQuestions int                  `json:"total_questions"`
	TotalRight     int                  `json:"total_right"`
	TotalWrong     int                  `json:"total_wrong"`
	RingPercent    float64              `json:"ring_percent"`
	Suggestions    []domain.QuizSummary `json:"suggestions,omitempty"`
	Error          string               `json:"error,omitempty"`
}

func resultView(r domain.SubmissionResult) *ResultView {
	if r.Failed() {
		return &ResultView{Error: r.Err}
	}
	return &ResultView{
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		TotalRight:     r.TotalRight,
		TotalWrong:     r.TotalWrong,
		RingPercent:    r.RingPercent(),
		Suggestions:    r.Suggestions,
	}
}
