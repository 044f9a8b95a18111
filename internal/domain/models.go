package domain

import "time"

// OptionSlots is the fixed number of answer slots a question carries.
// Absent slots hold an empty string and are never rendered or selectable.
const OptionSlots = 4

// Question models one quiz item. Option numbers are 1-based and refer to
// slot position, not to a compacted list of the slots that are present.
type Question struct {
	ID      int64  `json:"id"`
	Text    string `json:"question"`
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`
	Option4 string `json:"option4"`
}

// Options returns the four option slots in order.
func (q Question) Options() [OptionSlots]string {
	return [OptionSlots]string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// HasOption reports whether the 1-based slot holds a non-empty option.
func (q Question) HasOption(number int) bool {
	if number < 1 || number > OptionSlots {
		return false
	}
	return q.Options()[number-1] != ""
}

// Quiz is a timed set of multiple-choice questions, immutable for the
// lifetime of a session. TimerSeconds of zero means the quiz is untimed.
type Quiz struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	TimerSeconds int        `json:"timer_seconds"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
}

// AnswerSelection pairs a question with the guest's chosen option.
// SelectedOption is nil for questions the guest never answered.
type AnswerSelection struct {
	QuestionID     int64 `json:"question_id"`
	SelectedOption *int  `json:"selected_option"`
}

// Submission is the full payload sent to the scoring endpoint: the guest
// credential plus one entry per quiz question, in quiz order.
type Submission struct {
	GuestID string            `json:"guest_id"`
	Answers []AnswerSelection `json:"answers"`
}

// QuizSummary is the lightweight listing form of a quiz.
type QuizSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmissionResult is the server-computed outcome of a submission.
// A non-empty Err marks a submission that could not be scored; the score
// fields are meaningless in that case.
type SubmissionResult struct {
	Score          int           `json:"score"`
	TotalQuestions int           `json:"total_questions"`
	TotalRight     int           `json:"total_right"`
	TotalWrong     int           `json:"total_wrong"`
	Suggestions    []QuizSummary `json:"suggestions,omitempty"`
	Err            string        `json:"error,omitempty"`
}

// Failed reports whether the submission could not be scored.
func (r SubmissionResult) Failed() bool { return r.Err != "" }

// RingPercent is the share of right answers in [0,100], as drawn by the
// score ring.
func (r SubmissionResult) RingPercent() float64 {
	if r.TotalQuestions == 0 {
		return 0
	}
	return float64(r.TotalRight) / float64(r.TotalQuestions) * 100
}

// ReviewRecord is one per-question entry of a past submission's review.
type ReviewRecord struct {
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	CorrectOption  int      `json:"correct_option"`
	SelectedOption *int     `json:"selected_option"`
	Explanation    string   `json:"explanation,omitempty"`
}

// Review is the full read-only walkthrough for one (quiz, guest) pair.
type Review struct {
	QuizTitle string         `json:"quiz_title"`
	Records   []ReviewRecord `json:"results"`
}

// QuizListing is a quiz summary together with the guest's attempt state,
// as returned by the today/recent endpoints.
type QuizListing struct {
	Quiz      QuizSummary       `json:"quiz"`
	Attempted bool              `json:"attempted"`
	Result    *SubmissionResult `json:"result,omitempty"`
}

// Discussion is a featured question guests post thoughts against.
type Discussion struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Thought is a community post attached to a discussion. GuestID records
// the owning identity; only the owner may edit or delete.
type Thought struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	Body      string    `json:"thought"`
	PromptID  int64     `json:"prompt"`
	GuestID   string    `json:"guest_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ThoughtDraft is the guest-composed payload for creating or editing a
// thought.
type ThoughtDraft struct {
	PromptID int64  `json:"prompt"`
	Name     string `json:"name,omitempty"`
	Body     string `json:"thought"`
	GuestID  string `json:"guest_id"`
}

// ThoughtPage is one page of thoughts in the API's pagination envelope.
type ThoughtPage struct {
	Count    int       `json:"count"`
	Next     string    `json:"next"`
	Previous string    `json:"previous"`
	Results  []Thought `json:"results"`
}

// QuizListingPage is one page of the recent-quizzes listing.
type QuizListingPage struct {
	Count    int           `json:"count"`
	Next     string        `json:"next"`
	Previous string        `json:"previous"`
	Results  []QuizListing `json:"results"`
}
