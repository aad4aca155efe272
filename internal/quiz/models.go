package quiz

import "time"

// Status is the lifecycle state of an attempt. "new" is transient: Start
// creates and immediately transitions to "incomplete", so it is never
// persisted as a distinct row.
type Status string

const (
	StatusNew        Status = "new"
	StatusIncomplete Status = "incomplete"
	StatusPending    Status = "pending"
	StatusPass       Status = "pass"
	StatusFail       Status = "fail"
)

// Terminal reports whether the answering workflow is finished for this
// status. A pending attempt is terminal here; only the manual-review
// process may move it further.
func (s Status) Terminal() bool {
	return s == StatusPending || s == StatusPass || s == StatusFail
}

// QuizConfig is the immutable per-read quiz configuration.
type QuizConfig struct {
	ID             string  `json:"id"`
	Title          string  `json:"title,omitempty"`
	PassingPercent float64 `json:"passing_percent"`

	LimitAttempts   bool `json:"limit_attempts"`
	AllowedAttempts int  `json:"allowed_attempts"`

	LimitTime    bool `json:"limit_time"`
	TimeLimitMin int  `json:"time_limit_minutes"`

	CanBeResumed      bool `json:"can_be_resumed"`
	RandomQuestions   bool `json:"random_questions"`
	ShowCorrectAnswer bool `json:"show_correct_answer"`
	DisableRetake     bool `json:"disable_retake"`
}

// Normalized returns the config with derived invariants applied: a quiz
// cannot simultaneously be resumable and time-boxed. Catalog
// implementations must return configs through this.
func (c QuizConfig) Normalized() QuizConfig {
	if c.LimitTime {
		c.CanBeResumed = false
	}
	return c
}

// TimeLimit returns the enforced duration, or 0 when the quiz is not
// time-boxed.
func (c QuizConfig) TimeLimit() time.Duration {
	if !c.LimitTime {
		return 0
	}
	return time.Duration(c.TimeLimitMin) * time.Minute
}

// QuestionDefinition is the read-only view of a question the engine needs.
// AnswerKey semantics are owned by the grading strategy for Type.
type QuestionDefinition struct {
	ID          string   `json:"id"`
	QuizID      string   `json:"quiz_id"`
	Type        string   `json:"type"`
	Points      float64  `json:"points"`
	AnswerKey   []string `json:"answer_key,omitempty"`
	ContentOnly bool     `json:"content_only"`
	Position    int      `json:"position"`
}

// LessonRef identifies the lesson an attempt was launched from.
type LessonRef struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Answer is one recorded answer. Correct is nil when the question type
// requires manual review.
type Answer struct {
	Raw     interface{} `json:"raw"`
	Correct *bool       `json:"correct"`
	Points  float64     `json:"points"`
}

// Attempt is the mutable unit of work. ID and Version are storage-internal;
// callers reference attempts exclusively by Key.
type Attempt struct {
	ID  int64  `json:"-"`
	Key string `json:"key"`

	QuizID    string `json:"quiz_id"`
	LessonID  string `json:"lesson_id"`
	StudentID string `json:"student_id"`

	Status        Status `json:"status"`
	AttemptNumber int    `json:"attempt_number"`

	// QuestionOrder is fixed at creation and never changes.
	QuestionOrder     []string          `json:"question_order"`
	CurrentQuestionID string            `json:"current_question_id,omitempty"`
	Answers           map[string]Answer `json:"answers"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Version int64 `json:"-"`
}

// HasQuestion reports whether id is a member of the frozen order.
func (a *Attempt) HasQuestion(id string) bool {
	for _, q := range a.QuestionOrder {
		if q == id {
			return true
		}
	}
	return false
}

// NextQuestion returns the order entry after id, or "" when id is last
// (or absent).
func (a *Attempt) NextQuestion(id string) string {
	for i, q := range a.QuestionOrder {
		if q == id && i+1 < len(a.QuestionOrder) {
			return a.QuestionOrder[i+1]
		}
	}
	return ""
}

// PrevQuestion returns the order entry before id, or "" when id is first
// (or absent).
func (a *Attempt) PrevQuestion(id string) string {
	for i, q := range a.QuestionOrder {
		if q == id && i > 0 {
			return a.QuestionOrder[i-1]
		}
	}
	return ""
}

// FirstUnanswered returns the first order entry without a recorded answer,
// skipping entries in skip, or "" when every answerable entry is recorded.
func (a *Attempt) FirstUnanswered(skip map[string]bool) string {
	for _, q := range a.QuestionOrder {
		if skip[q] {
			continue
		}
		if _, ok := a.Answers[q]; !ok {
			return q
		}
	}
	return ""
}

func (a *Attempt) clone() Attempt {
	c := *a
	c.QuestionOrder = append([]string(nil), a.QuestionOrder...)
	c.Answers = make(map[string]Answer, len(a.Answers))
	for k, v := range a.Answers {
		c.Answers[k] = v
	}
	if a.EndTime != nil {
		t := *a.EndTime
		c.EndTime = &t
	}
	return c
}

// Progress is the success shape of Start, Resume and Answer. When the
// operation finished the attempt (last question answered, or resume with
// nothing left to answer), Completed is true and Result is set.
type Progress struct {
	AttemptKey        string       `json:"attempt_key"`
	CurrentQuestionID string       `json:"current_question_id,omitempty"`
	QuestionsTotal    int          `json:"questions_total"`
	TimeLimitMin      *int         `json:"time_limit_minutes,omitempty"`
	CanBeResumed      bool         `json:"can_be_resumed"`
	Completed         bool         `json:"completed,omitempty"`
	Result            *FinalResult `json:"result,omitempty"`
}

// FinalResult is the success shape of End.
type FinalResult struct {
	AttemptKey      string  `json:"attempt_key"`
	Status          Status  `json:"status"`
	Grade           float64 `json:"grade"`
	PointsEarned    float64 `json:"points_earned"`
	PointsAvailable float64 `json:"points_available"`
}

// Navigation selects how Answer moves the current-question pointer.
type Navigation string

const (
	// NavNext advances to the next order entry; the default.
	NavNext Navigation = "next"
	// NavPrevious records the answer but moves the pointer backward.
	NavPrevious Navigation = "previous"
	// NavExit records the answer and parks the pointer on the answered
	// question, supporting mid-attempt pause.
	NavExit Navigation = "exit"
)
