package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the kind of background work a job carries
type JobType string

const (
	// JobTypeExtractTasks asks the worker to run LLM task extraction over
	// one persisted chat message
	JobTypeExtractTasks JobType = "extract_tasks"
	// JobTypeAnswerQuestion asks the worker to answer a user question from
	// retrieved chat context
	JobTypeAnswerQuestion JobType = "answer_question"
)

// Job is a unit of background work. Extraction jobs carry MessageID;
// question jobs carry UserID and Question. Both carry ChatID.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	ChatID     int64      `json:"chat_id"`
	MessageID  string     `json:"message_id,omitempty"`
	UserID     int64      `json:"user_id,omitempty"`
	Question   string     `json:"question,omitempty"`
	NotAfter   *time.Time `json:"not_after,omitempty"` // latest useful processing time
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewExtractJob creates an extraction job for a persisted message
func NewExtractJob(chatID int64, messageID string) *Job {
	return newJob(JobTypeExtractTasks, chatID, messageID, 0, "")
}

// NewAnswerJob creates a question-answering job. Answers lose value
// quickly, so the job expires ten minutes after creation.
func NewAnswerJob(chatID, userID int64, question string) *Job {
	job := newJob(JobTypeAnswerQuestion, chatID, "", userID, question)
	notAfter := job.CreatedAt.Add(10 * time.Minute)
	job.NotAfter = &notAfter
	return job
}

func newJob(jobType JobType, chatID int64, messageID string, userID int64, question string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		ChatID:     chatID,
		MessageID:  messageID,
		UserID:     userID,
		Question:   question,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// IsExpired reports whether the job is past its NotAfter deadline
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry reports whether the job may be retried after a failure
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry bumps the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
