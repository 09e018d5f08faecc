package domain

import "time"

// Status is the send state of a queued mail.
// The zero value is StatusNever, stored as NULL (or an empty string).
type Status string

const (
	StatusNever   Status = ""
	StatusRetry   Status = "retry"
	StatusSucceed Status = "succeed"
	StatusFailed  Status = "failed"
)

// IsValid reports whether s is one of the four known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusNever, StatusRetry, StatusSucceed, StatusFailed:
		return true
	}
	return false
}

// IsAbsorbing reports whether s is terminal. Absorbing jobs are never
// fetched or mutated again.
func (s Status) IsAbsorbing() bool {
	return s == StatusSucceed || s == StatusFailed
}

func (s Status) String() string {
	if s == StatusNever {
		return "never"
	}
	return string(s)
}

// Job is one outbound mail row. Payload holds the columns named by the
// configured field map; the dispatcher never interprets it.
type Job struct {
	ID             string            `json:"id"`
	Status         Status            `json:"status"`
	RetryCount     int               `json:"retry_count"`
	Signature      string            `json:"signature,omitempty"`
	AssignedServer *int              `json:"assigned_server,omitempty"`
	Payload        map[string]string `json:"payload"`

	// Stamped on persist only when sent-by recording is enabled.
	SentBy   *int       `json:"sent_by,omitempty"`
	LastSent *time.Time `json:"last_sent,omitempty"`
}

// IsClaimed reports whether some worker has signed the job.
func (j *Job) IsClaimed() bool {
	return j.Signature != ""
}

// ClaimRequest describes one atomic claim call.
type ClaimRequest struct {
	ServerID          int
	Signature         string
	Limit             int
	IncludeUnassigned bool
}

// ClaimBatch is the result of one claim call: Claimed rows out of Limit
// requested now carry Signature.
type ClaimBatch struct {
	Limit     int
	Claimed   int
	Signature string
}

// Stats is a point-in-time count of rows by status.
type Stats struct {
	Total     int `json:"total"`
	Unclaimed int `json:"unclaimed"`
	Never     int `json:"never"`
	Retry     int `json:"retry"`
	Succeed   int `json:"succeed"`
	Failed    int `json:"failed"`
}

// EnqueueRequest is the inbound payload for a single mail.
type EnqueueRequest struct {
	To             string `json:"to"`
	From           string `json:"from"`
	FromName       string `json:"from_name,omitempty"`
	ReplyTo        string `json:"reply_to,omitempty"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	IsHTML         *bool  `json:"is_html,omitempty"`
	AssignedServer *int   `json:"assigned_server,omitempty"`
}

func (r *EnqueueRequest) Validate() error {
	if r.To == "" {
		return ErrInvalidRecipient
	}
	if r.From == "" {
		return ErrInvalidSender
	}
	if len(r.Subject) > 100 {
		return ErrInvalidSubject
	}
	if r.Body == "" {
		return ErrInvalidBody
	}
	if r.AssignedServer != nil && *r.AssignedServer < 0 {
		return ErrInvalidServer
	}
	return nil
}
