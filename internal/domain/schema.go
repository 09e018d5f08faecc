package domain

// Schema describes which optional columns the backing table exposes.
// It is resolved once when a repository is opened.
type Schema struct {
	HasRetry    bool
	HasAffinity bool
	HasSentBy   bool
	HasLastSent bool
}

// RetryPolicy is either WithRetry or WithoutRetry.
type RetryPolicy interface {
	retryPolicy()
}

// WithRetry tracks failed attempts up to Limit retries.
type WithRetry struct {
	Limit int
}

// WithoutRetry gives every job exactly one attempt.
type WithoutRetry struct{}

func (WithRetry) retryPolicy()    {}
func (WithoutRetry) retryPolicy() {}

// NewRetryPolicy enables retry tracking only when the schema has a retry
// column and limit is positive.
func NewRetryPolicy(schema Schema, limit int) RetryPolicy {
	if !schema.HasRetry || limit <= 0 {
		return WithoutRetry{}
	}
	return WithRetry{Limit: limit}
}
