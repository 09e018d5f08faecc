package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/notifyhub/hermes-dispatch/internal/domain"
)

// MockJobRepository is a hand-written, in-memory implementation of
// JobRepository used in unit tests. Claim is a conditional write under the
// mutex, so it is safe to share between concurrent dispatchers.
type MockJobRepository struct {
	mu     sync.RWMutex
	jobs   map[string]*domain.Job
	schema domain.Schema

	// Optional error overrides, set in tests to simulate failure paths.
	ClaimErr  error
	FetchErr  error
	SaveErr   error
	InsertErr error
	StatsErr  error

	// SaveCalls counts SaveStatus invocations.
	SaveCalls int
}

// NewMockJobRepository returns an empty mock exposing every optional column.
func NewMockJobRepository() *MockJobRepository {
	return NewMockJobRepositoryWithSchema(domain.Schema{
		HasRetry:    true,
		HasAffinity: true,
		HasSentBy:   true,
		HasLastSent: true,
	})
}

func NewMockJobRepositoryWithSchema(schema domain.Schema) *MockJobRepository {
	return &MockJobRepository{
		jobs:   make(map[string]*domain.Job),
		schema: schema,
	}
}

func (m *MockJobRepository) Schema() domain.Schema {
	return m.schema
}

func (m *MockJobRepository) Claim(_ context.Context, req domain.ClaimRequest) (int, error) {
	if m.ClaimErr != nil {
		return 0, m.ClaimErr
	}
	if !m.schema.HasAffinity && !req.IncludeUnassigned {
		return 0, domain.ErrAffinityUnsupported
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	claimed := 0
	for _, id := range m.sortedIDs() {
		if claimed >= req.Limit {
			break
		}
		j := m.jobs[id]
		if j.IsClaimed() || !m.matchesAffinity(j, req) {
			continue
		}
		j.Signature = req.Signature
		claimed++
	}
	return claimed, nil
}

func (m *MockJobRepository) matchesAffinity(j *domain.Job, req domain.ClaimRequest) bool {
	if !m.schema.HasAffinity {
		return true
	}
	if j.AssignedServer == nil {
		return req.IncludeUnassigned
	}
	return *j.AssignedServer == req.ServerID
}

func (m *MockJobRepository) FetchSigned(_ context.Context, signature string, limit int) ([]*domain.Job, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.Job
	for _, id := range m.sortedIDs() {
		if len(result) >= limit {
			break
		}
		j := m.jobs[id]
		if j.Signature != signature || j.Status.IsAbsorbing() {
			continue
		}
		result = append(result, cloneJob(j))
	}
	return result, nil
}

func (m *MockJobRepository) SaveStatus(_ context.Context, job *domain.Job) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	j, ok := m.jobs[job.ID]
	if !ok || (job.Signature != "" && j.Signature != job.Signature) {
		return nil
	}
	j.Status = job.Status
	if m.schema.HasRetry {
		j.RetryCount = job.RetryCount
	}
	if m.schema.HasSentBy && job.SentBy != nil {
		v := *job.SentBy
		j.SentBy = &v
	}
	if m.schema.HasLastSent && job.LastSent != nil {
		v := *job.LastSent
		j.LastSent = &v
	}
	return nil
}

func (m *MockJobRepository) Insert(_ context.Context, jobs []*domain.Job) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range jobs {
		m.jobs[j.ID] = cloneJob(j)
	}
	return nil
}

func (m *MockJobRepository) Stats(_ context.Context) (domain.Stats, error) {
	if m.StatsErr != nil {
		return domain.Stats{}, m.StatsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := domain.Stats{Total: len(m.jobs)}
	for _, j := range m.jobs {
		if !j.IsClaimed() {
			s.Unclaimed++
		}
		switch j.Status {
		case domain.StatusNever:
			s.Never++
		case domain.StatusRetry:
			s.Retry++
		case domain.StatusSucceed:
			s.Succeed++
		case domain.StatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

// Get returns a copy of the stored job.
func (m *MockJobRepository) Get(id string) (*domain.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(j), true
}

// All returns copies of every stored job ordered by id.
func (m *MockJobRepository) All() []*domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Job, 0, len(m.jobs))
	for _, id := range m.sortedIDs() {
		result = append(result, cloneJob(m.jobs[id]))
	}
	return result
}

func (m *MockJobRepository) sortedIDs() []string {
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneJob(j *domain.Job) *domain.Job {
	clone := *j
	clone.Payload = make(map[string]string, len(j.Payload))
	for k, v := range j.Payload {
		clone.Payload[k] = v
	}
	if j.AssignedServer != nil {
		v := *j.AssignedServer
		clone.AssignedServer = &v
	}
	return &clone
}

var _ JobRepository = (*MockJobRepository)(nil)
