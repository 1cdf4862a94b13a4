// test/mock/audit.go
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

var _ audit.Service = &MockAuditService{}

func (m *MockAuditService) LogAccess(ctx context.Context, log audit.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditService) QueryLogs(ctx context.Context, from, to time.Time, subjectID, path string) ([]audit.AuditLog, error) {
	args := m.Called(ctx, from, to, subjectID, path)
	logs, _ := args.Get(0).([]audit.AuditLog)
	return logs, args.Error(1)
}

// RecordingSink collects audit events in memory.
type RecordingSink struct {
	mu     sync.Mutex
	events []audit.AuditLog
}

var _ audit.Sink = &RecordingSink{}

func (s *RecordingSink) Record(_ context.Context, log audit.AuditLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, log)
}

func (s *RecordingSink) Events() []audit.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.AuditLog, len(s.events))
	copy(out, s.events)
	return out
}

func (s *RecordingSink) Last() audit.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return audit.AuditLog{}
	}
	return s.events[len(s.events)-1]
}
