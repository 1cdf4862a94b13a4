package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testify_mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/echo/gatekeeper/audit"
	"github.com/dev-mohitbeniwal/echo/gatekeeper/test/mock"
)

func TestEmitter_WritesQueuedEvents(t *testing.T) {
	svc := &mock.MockAuditService{}
	svc.On("LogAccess", testify_mock.Anything, testify_mock.AnythingOfType("audit.AuditLog")).Return(nil)

	e := audit.NewEmitter(svc, 16, 2, time.Second)
	e.Start()
	for i := 0; i < 5; i++ {
		e.Record(context.Background(), audit.AuditLog{SubjectID: "U1", Action: audit.ActionAuthenticate, Outcome: "allowed"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Close(ctx))

	svc.AssertNumberOfCalls(t, "LogAccess", 5)
	assert.Zero(t, e.Dropped())
}

func TestEmitter_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	svc := &mock.MockAuditService{}
	svc.On("LogAccess", testify_mock.Anything, testify_mock.Anything).
		Run(func(testify_mock.Arguments) { <-release }).
		Return(nil)

	e := audit.NewEmitter(svc, 1, 1, time.Second)
	// Nothing drains until Start, so the second event cannot fit.
	e.Record(context.Background(), audit.AuditLog{SubjectID: "U1"})
	e.Record(context.Background(), audit.AuditLog{SubjectID: "U2"})
	assert.Equal(t, int64(1), e.Dropped())

	e.Start()
	once.Do(func() { close(release) })
	require.NoError(t, e.Close(context.Background()))
	svc.AssertNumberOfCalls(t, "LogAccess", 1)
}

func TestEmitter_WriteFailureDoesNotStopWorkers(t *testing.T) {
	svc := &mock.MockAuditService{}
	svc.On("LogAccess", testify_mock.Anything, testify_mock.MatchedBy(func(l audit.AuditLog) bool { return l.SubjectID == "bad" })).
		Return(errors.New("elasticsearch unavailable"))
	svc.On("LogAccess", testify_mock.Anything, testify_mock.MatchedBy(func(l audit.AuditLog) bool { return l.SubjectID == "good" })).
		Return(nil)

	e := audit.NewEmitter(svc, 4, 1, time.Second)
	e.Start()
	e.Record(context.Background(), audit.AuditLog{SubjectID: "bad"})
	e.Record(context.Background(), audit.AuditLog{SubjectID: "good"})
	require.NoError(t, e.Close(context.Background()))

	svc.AssertNumberOfCalls(t, "LogAccess", 2)
}

func TestEmitter_RecordAfterCloseIsDropped(t *testing.T) {
	svc := &mock.MockAuditService{}
	e := audit.NewEmitter(svc, 4, 1, time.Second)
	e.Start()
	require.NoError(t, e.Close(context.Background()))

	assert.NotPanics(t, func() {
		e.Record(context.Background(), audit.AuditLog{SubjectID: "late"})
	})
	assert.Equal(t, int64(1), e.Dropped())
	require.NoError(t, e.Close(context.Background()))
}
