//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "underwriter/pkg/platform/audit"
	"underwriter/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "audit_events"))
}

func event(action audit.AuditEvent, subject string, at time.Time) audit.Event {
	return audit.Event{
		ID:             uuid.NewString(),
		Timestamp:      at,
		Action:         string(action),
		Subject:        subject,
		RuleSet:        "standard",
		RuleSetVersion: "2.1",
		Decision:       "accept",
		Basis:          "rules",
		Reason:         "Meets standard acceptance criteria",
		RequestID:      "req-1",
		TraceRef:       "trace-1",
	}
}

func (s *AuditStoreSuite) TestAppendAndListBySubject() {
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Append(ctx, event(audit.EventDecisionMade, "APP-1", at)))
	s.Require().NoError(s.store.Append(ctx, event(audit.EventAIFallback, "APP-1", at.Add(time.Second))))
	s.Require().NoError(s.store.Append(ctx, event(audit.EventDecisionMade, "APP-2", at)))

	events, err := s.store.ListBySubject(ctx, "APP-1")

	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventAIFallback), events[0].Action)
	s.Equal(audit.CategoryOperations, events[0].Category)
	s.Equal(string(audit.EventDecisionMade), events[1].Action)
	s.Equal(audit.CategoryCompliance, events[1].Category)
	s.Equal("req-1", events[1].RequestID)
}

func (s *AuditStoreSuite) TestAppendIsIdempotent() {
	ctx := context.Background()
	e := event(audit.EventDecisionMade, "APP-3", time.Now())

	s.Require().NoError(s.store.Append(ctx, e))
	s.Require().NoError(s.store.Append(ctx, e))

	events, err := s.store.ListBySubject(ctx, "APP-3")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *AuditStoreSuite) TestListRecent() {
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, subject := range []string{"APP-A", "APP-B", "APP-C"} {
		s.Require().NoError(s.store.Append(ctx, event(audit.EventDecisionMade, subject, at.Add(time.Duration(i)*time.Minute))))
	}

	events, err := s.store.ListRecent(ctx, 2)

	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("APP-C", events[0].Subject)
	s.Equal("APP-B", events[1].Subject)
}
