package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ecoaudit/internal/audit"
)

type LedgerSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *LedgerSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) newEvent(action audit.Action, ts time.Time) *audit.Event {
	return &audit.Event{
		AdminID:    "admin-1",
		Action:     action,
		TargetType: "User",
		TargetID:   "42",
		TargetName: "Jane Doe (jane@example.com)",
		Result:     audit.ResultSuccess,
		Timestamp:  ts,
	}
}

func (s *LedgerSuite) TestAppendAssignsUniqueMonotonicIDs() {
	seen := map[int64]bool{}
	for range 5 {
		e := s.newEvent(audit.ActionUserBlocked, time.Time{})
		s.Require().NoError(s.store.Append(s.ctx, e))
		s.False(seen[e.ID], "id %d assigned twice", e.ID)
		seen[e.ID] = true
		s.False(e.Timestamp.IsZero(), "timestamp should be assigned")
	}
	s.Equal(5, s.store.Len())
}

func (s *LedgerSuite) TestAppendedEventImmediatelyVisible() {
	e := s.newEvent(audit.ActionNGOApproved, time.Time{})
	s.Require().NoError(s.store.Append(s.ctx, e))

	got, err := s.store.Query(s.ctx, audit.Filter{Action: audit.ActionNGOApproved}, audit.Page{})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(e.ID, got[0].ID)
}

func (s *LedgerSuite) TestDefaultOrderingIsReverseChronological() {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 3 {
		e := s.newEvent(audit.ActionListingRemoved, base.Add(time.Duration(i)*time.Minute))
		e.TargetType, e.TargetID = "Listing", "7"
		s.Require().NoError(s.store.Append(s.ctx, e))
	}

	got, err := s.store.Query(s.ctx, audit.Filter{TargetType: "Listing", TargetID: "7"}, audit.Page{})
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.True(got[0].Timestamp.After(got[1].Timestamp))
	s.True(got[1].Timestamp.After(got[2].Timestamp))
}

func (s *LedgerSuite) TestTimestampTiesBreakByIDDescending() {
	ts := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for range 3 {
		s.Require().NoError(s.store.Append(s.ctx, s.newEvent(audit.ActionUserBlocked, ts)))
	}

	got, err := s.store.Query(s.ctx, audit.Filter{}, audit.Page{})
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Greater(got[0].ID, got[1].ID)
	s.Greater(got[1].ID, got[2].ID)
}

func (s *LedgerSuite) TestFilterCombinations() {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	blocked1 := s.newEvent(audit.ActionUserBlocked, base)
	approved := s.newEvent(audit.ActionNGOApproved, base.Add(time.Minute))
	approved.AdminID = "admin-2"
	blocked2 := s.newEvent(audit.ActionUserBlocked, base.Add(2*time.Minute))

	for _, e := range []*audit.Event{blocked1, approved, blocked2} {
		s.Require().NoError(s.store.Append(s.ctx, e))
	}

	s.Run("by action", func() {
		got, err := s.store.Query(s.ctx, audit.Filter{Action: audit.ActionUserBlocked}, audit.Page{})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(blocked2.ID, got[0].ID)
		s.Equal(blocked1.ID, got[1].ID)
	})

	s.Run("by admin", func() {
		got, err := s.store.Query(s.ctx, audit.Filter{AdminID: "admin-2"}, audit.Page{})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(approved.ID, got[0].ID)
	})

	s.Run("by time range", func() {
		since := base.Add(30 * time.Second)
		until := base.Add(90 * time.Second)
		got, err := s.store.Query(s.ctx, audit.Filter{Since: &since, Until: &until}, audit.Page{})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(approved.ID, got[0].ID)
	})

	s.Run("no match returns empty, not error", func() {
		got, err := s.store.Query(s.ctx, audit.Filter{TargetID: "does-not-exist"}, audit.Page{})
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *LedgerSuite) TestQueryIsIdempotent() {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 4 {
		s.Require().NoError(s.store.Append(s.ctx, s.newEvent(audit.ActionOther, base.Add(time.Duration(i)*time.Second))))
	}

	first, err := s.store.Query(s.ctx, audit.Filter{}, audit.Page{})
	s.Require().NoError(err)
	second, err := s.store.Query(s.ctx, audit.Filter{}, audit.Page{})
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *LedgerSuite) TestCursorPaginationWalksWholeLedger() {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 7 {
		s.Require().NoError(s.store.Append(s.ctx, s.newEvent(audit.ActionUserBlocked, base.Add(time.Duration(i)*time.Second))))
	}

	var collected []int64
	var cursor *audit.Cursor
	for {
		got, err := s.store.Query(s.ctx, audit.Filter{}, audit.Page{Limit: 3, Cursor: cursor})
		s.Require().NoError(err)
		if len(got) == 0 {
			break
		}
		for _, e := range got {
			collected = append(collected, e.ID)
		}
		last := got[len(got)-1]
		cursor = &audit.Cursor{Timestamp: last.Timestamp, ID: last.ID}
	}

	s.Require().Len(collected, 7)
	for i := 1; i < len(collected); i++ {
		s.Greater(collected[i-1], collected[i], "ids must strictly descend across pages")
	}
}

func (s *LedgerSuite) TestStoredRecordsAreInsulatedFromCallerMutation() {
	e := s.newEvent(audit.ActionUserDeleted, time.Time{})
	s.Require().NoError(s.store.Append(s.ctx, e))

	// Mutating the caller's copy must not reach the ledger.
	e.Action = audit.ActionUserUnblocked
	e.TargetID = "tampered"

	got, err := s.store.Query(s.ctx, audit.Filter{Action: audit.ActionUserDeleted}, audit.Page{})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("42", got[0].TargetID)
}

func (s *LedgerSuite) TestClockRegressionKeepsOrderTotal() {
	later := time.Date(2025, 5, 1, 10, 0, 5, 0, time.UTC)
	earlier := later.Add(-2 * time.Second)

	first := s.newEvent(audit.ActionUserBlocked, later)
	s.Require().NoError(s.store.Append(s.ctx, first))

	second := s.newEvent(audit.ActionUserBlocked, earlier)
	s.Require().NoError(s.store.Append(s.ctx, second))

	// The second event's timestamp is clamped to the first's.
	s.False(second.Timestamp.Before(first.Timestamp))
}
