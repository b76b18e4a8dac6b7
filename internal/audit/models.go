// Package audit defines the administrative activity ledger: the immutable
// event record, its action/result vocabularies, and the service façade that
// validates and persists events.
package audit

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Action classifies what an administrator did. The set is closed; callers
// with a new kind of action use ActionOther plus a description in Details
// rather than waiting for a vocabulary change.
type Action string

const (
	ActionUserBlocked          Action = "user_blocked"
	ActionUserUnblocked        Action = "user_unblocked"
	ActionUserDeleted          Action = "user_deleted"
	ActionRoleChanged          Action = "role_changed"
	ActionNGOApproved          Action = "ngo_approved"
	ActionNGORejected          Action = "ngo_rejected"
	ActionRecyclerApproved     Action = "recycler_approved"
	ActionRecyclerRejected     Action = "recycler_rejected"
	ActionListingRemoved       Action = "listing_removed"
	ActionListingRestored      Action = "listing_restored"
	ActionReportResolved       Action = "report_resolved"
	ActionReportClosed         Action = "report_closed"
	ActionDisputeResolved      Action = "dispute_resolved"
	ActionVerificationApproved Action = "verification_approved"
	ActionVerificationRejected Action = "verification_rejected"
	ActionOther                Action = "other"
)

// actionLabels is the canonical code→label mapping. Read-only after init;
// external renderers fetch it through ActionLabels so dashboards stay
// consistent with the stored codes.
var actionLabels = map[Action]string{
	ActionUserBlocked:          "User blocked",
	ActionUserUnblocked:        "User unblocked",
	ActionUserDeleted:          "User deleted",
	ActionRoleChanged:          "Role changed",
	ActionNGOApproved:          "NGO approved",
	ActionNGORejected:          "NGO rejected",
	ActionRecyclerApproved:     "Recycler approved",
	ActionRecyclerRejected:     "Recycler rejected",
	ActionListingRemoved:       "Listing removed",
	ActionListingRestored:      "Listing restored",
	ActionReportResolved:       "Report resolved",
	ActionReportClosed:         "Report closed",
	ActionDisputeResolved:      "Dispute resolved",
	ActionVerificationApproved: "Verification approved",
	ActionVerificationRejected: "Verification rejected",
	ActionOther:                "Other",
}

// Valid reports whether a belongs to the recognized vocabulary.
func (a Action) Valid() bool {
	_, ok := actionLabels[a]
	return ok
}

// Label returns the human-readable label for the action code.
func (a Action) Label() string {
	return actionLabels[a]
}

// ActionLabels returns a copy of the canonical action→label mapping.
func ActionLabels() map[Action]string {
	out := make(map[Action]string, len(actionLabels))
	for k, v := range actionLabels {
		out[k] = v
	}
	return out
}

// Result is the outcome state of the recorded action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultPending Result = "pending"
)

var resultLabels = map[Result]string{
	ResultSuccess: "Success",
	ResultFailed:  "Failed",
	ResultPending: "Pending",
}

// Valid reports whether r is one of the three defined states.
func (r Result) Valid() bool {
	_, ok := resultLabels[r]
	return ok
}

// Label returns the human-readable label for the result code.
func (r Result) Label() string {
	return resultLabels[r]
}

// ResultLabels returns a copy of the canonical result→label mapping.
func ResultLabels() map[Result]string {
	out := make(map[Result]string, len(resultLabels))
	for k, v := range resultLabels {
		out[k] = v
	}
	return out
}

// Event is one immutable ledger entry describing a single administrative
// action. AdminID and the target fields are plain identifiers, never foreign
// keys: the log must stay valid after the admin or the target is deleted
// from its own source of truth.
type Event struct {
	ID         int64
	AdminID    string // empty means the action was system-initiated
	Action     Action
	TargetType string
	TargetID   string
	TargetName string // snapshot at action time, never re-derived
	Result     Result
	Details    string
	Reason     string
	IPAddress  string
	UserAgent  string
	Timestamp  time.Time
}

// Filter selects events; zero-valued fields match everything.
type Filter struct {
	AdminID    string
	Action     Action
	TargetType string
	TargetID   string
	Result     Result
	Since      *time.Time // inclusive lower bound
	Until      *time.Time // inclusive upper bound
}

// IsZero reports whether the filter matches all events.
func (f Filter) IsZero() bool {
	return f.AdminID == "" && f.Action == "" && f.TargetType == "" &&
		f.TargetID == "" && f.Result == "" && f.Since == nil && f.Until == nil
}

// Matches reports whether the event satisfies every set predicate.
func (f Filter) Matches(e Event) bool {
	if f.AdminID != "" && e.AdminID != f.AdminID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.TargetType != "" && e.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

// Cursor marks a position in the (timestamp DESC, id DESC) ordering. A page
// fetched with a cursor contains only events strictly after that position,
// so paging stays stable under concurrent appends.
type Cursor struct {
	Timestamp time.Time
	ID        int64
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%d", c.Timestamp.UnixNano(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a token produced by Encode.
func ParseCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor id: %w", err)
	}
	return &Cursor{Timestamp: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// Page bounds a query's result size.
type Page struct {
	Limit  int
	Cursor *Cursor
}
