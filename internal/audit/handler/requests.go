package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ecoaudit/internal/audit"
	dErrors "ecoaudit/pkg/domain-errors"
)

// RecordEventRequest is the JSON body for POST /audit-events. A null or
// absent admin_id records a system-initiated action.
type RecordEventRequest struct {
	AdminID    *string `json:"admin_id"`
	Action     string  `json:"action"`
	TargetType string  `json:"target_type"`
	TargetID   string  `json:"target_id"`
	TargetName string  `json:"target_name"`
	Result     string  `json:"result"`
	Details    string  `json:"details"`
	Reason     string  `json:"reason"`
	IPAddress  string  `json:"ip_address"`
	UserAgent  string  `json:"user_agent"`
}

// ToDomain converts the wire request into a service request.
func (r RecordEventRequest) ToDomain() audit.RecordRequest {
	var adminID string
	if r.AdminID != nil {
		adminID = *r.AdminID
	}
	return audit.RecordRequest{
		AdminID:    adminID,
		Action:     audit.Action(r.Action),
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		TargetName: r.TargetName,
		Result:     audit.Result(r.Result),
		Details:    r.Details,
		Reason:     r.Reason,
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
	}
}

// EventResponse is the JSON shape of one ledger entry.
type EventResponse struct {
	ID          int64     `json:"id"`
	AdminID     *string   `json:"admin_id"`
	Action      string    `json:"action"`
	ActionLabel string    `json:"action_label"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id"`
	TargetName  string    `json:"target_name"`
	Result      string    `json:"result"`
	Details     string    `json:"details,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// FromEvent converts a domain event to its response shape.
func FromEvent(e audit.Event) EventResponse {
	var adminID *string
	if e.AdminID != "" {
		adminID = &e.AdminID
	}
	return EventResponse{
		ID:          e.ID,
		AdminID:     adminID,
		Action:      string(e.Action),
		ActionLabel: e.Action.Label(),
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		TargetName:  e.TargetName,
		Result:      string(e.Result),
		Details:     e.Details,
		Reason:      e.Reason,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		Timestamp:   e.Timestamp,
	}
}

// ListResponse is the JSON body for GET /audit-events. NextCursor is set
// whenever another page may exist; an empty Events slice marks the end.
type ListResponse struct {
	Events     []EventResponse `json:"events"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

// MetadataResponse exposes the action and result vocabularies so dashboards
// render labels consistent with the stored codes.
type MetadataResponse struct {
	Actions map[string]string `json:"actions"`
	Results map[string]string `json:"results"`
}

// parseListQuery translates GET /audit-events query parameters into a domain
// filter and page.
func parseListQuery(r *http.Request) (audit.Filter, audit.Page, error) {
	q := r.URL.Query()

	filter := audit.Filter{
		AdminID:    q.Get("admin_id"),
		TargetType: q.Get("target_type"),
		TargetID:   q.Get("target_id"),
	}

	if v := q.Get("action"); v != "" {
		action := audit.Action(v)
		if !action.Valid() {
			return audit.Filter{}, audit.Page{}, dErrors.New(dErrors.CodeInvalidAction,
				fmt.Sprintf("unknown action %q", v))
		}
		filter.Action = action
	}
	if v := q.Get("result"); v != "" {
		result := audit.Result(v)
		if !result.Valid() {
			return audit.Filter{}, audit.Page{}, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("unknown result %q", v))
		}
		filter.Result = result
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return audit.Filter{}, audit.Page{}, dErrors.New(dErrors.CodeInvalidInput,
				"since must be an RFC 3339 timestamp")
		}
		filter.Since = &ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return audit.Filter{}, audit.Page{}, dErrors.New(dErrors.CodeInvalidInput,
				"until must be an RFC 3339 timestamp")
		}
		filter.Until = &ts
	}

	var page audit.Page
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return audit.Filter{}, audit.Page{}, dErrors.New(dErrors.CodeInvalidInput,
				"limit must be a positive integer")
		}
		page.Limit = limit
	}
	if v := q.Get("cursor"); v != "" {
		cursor, err := audit.ParseCursor(v)
		if err != nil {
			return audit.Filter{}, audit.Page{}, dErrors.New(dErrors.CodeBadRequest, "malformed cursor")
		}
		page.Cursor = cursor
	}

	return filter, page, nil
}
