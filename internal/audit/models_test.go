package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionValid(t *testing.T) {
	assert.True(t, ActionUserBlocked.Valid())
	assert.True(t, ActionOther.Valid())
	assert.False(t, Action("not_a_real_action").Valid())
	assert.False(t, Action("data_exported").Valid(), "outside the closed set; callers use other + details")
	assert.False(t, Action("").Valid())
}

func TestLabelMapsAreCopies(t *testing.T) {
	labels := ActionLabels()
	labels[ActionUserBlocked] = "tampered"
	assert.Equal(t, "User blocked", ActionUserBlocked.Label())

	results := ResultLabels()
	results[ResultSuccess] = "tampered"
	assert.Equal(t, "Success", ResultSuccess.Label())
}

func TestEveryActionHasLabel(t *testing.T) {
	for action, label := range ActionLabels() {
		assert.NotEmpty(t, label, "action %q has no label", action)
	}
}

func TestFilterMatches(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := Event{
		AdminID:    "admin-1",
		Action:     ActionListingRemoved,
		TargetType: "Listing",
		TargetID:   "7",
		Result:     ResultSuccess,
		Timestamp:  ts,
	}

	t.Run("zero filter matches everything", func(t *testing.T) {
		assert.True(t, Filter{}.Matches(event))
	})

	t.Run("field mismatch rejects", func(t *testing.T) {
		assert.False(t, Filter{Action: ActionUserBlocked}.Matches(event))
		assert.False(t, Filter{AdminID: "admin-2"}.Matches(event))
		assert.False(t, Filter{Result: ResultFailed}.Matches(event))
	})

	t.Run("time bounds are inclusive", func(t *testing.T) {
		assert.True(t, Filter{Since: &ts, Until: &ts}.Matches(event))

		after := ts.Add(time.Second)
		assert.False(t, Filter{Since: &after}.Matches(event))

		before := ts.Add(-time.Second)
		assert.False(t, Filter{Until: &before}.Matches(event))
	})
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{Timestamp: time.Date(2025, 3, 9, 8, 7, 6, 500, time.UTC), ID: 42}

	parsed, err := ParseCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, parsed.Timestamp.Equal(c.Timestamp))
	assert.Equal(t, int64(42), parsed.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "!!!", "bm90LWEtY3Vyc29y", "MTIzNA"} {
		_, err := ParseCursor(token)
		assert.Error(t, err, "token %q should not parse", token)
	}
}
