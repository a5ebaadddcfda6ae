package appointment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConflicts(t *testing.T) {
	day, _ := ParseDate("2026-10-20")
	other, _ := ParseDate("2026-10-21")

	self := uuid.New()
	hit := uuid.New()

	existing := []Appointment{
		{ID: hit, AgentID: "agent-7", Date: day, Time: "09:30", Status: StatusConfirmed},
		{ID: self, AgentID: "agent-7", Date: day, Time: "09:30", Status: StatusPending},
		{ID: uuid.New(), AgentID: "agent-7", Date: day, Time: "09:30", Status: StatusCancelled},
		{ID: uuid.New(), AgentID: "agent-7", Date: day, Time: "09:30", Status: StatusCompleted},
		{ID: uuid.New(), AgentID: "agent-7", Date: day, Time: "10:00", Status: StatusPending},
		{ID: uuid.New(), AgentID: "agent-7", Date: other, Time: "09:30", Status: StatusPending},
		{ID: uuid.New(), AgentID: "agent-8", Date: day, Time: "09:30", Status: StatusPending},
	}

	got := FindConflicts(existing, "agent-7", day, "09:30", self)
	require.Len(t, got, 1)
	assert.Equal(t, hit, got[0].ID)

	got = FindConflicts(existing, "agent-7", day, "09:30", uuid.Nil)
	assert.Len(t, got, 2)
}

func TestFindConflictsWithoutAgent(t *testing.T) {
	day, _ := ParseDate("2026-10-20")
	existing := []Appointment{{ID: uuid.New(), AgentID: "", Date: day, Time: "09:30", Status: StatusPending}}

	assert.Nil(t, FindConflicts(existing, "", day, "09:30", uuid.Nil))
}

func TestConflictErrorIs(t *testing.T) {
	err := error(&ConflictError{Conflicts: make([]Appointment, 2)})
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.Contains(t, err.Error(), "2 existing")
}
