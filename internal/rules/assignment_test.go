package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/taskboard/internal/model"
)

func TestDiffAssignees(t *testing.T) {
	tests := []struct {
		name     string
		before   []int64
		after    []int64
		added    []int64
		removed  []int64
		retained []int64
	}{
		{
			name:     "swap one assignee",
			before:   []int64{bobID, carolID},
			after:    []int64{carolID, daveID},
			added:    []int64{daveID},
			removed:  []int64{bobID},
			retained: []int64{carolID},
		},
		{
			name:  "from nobody",
			after: []int64{daveID, aliceID},
			added: []int64{aliceID, daveID},
		},
		{
			name:    "to nobody",
			before:  []int64{aliceID},
			removed: []int64{aliceID},
		},
		{
			name:     "duplicates collapse",
			before:   []int64{aliceID, aliceID},
			after:    []int64{aliceID},
			retained: []int64{aliceID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DiffAssignees(tt.before, tt.after)
			assert.Equal(t, tt.added, d.Added)
			assert.Equal(t, tt.removed, d.Removed)
			assert.Equal(t, tt.retained, d.Retained)
		})
	}

	assert.True(t, DiffAssignees(nil, nil).Empty())
}

func TestEditNotifications_SwapAssignees(t *testing.T) {
	task := testTask(carolID, daveID)
	d := DiffAssignees([]int64{bobID, carolID}, []int64{carolID, daveID})

	ns := EditNotifications(managerID, task, d)

	byRecipient := make(map[int64]model.Notification)
	for _, n := range ns {
		_, dup := byRecipient[n.RecipientID]
		assert.False(t, dup, "recipient %d notified twice", n.RecipientID)
		byRecipient[n.RecipientID] = n
	}

	assert.Len(t, byRecipient, 3)
	assert.Equal(t, model.KindUnassignment, byRecipient[bobID].Kind)
	assert.Equal(t, "Задача 'Отчёт' была снята с Вас", byRecipient[bobID].Message)
	assert.Equal(t, model.KindUpdate, byRecipient[carolID].Kind)
	assert.Equal(t, "Задача 'Отчёт' была обновлена", byRecipient[carolID].Message)
	assert.Equal(t, model.KindNewAssignment, byRecipient[daveID].Kind)
	assert.Equal(t, "Задача 'Отчёт' была назначена Вам", byRecipient[daveID].Message)
	assert.NotContains(t, byRecipient, managerID)
}

func TestEditNotifications_SkipsActor(t *testing.T) {
	task := testTask(managerID, aliceID)
	d := DiffAssignees([]int64{aliceID}, []int64{managerID, aliceID})

	ns := EditNotifications(managerID, task, d)
	assert.Equal(t, []int64{aliceID}, recipients(ns))
}
