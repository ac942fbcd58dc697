package rules

import (
	"sort"

	"github.com/nhle/taskboard/internal/model"
)

// AssignmentDiff partitions the users touched by an assignee change into
// three disjoint, sorted sets.
type AssignmentDiff struct {
	Added    []int64 // in new, not in old
	Removed  []int64 // in old, not in new
	Retained []int64 // in both
}

// DiffAssignees compares the assignee sets before and after an edit.
// Duplicate ids in either input are collapsed.
func DiffAssignees(before, after []int64) AssignmentDiff {
	oldSet := toSet(before)
	newSet := toSet(after)

	var d AssignmentDiff
	for id := range newSet {
		if oldSet[id] {
			d.Retained = append(d.Retained, id)
		} else {
			d.Added = append(d.Added, id)
		}
	}
	for id := range oldSet {
		if !newSet[id] {
			d.Removed = append(d.Removed, id)
		}
	}

	sortIDs(d.Added)
	sortIDs(d.Removed)
	sortIDs(d.Retained)
	return d
}

// Empty reports whether nobody is affected.
func (d AssignmentDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Retained) == 0
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// EditNotifications derives the notifications for a task edit: assigned
// for Added, unassigned for Removed, updated for Retained. The actor never
// notifies themself, and each affected user gets exactly one notification.
func EditNotifications(actorID int64, t model.Task, d AssignmentDiff) []model.Notification {
	var out []model.Notification
	emit := func(ids []int64, kind model.NotificationKind, msg string) {
		for _, id := range ids {
			if id == actorID {
				continue
			}
			out = append(out, newNotification(id, t, kind, msg))
		}
	}
	emit(d.Added, model.KindNewAssignment, assignedMessage(t.Title))
	emit(d.Removed, model.KindUnassignment, unassignedMessage(t.Title))
	emit(d.Retained, model.KindUpdate, updatedMessage(t.Title))
	return out
}
