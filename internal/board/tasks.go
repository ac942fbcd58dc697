package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/nhle/taskboard/internal/crossref"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/store"
)

// TaskQuery carries the raw list filters from the query string.
type TaskQuery struct {
	Deadline   string // overdue, today, future
	Status     string // managers only
	AssignedTo string // managers only
	Sort       string // deadline
	Direction  string // asc, desc
}

// TaskView is a task with what the viewer may see and do on its page.
type TaskView struct {
	Task        model.Task
	Comments    []model.Comment
	Transitions []model.TaskStatus
	Overdue     bool
	CanEdit     bool

	// Related are the tasks referenced as #id in the description or the
	// comments that the viewer may open.
	Related []model.Task
}

// ListTasks returns the non-archived tasks visible to actor. Managers see
// every task and may filter by status and assignee; everyone else sees
// their own assignments. Listing records an overdue notification for every
// overdue task in the result that does not have one yet.
func (b *Board) ListTasks(ctx context.Context, actor rules.Actor, q TaskQuery) ([]model.Task, error) {
	now := b.now()
	archived := model.StatusArchived
	filter := store.TaskFilter{
		ExcludeStatus: &archived,
		Now:           now,
		Location:      b.loc,
	}

	if actor.IsManager() {
		if st, err := model.ParseTaskStatus(q.Status); err == nil && st != model.StatusArchived {
			filter.Status = &st
		}
		if id, err := strconv.ParseInt(strings.TrimSpace(q.AssignedTo), 10, 64); err == nil {
			filter.AssigneeID = &id
		}
	} else {
		id := actor.ID
		filter.AssigneeID = &id
	}

	switch q.Deadline {
	case store.DeadlineOverdue, store.DeadlineToday, store.DeadlineFuture:
		filter.Deadline = q.Deadline
	}

	if q.Sort == "deadline" {
		filter.SortBy = "deadline"
		filter.SortDesc = q.Direction == "desc"
	}

	tasks, err := b.store.GetTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	if _, err := b.ensureOverdue(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ArchivedTasks lists archived tasks for managers.
func (b *Board) ArchivedTasks(ctx context.Context, actor rules.Actor) ([]model.Task, error) {
	if err := rules.RequireManager(actor); err != nil {
		return nil, err
	}
	archived := model.StatusArchived
	tasks, err := b.store.GetTasks(ctx, store.TaskFilter{Status: &archived})
	if err != nil {
		return nil, fmt.Errorf("listing archived tasks: %w", err)
	}
	return tasks, nil
}

// TaskDetail loads a task with its comments for a manager or assignee.
func (b *Board) TaskDetail(ctx context.Context, actor rules.Actor, id int64) (*TaskView, error) {
	t, err := b.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rules.CanViewTask(actor, *t); err != nil {
		return nil, err
	}

	comments, err := b.store.GetComments(ctx, id)
	if err != nil {
		return nil, err
	}

	related, err := b.relatedTasks(ctx, actor, *t, comments)
	if err != nil {
		return nil, err
	}

	return &TaskView{
		Task:        *t,
		Comments:    comments,
		Transitions: rules.AllowedTransitions(actor, *t),
		Overdue:     t.IsOverdue(b.now()),
		CanEdit:     actor.IsManager(),
		Related:     related,
	}, nil
}

// relatedTasks resolves #id references in t and its comments. Missing and
// unviewable tasks are skipped.
func (b *Board) relatedTasks(ctx context.Context, actor rules.Actor, t model.Task, comments []model.Comment) ([]model.Task, error) {
	texts := []string{t.Description}
	for _, c := range comments {
		texts = append(texts, c.Text)
	}

	var related []model.Task
	for _, ref := range crossref.ExtractTaskRefs(strings.Join(texts, "\n")) {
		if ref == t.ID {
			continue
		}
		rt, err := b.store.GetTaskByID(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if rules.CanViewTask(actor, *rt) == nil {
			related = append(related, *rt)
		}
	}
	return related, nil
}

// CreateTask validates f, stores the task with actor as creator and tells
// the assignees.
func (b *Board) CreateTask(ctx context.Context, actor rules.Actor, f TaskForm) (*model.Task, error) {
	if err := rules.RequireManager(actor); err != nil {
		return nil, err
	}
	in, err := b.validateTask(ctx, f)
	if err != nil {
		return nil, err
	}

	t := model.Task{
		Title:       in.Title,
		Description: in.Description,
		Deadline:    in.Deadline,
		Status:      model.StatusInProgress,
		CreatedBy:   actor.ID,
	}
	if err := b.store.CreateTask(ctx, &t, in.AssigneeIDs); err != nil {
		return nil, err
	}

	created, err := b.store.GetTaskByID(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	log.Printf("[board] task %d created by user %d with %d assignees", created.ID, actor.ID, len(created.Assignees))

	if err := b.emit(ctx, rules.CreationNotifications(actor.ID, *created)); err != nil {
		return nil, err
	}
	return created, nil
}

// EditTask replaces a task's fields and assignees. The creator and status
// are kept. Added, removed and retained assignees are told accordingly.
func (b *Board) EditTask(ctx context.Context, actor rules.Actor, id int64, f TaskForm) (*model.Task, error) {
	existing, err := b.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rules.RequireManager(actor); err != nil {
		return nil, err
	}
	in, err := b.validateTask(ctx, f)
	if err != nil {
		return nil, err
	}

	before := existing.AssigneeIDs()

	updated := *existing
	updated.Title = in.Title
	updated.Description = in.Description
	updated.Deadline = in.Deadline
	if err := b.store.UpdateTask(ctx, updated, in.AssigneeIDs); err != nil {
		return nil, err
	}

	saved, err := b.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}

	diff := rules.DiffAssignees(before, in.AssigneeIDs)
	log.Printf("[board] task %d edited by user %d: +%d -%d =%d",
		id, actor.ID, len(diff.Added), len(diff.Removed), len(diff.Retained))

	if err := b.emit(ctx, rules.EditNotifications(actor.ID, *saved, diff)); err != nil {
		return nil, err
	}
	return saved, nil
}

// DeleteTask removes a task with its comments and notifications.
func (b *Board) DeleteTask(ctx context.Context, actor rules.Actor, id int64) error {
	if err := rules.RequireManager(actor); err != nil {
		return err
	}
	if err := b.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	log.Printf("[board] task %d deleted by user %d", id, actor.ID)
	return nil
}

// ChangeStatus applies a status change when the rules allow it. Viewing
// the task is required; beyond that a rejected or unknown status is a
// no-op and reports false.
func (b *Board) ChangeStatus(ctx context.Context, actor rules.Actor, id int64, status string) (bool, error) {
	t, err := b.store.GetTaskByID(ctx, id)
	if err != nil {
		return false, err
	}
	if err := rules.CanViewTask(actor, *t); err != nil {
		return false, err
	}

	tr, err := rules.ResolveTransition(actor, *t, status)
	if err != nil {
		log.Printf("[board] user %d: status %q on task %d ignored: %v", actor.ID, status, id, err)
		return false, nil
	}

	if err := b.store.UpdateTaskStatus(ctx, id, tr.To); err != nil {
		return false, err
	}
	if err := b.emit(ctx, tr.Notifications); err != nil {
		return true, err
	}
	return true, nil
}

// AddComment stores a comment from a viewer of the task and tells the
// creator and assignees other than the author.
func (b *Board) AddComment(ctx context.Context, actor rules.Actor, id int64, text string) (*model.Comment, error) {
	t, err := b.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rules.CanViewTask(actor, *t); err != nil {
		return nil, err
	}

	form := CommentForm{Text: strings.TrimSpace(text)}
	errs, err := checkStruct(form)
	if err != nil {
		return nil, err
	}
	if err := errs.orNil(); err != nil {
		return nil, err
	}

	author, err := b.store.GetUserByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	c := model.Comment{TaskID: id, CreatedBy: actor.ID, Text: form.Text}
	if err := b.store.CreateComment(ctx, &c); err != nil {
		return nil, err
	}
	c.Author = author.Ref()

	if err := b.emit(ctx, rules.CommentNotifications(author.Ref(), *t)); err != nil {
		return nil, err
	}
	return &c, nil
}

// SweepOverdue records overdue notifications for every overdue task that
// is not archived and returns how many were new.
func (b *Board) SweepOverdue(ctx context.Context) (int, error) {
	archived := model.StatusArchived
	tasks, err := b.store.GetTasks(ctx, store.TaskFilter{
		ExcludeStatus: &archived,
		Deadline:      store.DeadlineOverdue,
		Now:           b.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("listing overdue tasks: %w", err)
	}
	return b.ensureOverdue(ctx, tasks)
}

// ensureOverdue records the overdue notification for each overdue task in
// tasks. Repeated calls add nothing.
func (b *Board) ensureOverdue(ctx context.Context, tasks []model.Task) (int, error) {
	now := b.now()
	created := 0
	for _, t := range tasks {
		n, err := b.emitOnce(ctx, rules.OverdueNotifications(t, now))
		created += n
		if err != nil {
			return created, fmt.Errorf("overdue check for task %d: %w", t.ID, err)
		}
	}
	return created, nil
}
