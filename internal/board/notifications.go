package board

import (
	"context"
	"fmt"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/store"
)

// NotificationSummary feeds the notification menu on every page.
type NotificationSummary struct {
	Unread      []model.Notification
	UnreadCount int
}

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Items []model.Notification
	Page  int
	Pages int
	Total int
}

// HasPrev reports whether an earlier page exists.
func (p NotificationPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a later page exists.
func (p NotificationPage) HasNext() bool { return p.Page < p.Pages }

// PrevPage returns the previous page number.
func (p NotificationPage) PrevPage() int { return p.Page - 1 }

// NextPage returns the next page number.
func (p NotificationPage) NextPage() int { return p.Page + 1 }

// NotificationSummary returns the actor's unread notifications.
func (b *Board) NotificationSummary(ctx context.Context, actor rules.Actor) (*NotificationSummary, error) {
	unread, err := b.store.GetNotifications(ctx, store.NotificationFilter{
		RecipientID: actor.ID,
		UnreadOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	return &NotificationSummary{Unread: unread, UnreadCount: len(unread)}, nil
}

// NotificationPage marks all of the actor's notifications read and returns
// the requested page. Pages below one give the first page and pages past
// the end give the last.
func (b *Board) NotificationPage(ctx context.Context, actor rules.Actor, page int) (*NotificationPage, error) {
	if _, err := b.store.MarkNotificationsRead(ctx, actor.ID); err != nil {
		return nil, err
	}

	total, err := b.store.CountNotifications(ctx, actor.ID, false)
	if err != nil {
		return nil, err
	}

	pages := (total + b.pageSize - 1) / b.pageSize
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	items, err := b.store.GetNotifications(ctx, store.NotificationFilter{
		RecipientID: actor.ID,
		Limit:       b.pageSize,
		Offset:      (page - 1) * b.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("loading notification page %d: %w", page, err)
	}

	return &NotificationPage{Items: items, Page: page, Pages: pages, Total: total}, nil
}

// MarkNotificationsRead marks the actor's unread notifications read.
func (b *Board) MarkNotificationsRead(ctx context.Context, actor rules.Actor) (int64, error) {
	return b.store.MarkNotificationsRead(ctx, actor.ID)
}

// ClearNotifications deletes all of the actor's notifications.
func (b *Board) ClearNotifications(ctx context.Context, actor rules.Actor) (int64, error) {
	return b.store.DeleteNotifications(ctx, actor.ID)
}
