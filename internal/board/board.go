// Package board is the application service for the task board. It loads
// state from the store, asks the rules what is permitted and which
// notifications follow, persists the outcome and hands notifications to
// the optional deliverer.
package board

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/notify"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/store"
)

// Options configures a Board. Zero values fall back to defaults.
type Options struct {
	// Deliverer receives a copy of every stored notification. Nil disables
	// delivery.
	Deliverer notify.Deliverer

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// Location interprets deadlines entered without an offset and bounds
	// the "today" filter. Defaults to time.Local.
	Location *time.Location

	Employees  model.EmployeeConfig
	PageSize   int
	SessionTTL time.Duration

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Board orchestrates tasks, comments, notifications and accounts.
type Board struct {
	store      store.Store
	deliverer  notify.Deliverer
	now        func() time.Time
	loc        *time.Location
	employees  model.EmployeeConfig
	pageSize   int
	sessionTTL time.Duration
	bcryptCost int
}

// New creates a Board backed by s.
func New(s store.Store, opts Options) *Board {
	b := &Board{
		store:      s,
		deliverer:  opts.Deliverer,
		now:        opts.Now,
		loc:        opts.Location,
		employees:  opts.Employees,
		pageSize:   opts.PageSize,
		sessionTTL: opts.SessionTTL,
		bcryptCost: opts.BcryptCost,
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.loc == nil {
		b.loc = time.Local
	}
	if b.employees.PasswordScheme == "" {
		b.employees.PasswordScheme = model.PasswordSchemeRandom
	}
	if b.employees.PasswordPrefix == "" {
		b.employees.PasswordPrefix = "1234"
	}
	if b.pageSize <= 0 {
		b.pageSize = 10
	}
	if b.sessionTTL <= 0 {
		b.sessionTTL = 14 * 24 * time.Hour
	}
	if b.bcryptCost == 0 {
		b.bcryptCost = bcrypt.DefaultCost
	}
	return b
}

// Now returns the board's current time.
func (b *Board) Now() time.Time {
	return b.now()
}

// Location returns the timezone deadlines are entered in.
func (b *Board) Location() *time.Location {
	return b.loc
}

// Actor loads a user and resolves their role for the rest of the request.
func (b *Board) Actor(ctx context.Context, userID int64) (rules.Actor, *model.User, error) {
	u, err := b.store.GetUserByID(ctx, userID)
	if err != nil {
		return rules.Actor{}, nil, err
	}
	return rules.ActorFor(*u), u, nil
}

// emit stores each notification and then delivers it.
func (b *Board) emit(ctx context.Context, ns []model.Notification) error {
	for i := range ns {
		if err := b.store.CreateNotification(ctx, &ns[i]); err != nil {
			return fmt.Errorf("storing notification for user %d: %w", ns[i].RecipientID, err)
		}
		b.deliver(ctx, ns[i])
	}
	return nil
}

// emitOnce stores notifications through the dedup path and delivers only
// the ones that were new. It returns how many were created.
func (b *Board) emitOnce(ctx context.Context, ns []model.Notification) (int, error) {
	created := 0
	for i := range ns {
		ok, err := b.store.CreateNotificationOnce(ctx, &ns[i])
		if err != nil {
			return created, fmt.Errorf("storing notification for user %d: %w", ns[i].RecipientID, err)
		}
		if ok {
			created++
			b.deliver(ctx, ns[i])
		}
	}
	return created, nil
}

// deliver hands n to the deliverer. Failures are logged only.
func (b *Board) deliver(ctx context.Context, n model.Notification) {
	if b.deliverer == nil {
		return
	}
	recipient, err := b.store.GetUserByID(ctx, n.RecipientID)
	if err != nil {
		log.Printf("[board] loading recipient %d for delivery: %v", n.RecipientID, err)
		return
	}
	if err := b.deliverer.Deliver(ctx, *recipient, n); err != nil {
		log.Printf("[notify] delivery of notification %d failed: %v", n.ID, err)
	}
}
