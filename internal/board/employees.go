package board

import (
	"context"
	"fmt"
	"log"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/store"
)

// ListEmployees returns the roster with assignment counters.
func (b *Board) ListEmployees(ctx context.Context, actor rules.Actor) ([]model.EmployeeStats, error) {
	if err := rules.RequireManager(actor); err != nil {
		return nil, err
	}
	return b.store.GetEmployeeStats(ctx, b.now())
}

// AvailableEmployees lists the users that can be assigned to tasks.
func (b *Board) AvailableEmployees(ctx context.Context) ([]model.User, error) {
	return b.store.GetUsersInGroup(ctx, model.GroupEmployees)
}

// Employee loads one member of the employees group.
func (b *Board) Employee(ctx context.Context, actor rules.Actor, id int64) (*model.User, error) {
	if err := rules.RequireManager(actor); err != nil {
		return nil, err
	}
	return b.employee(ctx, id)
}

func (b *Board) employee(ctx context.Context, id int64) (*model.User, error) {
	u, err := b.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role() != model.RoleEmployee {
		return nil, fmt.Errorf("employee %d: %w", id, store.ErrNotFound)
	}
	return u, nil
}

// CreateEmployee provisions a new account in the employees group and
// returns it with the initial password. The password is never stored in
// clear and must be changed at first sign-in.
func (b *Board) CreateEmployee(ctx context.Context, actor rules.Actor, f EmployeeForm) (*model.User, string, error) {
	if err := rules.RequireManager(actor); err != nil {
		return nil, "", err
	}
	in, err := b.validateEmployee(ctx, f, 0)
	if err != nil {
		return nil, "", err
	}

	password, err := initialPassword(b.employees, in.Username)
	if err != nil {
		return nil, "", err
	}
	hash, err := b.hashPassword(password)
	if err != nil {
		return nil, "", err
	}

	u := model.User{
		Username:           in.Username,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Email:              in.Email,
		PasswordHash:       hash,
		MustChangePassword: true,
	}
	if err := b.store.CreateUser(ctx, &u, model.GroupEmployees); err != nil {
		return nil, "", err
	}

	log.Printf("[board] employee %s (%d) created by user %d", u.Username, u.ID, actor.ID)
	return &u, password, nil
}

// UpdateEmployee changes an employee's username, names and e-mail.
func (b *Board) UpdateEmployee(ctx context.Context, actor rules.Actor, id int64, f EmployeeForm) (*model.User, error) {
	if err := rules.RequireManager(actor); err != nil {
		return nil, err
	}
	u, err := b.employee(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := b.validateEmployee(ctx, f, id)
	if err != nil {
		return nil, err
	}

	u.Username = in.Username
	u.FirstName = in.FirstName
	u.LastName = in.LastName
	u.Email = in.Email
	if err := b.store.UpdateUser(ctx, *u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteEmployee removes an employee account. Managers cannot delete
// themselves or other managers here.
func (b *Board) DeleteEmployee(ctx context.Context, actor rules.Actor, id int64) error {
	if err := rules.RequireManager(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return rules.ErrAuthorizationDenied
	}
	u, err := b.employee(ctx, id)
	if err != nil {
		return err
	}
	if err := b.store.DeleteUser(ctx, u.ID); err != nil {
		return err
	}
	log.Printf("[board] employee %s (%d) deleted by user %d", u.Username, u.ID, actor.ID)
	return nil
}
