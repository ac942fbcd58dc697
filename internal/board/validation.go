package board

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nhle/taskboard/internal/model"
)

// Field error messages shown next to form inputs.
const (
	msgRequired          = "Обязательное поле."
	msgTooLong           = "Убедитесь, что это значение содержит не более %s символов."
	msgInvalidValue      = "Введите правильное значение."
	msgInvalidDeadline   = "Введите правильную дату и время."
	msgInvalidIDs        = "Недействительные ID сотрудников"
	msgDuplicateIDs      = "Сотрудники не могут быть выбраны повторно"
	msgUnknownEmployees  = "Один или несколько выбранных сотрудников недействительны"
	msgInvalidUsername   = "Имя пользователя может содержать только латинские буквы, цифры и символ _."
	msgUsernameTaken     = "Пользователь с таким именем уже существует."
	msgInvalidEmail      = "Введите правильный адрес электронной почты."
	msgWrongPassword     = "Неверный текущий пароль."
	msgPasswordTooShort  = "Пароль должен содержать не менее %s символов."
	msgPasswordsMismatch = "Пароли не совпадают."
)

// MaxUsernameLength is the longest accepted username.
const MaxUsernameLength = 150

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// validate checks the binding tags of the form structs. gin's validator is
// configured the same way through RegisterValidations.
var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations adds the board's custom tags to v and makes field
// errors carry the form field name.
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}

// FieldErrors converts validator failures into form messages. It reports
// false for any other error.
func FieldErrors(err error) (ValidationErrors, bool) {
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return nil, false
	}
	out := ValidationErrors{}
	for _, fe := range fes {
		out.Add(fe.Field(), fieldMessage(fe))
	}
	return out, true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "max":
		return fmt.Sprintf(msgTooLong, fe.Param())
	case "min":
		return fmt.Sprintf(msgPasswordTooShort, fe.Param())
	case "username":
		return msgInvalidUsername
	case "email":
		return msgInvalidEmail
	case "eqfield":
		return msgPasswordsMismatch
	default:
		return msgInvalidValue
	}
}

// checkStruct runs the binding tags of form and returns the field errors.
func checkStruct(form any) (ValidationErrors, error) {
	err := validate.Struct(form)
	if err == nil {
		return ValidationErrors{}, nil
	}
	if ve, ok := FieldErrors(err); ok {
		return ve, nil
	}
	return nil, err
}

// deadlineLayouts are tried in order. Layouts without an offset are read in
// the board's location.
var deadlineLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

// DeadlineInputLayout formats deadlines for datetime-local inputs.
const DeadlineInputLayout = "2006-01-02T15:04"

// ValidationErrors maps form fields to their error messages.
type ValidationErrors map[string][]string

// Add records msg against field.
func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

// Has reports whether field has errors.
func (v ValidationErrors) Has(field string) bool {
	return len(v[field]) > 0
}

// Error lists the failing fields in a stable order.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f, strings.Join(v[f], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// merge copies other's messages into v.
func (v ValidationErrors) merge(other ValidationErrors) {
	for f, msgs := range other {
		v[f] = append(v[f], msgs...)
	}
}

// orNil returns v as an error when it holds anything.
func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// TaskForm is the raw task form as submitted.
type TaskForm struct {
	Title       string `form:"title" binding:"required,max=200"`
	Description string `form:"description" binding:"required"`
	Deadline    string `form:"deadline" binding:"required"`

	// AssignedToIDs is a comma-separated list of user ids.
	AssignedToIDs string `form:"assigned_to_ids"`

	// AssignedTo holds repeated picker values, used when AssignedToIDs is
	// empty.
	AssignedTo []string `form:"assigned_to"`
}

// Assignees returns the submitted assignee ids as one comma-separated list.
func (f TaskForm) Assignees() string {
	if strings.TrimSpace(f.AssignedToIDs) != "" {
		return f.AssignedToIDs
	}
	return strings.Join(f.AssignedTo, ",")
}

// TaskInput is a validated TaskForm.
type TaskInput struct {
	Title       string
	Description string
	Deadline    time.Time
	AssigneeIDs []int64
}

// FormFromTask prefills a TaskForm for editing.
func FormFromTask(t model.Task, loc *time.Location) TaskForm {
	ids := make([]string, len(t.Assignees))
	for i, a := range t.Assignees {
		ids[i] = strconv.FormatInt(a.ID, 10)
	}
	return TaskForm{
		Title:         t.Title,
		Description:   t.Description,
		Deadline:      t.Deadline.In(loc).Format(DeadlineInputLayout),
		AssignedToIDs: strings.Join(ids, ","),
	}
}

// validateTask checks a TaskForm and resolves the assignee ids against the
// employees group.
func (b *Board) validateTask(ctx context.Context, f TaskForm) (TaskInput, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Deadline = strings.TrimSpace(f.Deadline)

	errs, err := checkStruct(f)
	if err != nil {
		return TaskInput{}, err
	}
	in := TaskInput{Title: f.Title, Description: f.Description}

	if !errs.Has("deadline") {
		if d, ok := parseDeadline(f.Deadline, b.loc); ok {
			in.Deadline = d
		} else {
			errs.Add("deadline", msgInvalidDeadline)
		}
	}

	ids, msg := parseAssigneeIDs(f.Assignees())
	if msg != "" {
		errs.Add("assigned_to_ids", msg)
	} else if len(ids) > 0 {
		employees, err := b.store.GetUsersInGroup(ctx, model.GroupEmployees)
		if err != nil {
			return TaskInput{}, fmt.Errorf("loading employees: %w", err)
		}
		known := make(map[int64]bool, len(employees))
		for _, e := range employees {
			known[e.ID] = true
		}
		for _, id := range ids {
			if !known[id] {
				errs.Add("assigned_to_ids", msgUnknownEmployees)
				break
			}
		}
		in.AssigneeIDs = ids
	}

	if err := errs.orNil(); err != nil {
		return TaskInput{}, err
	}
	return in, nil
}

func parseDeadline(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAssigneeIDs splits the comma-separated id list. Empty segments are
// skipped. It returns the error message for the first problem found.
func parseAssigneeIDs(raw string) ([]int64, string) {
	var ids []int64
	seen := make(map[int64]bool)
	duplicate := false
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, msgInvalidIDs
		}
		if seen[id] {
			duplicate = true
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if duplicate {
		return nil, msgDuplicateIDs
	}
	return ids, ""
}

// EmployeeForm is the raw employee form as submitted.
type EmployeeForm struct {
	Username  string `form:"username" binding:"required,max=150,username"`
	FirstName string `form:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" binding:"max=150"`
	Email     string `form:"email" binding:"omitempty,max=254,email"`
}

// validateEmployee checks an EmployeeForm. excludeID is the user being
// edited, or zero when creating.
func (b *Board) validateEmployee(ctx context.Context, f EmployeeForm, excludeID int64) (EmployeeForm, error) {
	out := EmployeeForm{
		Username:  strings.TrimSpace(f.Username),
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Email:     strings.TrimSpace(f.Email),
	}

	errs, err := checkStruct(out)
	if err != nil {
		return EmployeeForm{}, err
	}
	if !errs.Has("username") {
		taken, err := b.store.UsernameTaken(ctx, out.Username, excludeID)
		if err != nil {
			return EmployeeForm{}, err
		}
		if taken {
			errs.Add("username", msgUsernameTaken)
		}
	}

	if err := errs.orNil(); err != nil {
		return EmployeeForm{}, err
	}
	return out, nil
}

// PasswordForm is the password change form.
type PasswordForm struct {
	Current string `form:"current_password"`
	New     string `form:"new_password" binding:"min=8"`
	Confirm string `form:"confirm_password" binding:"eqfield=New"`
}

// CommentForm is the comment box on the task page.
type CommentForm struct {
	Text string `form:"text" binding:"required"`
}
