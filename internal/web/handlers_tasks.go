package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/rules"
)

func (s *Server) handleTaskList(c *gin.Context) {
	actor, _ := currentActor(c)
	ctx := c.Request.Context()

	q := board.TaskQuery{
		Deadline:   c.Query("deadline"),
		Status:     c.Query("status"),
		AssignedTo: c.Query("assigned_to"),
		Sort:       c.Query("sort"),
		Direction:  c.DefaultQuery("direction", "asc"),
	}

	tasks, err := s.board.ListTasks(ctx, actor, q)
	if err != nil {
		s.fail(c, err, "/")
		return
	}

	data := gin.H{
		"tasks":    tasks,
		"query":    q,
		"now":      s.board.Now(),
		"statuses": []model.TaskStatus{model.StatusInProgress, model.StatusOnRevision, model.StatusCompleted},
	}
	if actor.IsManager() {
		employees, err := s.board.AvailableEmployees(ctx)
		if err != nil {
			s.fail(c, err, "/")
			return
		}
		data["employees"] = employees
	}
	s.render(c, http.StatusOK, "task_list.html", data)
}

func (s *Server) handleArchive(c *gin.Context) {
	actor, _ := currentActor(c)
	tasks, err := s.board.ArchivedTasks(c.Request.Context(), actor)
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	s.render(c, http.StatusOK, "task_archive.html", gin.H{"tasks": tasks})
}

// selectedIDs marks the ids in a comma-separated list for the picker.
func selectedIDs(raw string) map[int64]bool {
	out := make(map[int64]bool)
	for _, part := range strings.Split(raw, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			out[id] = true
		}
	}
	return out
}

func (s *Server) renderTaskForm(c *gin.Context, status int, name string, form board.TaskForm, errs board.ValidationErrors, extra gin.H) {
	employees, err := s.board.AvailableEmployees(c.Request.Context())
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	data := gin.H{
		"form":      form,
		"errors":    errs,
		"employees": employees,
		"selected":  selectedIDs(form.Assignees()),
	}
	for k, v := range extra {
		data[k] = v
	}
	s.render(c, status, name, data)
}

func (s *Server) handleTaskCreateForm(c *gin.Context) {
	actor, _ := currentActor(c)
	if !actor.IsManager() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	s.renderTaskForm(c, http.StatusOK, "task_form.html", board.TaskForm{}, nil, nil)
}

func (s *Server) handleTaskCreate(c *gin.Context) {
	actor, _ := currentActor(c)
	if !actor.IsManager() {
		c.Redirect(http.StatusFound, "/")
		return
	}

	var form board.TaskForm
	errs, ok := s.bind(c, &form)
	if !ok {
		return
	}
	if len(errs) > 0 {
		s.renderTaskForm(c, http.StatusOK, "task_form.html", form, errs, nil)
		return
	}

	_, err := s.board.CreateTask(c.Request.Context(), actor, form)
	if ve, ok := validationErrors(err); ok {
		s.renderTaskForm(c, http.StatusOK, "task_form.html", form, ve, nil)
		return
	}
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleTaskDetail(c *gin.Context) {
	id, ok := s.paramID(c, "id")
	if !ok {
		return
	}
	s.renderTaskDetail(c, id, nil, "")
}

func (s *Server) renderTaskDetail(c *gin.Context, id int64, errs board.ValidationErrors, commentText string) {
	actor, _ := currentActor(c)
	view, err := s.board.TaskDetail(c.Request.Context(), actor, id)
	if errors.Is(err, rules.ErrAuthorizationDenied) {
		s.renderError(c, http.StatusForbidden, forbiddenTaskMessage)
		return
	}
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	s.render(c, http.StatusOK, "task_detail.html", gin.H{
		"view":        view,
		"task":        view.Task,
		"errors":      errs,
		"commentText": commentText,
	})
}

// handleTaskPost takes either a status change or a comment.
func (s *Server) handleTaskPost(c *gin.Context) {
	id, ok := s.paramID(c, "id")
	if !ok {
		return
	}
	actor, _ := currentActor(c)
	ctx := c.Request.Context()
	detail := fmt.Sprintf("/task/%d/", id)

	if status, ok := c.GetPostForm("status"); ok {
		_, err := s.board.ChangeStatus(ctx, actor, id, status)
		if errors.Is(err, rules.ErrAuthorizationDenied) {
			s.renderError(c, http.StatusForbidden, forbiddenTaskMessage)
			return
		}
		if err != nil {
			s.fail(c, err, detail)
			return
		}
		c.Redirect(http.StatusFound, detail)
		return
	}

	var form board.CommentForm
	errs, ok := s.bind(c, &form)
	if !ok {
		return
	}
	if len(errs) > 0 {
		s.renderTaskDetail(c, id, errs, form.Text)
		return
	}

	_, err := s.board.AddComment(ctx, actor, id, form.Text)
	if ve, ok := validationErrors(err); ok {
		s.renderTaskDetail(c, id, ve, form.Text)
		return
	}
	if errors.Is(err, rules.ErrAuthorizationDenied) {
		s.renderError(c, http.StatusForbidden, forbiddenTaskMessage)
		return
	}
	if err != nil {
		s.fail(c, err, detail)
		return
	}
	c.Redirect(http.StatusFound, detail)
}

// editableTask loads task id for the edit pages. Missing tasks render the
// not-found page before non-managers are sent back to the detail page.
func (s *Server) editableTask(c *gin.Context, id int64) (*board.TaskView, bool) {
	actor, _ := currentActor(c)
	view, err := s.board.TaskDetail(c.Request.Context(), actor, id)
	if err == nil && !actor.IsManager() {
		err = rules.ErrAuthorizationDenied
	}
	if err != nil {
		s.fail(c, err, fmt.Sprintf("/task/%d/", id))
		return nil, false
	}
	return view, true
}

func (s *Server) handleTaskEditForm(c *gin.Context) {
	id, ok := s.paramID(c, "id")
	if !ok {
		return
	}
	view, ok := s.editableTask(c, id)
	if !ok {
		return
	}

	form := board.FormFromTask(view.Task, s.board.Location())
	s.renderTaskForm(c, http.StatusOK, "task_edit.html", form, nil, gin.H{"task": view.Task})
}

func (s *Server) handleTaskEdit(c *gin.Context) {
	id, ok := s.paramID(c, "id")
	if !ok {
		return
	}
	view, ok := s.editableTask(c, id)
	if !ok {
		return
	}
	actor, _ := currentActor(c)
	detail := fmt.Sprintf("/task/%d/", id)
	extra := gin.H{"task": view.Task}

	var form board.TaskForm
	errs, ok := s.bind(c, &form)
	if !ok {
		return
	}
	if len(errs) > 0 {
		s.renderTaskForm(c, http.StatusOK, "task_edit.html", form, errs, extra)
		return
	}

	_, err := s.board.EditTask(c.Request.Context(), actor, id, form)
	if ve, ok := validationErrors(err); ok {
		s.renderTaskForm(c, http.StatusOK, "task_edit.html", form, ve, extra)
		return
	}
	if err != nil {
		s.fail(c, err, detail)
		return
	}
	c.Redirect(http.StatusFound, detail)
}

func (s *Server) handleTaskDelete(c *gin.Context) {
	id, ok := s.paramID(c, "id")
	if !ok {
		return
	}
	actor, _ := currentActor(c)

	if err := s.board.DeleteTask(c.Request.Context(), actor, id); err != nil {
		s.fail(c, err, fmt.Sprintf("/task/%d/", id))
		return
	}
	c.Redirect(http.StatusFound, "/")
}
