package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/taskboard/internal/board"
)

func (s *Server) handleEmployees(c *gin.Context) {
	actor, _ := currentActor(c)
	roster, err := s.board.ListEmployees(c.Request.Context(), actor)
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	s.render(c, http.StatusOK, "employee_list.html", gin.H{"employees": roster})
}

func (s *Server) handleEmployeeCreateForm(c *gin.Context) {
	actor, _ := currentActor(c)
	if !actor.IsManager() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	s.render(c, http.StatusOK, "employee_form.html", gin.H{"form": board.EmployeeForm{}})
}

func (s *Server) handleEmployeeCreate(c *gin.Context) {
	actor, _ := currentActor(c)
	if !actor.IsManager() {
		c.Redirect(http.StatusFound, "/")
		return
	}

	var form board.EmployeeForm
	errs, ok := s.bind(c, &form)
	if !ok {
		return
	}
	if len(errs) > 0 {
		s.render(c, http.StatusOK, "employee_form.html", gin.H{"form": form, "errors": errs})
		return
	}

	u, password, err := s.board.CreateEmployee(c.Request.Context(), actor, form)
	if ve, ok := validationErrors(err); ok {
		s.render(c, http.StatusOK, "employee_form.html", gin.H{"form": form, "errors": ve})
		return
	}
	if err != nil {
		s.fail(c, err, "/")
		return
	}

	// The initial password is shown once, on this response only.
	s.render(c, http.StatusOK, "employee_created.html", gin.H{
		"employee": u,
		"password": password,
	})
}

func (s *Server) handleEmployeeEditForm(c *gin.Context) {
	id, ok := s.paramID(c, "id")
	if !ok {
		return
	}
	actor, _ := currentActor(c)

	u, err := s.board.Employee(c.Request.Context(), actor, id)
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	s.render(c, http.StatusOK, "employee_form.html", gin.H{
		"employee": u,
		"form": board.EmployeeForm{
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		},
	})
}

func (s *Server) handleEmployeeEdit(c *gin.Context) {
	id, ok := s.paramID(c, "id")
	if !ok {
		return
	}
	actor, _ := currentActor(c)
	ctx := c.Request.Context()

	u, err := s.board.Employee(ctx, actor, id)
	if err != nil {
		s.fail(c, err, "/")
		return
	}

	var form board.EmployeeForm
	errs, ok := s.bind(c, &form)
	if !ok {
		return
	}
	if len(errs) == 0 {
		_, err = s.board.UpdateEmployee(ctx, actor, id, form)
		if ve, isValidation := validationErrors(err); isValidation {
			errs, err = ve, nil
		}
	}
	if len(errs) > 0 {
		s.render(c, http.StatusOK, "employee_form.html", gin.H{
			"employee": u,
			"form":     form,
			"errors":   errs,
		})
		return
	}
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	c.Redirect(http.StatusFound, "/employees/")
}

func (s *Server) handleEmployeeDelete(c *gin.Context) {
	id, ok := s.paramID(c, "id")
	if !ok {
		return
	}
	actor, _ := currentActor(c)

	if err := s.board.DeleteEmployee(c.Request.Context(), actor, id); err != nil {
		s.fail(c, err, "/employees/")
		return
	}
	c.Redirect(http.StatusFound, "/employees/")
}
