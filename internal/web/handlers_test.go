package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/store"
	"github.com/nhle/taskboard/tests/testutil"
)

var testNow = time.Date(2030, 5, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	srv    *Server
	board  *board.Board
	store  *store.SQLiteStore
	boss   model.User
	alice  model.User
	bob    model.User
	tokens map[int64]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := testutil.NewTestStore(t)
	b := board.New(s, board.Options{
		Now:        func() time.Time { return testNow },
		Location:   time.UTC,
		BcryptCost: bcrypt.MinCost,
	})
	srv, err := NewServer(b, Options{SessionTTL: time.Hour})
	require.NoError(t, err)

	return &testServer{
		t:      t,
		srv:    srv,
		board:  b,
		store:  s,
		boss:   testutil.CreateManager(t, s, "boss"),
		alice:  testutil.CreateEmployee(t, s, "alice"),
		bob:    testutil.CreateEmployee(t, s, "bob"),
		tokens: make(map[int64]string),
	}
}

func (ts *testServer) token(u model.User) string {
	if tok, ok := ts.tokens[u.ID]; ok {
		return tok
	}
	sess, err := ts.board.StartSession(context.Background(), u.ID)
	require.NoError(ts.t, err)
	ts.tokens[u.ID] = sess.Token
	return sess.Token
}

// do sends a request, signed in as u unless u is nil.
func (ts *testServer) do(u *model.User, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if u != nil {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: ts.token(*u)})
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) task(title string, deadline time.Time, assignees ...model.User) model.Task {
	return testutil.CreateTask(ts.t, ts.store, title, deadline, ts.boss, assignees...)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAnonymousRedirectsToLogin(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(nil, http.MethodGet, "/archive/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/accounts/login/?next=%2Farchive%2F", w.Header().Get("Location"))
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.board.CreateManager(context.Background(), board.EmployeeForm{Username: "chief"}, "long-enough-pw")
	require.NoError(t, err)

	t.Run("wrong password re-renders the form", func(t *testing.T) {
		w := ts.do(nil, http.MethodPost, "/accounts/login/", url.Values{
			"username": {"chief"},
			"password": {"nope"},
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Неверное имя пользователя или пароль.")
	})

	t.Run("success sets the cookie and follows next", func(t *testing.T) {
		w := ts.do(nil, http.MethodPost, "/accounts/login/", url.Values{
			"username": {"chief"},
			"password": {"long-enough-pw"},
			"next":     {"/archive/"},
		})
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/archive/", w.Header().Get("Location"))
		assert.Contains(t, w.Header().Get("Set-Cookie"), sessionCookie+"=")
	})

	t.Run("offsite next is ignored", func(t *testing.T) {
		w := ts.do(nil, http.MethodPost, "/accounts/login/", url.Values{
			"username": {"chief"},
			"password": {"long-enough-pw"},
			"next":     {"//evil.example/"},
		})
		assert.Equal(t, "/", w.Header().Get("Location"))
	})
}

func TestForcedPasswordChange(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	u, password, err := ts.board.CreateEmployee(ctx, rules.ActorFor(ts.boss), board.EmployeeForm{Username: "newbie"})
	require.NoError(t, err)

	w := ts.do(u, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, passwordPath, w.Header().Get("Location"))

	w = ts.do(u, http.MethodPost, passwordPath, url.Values{
		"current_password": {password},
		"new_password":     {"brand-new-secret"},
		"confirm_password": {"brand-new-secret"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = ts.do(u, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTaskList_RecordsOverdue(t *testing.T) {
	ts := newTestServer(t)
	task := ts.task("Отчёт", testNow.Add(-time.Hour), ts.alice)
	ts.task("Чужая", testNow.Add(time.Hour), ts.bob)

	w := ts.do(&ts.alice, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Отчёт")
	assert.NotContains(t, w.Body.String(), "Чужая")

	ns, err := ts.store.GetNotifications(context.Background(), store.NotificationFilter{RecipientID: ts.alice.ID})
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, model.KindOverdue, ns[0].Kind)
	assert.Equal(t, task.ID, *ns[0].TaskID)
}

func TestTaskDetail_Forbidden(t *testing.T) {
	ts := newTestServer(t)
	task := ts.task("Секрет", testNow.Add(time.Hour), ts.bob)

	w := ts.do(&ts.alice, http.MethodGet, fmt.Sprintf("/task/%d/", task.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), forbiddenTaskMessage)

	w = ts.do(&ts.alice, http.MethodGet, "/task/9999/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskPost_CommentAndStatus(t *testing.T) {
	ts := newTestServer(t)
	task := ts.task("Сборка", testNow.Add(time.Hour), ts.alice)
	detail := fmt.Sprintf("/task/%d/", task.ID)

	w := ts.do(&ts.alice, http.MethodPost, detail, url.Values{"text": {"см. #7"}, "comment": {"1"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	w = ts.do(&ts.alice, http.MethodGet, detail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<a href="/task/7/">#7</a>`)

	w = ts.do(&ts.alice, http.MethodPost, detail, url.Values{"text": {"  "}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Обязательное поле.")

	w = ts.do(&ts.alice, http.MethodPost, detail, url.Values{"status": {string(model.StatusCompleted)}})
	assert.Equal(t, http.StatusFound, w.Code)

	got, err := ts.store.GetTaskByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestTaskCreate(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(&ts.alice, http.MethodGet, "/create/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = ts.do(&ts.boss, http.MethodPost, "/create/", url.Values{
		"title":       {"Новая"},
		"description": {"Описание"},
		"deadline":    {"2030-05-20T10:00"},
		"assigned_to": {fmt.Sprint(ts.alice.ID), fmt.Sprint(ts.bob.ID)},
	})
	assert.Equal(t, http.StatusFound, w.Code)

	tasks, err := ts.store.GetTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.ElementsMatch(t, []int64{ts.alice.ID, ts.bob.ID}, tasks[0].AssigneeIDs())

	w = ts.do(&ts.boss, http.MethodPost, "/create/", url.Values{"title": {"Без срока"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Обязательное поле.")
}

func TestTaskEdit(t *testing.T) {
	ts := newTestServer(t)
	task := ts.task("Правка", testNow.Add(time.Hour), ts.alice)
	edit := fmt.Sprintf("/task/%d/edit/", task.ID)

	w := ts.do(&ts.alice, http.MethodGet, edit, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/task/%d/", task.ID), w.Header().Get("Location"))

	w = ts.do(&ts.boss, http.MethodGet, edit, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Правка")

	w = ts.do(&ts.boss, http.MethodPost, edit, url.Values{
		"title":           {"Правка 2"},
		"description":     {"Новое описание"},
		"deadline":        {"2030-05-21T09:30"},
		"assigned_to_ids": {fmt.Sprint(ts.bob.ID)},
	})
	assert.Equal(t, http.StatusFound, w.Code)

	got, err := ts.store.GetTaskByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Правка 2", got.Title)
	assert.Equal(t, []int64{ts.bob.ID}, got.AssigneeIDs())
}

func TestNotificationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.task("Просрочка", testNow.Add(-time.Hour), ts.alice)
	ts.do(&ts.alice, http.MethodGet, "/", nil)

	for _, path := range []string{"/notifications/mark-read/", "/notifications/clear/"} {
		w := ts.do(&ts.alice, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.JSONEq(t, `{"status":"error"}`, w.Body.String())
	}

	w := ts.do(&ts.alice, http.MethodPost, "/notifications/mark-read/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])

	unread, err := ts.store.CountNotifications(context.Background(), ts.alice.ID, true)
	require.NoError(t, err)
	assert.Zero(t, unread)

	w = ts.do(&ts.alice, http.MethodGet, "/notifications?page=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Просрочка")

	w = ts.do(&ts.alice, http.MethodPost, "/notifications/clear/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	total, err := ts.store.CountNotifications(context.Background(), ts.alice.ID, false)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestEmployees(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(&ts.alice, http.MethodGet, "/employees/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = ts.do(&ts.boss, http.MethodPost, "/employees/create/", url.Values{
		"username":   {"zoe"},
		"first_name": {"Зоя"},
		"email":      {"zoe@example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Начальный пароль")

	w = ts.do(&ts.boss, http.MethodGet, "/employees/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "zoe")

	w = ts.do(&ts.boss, http.MethodPost, "/employees/create/", url.Values{"username": {"zoe"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Начальный пароль")

	w = ts.do(&ts.boss, http.MethodPost, fmt.Sprintf("/employees/%d/delete/", ts.bob.ID), nil)
	assert.Equal(t, http.StatusFound, w.Code)
	_, err := ts.store.GetUserByID(context.Background(), ts.bob.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(ts.alice)

	w := ts.do(&ts.alice, http.MethodPost, "/accounts/logout/", nil)
	assert.Equal(t, http.StatusFound, w.Code)

	_, err := ts.store.GetSession(context.Background(), token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFormBinding_FieldErrors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(&ts.boss, http.MethodPost, "/employees/create/", url.Values{
		"username": {"al-ice"},
		"email":    {"nope"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Имя пользователя может содержать только латинские буквы, цифры и символ _.")
	assert.Contains(t, body, "Введите правильный адрес электронной почты.")
	taken, err := ts.store.UsernameTaken(context.Background(), "al-ice", 0)
	require.NoError(t, err)
	assert.False(t, taken)

	w = ts.do(&ts.boss, http.MethodPost, "/create/", url.Values{
		"title":       {strings.Repeat("я", 201)},
		"description": {"Описание"},
		"deadline":    {"2030-05-20T10:00"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Убедитесь, что это значение содержит не более 200 символов.")

	w = ts.do(&ts.alice, http.MethodPost, passwordPath, url.Values{
		"current_password": {"whatever"},
		"new_password":     {"short"},
		"confirm_password": {"other"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Пароль должен содержать не менее 8 символов.")
	assert.Contains(t, w.Body.String(), "Пароли не совпадают.")
}

func TestFormBinding_AccessCheckedFirst(t *testing.T) {
	ts := newTestServer(t)
	task := ts.task("Чужая", testNow.Add(time.Hour), ts.alice)

	w := ts.do(&ts.alice, http.MethodPost, "/employees/create/", url.Values{"username": {"al-ice"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = ts.do(&ts.alice, http.MethodPost, "/create/", url.Values{})
	assert.Equal(t, http.StatusFound, w.Code)

	w = ts.do(&ts.alice, http.MethodPost, fmt.Sprintf("/task/%d/edit/", task.ID), url.Values{})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/task/%d/", task.ID), w.Header().Get("Location"))

	w = ts.do(&ts.boss, http.MethodPost, "/task/9999/edit/", url.Values{})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(&ts.boss, http.MethodPost, "/employees/9999/edit/", url.Values{"username": {"al-ice"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
