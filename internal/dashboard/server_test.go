package dashboard

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance/internal/apiclient"
	"finance/internal/core"
	applog "finance/internal/log"
)

type fakeAPI struct {
	mu        sync.Mutex
	items     []core.Transaction
	listErr   error
	createErr error
	deleteErr error
	created   []core.TransactionCreate
	deleted   []int64
	lists     int
}

func (f *fakeAPI) List(context.Context) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Transaction{}, f.items...), nil
}

func (f *fakeAPI) Create(_ context.Context, in core.TransactionCreate) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	if f.createErr != nil {
		return core.Transaction{}, f.createErr
	}
	t := in.Persisted(int64(len(f.items) + 1))
	f.items = append(f.items, t)
	return t, nil
}

func (f *fakeAPI) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func newTestServer(t *testing.T, api *fakeAPI) *Server {
	t.Helper()
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Component: applog.ComponentApp, Output: &buf})
	srv, err := NewServer(":0", api, logger)
	require.NoError(t, err)
	srv.now = func() time.Time { return time.Date(2024, time.January, 20, 9, 0, 0, 0, time.UTC) }
	return srv
}

func get(srv *Server, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func postForm(srv *Server, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func noticeOf(t *testing.T, rr *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	assert.Empty(t, loc.Query().Get("level"))
	n, ok := notices[loc.Query().Get("notice")]
	require.True(t, ok, "unknown notice key %q", loc.Query().Get("notice"))
	return n.Message, n.Level
}

func TestIndex_RendersBalanceAlertAndList(t *testing.T) {
	api := &fakeAPI{items: []core.Transaction{
		{ID: 1, Type: core.Income, Category: "salary", Amount: 5000, Date: core.NewDate(2024, 1, 10)},
		{ID: 2, Type: core.Expense, Category: "rent", Amount: 1500, Date: core.NewDate(2024, 1, 15)},
	}}
	srv := newTestServer(t, api)

	rr := get(srv, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Equal(t, 1, api.lists, "the list is fetched once per render")
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Income: 5,000.00")
	assert.Contains(t, body, "Expenses: 1,500.00")
	assert.Contains(t, body, `class="positive">Balance: 3,500.00`)
	assert.Contains(t, body, "Spent in January/2024")
	assert.Contains(t, body, "You can still spend 4,500.00 this month.")
	assert.Contains(t, body, `action="/transactions/2/delete"`)
	assert.Contains(t, body, `value="2024-01-20"`)
}

func TestIndex_OverLimit(t *testing.T) {
	api := &fakeAPI{items: []core.Transaction{
		{ID: 1, Type: core.Expense, Category: "rent", Amount: 4000, Date: core.NewDate(2024, 1, 2)},
		{ID: 2, Type: core.Expense, Category: "car", Amount: 3000, Date: core.NewDate(2024, 1, 3)},
	}}
	srv := newTestServer(t, api)

	body := get(srv, "/").Body.String()
	assert.Contains(t, body, "by 1,000.00!")
	assert.Contains(t, body, `class="negative">Balance: -7,000.00`)
}

func TestIndex_EmptyHidesAlert(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})

	body := get(srv, "/").Body.String()
	assert.Contains(t, body, "No transactions recorded yet.")
	assert.Contains(t, body, "Monthly limit: <strong>6,000.00</strong>")
	assert.NotContains(t, body, "Spent in")
}

func TestIndex_FetchFailureStillShowsForm(t *testing.T) {
	api := &fakeAPI{listErr: &apiclient.TransportError{Op: "list", Err: errors.New("connection refused")}}
	srv := newTestServer(t, api)

	rr := get(srv, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Could not connect to the API.")
	assert.Contains(t, body, `action="/transactions"`)
	assert.NotContains(t, body, "Balance:")
}

func TestIndex_ShowsNotice(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})

	body := get(srv, "/?notice=saved").Body.String()
	assert.Contains(t, body, `notice--success`)
	assert.Contains(t, body, "Transaction saved successfully!")

	body = get(srv, "/?notice=deleted&level=error").Body.String()
	assert.Contains(t, body, "notice--success", "the level comes from the key")
}

func TestIndex_IgnoresUnknownNotice(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})

	body := get(srv, "/?notice=Your+account+is+locked&level=error").Body.String()
	assert.NotContains(t, body, "Your account is locked")
	assert.NotContains(t, body, `role="status"`)
}

func TestCreate_ValidationNeverReachesAPI(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	tests := []struct {
		name   string
		form   url.Values
		notice string
	}{
		{"empty category", url.Values{"type": {"saida"}, "category": {"  "}, "amount": {"10"}, "date": {"2024-01-05"}}, "Please fill in the category."},
		{"zero amount", url.Values{"type": {"saida"}, "category": {"food"}, "amount": {"0"}, "date": {"2024-01-05"}}, "Amount must be greater than zero."},
		{"bad type", url.Values{"type": {"gift"}, "category": {"food"}, "amount": {"1"}}, "Choose a valid transaction type."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notice, level := noticeOf(t, postForm(srv, "/transactions", tt.form))
			assert.Equal(t, tt.notice, notice)
			assert.Equal(t, LevelWarning, level)
		})
	}
	assert.Empty(t, api.created)
}

func TestCreate_Success(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	rr := postForm(srv, "/transactions", url.Values{"type": {"entrada"}, "category": {"salary"}, "amount": {"5000"}, "date": {"2024-01-10"}})
	notice, level := noticeOf(t, rr)
	assert.Equal(t, "Transaction saved successfully!", notice)
	assert.Equal(t, LevelSuccess, level)

	require.Len(t, api.created, 1)
	assert.Equal(t, core.Income, api.created[0].Type)
	assert.Equal(t, 5000.0, api.created[0].Amount)
}

func TestCreate_EmptyDateUsesServerClock(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	notice, _ := noticeOf(t, postForm(srv, "/transactions", url.Values{"type": {"saida"}, "category": {"food"}, "amount": {"12.50"}}))
	assert.Equal(t, "Transaction saved successfully!", notice)

	require.Len(t, api.created, 1)
	assert.Equal(t, "2024-01-20", api.created[0].Date.String())
}

func TestCreate_APIFailures(t *testing.T) {
	form := url.Values{"type": {"saida"}, "category": {"rent"}, "amount": {"1500"}, "date": {"2024-01-15"}}

	srv := newTestServer(t, &fakeAPI{createErr: &apiclient.StatusError{Op: "create", Code: 500}})
	notice, level := noticeOf(t, postForm(srv, "/transactions", form))
	assert.Equal(t, "Error saving the transaction.", notice)
	assert.Equal(t, LevelError, level)

	srv = newTestServer(t, &fakeAPI{createErr: &apiclient.TransportError{Op: "create", Err: errors.New("timeout")}})
	notice, _ = noticeOf(t, postForm(srv, "/transactions", form))
	assert.Equal(t, "Could not connect to the API.", notice)
}

func TestDelete(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(t, api)

	notice, level := noticeOf(t, postForm(srv, "/transactions/3/delete", nil))
	assert.Equal(t, "Transaction deleted!", notice)
	assert.Equal(t, LevelSuccess, level)
	assert.Equal(t, []int64{3}, api.deleted)

	api.deleteErr = &apiclient.StatusError{Op: "delete", Code: http.StatusNotFound, Detail: "Transaction not found."}
	notice, level = noticeOf(t, postForm(srv, "/transactions/999/delete", nil))
	assert.Equal(t, "Transaction not found.", notice)
	assert.Equal(t, LevelError, level)

	notice, _ = noticeOf(t, postForm(srv, "/transactions/abc/delete", nil))
	assert.Equal(t, "Invalid transaction id.", notice)
}

func TestStaticAndHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeAPI{})

	rr := get(srv, "/static/style.css")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))

	rr = get(srv, "/")
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "form-action 'self'")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusNotFound, get(srv, "/nope").Code)
}
