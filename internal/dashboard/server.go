package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"finance/internal/apiclient"
	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/middleware/security"
	"finance/internal/middleware/trace"
	appweb "finance/web"
)

// TransactionClient is the API surface the dashboard uses.
// *apiclient.Client implements it.
type TransactionClient interface {
	List(ctx context.Context) ([]core.Transaction, error)
	Create(ctx context.Context, in core.TransactionCreate) (core.Transaction, error)
	Delete(ctx context.Context, id int64) error
}

// Notice levels, used as CSS modifiers.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Server renders the dashboard and forwards its forms to the API.
type Server struct {
	http.Server

	api       TransactionClient
	templates *template.Template
	logger    *applog.Logger
	now       func() time.Time
}

// NewServer parses the embedded templates and configures routes.
func NewServer(addr string, api TransactionClient, logger *applog.Logger) (*Server, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentDashboard)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		api:       api,
		templates: t,
		logger:    logger,
		now:       time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /transactions", s.handleCreate)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDelete)

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	detector := security.NewDetector()
	var h http.Handler = mux
	h = detector.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.GetRequestID)(h)
	h = trace.NewMiddleware(logger, detector.ExtractClientIP).Middleware(h)
	h = applog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(h, "finance-dashboard"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

var templateFuncs = template.FuncMap{
	"money": core.FormatAmount,
}

type typeOption struct {
	Value core.TransactionType
	Label string
}

var typeOptions = []typeOption{
	{Value: core.Income, Label: "Income (entrada)"},
	{Value: core.Expense, Label: "Expense (saida)"},
}

type pageData struct {
	Notice      string
	NoticeLevel string

	FetchError   string
	Transactions []core.Transaction
	Summary      Summary
	Alert        Alert
	MonthlyLimit float64

	Types []typeOption
	Today string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	data := pageData{
		MonthlyLimit: MonthlyLimit,
		Types:        typeOptions,
		Today:        now.Format(core.DateLayout),
	}
	data.Notice, data.NoticeLevel = noticeFrom(r.URL.Query())

	txs, err := s.api.List(ctx)
	if err != nil {
		logger := applog.FromContext(ctx)
		logger.WarnContext(ctx, "Could not load transactions",
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err)
		data.FetchError = fetchErrorMessage(err)
	} else {
		data.Transactions = txs
		data.Summary = Summarize(txs)
		data.Alert = CheckMonthlyLimit(txs, now)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Dashboard template execution failed", err,
			applog.OpRender, applog.ErrorTypeInternal, applog.NewFields().WithComponent(applog.ComponentTemplate))
		http.Error(w, "Internal server error.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		s.redirect(w, r, noticeInvalidForm)
		return
	}

	form, err := ParseForm(r.PostForm, s.now())
	if err == nil {
		err = form.Validate()
	}
	if err != nil {
		logger.DebugContext(ctx, "Form rejected",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldError, err)
		s.redirect(w, r, formErrorNotice(err))
		return
	}

	created, err := s.api.Create(ctx, form.TransactionCreate())
	if err != nil {
		logger.ErrorContext(ctx, "Create via API failed",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldError, err)
		if apiclient.IsUnavailable(err) {
			s.redirect(w, r, noticeUnavailable)
			return
		}
		s.redirect(w, r, noticeSaveFailed)
		return
	}

	logger.InfoContext(ctx, "Transaction submitted",
		applog.FieldTransactionID, created.ID,
		applog.FieldTransactionType, created.Type.String(),
		applog.FieldCategory, created.Category)
	s.redirect(w, r, noticeSaved)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.redirect(w, r, noticeInvalidID)
		return
	}

	if err := s.api.Delete(ctx, id); err != nil {
		logger.ErrorContext(ctx, "Delete via API failed",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldTransactionID, id,
			applog.FieldError, err)
		switch {
		case errors.Is(err, core.ErrNotFound):
			s.redirect(w, r, noticeNotFound)
		case apiclient.IsUnavailable(err):
			s.redirect(w, r, noticeUnavailable)
		default:
			s.redirect(w, r, noticeDeleteFailed)
		}
		return
	}

	logger.InfoContext(ctx, "Transaction removed", applog.FieldTransactionID, id)
	s.redirect(w, r, noticeDeleted)
}

// redirect sends the browser back to the page so a reload never resubmits.
// Only a notice key travels in the URL; the text comes from notices.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, key string) {
	q := url.Values{}
	q.Set("notice", key)
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

// Notice keys carried by redirects.
const (
	noticeSaved         = "saved"
	noticeSaveFailed    = "save_failed"
	noticeDeleted       = "deleted"
	noticeDeleteFailed  = "delete_failed"
	noticeNotFound      = "not_found"
	noticeInvalidID     = "invalid_id"
	noticeUnavailable   = "api_unavailable"
	noticeInvalidForm   = "invalid_form"
	noticeEmptyCategory = "empty_category"
	noticeAmount        = "non_positive_amount"
	noticeInvalidType   = "invalid_type"
	noticeInvalidDate   = "invalid_date"
)

type notice struct {
	Message string
	Level   string
}

var notices = map[string]notice{
	noticeSaved:         {"Transaction saved successfully!", LevelSuccess},
	noticeSaveFailed:    {"Error saving the transaction.", LevelError},
	noticeDeleted:       {"Transaction deleted!", LevelSuccess},
	noticeDeleteFailed:  {"Error deleting the transaction.", LevelError},
	noticeNotFound:      {"Transaction not found.", LevelError},
	noticeInvalidID:     {"Invalid transaction id.", LevelWarning},
	noticeUnavailable:   {"Could not connect to the API.", LevelError},
	noticeInvalidForm:   {"Invalid form submission.", LevelWarning},
	noticeEmptyCategory: {"Please fill in the category.", LevelWarning},
	noticeAmount:        {"Amount must be greater than zero.", LevelWarning},
	noticeInvalidType:   {"Choose a valid transaction type.", LevelWarning},
	noticeInvalidDate:   {"Enter a valid date.", LevelWarning},
}

// noticeFrom resolves the notice key in q. Unknown keys show nothing.
func noticeFrom(q url.Values) (string, string) {
	n, ok := notices[q.Get("notice")]
	if !ok {
		return "", ""
	}
	return n.Message, n.Level
}

func formErrorNotice(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCategory):
		return noticeEmptyCategory
	case errors.Is(err, ErrNonPositiveAmount):
		return noticeAmount
	case errors.Is(err, core.ErrInvalidType):
		return noticeInvalidType
	case errors.Is(err, core.ErrInvalidDate):
		return noticeInvalidDate
	default:
		return noticeInvalidForm
	}
}

func fetchErrorMessage(err error) string {
	if apiclient.IsUnavailable(err) {
		return "Could not connect to the API."
	}
	return "Could not load transactions (API error)."
}
