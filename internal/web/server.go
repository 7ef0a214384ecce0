// Package web exposes the HTTP API: lead intake, test submission, the
// unified query layer and a few small oracles for the frontends.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/vostroslava/teremok-platform/internal/lead"
	"github.com/vostroslava/teremok-platform/internal/model"
	"github.com/vostroslava/teremok-platform/internal/notify"
	"github.com/vostroslava/teremok-platform/internal/session"
	"github.com/vostroslava/teremok-platform/internal/store"
)

// Exporter appends records to the spreadsheet report.
type Exporter interface {
	AppendLead(ctx context.Context, c *model.Contact) error
	AppendTest(ctx context.Context, subject int64, product, resultType, source, channel string) error
}

// Options wires the server's collaborators. Notifier, Checker and
// Exporter may be nil.
type Options struct {
	Store          store.Store
	Notifier       notify.Notifier
	Checker        notify.SubscriptionChecker
	Exporter       Exporter
	DedupWindow    int
	HistoryLimit   int
	AllowedOrigins []string
}

// Server holds the handler dependencies.
type Server struct {
	store        store.Store
	leads        *lead.Service
	writer       *session.Writer
	notifier     notify.Notifier
	checker      notify.SubscriptionChecker
	exporter     Exporter
	historyLimit int
	origins      []string
}

func NewServer(opts Options) *Server {
	var leadNotifier lead.Notifier
	if opts.Notifier != nil {
		leadNotifier = opts.Notifier
	}
	var leadExporter lead.Exporter
	if opts.Exporter != nil {
		leadExporter = opts.Exporter
	}
	historyLimit := opts.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 200
	}
	return &Server{
		store:        opts.Store,
		leads:        lead.NewService(opts.Store, opts.DedupWindow, leadNotifier, leadExporter),
		writer:       session.NewWriter(opts.Store),
		notifier:     opts.Notifier,
		checker:      opts.Checker,
		exporter:     opts.Exporter,
		historyLimit: historyLimit,
		origins:      opts.AllowedOrigins,
	}
}

// Router assembles the route tree with CORS, logging and per-route
// rate limits.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.With(rateLimit(10)).Post("/lead/register", s.handleLeadRegister)
		r.With(rateLimit(5)).Post("/contacts", s.handleContacts)
		r.With(rateLimit(10)).Post("/test/submit", s.handleTestSubmit)
		r.With(rateLimit(5)).Post("/formula/rsp/submit", s.handleFormulaSubmit)

		r.Get("/tests", s.handleListTests)
		r.Get("/legacy/tests", s.handleListLegacyTests)
		r.Get("/contacts/exists", s.handleContactExists)
		r.Get("/test/results/{id}", s.handleGetTestResult)
		r.Get("/formula/rsp/results/{id}", s.handleGetFormulaResult)
		r.Get("/check-subscription", s.handleCheckSubscription)
		r.Get("/teremok/questions", s.handleTeremokQuestions)
		r.Get("/formula/rsp/questions", s.handleFormulaQuestions)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}
