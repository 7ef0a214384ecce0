package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vostroslava/teremok-platform/internal/lead"
	"github.com/vostroslava/teremok-platform/internal/model"
	"github.com/vostroslava/teremok-platform/internal/scoring"
	"github.com/vostroslava/teremok-platform/internal/session"
	"github.com/vostroslava/teremok-platform/internal/store"
	"github.com/vostroslava/teremok-platform/internal/tasks"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Error("store unreachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLeadRegister is the unified intake path: normalize, dedup or
// allocate, persist, fire side effects.
func (s *Server) handleLeadRegister(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.leads.Register(r.Context(), payload)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"lead_id":    res.LeadID,
		"deduped":    res.Deduped,
		"session_id": res.SessionID,
	})
}

// handleContacts keeps the legacy web-form contract alive: the caller
// always supplies an explicit identity.
func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if uid, ok := payload["user_id"]; !ok || uid == nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	res, err := s.leads.Register(r.Context(), payload)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "lead_id": res.LeadID})
}

// handleContactExists lets the frontends skip the contact form for a
// returning visitor.
func (s *Server) handleContactExists(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	exists, err := s.store.HasContact(r.Context(), userID)
	if err != nil {
		handleError(w, eris.Wrap(err, "web: contact lookup"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exists": exists})
}

type testSubmitRequest struct {
	UserID  int64             `json:"user_id"`
	Answers map[string]string `json:"answers"`
	Source  string            `json:"source"`
	Channel string            `json:"channel"`
}

// handleTestSubmit scores a teremok attempt and dual-writes: the legacy
// test_results row plus a unified session.
func (s *Server) handleTestSubmit(w http.ResponseWriter, r *http.Request) {
	var req testSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := scoring.CalculateTeremok(req.Answers)
	if err != nil {
		writeError(w, http.StatusBadRequest, "answers could not be scored")
		return
	}

	subject := req.UserID
	if subject == 0 {
		subject = lead.AllocateIdentity()
	}

	scoresJSON, err := session.Encode(result.Scores)
	if err != nil {
		handleError(w, err)
		return
	}
	answersJSON, err := session.Encode(req.Answers)
	if err != nil {
		handleError(w, err)
		return
	}

	resultID, err := s.store.InsertTeremokResult(r.Context(), &model.TeremokResult{
		UserID:     subject,
		ResultType: result.Type,
		Scores:     scoresJSON,
		Answers:    answersJSON,
		Product:    model.ProductTeremok,
	})
	if err != nil {
		handleError(w, eris.Wrap(err, "web: store teremok result"))
		return
	}

	if _, err := s.writer.Save(r.Context(), subject, model.ProductTeremok,
		req.Source, req.Channel, req.Answers,
		model.ResultDoc{Type: result.Type, Scores: result.Scores}, nil); err != nil {
		handleError(w, err)
		return
	}

	s.afterTest(r, subject, model.ProductTeremok, result.Type, req.Source, req.Channel)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"result_id":   resultID,
		"result_type": result.Type,
		"scores":      result.Scores,
		"result_info": result.Info,
	})
}

type formulaSubmitRequest struct {
	UserID  int64          `json:"user_id"`
	Contact map[string]any `json:"contact"`
	Answers map[string]int `json:"answers"`
	Source  string         `json:"source"`
	Channel string         `json:"channel"`
}

// handleFormulaSubmit scores a formula RSP attempt. A contact block, if
// present, goes through the same register pipeline first and its
// identity becomes the session subject.
func (s *Server) handleFormulaSubmit(w http.ResponseWriter, r *http.Request) {
	var req formulaSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := scoring.CalculateFormula(req.Answers)
	if err != nil {
		writeError(w, http.StatusBadRequest, "answers could not be scored")
		return
	}

	subject := req.UserID
	if subject == 0 && len(req.Contact) > 0 {
		contact := req.Contact
		if _, ok := contact["product"]; !ok {
			contact["product"] = model.ProductFormulaRSP
		}
		res, err := s.leads.Register(r.Context(), contact)
		if err != nil {
			handleError(w, err)
			return
		}
		subject = res.LeadID
	}
	if subject == 0 {
		subject = lead.AllocateIdentity()
	}

	scoresJSON, err := session.Encode(result.Scores)
	if err != nil {
		handleError(w, err)
		return
	}
	answersJSON, err := session.Encode(req.Answers)
	if err != nil {
		handleError(w, err)
		return
	}

	resultID, err := s.store.InsertFormulaResult(r.Context(), &model.FormulaResult{
		UserID:          subject,
		PrimaryTypeCode: result.Type,
		PrimaryTypeName: result.PrimaryName,
		Scores:          scoresJSON,
		Answers:         answersJSON,
	})
	if err != nil {
		handleError(w, eris.Wrap(err, "web: store formula result"))
		return
	}

	if _, err := s.writer.Save(r.Context(), subject, model.ProductFormulaRSP,
		req.Source, req.Channel, req.Answers,
		model.ResultDoc{Type: result.Type, PrimaryName: result.PrimaryName, Scores: result.Scores},
		nil); err != nil {
		handleError(w, err)
		return
	}

	s.afterTest(r, subject, model.ProductFormulaRSP, result.Type, req.Source, req.Channel)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"result_id":      resultID,
		"result_type":    result.Type,
		"primary_name":   result.PrimaryName,
		"scores":         result.Scores,
		"interpretation": result.Interpretation,
	})
}

// handleGetTestResult serves a stored teremok result for the shareable
// result pages.
func (s *Server) handleGetTestResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid result id")
		return
	}
	res, err := s.store.GetTeremokResult(r.Context(), id)
	if err != nil {
		handleError(w, eris.Wrap(err, "web: load teremok result"))
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"result_id":   res.ID,
		"result_type": res.ResultType,
		"scores":      rawDoc(res.Scores),
		"result_info": scoring.TypeCatalog()[res.ResultType],
		"created_at":  res.CreatedAt.UTC().Format(timeLayout),
	})
}

func (s *Server) handleGetFormulaResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid result id")
		return
	}
	res, err := s.store.GetFormulaResult(r.Context(), id)
	if err != nil {
		handleError(w, eris.Wrap(err, "web: load formula result"))
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"result_id":    res.ID,
		"result_type":  res.PrimaryTypeCode,
		"primary_name": res.PrimaryTypeName,
		"scores":       rawDoc(res.Scores),
		"created_at":   res.CreatedAt.UTC().Format(timeLayout),
	})
}

// afterTest dispatches the best-effort side effects of a finished test.
func (s *Server) afterTest(r *http.Request, subject int64, product, resultType, source, channel string) {
	var list []tasks.Task
	if s.notifier != nil {
		list = append(list, tasks.Task{Name: "notify-test", Fn: func(ctx context.Context) error {
			return s.notifier.TestFinished(ctx, subject, product, resultType)
		}})
	}
	if s.exporter != nil {
		list = append(list, tasks.Task{Name: "export-test", Fn: func(ctx context.Context) error {
			return s.exporter.AppendTest(ctx, subject, product, resultType, source, channel)
		}})
	}
	tasks.Run(r.Context(), list)
}

type sessionResponse struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Product   string          `json:"product"`
	Source    string          `json:"source"`
	Channel   string          `json:"channel"`
	Status    string          `json:"status"`
	Answers   json.RawMessage `json:"answers"`
	Result    json.RawMessage `json:"result"`
	CreatedAt string          `json:"created_at"`
	Lead      leadFields      `json:"lead"`
}

type leadFields struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Role             string `json:"role"`
	Company          string `json:"company"`
	TeamSize         string `json:"team_size"`
	PreferredChannel string `json:"preferred_channel"`
	UTMSource        string `json:"utm_source"`
	UTMMedium        string `json:"utm_medium"`
	UTMCampaign      string `json:"utm_campaign"`
}

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SessionFilter{
		Product:   q.Get("product"),
		Days:      atoiOrZero(q.Get("days")),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Limit:     limitOrDefault(q.Get("limit"), s.historyLimit),
	}

	rows, err := s.store.ListSessions(r.Context(), filter)
	if err != nil {
		handleError(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, sessionResponse{
			ID:        row.ID,
			UserID:    row.UserID,
			Product:   row.Product,
			Source:    row.Source,
			Channel:   row.Channel,
			Status:    row.Status,
			Answers:   rawDoc(row.AnswersJSON),
			Result:    rawDoc(row.ResultJSON),
			CreatedAt: row.CreatedAt.UTC().Format(timeLayout),
			Lead: leadFields{
				Name:             row.LeadName,
				Phone:            row.LeadPhone,
				Role:             row.LeadRole,
				Company:          row.LeadCompany,
				TeamSize:         row.LeadTeamSize,
				PreferredChannel: row.LeadPreferredChannel,
				UTMSource:        row.UTMSource,
				UTMMedium:        row.UTMMedium,
				UTMCampaign:      row.UTMCampaign,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tests": out, "total": len(out)})
}

type legacyResponse struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	ResultType string          `json:"result_type"`
	Scores     json.RawMessage `json:"scores"`
	Product    string          `json:"product"`
	CreatedAt  string          `json:"created_at"`
	Name       string          `json:"name"`
	Role       string          `json:"role"`
	Company    string          `json:"company"`
	TeamSize   string          `json:"team_size"`
	Phone      string          `json:"phone"`
	Username   string          `json:"telegram_username"`
}

func (s *Server) handleListLegacyTests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LegacyFilter{
		Product:    q.Get("product"),
		ResultType: q.Get("result_type"),
		Days:       atoiOrZero(q.Get("days")),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
		Limit:      limitOrDefault(q.Get("limit"), s.historyLimit),
	}

	rows, err := s.store.ListLegacyTests(r.Context(), filter)
	if err != nil {
		handleError(w, err)
		return
	}

	out := make([]legacyResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, legacyResponse{
			ID:         row.ID,
			UserID:     row.UserID,
			ResultType: row.ResultType,
			Scores:     rawDoc(row.Scores),
			Product:    row.Product,
			CreatedAt:  row.CreatedAt.UTC().Format(timeLayout),
			Name:       row.Name,
			Role:       row.Role,
			Company:    row.Company,
			TeamSize:   row.TeamSize,
			Phone:      row.Phone,
			Username:   row.TelegramUsername,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tests": out, "total": len(out)})
}

// handleCheckSubscription answers the membership oracle. An unreachable
// backend is reported as checked=false rather than an error status.
func (s *Server) handleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]any{"subscribed": false, "checked": false})
		return
	}

	subscribed, err := s.checker.IsSubscribed(r.Context(), userID)
	if err != nil {
		zap.L().Warn("subscription check failed", zap.Int64("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]any{"subscribed": false, "checked": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscribed": subscribed, "checked": true})
}

func (s *Server) handleTeremokQuestions(w http.ResponseWriter, _ *http.Request) {
	qs := scoring.TeremokQuestions()
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs, "total": len(qs)})
}

func (s *Server) handleFormulaQuestions(w http.ResponseWriter, _ *http.Request) {
	qs := scoring.FormulaQuestions()
	writeJSON(w, http.StatusOK, map[string]any{"questions": qs, "total": len(qs)})
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func rawDoc(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage(`null`)
	}
	return json.RawMessage(s)
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	if n < 0 {
		return 0
	}
	return n
}

func limitOrDefault(s string, def int) int {
	n, _ := strconv.Atoi(s)
	if n <= 0 {
		return def
	}
	return n
}
