// Package api exposes the board over HTTP: lifecycle mutations through the
// engine, analytics as read-only computations. JSON in, JSON out; dates are
// ISO-8601; ids are opaque strings.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/metrics"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/review"
	"github.com/joescharf/board/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store  store.Store
	engine *board.Engine
	logger *slog.Logger
}

// NewServer creates a new API server.
func NewServer(s store.Store, e *board.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, engine: e, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)

	mux.HandleFunc("GET /api/v1/projects/{id}/items", s.listProjectItems)
	mux.HandleFunc("POST /api/v1/projects/{id}/items", s.createItem)
	mux.HandleFunc("GET /api/v1/projects/{id}/sprints", s.listSprints)
	mux.HandleFunc("POST /api/v1/projects/{id}/sprints", s.createSprint)
	mux.HandleFunc("GET /api/v1/projects/{id}/kpis", s.projectKPIs)
	mux.HandleFunc("GET /api/v1/projects/{id}/velocity", s.projectVelocity)

	mux.HandleFunc("GET /api/v1/items/{id}", s.getItem)
	mux.HandleFunc("DELETE /api/v1/items/{id}", s.deleteItem)
	mux.HandleFunc("GET /api/v1/items/{id}/log", s.itemLog)
	mux.HandleFunc("POST /api/v1/items/{id}/move", s.moveItem)
	mux.HandleFunc("POST /api/v1/items/{id}/transition", s.transitionItem)
	mux.HandleFunc("POST /api/v1/items/{id}/links", s.addLink)
	mux.HandleFunc("DELETE /api/v1/items/{id}/links/{otherID}", s.removeLink)
	mux.HandleFunc("PUT /api/v1/items/{id}/epic", s.setEpic)
	mux.HandleFunc("PUT /api/v1/items/{id}/parent", s.setParent)
	mux.HandleFunc("PUT /api/v1/items/{id}/sprint", s.assignSprint)

	mux.HandleFunc("GET /api/v1/items/{id}/reviews", s.listItemReviews)
	mux.HandleFunc("POST /api/v1/items/{id}/reviews", s.createReview)
	mux.HandleFunc("GET /api/v1/reviews/{id}", s.getReview)
	mux.HandleFunc("POST /api/v1/reviews/{id}/approve", s.approveReview)
	mux.HandleFunc("POST /api/v1/reviews/{id}/request-changes", s.requestChanges)
	mux.HandleFunc("POST /api/v1/reviews/{id}/cancel", s.cancelReview)
	mux.HandleFunc("POST /api/v1/reviews/{id}/reviewers", s.addReviewer)
	mux.HandleFunc("DELETE /api/v1/reviews/{id}/reviewers/{userID}", s.removeReviewer)
	mux.HandleFunc("POST /api/v1/reviews/{id}/checklist/{index}/toggle", s.toggleChecklist)

	mux.HandleFunc("POST /api/v1/sprints/{id}/start", s.startSprint)
	mux.HandleFunc("POST /api/v1/sprints/{id}/complete", s.completeSprint)
	mux.HandleFunc("GET /api/v1/sprints/{id}/burndown", s.sprintBurndown)
	mux.HandleFunc("GET /api/v1/sprints/{id}/cfd", s.sprintCFD)
	mux.HandleFunc("GET /api/v1/sprints/{id}/kpis", s.sprintKPIs)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var (
		ve  *board.ValidationError
		ce  *board.ConflictError
		gbe *board.GateBlockedError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &gbe):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            gbe.Error(),
			"pending":          gbe.Pending,
			"changesRequested": gbe.ChangesRequested,
		})
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, ce.Error())
	case errors.Is(err, review.ErrTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &board.ValidationError{Msg: "invalid JSON body: " + err.Error()}
	}
	return nil
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key         string `json:"key"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	p, err := s.engine.CreateProject(r.Context(), req.Key, req.Name, req.Description)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Items ---

func (s *Server) listProjectItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ItemListFilter{
		ProjectID: r.PathValue("id"),
		Status:    models.ItemStatus(q.Get("status")),
		Type:      models.ItemType(q.Get("type")),
		SprintID:  q.Get("sprint"),
		Assignee:  q.Get("assignee"),
		Label:     q.Get("label"),
		EpicID:    q.Get("epic"),
	}
	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string     `json:"title"`
		Summary     string     `json:"summary"`
		Type        string     `json:"type"`
		Status      string     `json:"status"`
		Priority    string     `json:"priority"`
		StoryPoints float64    `json:"storyPoints"`
		SprintID    string     `json:"sprintId"`
		DueDate     *time.Time `json:"dueDate"`
		ParentID    string     `json:"parentId"`
		EpicID      string     `json:"epicId"`
		Assignee    string     `json:"assignee"`
		Labels      []string   `json:"labels"`
		ActorID     string     `json:"actorId"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	item, err := s.engine.CreateItem(r.Context(), board.CreateItemParams{
		ProjectID:   r.PathValue("id"),
		Title:       req.Title,
		Summary:     req.Summary,
		Type:        models.ItemType(req.Type),
		Status:      models.ItemStatus(req.Status),
		Priority:    models.ItemPriority(req.Priority),
		StoryPoints: req.StoryPoints,
		SprintID:    req.SprintID,
		DueDate:     req.DueDate,
		ParentID:    req.ParentID,
		EpicID:      req.EpicID,
		Assignee:    req.Assignee,
		Labels:      req.Labels,
		ActorID:     req.ActorID,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteItem(r.Context(), r.PathValue("id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) itemLog(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	changes, err := s.store.ListChanges(r.Context(), item.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) moveItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status   string `json:"status"`
		AfterID  string `json:"afterId"`
		BeforeID string `json:"beforeId"`
		ActorID  string `json:"actorId"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	item, err := s.engine.MoveItem(r.Context(), r.PathValue("id"), board.MoveParams{
		Status:   models.ItemStatus(req.Status),
		AfterID:  req.AfterID,
		BeforeID: req.BeforeID,
		ActorID:  req.ActorID,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) transitionItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status  string `json:"status"`
		ActorID string `json:"actorId"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	item, err := s.engine.TransitionStatus(r.Context(), r.PathValue("id"),
		models.ItemStatus(req.Status), req.ActorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) addLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OtherID string `json:"otherId"`
		ActorID string `json:"actorId"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	if err := s.engine.AddLink(r.Context(), r.PathValue("id"), req.OtherID, req.ActorID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeLink(w http.ResponseWriter, r *http.Request) {
	actor := r.URL.Query().Get("actor")
	if err := s.engine.RemoveLink(r.Context(), r.PathValue("id"), r.PathValue("otherID"), actor); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setEpic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EpicID  string `json:"epicId"`
		ActorID string `json:"actorId"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	item, err := s.engine.SetEpic(r.Context(), r.PathValue("id"), req.EpicID, req.ActorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) setParent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParentID string `json:"parentId"`
		ActorID  string `json:"actorId"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	item, err := s.engine.SetParent(r.Context(), r.PathValue("id"), req.ParentID, req.ActorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) assignSprint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SprintID string `json:"sprintId"`
		ActorID  string `json:"actorId"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	item, err := s.engine.AssignSprint(r.Context(), r.PathValue("id"), req.SprintID, req.ActorID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// --- Reviews ---

func (s *Server) listItemReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.store.ListItemReviews(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestedBy       string   `json:"requestedBy"`
		Reviewers         []string `json:"reviewers"`
		RequiredApprovals int      `json:"requiredApprovals"`
		Checklist         []string `json:"checklist"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	rev, err := s.engine.RequestReview(r.Context(), r.PathValue("id"),
		req.RequestedBy, req.Reviewers, req.RequiredApprovals, req.Checklist)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	rev, err := s.store.GetReview(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

type verdictRequest struct {
	UserID  string `json:"userId"`
	Comment string `json:"comment"`
}

func (s *Server) approveReview(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	rev, err := s.engine.ApproveReview(r.Context(), r.PathValue("id"), req.UserID, req.Comment)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) requestChanges(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	rev, err := s.engine.RequestReviewChanges(r.Context(), r.PathValue("id"), req.UserID, req.Comment)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) cancelReview(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	rev, err := s.engine.CancelReview(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) addReviewer(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	rev, err := s.engine.AddReviewer(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) removeReviewer(w http.ResponseWriter, r *http.Request) {
	rev, err := s.engine.RemoveReviewer(r.Context(), r.PathValue("id"), r.PathValue("userID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) toggleChecklist(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeDomainError(w, &board.ValidationError{Msg: "invalid checklist index"})
		return
	}
	rev, err := s.engine.ToggleChecklistItem(r.Context(), r.PathValue("id"), index, req.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// --- Sprints ---

func (s *Server) listSprints(w http.ResponseWriter, r *http.Request) {
	sprints, err := s.store.ListSprints(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprints)
}

func (s *Server) createSprint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key       string    `json:"key"`
		Name      string    `json:"name"`
		Goal      string    `json:"goal"`
		StartDate time.Time `json:"startDate"`
		EndDate   time.Time `json:"endDate"`
	}
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, err)
		return
	}

	sp, err := s.engine.CreateSprint(r.Context(), r.PathValue("id"),
		req.Key, req.Name, req.Goal, req.StartDate, req.EndDate)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (s *Server) startSprint(w http.ResponseWriter, r *http.Request) {
	sp, err := s.engine.StartSprint(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) completeSprint(w http.ResponseWriter, r *http.Request) {
	sp, err := s.engine.CompleteSprint(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// --- Analytics ---

// itemFilterFromQuery reads the shared analytics filter params. Multi-value
// params are comma-separated.
func itemFilterFromQuery(r *http.Request) metrics.ItemFilter {
	q := r.URL.Query()
	return metrics.ItemFilter{
		AssigneeIDs: splitParam(q.Get("assignees")),
		Labels:      splitParam(q.Get("labels")),
		EpicIDs:     splitParam(q.Get("epics")),
	}
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) sprintBurndown(w http.ResponseWriter, r *http.Request) {
	points, err := s.engine.Burndown(r.Context(), r.PathValue("id"), itemFilterFromQuery(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) sprintCFD(w http.ResponseWriter, r *http.Request) {
	points, err := s.engine.CFD(r.Context(), r.PathValue("id"), itemFilterFromQuery(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) sprintKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.engine.SprintKPIs(r.Context(), r.PathValue("id"), itemFilterFromQuery(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (s *Server) projectKPIs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sf := metrics.SprintFilter{}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.writeDomainError(w, &board.ValidationError{Msg: "invalid from date, want YYYY-MM-DD"})
			return
		}
		sf.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.writeDomainError(w, &board.ValidationError{Msg: "invalid to date, want YYYY-MM-DD"})
			return
		}
		sf.To = &t
	}
	for _, st := range splitParam(q.Get("status")) {
		sf.Status = append(sf.Status, models.SprintStatus(st))
	}

	kpis, err := s.engine.ProjectKPIs(r.Context(), r.PathValue("id"), sf, itemFilterFromQuery(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (s *Server) projectVelocity(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Velocity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
