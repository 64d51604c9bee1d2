package lifecycle

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotFound, Status: http.StatusNotFound, Message: "downtime request not found"},
	{Error: ErrInvalidTransition, Status: http.StatusConflict},
	{Error: ErrInvalidInterval, Status: http.StatusBadRequest, Message: "end must be after start"},
	{Error: ErrPersistence, Status: http.StatusBadGateway, Message: "record store unavailable, retry the close"},
}

// Handler handles HTTP requests for the lifecycle module.
type Handler struct {
	service   *Service
	topology  domain.Topology
	validator *validator.Validate
}

// NewHandler creates a new lifecycle handler.
func NewHandler(service *Service, topology domain.Topology) *Handler {
	return &Handler{
		service:   service,
		topology:  topology,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all lifecycle routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Get("/", h.ListRequests)
		r.Post("/", h.CreateRequest)
		r.Post("/backfill", h.Backfill)
		r.Get("/{id}", h.GetRequest)
		r.Post("/{id}/accept", h.AcceptRequest)
		r.Post("/{id}/complete", h.CompleteRequest)
		r.Post("/{id}/close", h.CloseRequest)
	})
}

// ActorPayload identifies the person performing an operation.
type ActorPayload struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	ChatID      string `json:"chat_id"`
}

func (p ActorPayload) actor() domain.Actor {
	return domain.Actor{ID: p.ID, DisplayName: p.DisplayName, ChatID: p.ChatID}
}

// GroupPayload identifies a responsible group and where to notify it.
type GroupPayload struct {
	Name   string `json:"name" validate:"required"`
	ChatID string `json:"chat_id" validate:"required"`
}

// CreateRequestPayload represents request body for opening a downtime.
type CreateRequestPayload struct {
	Site        string        `json:"site" validate:"required"`
	LineSection string        `json:"line_section" validate:"required"`
	Reason      string        `json:"reason" validate:"required"`
	Description string        `json:"description"`
	MediaRef    string        `json:"media_ref"`
	Initiator   ActorPayload  `json:"initiator" validate:"required"`
	Group       *GroupPayload `json:"group"`
}

// ActorActionPayload represents request body for accept and complete.
type ActorActionPayload struct {
	Actor ActorPayload `json:"actor" validate:"required"`
}

// CloseRequestPayload represents request body for closing a downtime.
type CloseRequestPayload struct {
	Comment string `json:"comment"`
}

// BackfillPayload represents request body for recording a past downtime.
type BackfillPayload struct {
	Site        string        `json:"site" validate:"required"`
	LineSection string        `json:"line_section" validate:"required"`
	Reason      string        `json:"reason" validate:"required"`
	Description string        `json:"description"`
	Initiator   ActorPayload  `json:"initiator" validate:"required"`
	Group       *GroupPayload `json:"group"`
	Start       time.Time     `json:"start" validate:"required"`
	End         time.Time     `json:"end" validate:"required"`
	Comment     string        `json:"comment"`
}

// checkTopology verifies the site, line and reason exist in the plant
// layout. Free-text records would silently fall out of every report.
func (h *Handler) checkTopology(w http.ResponseWriter, site, line, reason string) bool {
	s, ok := h.topology.SiteByName(site)
	if !ok {
		httputil.Error(w, http.StatusBadRequest, "unknown site")
		return false
	}
	if _, ok := s.LineByName(line); !ok {
		httputil.Error(w, http.StatusBadRequest, "unknown line for site")
		return false
	}
	if _, ok := h.topology.ReasonByName(reason); !ok {
		httputil.Error(w, http.StatusBadRequest, "unknown downtime reason")
		return false
	}
	return true
}

// CreateRequest handles POST /requests.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	if !h.checkTopology(w, req.Site, req.LineSection, req.Reason) {
		return
	}

	input := CreateInput{
		Site:        req.Site,
		LineSection: req.LineSection,
		Reason:      req.Reason,
		Description: req.Description,
		MediaRef:    req.MediaRef,
		Initiator:   req.Initiator.actor(),
	}
	if req.Group != nil {
		input.Group = &domain.Group{Name: req.Group.Name, ChatID: req.Group.ChatID}
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, created)
}

// ListRequests handles GET /requests.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	httputil.Success(w, http.StatusOK, h.service.InflightSnapshot())
}

// GetRequest handles GET /requests/{id}.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, req)
}

// AcceptRequest handles POST /requests/{id}/accept.
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	var req ActorActionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	updated, err := h.service.Accept(r.Context(), chi.URLParam(r, "id"), req.Actor.actor())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, updated)
}

// CompleteRequest handles POST /requests/{id}/complete.
func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	var req ActorActionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	updated, err := h.service.MarkGroupComplete(r.Context(), chi.URLParam(r, "id"), req.Actor.actor())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, updated)
}

// CloseRequest handles POST /requests/{id}/close.
func (h *Handler) CloseRequest(w http.ResponseWriter, r *http.Request) {
	var req CloseRequestPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	receipt, err := h.service.Close(r.Context(), chi.URLParam(r, "id"), req.Comment)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, receipt)
}

// Backfill handles POST /backfill.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}
	if !h.checkTopology(w, req.Site, req.LineSection, req.Reason) {
		return
	}

	input := BackfillInput{
		Site:        req.Site,
		LineSection: req.LineSection,
		Reason:      req.Reason,
		Description: req.Description,
		Initiator:   req.Initiator.actor(),
		Start:       req.Start,
		End:         req.End,
		Comment:     req.Comment,
	}
	if req.Group != nil {
		input.Group = &domain.Group{Name: req.Group.Name, ChatID: req.Group.ChatID}
	}

	receipt, err := h.service.Backfill(r.Context(), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, receipt)
}
