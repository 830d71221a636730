package httpapi

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"deadline-tracker/internal/countdown"
	"deadline-tracker/internal/linkform"
	"deadline-tracker/internal/model"
	"deadline-tracker/internal/service"
	"deadline-tracker/internal/store"
	"deadline-tracker/internal/view"
)

// workspaces resolves the signed-in user's workspace.
type workspaces struct {
	svc *service.WorkspaceService
	log *zap.Logger
}

func (w workspaces) current(c fiber.Ctx) (*service.Workspace, error) {
	userID := fiber.Locals[uint](c, localUserID)
	ws, err := w.svc.WorkspaceByUserID(c.Context(), userID)
	if err != nil {
		w.log.Error("load workspace", zap.Uint("user_id", userID), zap.Error(err))
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to load workspace")
	}
	return ws, nil
}

// LinkHandler serves the link list, the add/edit form and status changes.
type LinkHandler struct {
	workspaces
	loc *time.Location
}

func NewLinkHandler(svc *service.WorkspaceService, loc *time.Location, log *zap.Logger) *LinkHandler {
	return &LinkHandler{workspaces: workspaces{svc: svc, log: log}, loc: loc}
}

// linkResponse is a link with its display-time fields.
type linkResponse struct {
	model.Link
	EffectiveStatus model.Status        `json:"effective_status"`
	Remaining       countdown.Remaining `json:"remaining"`
	Urgency         countdown.Urgency   `json:"urgency,omitempty"`
}

func newLinkResponse(link model.Link, now time.Time) linkResponse {
	r := countdown.Compute(link.Deadline, now)
	resp := linkResponse{Link: link, EffectiveStatus: link.EffectiveStatus(now), Remaining: r}
	if !r.Expired {
		resp.Urgency = r.Urgency()
	}
	return resp
}

func newLinkResponses(links []model.Link, now time.Time) []linkResponse {
	out := make([]linkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, newLinkResponse(link, now))
	}
	return out
}

// List returns links in display order: expired last, otherwise soonest
// deadline first.
func (h *LinkHandler) List(c fiber.Ctx) error {
	category, err := view.ParseCategoryFilter(c.Query("category"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	status, err := view.ParseStatusFilter(c.Query("status"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	ws, err := h.current(c)
	if err != nil {
		return err
	}
	return jsonSuccess(c, newLinkResponses(ws.Display(category, status), ws.Now()))
}

func (h *LinkHandler) Upcoming(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit", store.DefaultUpcomingLimit)
	ws, err := h.current(c)
	if err != nil {
		return err
	}
	return jsonSuccess(c, newLinkResponses(ws.Links.Upcoming(limit), ws.Now()))
}

func (h *LinkHandler) Get(c fiber.Ctx) error {
	ws, err := h.current(c)
	if err != nil {
		return err
	}
	link, err := ws.Resolve(c.Params("id"))
	if err != nil {
		return domainError(c, h.log, err, "failed to fetch link")
	}
	return jsonSuccess(c, newLinkResponse(link, ws.Now()))
}

// linkBody is the add/edit form. Missing fields keep the form's current
// value: the defaults for a new link, the stored value for an edit.
type linkBody struct {
	Title     *string `json:"title"`
	URL       *string `json:"url"`
	Category  *string `json:"category"`
	Date      *string `json:"date"`
	TimeOfDay *string `json:"time"`
	LeadDays  *int    `json:"lead_days"`
	Notes     *string `json:"notes"`
}

func (b linkBody) apply(form *linkform.Form, loc *time.Location) error {
	if b.Title != nil {
		form.Title = *b.Title
	}
	if b.URL != nil {
		form.URL = *b.URL
	}
	if b.Category != nil {
		form.Category = model.Category(strings.ToLower(strings.TrimSpace(*b.Category)))
	}
	if b.Date != nil {
		if strings.TrimSpace(*b.Date) == "" {
			form.Date = nil
		} else {
			date, err := linkform.ParseDate(*b.Date, loc)
			if err != nil {
				return &linkform.ValidationError{Title: "Invalid date", Message: "Use the YYYY-MM-DD format."}
			}
			form.Date = &date
		}
	}
	if b.TimeOfDay != nil {
		form.TimeOfDay = *b.TimeOfDay
	}
	if b.LeadDays != nil {
		form.LeadDays = *b.LeadDays
	}
	if b.Notes != nil {
		form.Notes = *b.Notes
	}
	return nil
}

// Create submits a new-link form.
func (h *LinkHandler) Create(c fiber.Ctx) error {
	var body linkBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ws, err := h.current(c)
	if err != nil {
		return err
	}

	form := linkform.New()
	if err := body.apply(form, h.loc); err != nil {
		return domainError(c, h.log, err, "invalid form")
	}
	link, err := ws.SubmitForm(c.Context(), form, h.loc)
	if err != nil {
		return domainError(c, h.log, err, "failed to create link")
	}

	h.log.Info("link created", zap.Uint("user_id", ws.UserID()), zap.String("link_id", link.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "ok",
		"data":   newLinkResponse(link, ws.Now()),
	})
}

// Update submits an edit form prefilled from the stored link. The reminder
// time is never recomputed.
func (h *LinkHandler) Update(c fiber.Ctx) error {
	var body linkBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ws, err := h.current(c)
	if err != nil {
		return err
	}
	existing, err := ws.Resolve(c.Params("id"))
	if err != nil {
		return domainError(c, h.log, err, "failed to fetch link")
	}

	form := linkform.ForEdit(existing, h.loc)
	if err := body.apply(form, h.loc); err != nil {
		return domainError(c, h.log, err, "invalid form")
	}
	link, err := ws.SubmitForm(c.Context(), form, h.loc)
	if err != nil {
		return domainError(c, h.log, err, "failed to update link")
	}
	return jsonSuccess(c, newLinkResponse(link, ws.Now()))
}

// Extract runs URL extraction on pasted text and returns the prefilled
// form. Nothing is stored.
func (h *LinkHandler) Extract(c fiber.Ctx) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	form := linkform.New()
	if _, err := form.ApplyExtraction(body.Text); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}
	return jsonSuccess(c, fiber.Map{
		"title":     form.Title,
		"url":       form.URL,
		"category":  form.Category,
		"time":      form.TimeOfDay,
		"lead_days": form.LeadDays,
	})
}

func (h *LinkHandler) SetStatus(c fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	status, err := model.ParseStatus(body.Status)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	ws, err := h.current(c)
	if err != nil {
		return err
	}
	existing, err := ws.Resolve(c.Params("id"))
	if err != nil {
		return domainError(c, h.log, err, "failed to fetch link")
	}
	link, err := ws.SetStatus(c.Context(), existing.ID, status)
	if err != nil {
		return domainError(c, h.log, err, "failed to update status")
	}
	return jsonSuccess(c, newLinkResponse(link, ws.Now()))
}

func (h *LinkHandler) Delete(c fiber.Ctx) error {
	ws, err := h.current(c)
	if err != nil {
		return err
	}
	existing, err := ws.Resolve(c.Params("id"))
	if err != nil {
		return domainError(c, h.log, err, "failed to fetch link")
	}
	if err := ws.DeleteLink(c.Context(), existing.ID); err != nil {
		return domainError(c, h.log, err, "failed to delete link")
	}
	return jsonSuccess(c, fiber.Map{"id": existing.ID})
}

// Stats returns the dashboard counters plus the unread count.
func (h *LinkHandler) Stats(c fiber.Ctx) error {
	ws, err := h.current(c)
	if err != nil {
		return err
	}
	return jsonSuccess(c, struct {
		view.Stats
		Unread int `json:"unread"`
	}{ws.Stats(), ws.Notifications.UnreadCount()})
}
