package handlers

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService}
}

// Create handles POST /tickets. The body is multipart form data so
// attachments can ride along with the ticket fields.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing principal")
	}

	categoryID, err := strconv.ParseInt(c.FormValue("category_id"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("category_id must be numeric", nil)
	}

	input := service.CreateTicketInput{
		Subject:     c.FormValue("subject"),
		Description: c.FormValue("description"),
		Priority:    c.FormValue("priority"),
		CategoryID:  categoryID,
	}

	var openFiles []multipart.File
	defer func() {
		for _, f := range openFiles {
			_ = f.Close()
		}
	}()
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, header := range form.File["files"] {
			f, err := header.Open()
			if err != nil {
				return apperrors.NewValidationError("unreadable attachment", map[string]any{"file": header.Filename})
			}
			openFiles = append(openFiles, f)
			input.Files = append(input.Files, service.Upload{Name: header.Filename, Reader: f})
		}
	}

	result, err := h.tickets.Create(c.UserContext(), principal, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": result})
}

// MyRequests handles GET /tickets/my-requests.
func (h *TicketsHandler) MyRequests(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing principal")
	}

	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", 20)

	tickets, total, err := h.tickets.MyRequests(c.UserContext(), principal, page, perPage)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"tickets": tickets,
			"total":   total,
			"page":    page,
		},
	})
}

// Detail handles GET /tickets/:id/detail.
func (h *TicketsHandler) Detail(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	detail, err := h.tickets.Detail(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": detail})
}

// Patch handles PATCH /tickets/:id.
func (h *TicketsHandler) Patch(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.PatchTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.tickets.Patch(c.UserContext(), ticketID, service.PatchTicketInput{
		Status:         req.Status,
		Priority:       req.Priority,
		AssignedUserID: req.AssignedUserID,
	}); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "updated"}})
}

// Assign handles POST /tickets/:id/assign. The assignee is whoever the
// request names, not the caller.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TechnicianID == 0 {
		return apperrors.NewValidationError("technician_id required", nil)
	}

	if err := h.tickets.Assign(c.UserContext(), ticketID, req.TechnicianID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "assigned"}})
}

// AddMessage handles POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("missing principal")
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	message, err := h.tickets.AddMessage(c.UserContext(), ticketID, principal.UserID, req.Body, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": message})
}

// UploadMessageAttachment handles POST /tickets/messages/:id/attachments.
func (h *TicketsHandler) UploadMessageAttachment(c *fiber.Ctx) error {
	messageID, err := c.ParamsInt("id")
	if err != nil || messageID <= 0 {
		return apperrors.NewValidationError("message id must be numeric", nil)
	}

	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", nil)
	}
	f, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable attachment", map[string]any{"file": header.Filename})
	}
	defer f.Close()

	attachment, err := h.tickets.UploadMessageAttachment(c.UserContext(), int64(messageID), service.Upload{
		Name:   header.Filename,
		Reader: f,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": attachment})
}

// AddCC handles POST /tickets/:id/cc.
func (h *TicketsHandler) AddCC(c *fiber.Ctx) error {
	return h.addParticipant(c, h.tickets.AddCC)
}

// RemoveCC handles DELETE /tickets/:id/cc/:userId.
func (h *TicketsHandler) RemoveCC(c *fiber.Ctx) error {
	return h.removeParticipant(c, h.tickets.RemoveCC)
}

// AddFollower handles POST /tickets/:id/followers.
func (h *TicketsHandler) AddFollower(c *fiber.Ctx) error {
	return h.addParticipant(c, h.tickets.AddFollower)
}

// RemoveFollower handles DELETE /tickets/:id/followers/:userId.
func (h *TicketsHandler) RemoveFollower(c *fiber.Ctx) error {
	return h.removeParticipant(c, h.tickets.RemoveFollower)
}

// ListOpen handles GET /tickets/all-open.
func (h *TicketsHandler) ListOpen(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	tickets, err := h.tickets.ListOpenOrUnassigned(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"tickets": tickets}})
}

func (h *TicketsHandler) addParticipant(c *fiber.Ctx, add func(ctx context.Context, ticketID, userID int64) error) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}

	var req dto.ParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == 0 {
		return apperrors.NewValidationError("user_id required", nil)
	}

	if err := add(c.UserContext(), ticketID, req.UserID); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"status": "added"}})
}

func (h *TicketsHandler) removeParticipant(c *fiber.Ctx, remove func(ctx context.Context, ticketID, userID int64) error) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return apperrors.NewValidationError("user id must be numeric", nil)
	}

	if err := remove(c.UserContext(), ticketID, int64(userID)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "removed"}})
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("ticket id must be numeric", nil)
	}
	return int64(id), nil
}
