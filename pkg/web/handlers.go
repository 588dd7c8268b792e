package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/persistence"
	"github.com/assetflow-io/assetflow/pkg/services"
)

// Identity headers set by the authenticating front proxy.
const (
	HeaderActorEmail = "X-Actor-Email"
	HeaderActorName  = "X-Actor-Name"
	HeaderActorAdmin = "X-Actor-Admin"
)

type APIHandlers struct {
	recordService     *services.Records
	inspectionService *services.Inspections
	roleService       *services.Roles
	validator         *validator.Validate
}

func NewAPIHandlers(
	recordService *services.Records,
	inspectionService *services.Inspections,
	roleService *services.Roles,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		recordService:     recordService,
		inspectionService: inspectionService,
		roleService:       roleService,
		validator:         validator,
	}
}

// actor builds the acting identity from the proxy headers. Email is the
// identity key and is mandatory for every endpoint.
func actor(c fiber.Ctx) (models.Actor, bool) {
	email := strings.TrimSpace(c.Get(HeaderActorEmail))
	if email == "" {
		return models.Actor{}, false
	}

	admin, _ := strconv.ParseBool(c.Get(HeaderActorAdmin))

	return models.Actor{
		Name:  c.Get(HeaderActorName),
		Email: email,
		Admin: admin,
	}, true
}

func entityType(c fiber.Ctx) (models.EntityType, error) {
	return models.ParseEntityType(c.Params("type"))
}

func (h *APIHandlers) CreateRecord(c fiber.Ctx) error {
	who, ok := actor(c)
	if !ok {
		return unauthorized(c, "actor identity headers missing")
	}

	et, err := entityType(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req CreateRecordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.recordService.Create(c.Context(), services.CreateRecordRequest{
		EntityType: et,
		Variant:    req.Variant,
		Code:       req.Code,
		Department: req.Department,
		Payload:    req.Payload,
	}, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) ListRecords(c fiber.Ctx) error {
	et, err := entityType(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	opts := persistence.ListRecordsOptions{
		EntityType:   et,
		Status:       c.Query("status"),
		Department:   c.Query("department"),
		CreatorEmail: c.Query("creator"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+limitStr)
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset: "+offsetStr)
		}

		opts.Offset = offset
	}

	records, err := h.recordService.List(c.Context(), opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RecordListResponse{
		Records: records,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

func (h *APIHandlers) GetRecord(c fiber.Ctx) error {
	et, err := entityType(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	record, err := h.recordService.Get(c.Context(), et, id)
	if err != nil {
		if persistence.IsRecordNotFound(err) {
			return notFound(c, "Record not found")
		}

		return internalError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) DeleteRecord(c fiber.Ctx) error {
	who, ok := actor(c)
	if !ok {
		return unauthorized(c, "actor identity headers missing")
	}

	et, err := entityType(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	if err := h.recordService.Delete(c.Context(), et, id, who); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ApplyAction(c fiber.Ctx) error {
	who, ok := actor(c)
	if !ok {
		return unauthorized(c, "actor identity headers missing")
	}

	et, err := entityType(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")
	action := c.Params("action")

	if id == "" || action == "" {
		return badRequest(c, "Record ID and action are required")
	}

	var req ActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	expectedVersion := int64(-1)
	if req.ExpectedVersion != nil {
		expectedVersion = *req.ExpectedVersion
	}

	updated, err := h.recordService.ApplyAction(c.Context(), et, id, action, services.ActionRequest{
		Comment:             req.Comment,
		Attachments:         req.Attachments,
		MaintenanceOpinion:  req.MaintenanceOpinion,
		EstimatedCompletion: req.EstimatedCompletion,
		ExpectedVersion:     expectedVersion,
	}, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) AddComment(c fiber.Ctx) error {
	who, ok := actor(c)
	if !ok {
		return unauthorized(c, "actor identity headers missing")
	}

	et, err := entityType(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	var req CommentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	comment, err := h.recordService.AddComment(c.Context(), et, id, req.Content, req.ReplyToID, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (h *APIHandlers) GetThreads(c fiber.Ctx) error {
	et, err := entityType(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Record ID is required")
	}

	threads, err := h.recordService.Threads(c.Context(), et, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"threads": threads})
}

func (h *APIHandlers) ListInspections(c fiber.Ctx) error {
	inspections, err := h.inspectionService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"inspections": inspections})
}

func (h *APIHandlers) ApplyInspectionAction(c fiber.Ctx) error {
	who, ok := actor(c)
	if !ok {
		return unauthorized(c, "actor identity headers missing")
	}

	id := c.Params("id")
	action := c.Params("action")

	if id == "" || action == "" {
		return badRequest(c, "Inspection ID and action are required")
	}

	var req InspectionActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.inspectionService.Confirm(c.Context(), id, action, req.Comment, who)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteInspection(c fiber.Ctx) error {
	who, ok := actor(c)
	if !ok {
		return unauthorized(c, "actor identity headers missing")
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Inspection ID is required")
	}

	if err := h.inspectionService.Delete(c.Context(), id, who); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetRoles(c fiber.Ctx) error {
	config, err := h.roleService.Get(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(config)
}

func (h *APIHandlers) UpdateRoles(c fiber.Ctx) error {
	who, ok := actor(c)
	if !ok {
		return unauthorized(c, "actor identity headers missing")
	}

	var req UpdateRolesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	config := models.NewRoleConfig()
	config.Assignments = req.Assignments
	config.Admins = req.Admins

	if err := h.roleService.Save(c.Context(), config, who); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(config)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.recordService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "AssetFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "AssetFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
