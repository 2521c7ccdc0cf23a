// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/taskflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService   *services.Workflow
	suggestionService *services.Suggestion
	validator         *validator.Validate
	logger            *slog.Logger
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	suggestionService *services.Suggestion,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandlers{
		workflowService:   workflowService,
		suggestionService: suggestionService,
		validator:         validator,
		logger:            logger.With("module", "web"),
	}
}

// Routes registers every workflow endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	w := router.Group("/spaces/:spaceId/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/duplicate", h.DuplicateWorkflow)
	w.Get("/:id/history", h.GetWorkflowHistory)
	w.Get("/:id/versions/:version", h.GetWorkflowVersion)
	w.Post("/:id/versions/:version/restore", h.RestoreWorkflowVersion)
	w.Put("/:id/tasks/:taskId", h.AssignTask)

	router.Delete("/tasks/:taskId/workflow", h.ReleaseTask)
	router.Post("/workflows/suggestions", h.SuggestWorkflow)
	router.Get("/health", h.HealthCheck)
}

func actor(c fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get(ActorHeader)); id != "" {
		return id
	}

	return services.DefaultActor
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	summaries, err := h.workflowService.List(c.Context(), c.Params("spaceId"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(WorkflowListResponse{Workflows: summaries})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	detail, err := h.workflowService.Get(c.Context(), c.Params("spaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) GetWorkflowVersion(c fiber.Ctx) error {
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil || version < 1 {
		return badRequest(c, "Version must be a positive integer")
	}

	detail, err := h.workflowService.GetVersion(c.Context(), c.Params("spaceId"), c.Params("id"), version)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) GetWorkflowHistory(c fiber.Ctx) error {
	audits, err := h.workflowService.History(c.Context(), c.Params("spaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(HistoryResponse{History: audits})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Taskflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Taskflow API is healthy"
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

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), actor(c), req.Input(c.Params("spaceId")))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), actor(c), c.Params("spaceId"), c.Params("id"), &req)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), actor(c), c.Params("spaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateWorkflow(c fiber.Ctx) error {
	copied, err := h.workflowService.Duplicate(c.Context(), actor(c), c.Params("spaceId"), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(copied)
}

func (h *APIHandlers) RestoreWorkflowVersion(c fiber.Ctx) error {
	version, err := strconv.Atoi(c.Params("version"))
	if err != nil || version < 1 {
		return badRequest(c, "Version must be a positive integer")
	}

	restored, err := h.workflowService.Restore(c.Context(), actor(c), c.Params("spaceId"), c.Params("id"), version)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(restored)
}

func (h *APIHandlers) AssignTask(c fiber.Ctx) error {
	assignment, err := h.workflowService.AssignTask(
		c.Context(), actor(c), c.Params("spaceId"), c.Params("id"), c.Params("taskId"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(assignment)
}

func (h *APIHandlers) ReleaseTask(c fiber.Ctx) error {
	_, err := h.workflowService.ReleaseTask(c.Context(), actor(c), c.Params("taskId"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SuggestWorkflow(c fiber.Ctx) error {
	var req SuggestWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	suggestion, err := h.suggestionService.Suggest(c.Context(), req)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(suggestion)
}
