package web

import (
	"errors"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// graphProblem is a problem response extended with the issues that blocked a write
// and the corrections applied before validation.
type graphProblem struct {
	*problems.Problem

	Issues   []models.Issue `json:"issues"`
	Warnings []string       `json:"warnings"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, errorType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(errorType).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func unprocessable(c fiber.Ctx, err error) error {
	response := graphProblem{
		Problem: problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_workflow").
			WithDetail(err.Error()),
		Issues:   []models.Issue{},
		Warnings: []string{},
	}

	var graphErr *services.GraphError
	if errors.As(err, &graphErr) {
		if graphErr.Issues != nil {
			response.Issues = graphErr.Issues
		}

		if graphErr.Warnings != nil {
			response.Warnings = graphErr.Warnings
		}
	}

	return c.Status(fiber.StatusUnprocessableEntity).JSON(response)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func (h *APIHandlers) handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsGraphError(err):
		return unprocessable(c, err)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("workflow_in_use").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsVersionNotFound(err):
		return notFound(c, "version_not_found", err.Error())

	case services.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", err.Error())

	case services.IsNotFoundError(err):
		return notFound(c, "task_not_assigned", err.Error())

	default:
		h.logger.ErrorContext(c.Context(), "request failed", "path", c.Path(), "error", err)

		return internalError(c, err)
	}
}
