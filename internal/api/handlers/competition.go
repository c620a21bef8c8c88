package handlers

import (
	"errors"
	"strconv"

	"prizeboard/internal/competition"
	"prizeboard/internal/models"
	"prizeboard/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CompetitionHandler handles HTTP requests for competitions and their leaderboards
type CompetitionHandler struct {
	service *service.CompetitionService
	logger  *zap.Logger
}

// NewCompetitionHandler creates a new competition handler
func NewCompetitionHandler(service *service.CompetitionService, logger *zap.Logger) *CompetitionHandler {
	return &CompetitionHandler{
		service: service,
		logger:  logger,
	}
}

// Register mounts every competition route on router
func (h *CompetitionHandler) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Post("/sponsors", h.CreateSponsor)
	router.Post("/prizes", h.CreatePrize)

	competitions := router.Group("/competitions")
	competitions.Post("/", h.CreateCompetition)
	competitions.Get("/", h.ListCompetitions)
	competitions.Get("/:id", h.GetCompetition)
	competitions.Get("/:id/leaderboard", h.GetLeaderboard)
	competitions.Get("/:id/scores/:user", h.GetUserScore)
	competitions.Get("/:id/ranks/:user", h.GetUserRank)
	competitions.Post("/:id/close", h.CloseCompetition)
	competitions.Post("/:id/winners", h.AssignWinners)
	competitions.Post("/:id/participants", h.RegisterParticipant)
	competitions.Get("/:id/participants", h.ListParticipants)
	competitions.Patch("/:id/participants/:user", h.ModerateParticipant)
	competitions.Post("/:id/prizes", h.AttachPrize)
}

// CreateCompetition handles POST /api/v1/competitions
// @Summary Create a competition
// @Accept json
// @Produce json
// @Param request body models.CreateCompetitionRequest true "Competition configuration"
// @Success 201 {object} models.Competition
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/competitions [post]
func (h *CompetitionHandler) CreateCompetition(c *fiber.Ctx) error {
	var req models.CreateCompetitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	comp, err := h.service.CreateCompetition(c.UserContext(), req)
	if err != nil {
		return h.fail(c, "Failed to create competition", err)
	}
	return c.Status(fiber.StatusCreated).JSON(comp)
}

// ListCompetitions handles GET /api/v1/competitions?state=open
// @Summary List competitions, optionally by lifecycle state
// @Produce json
// @Param state query string false "upcoming, open or closed"
// @Success 200 {array} models.Competition
// @Router /api/v1/competitions [get]
func (h *CompetitionHandler) ListCompetitions(c *fiber.Ctx) error {
	comps, err := h.service.ListCompetitions(c.UserContext(), competition.State(c.Query("state")))
	if err != nil {
		return h.fail(c, "Failed to list competitions", err)
	}
	if comps == nil {
		comps = []models.Competition{}
	}
	return c.JSON(comps)
}

// GetCompetition handles GET /api/v1/competitions/:id
func (h *CompetitionHandler) GetCompetition(c *fiber.Ctx) error {
	comp, err := h.service.GetCompetition(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, "Failed to retrieve competition", err)
	}
	return c.JSON(comp)
}

// GetLeaderboard handles GET /api/v1/competitions/:id/leaderboard
// @Summary Get a competition leaderboard
// @Description Live while the competition is open, the frozen closing snapshot once closed
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination" default(50)
// @Success 200 {object} models.LeaderboardResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /api/v1/competitions/{id}/leaderboard [get]
func (h *CompetitionHandler) GetLeaderboard(c *fiber.Ctx) error {
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	page, err := h.service.GetLeaderboardPage(c.UserContext(), c.Params("id"), offset, limit)
	if err != nil {
		return h.fail(c, "Failed to retrieve leaderboard", err)
	}
	return c.JSON(page)
}

// GetUserScore handles GET /api/v1/competitions/:id/scores/:user
// @Summary Get a user's per-criterion points
// @Produce json
// @Success 200 {object} models.ScoreResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/competitions/{id}/scores/{user} [get]
func (h *CompetitionHandler) GetUserScore(c *fiber.Ctx) error {
	score, err := h.service.GetScoreCard(c.UserContext(), c.Params("id"), c.Params("user"))
	if err != nil {
		return h.fail(c, "Failed to compute score", err)
	}
	return c.JSON(score)
}

// GetUserRank handles GET /api/v1/competitions/:id/ranks/:user
// @Summary Get a user's final placement in a closed competition
// @Produce json
// @Success 200 {object} models.RankResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/competitions/{id}/ranks/{user} [get]
func (h *CompetitionHandler) GetUserRank(c *fiber.Ctx) error {
	rank, err := h.service.GetUserRank(c.UserContext(), c.Params("id"), c.Params("user"))
	if err != nil {
		return h.fail(c, "Failed to retrieve rank", err)
	}
	return c.JSON(rank)
}

// CloseCompetition handles POST /api/v1/competitions/:id/close
// @Summary Freeze the leaderboard of a finished competition
// @Produce json
// @Success 200 {object} competition.Leaderboard
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/competitions/{id}/close [post]
func (h *CompetitionHandler) CloseCompetition(c *fiber.Ctx) error {
	lb, err := h.service.CloseCompetition(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, "Failed to close competition", err)
	}
	return c.JSON(lb)
}

// AssignWinners handles POST /api/v1/competitions/:id/winners
// @Summary Assign winners and prizes of a finished competition
// @Produce json
// @Success 200 {array} competition.Award
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/competitions/{id}/winners [post]
func (h *CompetitionHandler) AssignWinners(c *fiber.Ctx) error {
	awards, err := h.service.AssignWinners(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, "Failed to assign winners", err)
	}
	return c.JSON(awards)
}

// RegisterParticipant handles POST /api/v1/competitions/:id/participants
func (h *CompetitionHandler) RegisterParticipant(c *fiber.Ctx) error {
	var req models.RegisterParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	p, err := h.service.RegisterParticipant(c.UserContext(), c.Params("id"), req.UserID)
	if err != nil {
		return h.fail(c, "Failed to register participant", err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ListParticipants handles GET /api/v1/competitions/:id/participants?status=pending_moderation
func (h *CompetitionHandler) ListParticipants(c *fiber.Ctx) error {
	status := competition.RegistrationStatus(c.Query("status"))
	participants, err := h.service.ListParticipants(c.UserContext(), c.Params("id"), status)
	if err != nil {
		return h.fail(c, "Failed to list participants", err)
	}
	if participants == nil {
		participants = []models.CompetitionParticipant{}
	}
	return c.JSON(participants)
}

// ModerateParticipant handles PATCH /api/v1/competitions/:id/participants/:user
func (h *CompetitionHandler) ModerateParticipant(c *fiber.Ctx) error {
	var req models.ModerateParticipantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	p, err := h.service.ModerateParticipant(c.UserContext(), c.Params("id"), c.Params("user"), req)
	if err != nil {
		return h.fail(c, "Failed to moderate participant", err)
	}
	return c.JSON(p)
}

// CreateSponsor handles POST /api/v1/sponsors
func (h *CompetitionHandler) CreateSponsor(c *fiber.Ctx) error {
	var req models.CreateSponsorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	sp, err := h.service.CreateSponsor(c.UserContext(), req)
	if err != nil {
		return h.fail(c, "Failed to create sponsor", err)
	}
	return c.Status(fiber.StatusCreated).JSON(sp)
}

// CreatePrize handles POST /api/v1/prizes
// @Summary Add a prize to the catalogue
// @Accept json
// @Produce json
// @Param request body models.CreatePrizeRequest true "Prize"
// @Success 201 {object} models.Prize
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/prizes [post]
func (h *CompetitionHandler) CreatePrize(c *fiber.Ctx) error {
	var req models.CreatePrizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	prize, err := h.service.CreatePrizeFromRequest(c.UserContext(), req)
	if err != nil {
		return h.fail(c, "Failed to create prize", err)
	}
	return c.Status(fiber.StatusCreated).JSON(prize)
}

// AttachPrize handles POST /api/v1/competitions/:id/prizes
func (h *CompetitionHandler) AttachPrize(c *fiber.Ctx) error {
	var req models.AttachPrizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	cp, err := h.service.AttachPrize(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return h.fail(c, "Failed to attach prize", err)
	}
	return c.Status(fiber.StatusCreated).JSON(cp)
}

// HealthCheck handles GET /api/v1/health
// @Summary Health check
// @Description Checks the health of the service and its dependencies
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/health [get]
func (h *CompetitionHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.service.HealthCheck(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error:   "Health check failed",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "healthy",
		"message": "All systems operational",
	})
}

// fail maps service errors onto HTTP statuses
func (h *CompetitionHandler) fail(c *fiber.Ctx, title string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error(title,
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(status).JSON(models.ErrorResponse{
		Error:   title,
		Message: err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, competition.ErrCompetitionNotFound),
		errors.Is(err, competition.ErrParticipantNotFound),
		errors.Is(err, competition.ErrPrizeNotFound),
		errors.Is(err, competition.ErrSponsorNotFound),
		competition.IsUserNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, competition.ErrCompetitionNotClosed),
		errors.Is(err, service.ErrRegistrationClosed):
		return fiber.StatusConflict
	case errors.Is(err, competition.ErrInvalidConfiguration),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case competition.IsUnsupportedCriterion(err):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
