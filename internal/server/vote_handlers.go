package server

import (
	"pulse/internal/middleware"
	"pulse/internal/models"
	"pulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// VoteRequest is the body of POST /api/vote.
type VoteRequest struct {
	SubjectType string `json:"subjectType"`
	SubjectID   uint   `json:"subjectId"`
	VoterID     string `json:"voterId,omitempty"`
	Direction   string `json:"direction"`
}

// VoteResponse is the current state of a voter's vote on a subject.
type VoteResponse struct {
	SubjectType models.SubjectKind `json:"subjectType"`
	SubjectID   uint               `json:"subjectId"`
	Direction   models.Direction   `json:"direction"`
}

// CastVote handles POST /api/vote
// @Summary Cast, flip or retract a vote
// @Description Voting the same direction twice retracts the vote. Send an Idempotency-Key header to make retries safe.
// @Tags votes
// @Accept json
// @Produce json
// @Param request body VoteRequest true "Vote request"
// @Param Idempotency-Key header string false "Deduplicates retries for 10 minutes"
// @Success 200 {object} models.VoteOutcome
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /vote [post]
func (s *Server) CastVote(c *fiber.Ctx) error {
	var req VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	kind, err := models.ParseSubjectKind(req.SubjectType)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return s.castVote(c, models.SubjectRef{Kind: kind, ID: req.SubjectID}, req.VoterID, req.Direction)
}

// CastPostVote handles POST /api/posts/:id/vote
// @Summary Vote on a post
// @Tags votes
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{direction=string} true "up or down"
// @Success 200 {object} models.VoteOutcome
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/vote [post]
func (s *Server) CastPostVote(c *fiber.Ctx) error {
	return s.castRouteVote(c, models.SubjectPost)
}

// CastCommentVote handles POST /api/comments/:id/vote
// @Summary Vote on a comment
// @Tags votes
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body object{direction=string} true "up or down"
// @Success 200 {object} models.VoteOutcome
// @Security BearerAuth
// @Router /comments/{id}/vote [post]
func (s *Server) CastCommentVote(c *fiber.Ctx) error {
	return s.castRouteVote(c, models.SubjectComment)
}

func (s *Server) castRouteVote(c *fiber.Ctx, kind models.SubjectKind) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Direction string `json:"direction"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	return s.castVote(c, models.SubjectRef{Kind: kind, ID: id}, "", req.Direction)
}

// castVote applies a vote for the authenticated voter. A voterId in the body
// is accepted only if it names the same voter as the token.
func (s *Server) castVote(c *fiber.Ctx, ref models.SubjectRef, claimedVoter, direction string) error {
	voterID, ok := middleware.VoterID(c)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
	if claimedVoter != "" && claimedVoter != voterID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("voterId does not match the authenticated voter"))
	}

	out, err := s.voteService.CastVote(c.UserContext(), service.CastVoteInput{
		Subject:        ref,
		VoterID:        voterID,
		Direction:      direction,
		IdempotencyKey: c.Get("Idempotency-Key"),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(out)
}

// GetPostVote handles GET /api/posts/:id/vote
// @Summary Get the caller's vote on a post
// @Tags votes
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} VoteResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/vote [get]
func (s *Server) GetPostVote(c *fiber.Ctx) error {
	return s.getVote(c, models.SubjectPost)
}

// GetCommentVote handles GET /api/comments/:id/vote
// @Summary Get the caller's vote on a comment
// @Tags votes
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} VoteResponse
// @Security BearerAuth
// @Router /comments/{id}/vote [get]
func (s *Server) GetCommentVote(c *fiber.Ctx) error {
	return s.getVote(c, models.SubjectComment)
}

func (s *Server) getVote(c *fiber.Ctx, kind models.SubjectKind) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	voterID, _ := middleware.VoterID(c)

	ref := models.SubjectRef{Kind: kind, ID: id}
	dir, err := s.voteService.CurrentVote(c.UserContext(), ref, voterID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(VoteResponse{SubjectType: kind, SubjectID: id, Direction: dir})
}
