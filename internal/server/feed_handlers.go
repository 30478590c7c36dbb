package server

import (
	"strconv"

	"pulse/internal/middleware"
	"pulse/internal/models"
	"pulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetSubjects handles GET /api/subjects
// @Summary Ranked subjects
// @Description Returns subjects ordered by policy (hot, new or top; default hot). Comments require postId.
// @Tags feed
// @Produce json
// @Param policy query string false "hot | new | top"
// @Param type query string false "post | comment"
// @Param forumId query int false "Restrict posts to a forum"
// @Param postId query int false "Post whose comments to rank"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset into the ranked list"
// @Success 200 {array} models.Subject
// @Failure 400 {object} models.ErrorResponse
// @Router /subjects [get]
func (s *Server) GetSubjects(c *fiber.Ctx) error {
	kind, err := models.ParseSubjectKind(c.Query("type"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	q := service.FeedQuery{Kind: kind, Policy: policyParam(c)}
	forumID, hasForum, err := parseOptionalID(c, "forumId")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if hasForum {
		q.ForumID = &forumID
	}
	if q.PostID, _, err = parseOptionalID(c, "postId"); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return s.respondFeed(c, q)
}

// GetForumPosts handles GET /api/forums/:id/posts
// @Summary Ranked posts of a forum
// @Tags feed
// @Produce json
// @Param id path int true "Forum ID"
// @Param sort query string false "hot | new | top"
// @Success 200 {array} models.Subject
// @Router /forums/{id}/posts [get]
func (s *Server) GetForumPosts(c *fiber.Ctx) error {
	forumID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.respondFeed(c, service.FeedQuery{Kind: models.SubjectPost, ForumID: &forumID, Policy: policyParam(c)})
}

// GetPostComments handles GET /api/posts/:id/comments
// @Summary Ranked comments of a post
// @Tags feed
// @Produce json
// @Param id path int true "Post ID"
// @Param sort query string false "hot | new | top"
// @Success 200 {array} models.Subject
// @Router /posts/{id}/comments [get]
func (s *Server) GetPostComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.respondFeed(c, service.FeedQuery{Kind: models.SubjectComment, PostID: postID, Policy: policyParam(c)})
}

func (s *Server) respondFeed(c *fiber.Ctx, q service.FeedQuery) error {
	page := parsePagination(c, defaultPageLimit)
	q.Limit, q.Offset = page.Limit, page.Offset
	q.ViewerID, _ = middleware.VoterID(c)

	result, err := s.feedService.Feed(c.UserContext(), q)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	c.Set("X-Total-Count", strconv.Itoa(result.Total))
	c.Set("X-Ranking-Policy", string(result.Policy))
	return c.JSON(result.Items)
}
