package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	ps          service.PublishService
	AsynqClient queue.Enqueuer
}

func NewPostHandler(s service.PostService, ps service.PublishService, asynqClient queue.Enqueuer) *PostHandler {
	return &PostHandler{s: s, ps: ps, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	post, delay, err := h.s.CreatePost(c.Context(), userID, &pc)
	if err != nil {
		return errorResponse(c, err, "Unable to create post")
	}

	if post.Status == models.PostStatusScheduled {
		// the sweep still picks the post up if this fails
		err = queue.EnqueuePost(h.AsynqClient, queue.PublishPostPayload{PostID: post.ID}, delay)
		if err != nil {
			slog.Error("error scheduling post", "post_id", post.ID, "error", err.Error())
		}
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postID), userID)
		if err != nil {
			return errorResponse(c, err, "Unable to get post")
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return errorResponse(c, err, "Unable to list posts")
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return errorResponse(c, err, "Unable to remove post")
	}

	return c.SendStatus(fiber.StatusOK)
}

// PublishPost publishes right away and answers with the updated post.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	var req transfer.PublishRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			slog.Info(err.Error())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to parse request body",
			})
		}
	}

	post, err := h.ps.PublishPost(c.Context(), userID, int64(postID), req.Platforms)
	if err != nil {
		return errorResponse(c, err, "Unable to publish post")
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListAttempts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	attempts, err := h.s.Attempts(c.Context(), userID, int64(postID))
	if err != nil {
		return errorResponse(c, err, "Unable to list publish attempts")
	}

	return c.Status(fiber.StatusOK).JSON(attempts)
}

func (h *PostHandler) PreviewCaption(c *fiber.Ctx) error {
	var req transfer.CaptionPreviewRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	return c.Status(fiber.StatusOK).JSON(h.s.PreviewCaption(req.Caption, req.Hashtags))
}
