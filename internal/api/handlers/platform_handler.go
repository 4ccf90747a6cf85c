package handlers

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type PlatformHandler struct {
	ps  service.PlatformService
	cfg *config.Config
}

func NewPlatformHandler(ps service.PlatformService, cfg *config.Config) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		cfg: cfg,
	}
}

func queryValues(c *fiber.Ctx) url.Values {
	values, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		slog.Info(err.Error())
		return url.Values{}
	}
	return values
}

// ConnectURL starts a connection flow and returns where to send the user.
func (h *PlatformHandler) ConnectURL(c *fiber.Ctx) error {
	authURL, err := h.ps.ConnectURL(c.Context(), GetUserID(c), c.Params("platform"), queryValues(c))
	if err != nil {
		return errorResponse(c, err, "Unable to start connection")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"url": authURL,
	})
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	platform := c.Params("platform")
	redirectURL := fmt.Sprintf("%s/dashboard/accounts", h.cfg.FrontendURL)

	connected, err := h.ps.Callback(c.Context(), platform, queryValues(c))
	if err != nil {
		message := err.Error()
		if errorStatus(err) == fiber.StatusInternalServerError {
			slog.Error("connection callback failed", "platform", platform, "error", message)
			message = "Unable to connect account"
		}
		return c.Redirect(redirectURL+"?error="+url.QueryEscape(message), fiber.StatusTemporaryRedirect)
	}

	return c.Redirect(redirectURL+"?connected="+url.QueryEscape(connected.String()), fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ConnectTelegram(c *fiber.Ctx) error {
	var req transfer.TelegramConnection
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	account, err := h.ps.ConnectTelegram(c.Context(), GetUserID(c), req.BotToken, req.ChatID)
	if err != nil {
		return errorResponse(c, err, "Unable to connect Telegram")
	}

	return c.Status(fiber.StatusCreated).JSON(account)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	accountList, err := h.ps.List(c.Context(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err, "Failed to fetch social accounts")
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	accountID := c.QueryInt("id", 0)

	if err := h.ps.Disconnect(c.Context(), GetUserID(c), int64(accountID)); err != nil {
		return errorResponse(c, err, "Unable to delete social account")
	}

	return c.SendStatus(fiber.StatusOK)
}
