package adapters

import (
	"context"
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

type telegramPublisher struct {
	endpoint string
	client   *http.Client
}

// NewTelegramPublisher posts through the Bot API. endpoint is a format string
// like tgbotapi.APIEndpoint; empty means the public Bot API.
func NewTelegramPublisher(endpoint string, client *http.Client) Publisher {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &telegramPublisher{endpoint: endpoint, client: newHTTPClient(client)}
}

func (t *telegramPublisher) Platform() models.Platform {
	return models.PlatformTelegram
}

func (t *telegramPublisher) Publish(ctx context.Context, creds models.Credentials, msg Message) (string, error) {
	bot := NewTelegramBot(creds.AccessToken, t.endpoint, t.client)

	chatID := creds.Metadata[models.MetadataChatID]
	if chatID == "" {
		chatID = creds.AccountID
	}

	text := html.EscapeString(utils.SmartTruncate(msg.Text, models.CharacterLimits[models.PlatformTelegram]))

	var chattable tgbotapi.Chattable
	if msg.HasImage() {
		chattable = telegramPhoto(chatID, msg.ImageURL, text)
	} else {
		chattable = telegramText(chatID, text)
	}

	sent, err := bot.Send(chattable)
	if err != nil {
		return "", telegramError(err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// NewTelegramBot builds a client without the getMe round trip
// tgbotapi.NewBotAPI performs.
func NewTelegramBot(token, endpoint string, client *http.Client) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: client,
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)
	return bot
}

func telegramText(chatID, text string) tgbotapi.MessageConfig {
	var m tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		m = tgbotapi.NewMessage(id, text)
	} else {
		m = tgbotapi.NewMessageToChannel(channelName(chatID), text)
	}
	m.ParseMode = tgbotapi.ModeHTML
	return m
}

func telegramPhoto(chatID, imageURL, caption string) tgbotapi.PhotoConfig {
	file := tgbotapi.FileURL(imageURL)

	var p tgbotapi.PhotoConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		p = tgbotapi.NewPhoto(id, file)
	} else {
		p = tgbotapi.NewPhotoToChannel(channelName(chatID), file)
	}
	p.Caption = caption
	p.ParseMode = tgbotapi.ModeHTML
	return p
}

func channelName(chatID string) string {
	if strings.HasPrefix(chatID, "@") {
		return chatID
	}
	return "@" + chatID
}

func telegramError(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return networkError(models.PlatformTelegram, err)
	}

	pe := &PlatformError{
		Platform: models.PlatformTelegram,
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Err:      err,
	}
	switch {
	case apiErr.Code == http.StatusUnauthorized:
		pe.Message = "Invalid bot token"
		pe.Tip = "Check the token from @BotFather and reconnect Telegram."
	case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "chat not found"):
		pe.Message = "Channel not found or bot is not an admin"
		pe.Tip = "Add the bot to the channel as an administrator."
	case apiErr.Code == http.StatusForbidden:
		pe.Message = "Bot was blocked or kicked from the chat"
		pe.Tip = "Add the bot back to the channel."
	}
	return pe
}
