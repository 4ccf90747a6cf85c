package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/adapters"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

const flowTokenLength = 32

// Connector runs the authorization dance of one platform.
type Connector interface {
	Platform() models.Platform
	// Begin fills platform data into the flow state and returns the URL the
	// user is sent to.
	Begin(ctx context.Context, state *models.OAuthState, params url.Values) (string, error)
	// Complete turns the callback query into a connected account.
	Complete(ctx context.Context, state *models.OAuthState, query url.Values) (*Connection, error)
}

// Connection is a freshly authorized account with its plaintext secrets.
type Connection struct {
	Account     *models.SocialAccount
	AccessToken string
	Secret      string
	ExpiresAt   *time.Time
}

type PlatformService interface {
	ConnectURL(ctx context.Context, userID, platform string, params url.Values) (string, error)
	Callback(ctx context.Context, platform string, query url.Values) (models.Platform, error)
	ConnectTelegram(ctx context.Context, userID, botToken, chatID string) (*models.SocialAccount, error)
	List(ctx context.Context, userID string) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID string, accountID int64) error
}

type platformService struct {
	cfg              *config.Config
	states           repository.OAuthStateRepository
	sa               repository.SocialAccountRepository
	creds            CredentialService
	connectors       map[models.Platform]Connector
	telegramEndpoint string
	client           *http.Client
	now              func() time.Time
}

func NewPlatformService(
	cfg *config.Config,
	states repository.OAuthStateRepository,
	sa repository.SocialAccountRepository,
	creds CredentialService,
	telegramEndpoint string,
	client *http.Client,
	connectors ...Connector) PlatformService {
	if telegramEndpoint == "" {
		telegramEndpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	byPlatform := make(map[models.Platform]Connector, len(connectors))
	for _, c := range connectors {
		byPlatform[c.Platform()] = c
	}

	return &platformService{
		cfg:              cfg,
		states:           states,
		sa:               sa,
		creds:            creds,
		connectors:       byPlatform,
		telegramEndpoint: telegramEndpoint,
		client:           client,
		now:              time.Now,
	}
}

func (s *platformService) connector(name string) (Connector, error) {
	platform, err := models.ParsePlatform(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, name)
	}
	c, ok := s.connectors[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no authorization flow", ErrUnsupportedPlatform, platform)
	}
	return c, nil
}

func (s *platformService) ConnectURL(ctx context.Context, userID, platform string, params url.Values) (string, error) {
	c, err := s.connector(platform)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	flowToken, err := utils.GenerateRandomKey(flowTokenLength)
	if err != nil {
		return "", fmt.Errorf("generate flow token: %w", err)
	}

	now := s.now()
	state := &models.OAuthState{
		FlowToken: flowToken,
		UserID:    userID,
		Platform:  c.Platform().String(),
		ExpiresAt: now.Add(s.cfg.OAuthFlowTTL),
		CreatedAt: now,
	}

	authURL, err := c.Begin(ctx, state, params)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if err := s.states.Create(ctx, state); err != nil {
		return "", fmt.Errorf("store %s flow: %w", c.Platform(), err)
	}

	slog.Info("connection flow started", "user_id", userID, "platform", c.Platform())
	return authURL, nil
}

// flowToken finds the flow token in a callback query. OAuth 2 providers echo
// it as state; the Twitter callback carries it in the flow parameter.
func flowToken(query url.Values) string {
	if token := query.Get("state"); token != "" {
		return token
	}
	return query.Get("flow")
}

func (s *platformService) Callback(ctx context.Context, platform string, query url.Values) (models.Platform, error) {
	c, err := s.connector(platform)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	token := flowToken(query)
	if token == "" {
		slog.Info("callback without flow token", "platform", platform)
		return c.Platform(), ErrFlowExpired
	}

	// Take consumes the row, so a replayed callback finds nothing.
	state, err := s.states.Take(ctx, token)
	if err != nil {
		return c.Platform(), fmt.Errorf("load %s flow: %w", c.Platform(), err)
	}
	if state == nil || state.Expired(s.now()) || state.Platform != c.Platform().String() {
		slog.Info("connection flow expired or unknown", "platform", c.Platform())
		return c.Platform(), ErrFlowExpired
	}

	if denied := authorizationDenied(query); denied != "" {
		err := fmt.Errorf("%w: %s", ErrInvalidRequest, denied)
		slog.Info(err.Error())
		return c.Platform(), err
	}

	conn, err := c.Complete(ctx, state, query)
	if err != nil {
		slog.Info(err.Error())
		return c.Platform(), err
	}

	conn.Account.UserID = state.UserID
	conn.Account.Platform = c.Platform().String()
	if _, err := s.creds.Connect(ctx, conn.Account, conn.AccessToken, conn.Secret, conn.ExpiresAt); err != nil {
		return c.Platform(), err
	}

	return c.Platform(), nil
}

func authorizationDenied(query url.Values) string {
	if query.Get("denied") != "" {
		return "authorization was denied"
	}
	if e := query.Get("error"); e != "" {
		if desc := query.Get("error_description"); desc != "" {
			return desc
		}
		return e
	}
	return ""
}

func (s *platformService) ConnectTelegram(ctx context.Context, userID, botToken, chatID string) (*models.SocialAccount, error) {
	botToken = strings.TrimSpace(botToken)
	chatID = strings.TrimSpace(chatID)
	if botToken == "" || chatID == "" {
		err := fmt.Errorf("%w: bot_token and chat_id are required", ErrInvalidRequest)
		slog.Info(err.Error())
		return nil, err
	}

	bot := adapters.NewTelegramBot(botToken, s.telegramEndpoint, s.client)
	me, err := bot.GetMe()
	if err != nil {
		slog.Info(err.Error())
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			return nil, fmt.Errorf("%w: Invalid bot token", ErrInvalidRequest)
		}
		return nil, fmt.Errorf("Network error: %w", err)
	}

	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformTelegram.String(),
		AccountID:       chatID,
		AccountUsername: me.UserName,
		Metadata:        models.AccountMetadata{models.MetadataChatID: chatID},
	}

	id, err := s.creds.Connect(ctx, account, botToken, "", nil)
	if err != nil {
		return nil, err
	}
	account.ID = id
	account.IsActive = true

	return account, nil
}

func (s *platformService) List(ctx context.Context, userID string) ([]*models.SocialAccount, error) {
	if userID == "" {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.sa.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts: %w", err)
	}
	if accounts == nil {
		accounts = []*models.SocialAccount{}
	}
	return accounts, nil
}

func (s *platformService) Disconnect(ctx context.Context, userID string, accountID int64) error {
	if accountID == 0 {
		err := errors.New("AccountID is not valid")
		slog.Info(err.Error())
		return ErrAccountNotFound
	}

	isValid, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		slog.Info("social account doesn't exist", "account_id", accountID, "user_id", userID)
		return ErrAccountNotFound
	}

	if err := s.sa.Deactivate(ctx, accountID); err != nil {
		return fmt.Errorf("error removing account: %w", err)
	}

	slog.Info("social account disconnected", "account_id", accountID, "user_id", userID)
	return nil
}
