package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "0b6e4d3c-9f4e-4a59-8d0e-6f2f0b1d2c3a"

func newApp(register func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", testUser)
		return c.Next()
	})
	register(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

type stubPostService struct {
	service.PostService
	created   *transfer.PostCreation
	createErr error
	delay     time.Duration
	infoErr   error
}

func (s *stubPostService) CreatePost(ctx context.Context, userID string, pc *transfer.PostCreation) (*models.Post, time.Duration, error) {
	s.created = pc
	if s.createErr != nil {
		return nil, 0, s.createErr
	}
	status := models.PostStatusDraft
	if pc.ScheduledDate != "" {
		status = models.PostStatusScheduled
	}
	return &models.Post{ID: 11, UserID: userID, Caption: pc.Caption, Status: status}, s.delay, nil
}

func (s *stubPostService) PostInfo(ctx context.Context, postID int64, userID string) (*models.Post, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return &models.Post{ID: postID, UserID: userID}, nil
}

func (s *stubPostService) PreviewCaption(caption string, hashtags []string) map[string]transfer.CaptionPreview {
	return map[string]transfer.CaptionPreview{"twitter": {Limit: 280, Length: len(caption), Text: caption}}
}

type stubPublishService struct {
	service.PublishService
	platforms []string
	err       error
}

func (s *stubPublishService) PublishPost(ctx context.Context, userID string, postID int64, platforms []string) (*models.Post, error) {
	s.platforms = platforms
	if s.err != nil {
		return nil, s.err
	}
	return &models.Post{ID: postID, Status: models.PostStatusPublished}, nil
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (e *recordingEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func postRoutes(h *PostHandler) func(app *fiber.App) {
	return func(app *fiber.App) {
		app.Post("/posts/create", h.CreatePost)
		app.Get("/posts", h.ListPosts)
		app.Post("/posts/publish", h.PublishPost)
		app.Post("/captions/preview", h.PreviewCaption)
	}
}

func TestCreatePostEnqueuesScheduled(t *testing.T) {
	ps := &stubPostService{delay: time.Hour}
	enq := &recordingEnqueuer{}
	app := newApp(postRoutes(NewPostHandler(ps, &stubPublishService{}, enq)))

	resp, body := doJSON(t, app, http.MethodPost, "/posts/create", map[string]any{
		"caption": "hi", "platforms": []string{"mastodon"}, "scheduled_date": "2030-01-01", "timezone": "UTC",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.PostStatusScheduled, body["status"])
	assert.Equal(t, []string{"mastodon"}, ps.created.Platforms)
	require.Len(t, enq.tasks, 1)
	assert.JSONEq(t, `{"post_id":11}`, string(enq.tasks[0].Payload()))

	resp, _ = doJSON(t, app, http.MethodPost, "/posts/create", map[string]any{"caption": "draft"})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Len(t, enq.tasks, 1)
}

func TestCreatePostErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{name: "invalid", err: service.ErrInvalidPost, status: fiber.StatusBadRequest, msg: "invalid post"},
		{name: "platform", err: service.ErrUnsupportedPlatform, status: fiber.StatusBadRequest, msg: "unsupported platform"},
		{name: "internal", err: errors.New("pq: connection refused"), status: fiber.StatusInternalServerError, msg: "Unable to create post"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(postRoutes(NewPostHandler(&stubPostService{createErr: tt.err}, &stubPublishService{}, &recordingEnqueuer{})))
			resp, body := doJSON(t, app, http.MethodPost, "/posts/create", map[string]any{"caption": "x"})
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestPublishPostStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "ok", status: fiber.StatusOK},
		{name: "not found", err: service.ErrPostNotFound, status: fiber.StatusNotFound},
		{name: "in progress", err: service.ErrPublishInProgress, status: fiber.StatusConflict},
		{name: "no accounts", err: service.ErrNoActiveAccounts, status: fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &stubPublishService{err: tt.err}
			app := newApp(postRoutes(NewPostHandler(&stubPostService{}, pub, &recordingEnqueuer{})))

			resp, body := doJSON(t, app, http.MethodPost, "/posts/publish?id=3", map[string]any{"platforms": []string{"x"}})
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, []string{"x"}, pub.platforms)
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), body["error"])
			} else {
				assert.Equal(t, models.PostStatusPublished, body["status"])
			}
		})
	}
}

func TestPublishPostWithoutBody(t *testing.T) {
	pub := &stubPublishService{}
	app := newApp(postRoutes(NewPostHandler(&stubPostService{}, pub, &recordingEnqueuer{})))

	resp, _ := doJSON(t, app, http.MethodPost, "/posts/publish?id=3", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, pub.platforms)
}

func TestListPostNotFound(t *testing.T) {
	app := newApp(postRoutes(NewPostHandler(&stubPostService{infoErr: service.ErrPostNotFound}, &stubPublishService{}, &recordingEnqueuer{})))

	resp, body := doJSON(t, app, http.MethodGet, "/posts?id=9", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "post not found", body["error"])
}

func TestPreviewCaption(t *testing.T) {
	app := newApp(postRoutes(NewPostHandler(&stubPostService{}, &stubPublishService{}, &recordingEnqueuer{})))

	resp, body := doJSON(t, app, http.MethodPost, "/captions/preview", map[string]any{"caption": "hello"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	tw := body["twitter"].(map[string]any)
	assert.EqualValues(t, 280, tw["limit"])
	assert.Equal(t, "hello", tw["text"])
}

type stubPlatformService struct {
	service.PlatformService
	query       url.Values
	callbackErr error
	telegram    [2]string
}

func (s *stubPlatformService) ConnectURL(ctx context.Context, userID, platform string, params url.Values) (string, error) {
	s.query = params
	if platform == "myspace" {
		return "", service.ErrUnsupportedPlatform
	}
	return "https://auth.example/" + platform, nil
}

func (s *stubPlatformService) Callback(ctx context.Context, platform string, query url.Values) (models.Platform, error) {
	s.query = query
	return models.Platform(platform), s.callbackErr
}

func (s *stubPlatformService) ConnectTelegram(ctx context.Context, userID, botToken, chatID string) (*models.SocialAccount, error) {
	s.telegram = [2]string{botToken, chatID}
	return &models.SocialAccount{ID: 1, UserID: userID, Platform: "telegram", AccountID: chatID}, nil
}

func (s *stubPlatformService) Disconnect(ctx context.Context, userID string, accountID int64) error {
	if accountID != 1 {
		return service.ErrAccountNotFound
	}
	return nil
}

func platformRoutes(h *PlatformHandler) func(app *fiber.App) {
	return func(app *fiber.App) {
		app.Get("/connect/:platform", h.ConnectURL)
		app.Get("/auth/:platform/callback", h.CallbackHandler)
		app.Post("/accounts/telegram", h.ConnectTelegram)
		app.Post("/accounts/remove", h.DeleteSocialAccount)
	}
}

func TestConnectURL(t *testing.T) {
	ps := &stubPlatformService{}
	app := newApp(platformRoutes(NewPlatformHandler(ps, &config.Config{})))

	resp, body := doJSON(t, app, http.MethodGet, "/connect/mastodon?instance=mastodon.social", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://auth.example/mastodon", body["url"])
	assert.Equal(t, "mastodon.social", ps.query.Get("instance"))

	resp, _ = doJSON(t, app, http.MethodGet, "/connect/myspace", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCallbackRedirects(t *testing.T) {
	cfg := &config.Config{FrontendURL: "https://app.example"}

	tests := []struct {
		name     string
		err      error
		location string
	}{
		{name: "connected", location: "https://app.example/dashboard/accounts?connected=facebook"},
		{name: "expired", err: service.ErrFlowExpired, location: "https://app.example/dashboard/accounts?error=" + url.QueryEscape(service.ErrFlowExpired.Error())},
		{name: "internal", err: errors.New("pq: timeout"), location: "https://app.example/dashboard/accounts?error=" + url.QueryEscape("Unable to connect account")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := &stubPlatformService{callbackErr: tt.err}
			app := newApp(platformRoutes(NewPlatformHandler(ps, cfg)))

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/facebook/callback?state=abc&code=def", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
			assert.Equal(t, tt.location, resp.Header.Get("Location"))
			assert.Equal(t, "abc", ps.query.Get("state"))
		})
	}
}

func TestConnectTelegramAndRemove(t *testing.T) {
	ps := &stubPlatformService{}
	app := newApp(platformRoutes(NewPlatformHandler(ps, &config.Config{})))

	resp, body := doJSON(t, app, http.MethodPost, "/accounts/telegram", map[string]string{"bot_token": "123:abc", "chat_id": "@news"})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, [2]string{"123:abc", "@news"}, ps.telegram)
	assert.Equal(t, "@news", body["account_id"])

	resp, _ = doJSON(t, app, http.MethodPost, "/accounts/remove?id=1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/accounts/remove?id=2", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

type stubMediaService struct {
	got []byte
}

func (s *stubMediaService) Upload(ctx context.Context, userID string, file []byte) (string, error) {
	s.got = file
	if !bytes.HasPrefix(file, []byte{0x89, 'P', 'N', 'G'}) {
		return "", service.ErrInvalidRequest
	}
	return "https://cdn.example/media/" + userID + "/a.png", nil
}

func multipartRequest(t *testing.T, field string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "image.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/media/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestMediaUpload(t *testing.T) {
	ms := &stubMediaService{}
	app := newApp(func(app *fiber.App) {
		app.Post("/media/upload", NewMediaHandler(ms).Upload)
	})

	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	resp, err := app.Test(multipartRequest(t, "file", png), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(raw), "https://cdn.example/media/"+testUser+"/a.png"))
	assert.Equal(t, png, ms.got)

	resp, err = app.Test(multipartRequest(t, "file", []byte("text")), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(multipartRequest(t, "other", png), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
