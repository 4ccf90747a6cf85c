package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func telegramServer(t *testing.T, handler func(w http.ResponseWriter, method string, form map[string]string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		require.Len(t, parts, 2)
		assert.Equal(t, "botbot-token", parts[0])
		w.Header().Set("Content-Type", "application/json")
		handler(w, parts[1], form)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func telegramCreds() models.Credentials {
	return models.Credentials{
		AccountID:   "-100123",
		AccessToken: "bot-token",
		Metadata:    models.AccountMetadata{models.MetadataChatID: "-100123"},
	}
}

func TestTelegramPublishText(t *testing.T) {
	var gotMethod string
	var gotForm map[string]string
	srv := telegramServer(t, func(w http.ResponseWriter, method string, form map[string]string) {
		gotMethod, gotForm = method, form
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42,"date":1,"chat":{"id":-100123,"type":"channel"}}}`)
	})

	pub := NewTelegramPublisher(srv.URL+"/bot%s/%s", srv.Client())
	id, err := pub.Publish(context.Background(), telegramCreds(), Message{Text: "Tom & Jerry <3"})

	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.Equal(t, "sendMessage", gotMethod)
	assert.Equal(t, "-100123", gotForm["chat_id"])
	assert.Equal(t, "HTML", gotForm["parse_mode"])
	assert.Equal(t, "Tom &amp; Jerry &lt;3", gotForm["text"])
}

func TestTelegramPublishPhoto(t *testing.T) {
	var gotMethod string
	var gotForm map[string]string
	srv := telegramServer(t, func(w http.ResponseWriter, method string, form map[string]string) {
		gotMethod, gotForm = method, form
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":1,"chat":{"id":1,"type":"channel"}}}`)
	})

	creds := telegramCreds()
	creds.Metadata[models.MetadataChatID] = "mychannel"

	pub := NewTelegramPublisher(srv.URL+"/bot%s/%s", srv.Client())
	id, err := pub.Publish(context.Background(), creds, Message{Text: "caption", ImageURL: "https://cdn.example.com/a.png"})

	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.Equal(t, "sendPhoto", gotMethod)
	assert.Equal(t, "@mychannel", gotForm["chat_id"])
	assert.Equal(t, "https://cdn.example.com/a.png", gotForm["photo"])
	assert.Equal(t, "caption", gotForm["caption"])
}

func TestTelegramPublishTruncatesLongText(t *testing.T) {
	var gotText string
	srv := telegramServer(t, func(w http.ResponseWriter, method string, form map[string]string) {
		gotText = form["text"]
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":1,"chat":{"id":1,"type":"channel"}}}`)
	})

	pub := NewTelegramPublisher(srv.URL+"/bot%s/%s", srv.Client())
	_, err := pub.Publish(context.Background(), telegramCreds(), Message{Text: strings.Repeat("word ", 1000)})

	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(gotText)), 4096)
	assert.True(t, strings.HasSuffix(gotText, "..."))
}

func TestTelegramErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		code     int
		message  string
	}{
		{
			name:     "invalid token",
			response: `{"ok":false,"error_code":401,"description":"Unauthorized"}`,
			code:     401,
			message:  "Invalid bot token",
		},
		{
			name:     "chat not found",
			response: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
			code:     400,
			message:  "Channel not found or bot is not an admin",
		},
		{
			name:     "bot kicked",
			response: `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked from the channel chat"}`,
			code:     403,
			message:  "Bot was blocked or kicked from the chat",
		},
		{
			name:     "other api error keeps description",
			response: `{"ok":false,"error_code":400,"description":"Bad Request: message is too long"}`,
			code:     400,
			message:  "Bad Request: message is too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := telegramServer(t, func(w http.ResponseWriter, method string, form map[string]string) {
				w.WriteHeader(tt.code)
				fmt.Fprint(w, tt.response)
			})

			pub := NewTelegramPublisher(srv.URL+"/bot%s/%s", srv.Client())
			_, err := pub.Publish(context.Background(), telegramCreds(), Message{Text: "hi"})

			var pe *PlatformError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, models.PlatformTelegram, pe.Platform)
			assert.Equal(t, tt.code, pe.Code)
			assert.Equal(t, tt.message, pe.Message)
		})
	}
}

func TestTelegramNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/bot%s/%s"
	srv.Close()

	pub := NewTelegramPublisher(endpoint, nil)
	_, err := pub.Publish(context.Background(), telegramCreds(), Message{Text: "hi"})

	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Network error: "), err.Error())
}
