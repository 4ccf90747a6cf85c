package adapters

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/tidwall/gjson"
)

// graphClient speaks to the Facebook and Instagram Graph APIs, which share
// the versioned path layout and error envelope.
type graphClient struct {
	platform models.Platform
	baseURL  string
	version  string
	client   *http.Client
}

// GraphGet performs a single GET against a Graph API host. An empty version
// addresses the unversioned root, as the Instagram token endpoints require.
func GraphGet(ctx context.Context, client *http.Client, platform models.Platform, baseURL, version, path string, query url.Values) (gjson.Result, error) {
	g := &graphClient{platform: platform, baseURL: baseURL, version: version, client: newHTTPClient(client)}
	return g.get(ctx, path, query)
}

func (g *graphClient) endpoint(path string) string {
	base := strings.TrimRight(g.baseURL, "/")
	if g.version != "" {
		base += "/" + g.version
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

func (g *graphClient) post(ctx context.Context, path string, form url.Values) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(path), strings.NewReader(form.Encode()))
	if err != nil {
		return gjson.Result{}, networkError(g.platform, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.do(req)
}

func (g *graphClient) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(path)+"?"+query.Encode(), nil)
	if err != nil {
		return gjson.Result{}, networkError(g.platform, err)
	}
	return g.do(req)
}

func (g *graphClient) do(req *http.Request) (gjson.Result, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return gjson.Result{}, networkError(g.platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, networkError(g.platform, err)
	}

	result := gjson.ParseBytes(body)
	if resp.StatusCode >= http.StatusBadRequest || result.Get("error").Exists() {
		return result, g.apiError(resp.StatusCode, result)
	}
	return result, nil
}

func (g *graphClient) apiError(status int, body gjson.Result) *PlatformError {
	code := int(body.Get("error.code").Int())
	message := body.Get("error.message").String()
	if message == "" {
		message = http.StatusText(status)
	}

	pe := &PlatformError{Platform: g.platform, Code: code, Message: message}
	switch code {
	case 190:
		pe.Message = "Access token expired"
		pe.Tip = "Reconnect your account."
	case 200, 10:
		pe.Message = "Permission denied"
		pe.Tip = "The app requires app review or a tester role for this account."
	case 4, 17, 32, 613:
		pe.Message = "Rate limit reached"
		pe.Tip = "Try again later."
	}
	return pe
}
