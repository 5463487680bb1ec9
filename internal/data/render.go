package data

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devricklin/feishu-random-wife/internal/biz/repo"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxImageSize caps the rendered image read from the service
const maxImageSize = 10 << 20

// renderRepo renders HTML templates through a text-to-image HTTP service
type renderRepo struct {
	endpoint   string
	httpClient *http.Client
}

// NewRenderRepo creates a render repository; an empty endpoint disables rendering
func NewRenderRepo(endpoint string) repo.RenderRepo {
	if endpoint == "" {
		return nil
	}
	return &renderRepo{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type renderClip struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type renderRequestOptions struct {
	Type                   string      `json:"type"`
	FullPage               bool        `json:"full_page"`
	Scale                  string      `json:"scale"`
	DeviceScaleFactorLevel string      `json:"device_scale_factor_level"`
	Clip                   *renderClip `json:"clip,omitempty"`
}

type renderRequest struct {
	Tmpl     string               `json:"tmpl"`
	TmplData any                  `json:"tmpldata"`
	JSON     bool                 `json:"json"`
	Options  renderRequestOptions `json:"options"`
}

// RenderImage posts the template and its data and returns the PNG the service produced
func (r *renderRepo) RenderImage(ctx context.Context, template string, data any, opts repo.RenderOptions) ([]byte, error) {
	tmpl, err := loadTemplate(template)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildRenderRequest(tmpl, data, opts))
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render service returned %d: %s", resp.StatusCode, truncateBody(img))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("render service returned %s, expected an image", ct)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("render service returned an empty image")
	}

	fmt.Printf("[Render] Rendered %s: %d bytes\n", template, len(img))
	return img, nil
}

func loadTemplate(name string) (string, error) {
	b, err := templateFS.ReadFile("templates/" + name + ".html")
	if err != nil {
		return "", fmt.Errorf("unknown template %q: %w", name, err)
	}
	return string(b), nil
}

func buildRenderRequest(tmpl string, data any, opts repo.RenderOptions) renderRequest {
	req := renderRequest{
		Tmpl:     tmpl,
		TmplData: data,
		Options: renderRequestOptions{
			Type:                   "png",
			FullPage:               opts.FullPage,
			Scale:                  "device",
			DeviceScaleFactorLevel: "ultra",
		},
	}
	if !opts.FullPage && opts.Width > 0 && opts.Height > 0 {
		req.Options.Clip = &renderClip{Width: opts.Width, Height: opts.Height}
	}
	return req
}

func truncateBody(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
