package repo

import "context"

// Template names known to the renderer
const (
	TemplateRanking = "ranking"
	TemplateGraph   = "graph"
)

// RenderOptions controls the screenshot of a rendered template
type RenderOptions struct {
	Width    int
	Height   int
	FullPage bool
}

// RenderRepo turns a named HTML template plus data into a PNG image
type RenderRepo interface {
	RenderImage(ctx context.Context, template string, data any, opts RenderOptions) ([]byte, error)
}
