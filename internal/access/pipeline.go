// Package access implements per-request access control as an ordered list
// of stages. Each stage either hands an enriched context to the next one or
// ends the request; the Pipeline runner is the only place that turns a
// failed stage into a response.
package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"user_service/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Stage is a single access check. Run returns the context for the next
// stage, or an error that stops the pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context, req *http.Request, resp http.Header) (context.Context, error)
}

// Pipeline runs its stages in order and short-circuits on the first error.
type Pipeline struct {
	stages []Stage
	log    *slog.Logger
}

func NewPipeline(log *slog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{
		stages: append([]Stage(nil), stages...),
		log:    log,
	}
}

// Then returns a new pipeline with stages appended after p's stages.
// p itself is not modified.
func (p *Pipeline) Then(stages ...Stage) *Pipeline {
	all := make([]Stage, 0, len(p.stages)+len(stages))
	all = append(all, p.stages...)
	all = append(all, stages...)

	return &Pipeline{stages: all, log: p.log}
}

// Run executes every stage against req. On failure it returns the name of
// the stage that denied the request.
func (p *Pipeline) Run(ctx context.Context, req *http.Request, resp http.Header) (context.Context, string, error) {
	for _, stage := range p.stages {
		next, err := stage.Run(ctx, req, resp)
		if err != nil {
			return ctx, stage.Name, err
		}
		ctx = next
	}

	return ctx, "", nil
}

// Handler mounts the pipeline as gin middleware. Every stage failure is
// answered with 401 and an empty body.
func (p *Pipeline) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, stage, err := p.Run(c.Request.Context(), c.Request, c.Writer.Header())
		if err != nil {
			reason := reasonOf(err)
			metrics.RecordDenial(stage, reason)
			p.log.Debug("access denied",
				slog.String("stage", stage),
				slog.String("reason", reason),
				slog.String("path", c.FullPath()),
				slog.Any("error", err),
			)

			c.AbortWithStatus(http.StatusUnauthorized)

			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// denial attaches a metrics reason to a stage error.
type denial struct {
	reason string
	err    error
}

func deny(reason string, err error) error {
	return &denial{reason: reason, err: err}
}

func (d *denial) Error() string { return d.reason + ": " + d.err.Error() }

func (d *denial) Unwrap() error { return d.err }

func reasonOf(err error) string {
	var d *denial
	if errors.As(err, &d) {
		return d.reason
	}
	return "unknown"
}
