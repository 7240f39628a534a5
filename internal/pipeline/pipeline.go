// Package pipeline runs one complete two-image interaction: detect features
// on both images, match them, and compose the result for display.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/ironsheep/image-features-mcp/internal/features"
	"github.com/ironsheep/image-features-mcp/internal/imaging"
	"github.com/ironsheep/image-features-mcp/internal/render"
)

// ErrNothingToSave is returned by Result.Save when the run produced no match
// composite, which is the case for Harris.
var ErrNothingToSave = errors.New("no matched image to save")

// Runner executes detection and matching with a shared detector.
type Runner struct {
	detector   *features.Detector
	maxDisplay int
	debug      bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxDisplay sets how many of the best matches are drawn.
func WithMaxDisplay(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxDisplay = n
		}
	}
}

// WithDebug enables per-stage timing logs.
func WithDebug(debug bool) Option {
	return func(r *Runner) { r.debug = debug }
}

// NewRunner returns a Runner. A nil detector selects features.NewDetector().
func NewRunner(detector *features.Detector, opts ...Option) *Runner {
	if detector == nil {
		detector = features.NewDetector()
	}
	r := &Runner{detector: detector, maxDisplay: render.DefaultMatchLimit}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxDisplay reports the configured match display limit.
func (r *Runner) MaxDisplay() int {
	return r.maxDisplay
}

// Result is the outcome of a single run.
type Result struct {
	Method features.Method

	// First and Second are the raw detections on each input.
	First  *features.Detection
	Second *features.Detection

	// FirstOverlay and SecondOverlay show each input with its keypoints
	// drawn. For Harris they are the highlighted images.
	FirstOverlay  image.Image
	SecondOverlay image.Image

	// Matches holds every cross-checked match, best first. Nil for Harris.
	Matches []features.Match

	// Displayed is how many of Matches were drawn on Composite.
	Displayed int

	// Composite is the side-by-side match image. Nil for Harris.
	Composite *image.NRGBA
}

// MatchingSkipped reports whether the method has no matching stage.
func (r *Result) MatchingSkipped() bool {
	return !r.Method.HasDescriptors()
}

// TopMatches returns the matches that were drawn on the composite.
func (r *Result) TopMatches() []features.Match {
	return r.Matches[:r.Displayed]
}

// Save writes the composite to path as PNG, replacing any existing file.
func (r *Result) Save(path string) error {
	if r.Composite == nil {
		return fmt.Errorf("%w: %s does not match features", ErrNothingToSave, r.Method)
	}
	return imaging.SavePNG(r.Composite, path)
}

// Run detects features on a and b with method and, when the method produces
// descriptors, matches them and draws the composite. The context is checked
// between stages.
func (r *Runner) Run(ctx context.Context, a, b image.Image, method features.Method) (*Result, error) {
	start := time.Now()
	res := &Result{Method: method}

	var err error
	if res.First, err = r.detect(ctx, a, method, "first"); err != nil {
		return nil, err
	}
	if res.Second, err = r.detect(ctx, b, method, "second"); err != nil {
		return nil, err
	}

	if res.MatchingSkipped() {
		res.FirstOverlay = res.First.Annotated
		res.SecondOverlay = res.Second.Annotated
		r.logf("%s run finished in %v (matching skipped)", method, time.Since(start))
		return res, nil
	}

	opts := render.KeypointOptions{Orientation: true}
	res.FirstOverlay = render.DrawKeypoints(a, res.First.Keypoints, opts)
	res.SecondOverlay = render.DrawKeypoints(b, res.Second.Keypoints, opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Matches, err = features.MatchDescriptors(res.First.Descriptors, res.Second.Descriptors, method)
	if err != nil {
		return nil, fmt.Errorf("matching: %w", err)
	}
	res.Displayed = min(len(res.Matches), r.maxDisplay)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Composite, err = render.DrawMatches(a, res.First.Keypoints, b, res.Second.Keypoints, res.Matches, res.Displayed)
	if err != nil {
		return nil, fmt.Errorf("drawing matches: %w", err)
	}
	render.Caption(res.Composite, fmt.Sprintf("%s: %d of %d matches", method, res.Displayed, len(res.Matches)))

	r.logf("%s run finished in %v: %d/%d keypoints, %d matches",
		method, time.Since(start), len(res.First.Keypoints), len(res.Second.Keypoints), len(res.Matches))
	return res, nil
}

// Detect runs a single detection and draws its overlay.
func (r *Runner) Detect(ctx context.Context, img image.Image, method features.Method) (*features.Detection, image.Image, error) {
	det, err := r.detect(ctx, img, method, "single")
	if err != nil {
		return nil, nil, err
	}
	if !method.HasDescriptors() {
		return det, det.Annotated, nil
	}
	return det, render.DrawKeypoints(img, det.Keypoints, render.KeypointOptions{Orientation: true}), nil
}

func (r *Runner) detect(ctx context.Context, img image.Image, method features.Method, which string) (*features.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	det, err := r.detector.Detect(img, method)
	if err != nil {
		return nil, fmt.Errorf("%s image: %w", which, err)
	}
	r.logf("%s detection on %s image: %d keypoints in %v", method, which, len(det.Keypoints), time.Since(start))
	return det, nil
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.debug {
		log.Printf(format, args...)
	}
}
