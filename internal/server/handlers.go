package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/ironsheep/image-features-mcp/internal/features"
	"github.com/ironsheep/image-features-mcp/internal/imaging"
	"github.com/ironsheep/image-features-mcp/internal/pipeline"
)

// defaultKeypointSample is how many keypoints features_detect lists when the
// caller does not say.
const defaultKeypointSample = 20

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "features_match").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.debugf("tool %s failed after %v: %v", params.Name, time.Since(start), err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.debugf("tool %s finished in %v", params.Name, time.Since(start))

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads images from cache as needed
//  4. Runs detection and matching from scratch
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "features_methods":
		return s.handleFeaturesMethods()
	case "features_detect":
		return s.handleFeaturesDetect(ctx, args)
	case "features_match":
		return s.handleFeaturesMatch(ctx, args)
	case "features_save":
		return s.handleFeaturesSave(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Image Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Feature Handlers ===

type methodsResult struct {
	Methods  []features.MethodInfo `json:"methods"`
	Backend  string                `json:"backend"`
	Backends []string              `json:"available_backends"`
}

func (s *Server) handleFeaturesMethods() (interface{}, error) {
	return &methodsResult{
		Methods:  features.Methods(),
		Backend:  s.cfg.Backend,
		Backends: features.BackendNames(),
	}, nil
}

type featuresDetectArgs struct {
	Path         string `json:"path"`
	Method       string `json:"method"`
	MaxKeypoints *int   `json:"max_keypoints"`
	IncludeImage *bool  `json:"include_image"`
	DisplayWidth int    `json:"display_width"`
}

// detectionSummary describes one detection in tool results.
type detectionSummary struct {
	KeypointCount     int                   `json:"keypoint_count"`
	Keypoints         []features.Keypoint   `json:"keypoints,omitempty"`
	DescriptorCount   int                   `json:"descriptor_count"`
	DescriptorKind    string                `json:"descriptor_kind"`
	DescriptorDim     int                   `json:"descriptor_dim"`
	HighlightedPixels int                   `json:"highlighted_pixels,omitempty"`
	Image             *imaging.EncodedImage `json:"image,omitempty"`
}

type featuresDetectResult struct {
	Method  features.Method `json:"method"`
	Backend string          `json:"backend"`
	detectionSummary
}

func (s *Server) handleFeaturesDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a featuresDetectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	method, err := features.ParseMethod(a.Method)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	det, overlay, err := s.runner.Detect(ctx, img, method)
	if err != nil {
		return nil, err
	}

	sample := defaultKeypointSample
	if a.MaxKeypoints != nil {
		sample = *a.MaxKeypoints
	}
	summary, err := summarize(det, overlay, sample, boolOr(a.IncludeImage, true), a.DisplayWidth)
	if err != nil {
		return nil, err
	}
	return &featuresDetectResult{
		Method:           method,
		Backend:          s.cfg.Backend,
		detectionSummary: *summary,
	}, nil
}

type featuresMatchArgs struct {
	Path1         string `json:"path1"`
	Path2         string `json:"path2"`
	Method        string `json:"method"`
	IncludeImages *bool  `json:"include_images"`
	DisplayWidth  int    `json:"display_width"`
}

// matchDetail is a match with the positions of both keypoints.
type matchDetail struct {
	features.Match
	QueryX float64 `json:"query_x"`
	QueryY float64 `json:"query_y"`
	TrainX float64 `json:"train_x"`
	TrainY float64 `json:"train_y"`
}

type featuresMatchResult struct {
	Method           features.Method       `json:"method"`
	Backend          string                `json:"backend"`
	First            *detectionSummary     `json:"first"`
	Second           *detectionSummary     `json:"second"`
	MatchingSkipped  bool                  `json:"matching_skipped"`
	TotalMatches     int                   `json:"total_matches"`
	DisplayedMatches int                   `json:"displayed_matches"`
	Matches          []matchDetail         `json:"matches,omitempty"`
	Composite        *imaging.EncodedImage `json:"composite,omitempty"`
}

func (s *Server) handleFeaturesMatch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a featuresMatchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	res, err := s.runPair(ctx, a.Path1, a.Path2, a.Method)
	if err != nil {
		return nil, err
	}

	withImages := boolOr(a.IncludeImages, true)
	out := &featuresMatchResult{
		Method:           res.Method,
		Backend:          s.cfg.Backend,
		MatchingSkipped:  res.MatchingSkipped(),
		TotalMatches:     len(res.Matches),
		DisplayedMatches: res.Displayed,
	}
	if out.First, err = summarize(res.First, res.FirstOverlay, 0, withImages, a.DisplayWidth); err != nil {
		return nil, err
	}
	if out.Second, err = summarize(res.Second, res.SecondOverlay, 0, withImages, a.DisplayWidth); err != nil {
		return nil, err
	}

	for _, m := range res.TopMatches() {
		qa, tb := res.First.Keypoints[m.QueryIdx], res.Second.Keypoints[m.TrainIdx]
		out.Matches = append(out.Matches, matchDetail{
			Match:  m,
			QueryX: qa.X, QueryY: qa.Y,
			TrainX: tb.X, TrainY: tb.Y,
		})
	}

	if withImages && res.Composite != nil {
		if out.Composite, err = imaging.EncodePNG(imaging.FitWidth(res.Composite, a.DisplayWidth)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type featuresSaveArgs struct {
	Path1      string `json:"path1"`
	Path2      string `json:"path2"`
	Method     string `json:"method"`
	OutputPath string `json:"output_path"`
}

type featuresSaveResult struct {
	Saved            bool            `json:"saved"`
	OutputPath       string          `json:"output_path"`
	Method           features.Method `json:"method"`
	Width            int             `json:"width"`
	Height           int             `json:"height"`
	TotalMatches     int             `json:"total_matches"`
	DisplayedMatches int             `json:"displayed_matches"`
}

func (s *Server) handleFeaturesSave(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a featuresSaveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.OutputPath == "" {
		a.OutputPath = s.cfg.OutputPath
	}
	res, err := s.runPair(ctx, a.Path1, a.Path2, a.Method)
	if err != nil {
		return nil, err
	}
	if err := res.Save(a.OutputPath); err != nil {
		return nil, err
	}

	bounds := res.Composite.Bounds()
	return &featuresSaveResult{
		Saved:            true,
		OutputPath:       a.OutputPath,
		Method:           res.Method,
		Width:            bounds.Dx(),
		Height:           bounds.Dy(),
		TotalMatches:     len(res.Matches),
		DisplayedMatches: res.Displayed,
	}, nil
}

// runPair loads both images and runs the full pipeline on them.
//
// Parameters:
//   - ctx: Checked between pipeline stages.
//   - path1, path2: Image files, loaded through the server's cache.
//   - methodTag: "SIFT", "ORB" or "Harris", case-insensitive.
//
// Returns:
//   - *pipeline.Result: Detections for both images and, for SIFT and ORB,
//     the matches and composite.
//   - error: Non-nil for an unknown method, an unreadable image or a
//     cancelled context.
func (s *Server) runPair(ctx context.Context, path1, path2, methodTag string) (*pipeline.Result, error) {
	method, err := features.ParseMethod(methodTag)
	if err != nil {
		return nil, err
	}
	a, err := s.cache.Load(path1)
	if err != nil {
		return nil, fmt.Errorf("first image: %w", err)
	}
	b, err := s.cache.Load(path2)
	if err != nil {
		return nil, fmt.Errorf("second image: %w", err)
	}
	return s.runner.Run(ctx, a, b, method)
}

// summarize reports a detection for a tool result.
//
// Parameters:
//   - det: The detection to describe.
//   - overlay: The image returned when withImage is set.
//   - sample: Maximum number of keypoints listed; 0 lists none.
//   - withImage: Whether to attach overlay as base64 PNG.
//   - displayWidth: Width the overlay is scaled down to; 0 keeps its size.
//
// Returns:
//   - *detectionSummary: Counts, descriptor shape and the optional image.
//   - error: Non-nil if the overlay cannot be encoded.
func summarize(det *features.Detection, overlay image.Image, sample int, withImage bool, displayWidth int) (*detectionSummary, error) {
	out := &detectionSummary{
		KeypointCount:     len(det.Keypoints),
		DescriptorCount:   det.Descriptors.Len(),
		DescriptorKind:    det.Descriptors.Kind.String(),
		DescriptorDim:     det.Descriptors.Dim(),
		HighlightedPixels: det.Highlighted,
	}
	if sample > 0 {
		out.Keypoints = det.Keypoints[:min(sample, len(det.Keypoints))]
	}
	if withImage {
		enc, err := imaging.EncodePNG(imaging.FitWidth(overlay, displayWidth))
		if err != nil {
			return nil, err
		}
		out.Image = enc
	}
	return out, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
