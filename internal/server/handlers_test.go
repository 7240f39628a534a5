package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestImageFile writes a seeded image of random rectangles and returns
// its path. Rectangles stay 36 pixels clear of the border, or 4 pixels on
// images under 100 pixels.
func createTestImageFile(t *testing.T, width, height int, seed int64) string {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{40, 40, 40, 255})
		}
	}
	margin := 36
	if width < 100 || height < 100 {
		margin = 4
	}
	for n := 0; n < 30; n++ {
		rw, rh := 6+rng.Intn(14), 6+rng.Intn(14)
		x0 := margin + rng.Intn(width-2*margin-rw)
		y0 := margin + rng.Intn(height-2*margin-rh)
		v := uint8(120 + rng.Intn(136))
		for y := y0; y < y0+rh; y++ {
			for x := x0; x < x0+rw; x++ {
				img.Set(x, y, color.RGBA{v, v / 2, 255 - v, 255})
			}
		}
	}

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}

	return path
}

// callTool runs a tools/call request and decodes the text payload into out.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) *MCPError {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("failed to decode tool result: %v", err)
		}
	}
	return nil
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, 100, 80, 1)

	var info struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	if err := callTool(t, s, "image_load", map[string]interface{}{"path": imgPath}, &info); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if info.Width != 100 || info.Height != 80 || info.Format != "png" {
		t.Errorf("got %+v", info)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := New()

	tests := []struct {
		tool string
		args map[string]interface{}
	}{
		{"image_load", map[string]interface{}{"path": "/nonexistent/a.png"}},
		{"features_detect", map[string]interface{}{"path": "/nonexistent/a.png", "method": "SIFT"}},
		{"features_match", map[string]interface{}{"path1": "/nonexistent/a.png", "path2": "/nonexistent/b.png", "method": "ORB"}},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			err := callTool(t, s, tt.tool, tt.args, nil)
			if err == nil {
				t.Fatal("Expected error for non-existent file")
			}
			if err.Code != -32000 {
				t.Errorf("Error code: got %d, want -32000", err.Code)
			}
		})
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := New()
	err := callTool(t, s, "image_crop", map[string]interface{}{}, nil)
	if err == nil {
		t.Fatal("Expected error for removed tool")
	}
	if err.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", err.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New()
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`[1, 2]`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_FeaturesMethods(t *testing.T) {
	s := New()

	var result struct {
		Methods []struct {
			Name        string `json:"name"`
			Reference   string `json:"reference"`
			Descriptors bool   `json:"produces_descriptors"`
		} `json:"methods"`
		Backend  string   `json:"backend"`
		Backends []string `json:"available_backends"`
	}
	if err := callTool(t, s, "features_methods", map[string]interface{}{}, &result); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Methods) != 3 {
		t.Fatalf("Methods: got %d, want 3", len(result.Methods))
	}
	want := map[string]bool{"SIFT": true, "ORB": true, "Harris": false}
	for _, m := range result.Methods {
		if want[m.Name] != m.Descriptors {
			t.Errorf("%s: produces_descriptors = %v", m.Name, m.Descriptors)
		}
		if !strings.HasPrefix(m.Reference, "https://docs.opencv.org/") {
			t.Errorf("%s: reference %q", m.Name, m.Reference)
		}
	}
	if result.Backend != "native" {
		t.Errorf("Backend: got %s, want native", result.Backend)
	}
}

type detectPayload struct {
	Method            string `json:"method"`
	KeypointCount     int    `json:"keypoint_count"`
	DescriptorCount   int    `json:"descriptor_count"`
	DescriptorKind    string `json:"descriptor_kind"`
	DescriptorDim     int    `json:"descriptor_dim"`
	HighlightedPixels int    `json:"highlighted_pixels"`
	Keypoints         []struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"keypoints"`
	Image *struct {
		Width       int    `json:"width"`
		ImageBase64 string `json:"image_base64"`
	} `json:"image"`
}

func TestHandleToolsCall_FeaturesDetect(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, 160, 160, 2)

	tests := []struct {
		method string
		kind   string
		dim    int
		harris bool
	}{
		{"sift", "float32", 128, false},
		{"ORB", "binary", 256, false},
		{"Harris", "none", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			var got detectPayload
			args := map[string]interface{}{"path": imgPath, "method": tt.method, "max_keypoints": 5}
			if err := callTool(t, s, "features_detect", args, &got); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if got.KeypointCount != got.DescriptorCount {
				t.Errorf("keypoints %d != descriptors %d", got.KeypointCount, got.DescriptorCount)
			}
			if got.Image == nil || got.Image.ImageBase64 == "" {
				t.Error("annotated image missing")
			}
			if tt.harris {
				if got.KeypointCount != 0 || got.HighlightedPixels == 0 {
					t.Errorf("Harris: keypoints=%d highlighted=%d", got.KeypointCount, got.HighlightedPixels)
				}
				return
			}
			if got.KeypointCount == 0 {
				t.Fatal("no keypoints detected")
			}
			if got.DescriptorKind != tt.kind || got.DescriptorDim != tt.dim {
				t.Errorf("descriptor: got %s/%d, want %s/%d", got.DescriptorKind, got.DescriptorDim, tt.kind, tt.dim)
			}
			if len(got.Keypoints) != min(5, got.KeypointCount) {
				t.Errorf("keypoint sample: got %d", len(got.Keypoints))
			}
		})
	}
}

func TestHandleToolsCall_FeaturesDetect_Options(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, 160, 160, 3)

	var got detectPayload
	args := map[string]interface{}{
		"path":          imgPath,
		"method":        "ORB",
		"max_keypoints": 0,
		"include_image": false,
	}
	if err := callTool(t, s, "features_detect", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got.Keypoints) != 0 {
		t.Errorf("max_keypoints 0 should list none, got %d", len(got.Keypoints))
	}
	if got.Image != nil {
		t.Error("include_image false should omit the image")
	}

	args = map[string]interface{}{"path": imgPath, "method": "Harris", "display_width": 80}
	if err := callTool(t, s, "features_detect", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Image == nil || got.Image.Width != 80 {
		t.Errorf("display_width not applied: %+v", got.Image)
	}
}

func TestHandleToolsCall_FeaturesDetect_BadMethod(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, 100, 100, 4)

	err := callTool(t, s, "features_detect", map[string]interface{}{"path": imgPath, "method": "SURF"}, nil)
	if err == nil {
		t.Fatal("Expected error for unsupported method")
	}
	if data, _ := err.Data.(string); !strings.Contains(data, "unsupported") {
		t.Errorf("error data: %v", err.Data)
	}
}

type matchPayload struct {
	Method           string `json:"method"`
	MatchingSkipped  bool   `json:"matching_skipped"`
	TotalMatches     int    `json:"total_matches"`
	DisplayedMatches int    `json:"displayed_matches"`
	First            struct {
		KeypointCount int `json:"keypoint_count"`
	} `json:"first"`
	Matches []struct {
		QueryIdx int     `json:"query_idx"`
		TrainIdx int     `json:"train_idx"`
		Distance float64 `json:"distance"`
		QueryX   float64 `json:"query_x"`
		TrainX   float64 `json:"train_x"`
	} `json:"matches"`
	Composite *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"composite"`
}

func TestHandleToolsCall_FeaturesMatch(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, 160, 160, 5)

	for _, method := range []string{"SIFT", "ORB"} {
		t.Run(method, func(t *testing.T) {
			var got matchPayload
			args := map[string]interface{}{"path1": imgPath, "path2": imgPath, "method": method}
			if err := callTool(t, s, "features_match", args, &got); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if got.MatchingSkipped {
				t.Error("matching should not be skipped")
			}
			if got.TotalMatches == 0 || got.TotalMatches > got.First.KeypointCount {
				t.Errorf("TotalMatches: got %d for %d keypoints", got.TotalMatches, got.First.KeypointCount)
			}
			if got.DisplayedMatches != min(50, got.TotalMatches) || len(got.Matches) != got.DisplayedMatches {
				t.Errorf("displayed %d, listed %d, total %d", got.DisplayedMatches, len(got.Matches), got.TotalMatches)
			}
			for i, m := range got.Matches {
				if i > 0 && m.Distance < got.Matches[i-1].Distance {
					t.Fatal("matches not sorted by distance")
				}
			}
			if got.Matches[0].Distance > 1e-6 || got.Matches[0].QueryX != got.Matches[0].TrainX {
				t.Errorf("identical images should match exactly: %+v", got.Matches[0])
			}
			if got.Composite == nil || got.Composite.Width != 320 || got.Composite.Height != 160 {
				t.Errorf("composite: %+v", got.Composite)
			}
		})
	}
}

func TestHandleToolsCall_FeaturesMatch_Harris(t *testing.T) {
	s := New()
	pathA := createTestImageFile(t, 120, 120, 6)
	pathB := createTestImageFile(t, 120, 120, 7)

	var got matchPayload
	args := map[string]interface{}{"path1": pathA, "path2": pathB, "method": "Harris", "include_images": false}
	if err := callTool(t, s, "features_match", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !got.MatchingSkipped {
		t.Error("Harris should skip matching")
	}
	if got.TotalMatches != 0 || got.Composite != nil {
		t.Errorf("Harris produced matches: %+v", got)
	}
}

func TestHandleToolsCall_FeaturesSave(t *testing.T) {
	s := New()
	pathA := createTestImageFile(t, 160, 160, 8)
	pathB := createTestImageFile(t, 160, 160, 9)
	out := filepath.Join(t.TempDir(), "matched_image.png")

	var got struct {
		Saved      bool   `json:"saved"`
		OutputPath string `json:"output_path"`
		Width      int    `json:"width"`
	}
	args := map[string]interface{}{"path1": pathA, "path2": pathB, "method": "ORB", "output_path": out}
	if err := callTool(t, s, "features_save", args, &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !got.Saved || got.OutputPath != out || got.Width != 320 {
		t.Errorf("got %+v", got)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	if _, err := png.DecodeConfig(f); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}
}

func TestHandleToolsCall_FeaturesSave_DefaultPath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	s := New()
	imgPath := createTestImageFile(t, 160, 160, 10)
	args := map[string]interface{}{"path1": imgPath, "path2": imgPath, "method": "SIFT"}
	if err := callTool(t, s, "features_save", args, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "matched_image.png")); err != nil {
		t.Errorf("default output missing: %v", err)
	}
}

func TestHandleToolsCall_FeaturesSave_Harris(t *testing.T) {
	s := New()
	imgPath := createTestImageFile(t, 120, 120, 11)
	out := filepath.Join(t.TempDir(), "matched_image.png")

	err := callTool(t, s, "features_save", map[string]interface{}{
		"path1": imgPath, "path2": imgPath, "method": "Harris", "output_path": out,
	}, nil)
	if err == nil {
		t.Fatal("Harris save should fail")
	}
	if data, _ := err.Data.(string); !strings.Contains(data, "no matched image") {
		t.Errorf("error data: %v", err.Data)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("no file should be written for Harris")
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := New()

	_, err := s.executeTool(context.Background(), "unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("executeTool should fail for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New()

	for _, name := range []string{"image_load", "features_detect", "features_match", "features_save"} {
		if _, err := s.executeTool(context.Background(), name, json.RawMessage(`{invalid`)); err == nil {
			t.Errorf("executeTool(%s) should fail for invalid JSON", name)
		}
	}
}
