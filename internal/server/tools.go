package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// methodProperty is the schema shared by every tool that takes a method.
func methodProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"SIFT", "ORB", "Harris"},
		"description": "Feature detection method. SIFT and ORB produce matchable descriptors; Harris highlights corners only",
	}
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func displayWidthProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Optional maximum width of returned images in pixels. 0 keeps the original size",
		"default":     0,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image file (PNG, JPEG or GIF) and return its dimensions, format and file size. Use this to validate an upload before running feature detection.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "features_methods",
			Description: "List the supported feature detection methods with a short description and a reference link for each.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "features_detect",
			Description: "Detect features on one image. SIFT and ORB return keypoints and descriptor shape with the keypoints drawn on the image; Harris returns the image with strong corners painted red.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty("Absolute path to the image file"),
					"method": methodProperty(),
					"max_keypoints": map[string]interface{}{
						"type":        "integer",
						"description": "Number of keypoints to list in the result. Default 20, 0 lists none",
						"default":     defaultKeypointSample,
					},
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the annotated image as base64 PNG. Default true",
						"default":     true,
					},
					"display_width": displayWidthProperty(),
				},
				"required": []string{"path", "method"},
			},
		},
		{
			Name:        "features_match",
			Description: "Detect features on two images and match them with a cross-checked brute-force matcher (L2 for SIFT, Hamming for ORB). Returns both annotated images, the best matches and a side-by-side composite. Harris skips matching.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path1":  pathProperty("Absolute path to the first image"),
					"path2":  pathProperty("Absolute path to the second image"),
					"method": methodProperty(),
					"include_images": map[string]interface{}{
						"type":        "boolean",
						"description": "Return annotated images and the composite as base64 PNG. Default true",
						"default":     true,
					},
					"display_width": displayWidthProperty(),
				},
				"required": []string{"path1", "path2", "method"},
			},
		},
		{
			Name:        "features_save",
			Description: "Run matching on two images and save the composite of the best matches as PNG, replacing any existing file. Fails for Harris, which produces no composite.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path1":  pathProperty("Absolute path to the first image"),
					"path2":  pathProperty("Absolute path to the second image"),
					"method": methodProperty(),
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Where to write the PNG. Defaults to the configured output path (matched_image.png)",
					},
				},
				"required": []string{"path1", "path2", "method"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
