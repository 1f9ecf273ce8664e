package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image from a local path or http(s) URL and return its dimensions, format, bit depth and GeoTIFF transform. The image is cached for subsequent calls.",
			InputSchema: objectSchema(sourceProperties(), "source"),
		},
		{
			Name:        "chips_plan",
			Description: "Plan the chip grid an image would be split into for detection, without running inference. Returns every chip's index, origin in the downsampled frame and region in source pixels.",
			InputSchema: objectSchema(merge(sourceProperties(), tilingProperties()), "source"),
		},
		{
			Name:        "chips_overlay",
			Description: "Draw the chip grid over an image and return it as base64-encoded PNG. Use this to check chip size and overlap before detecting.",
			InputSchema: objectSchema(merge(sourceProperties(), tilingProperties(), map[string]interface{}{
				"show_index": map[string]interface{}{
					"type":        "boolean",
					"description": "Label each chip with its index. Default true",
					"default":     true,
				},
				"grid_color": map[string]interface{}{
					"type":        "string",
					"description": "Grid line color in hex format (#RRGGBB or #RRGGBBAA). Default #FF000080",
					"default":     "#FF000080",
				},
				"max_side": maxSideProperty(),
			}), "source"),
		},
		{
			Name:        "chip_image",
			Description: "Return the pixels of one chip, as the detector sees them, as base64-encoded PNG.",
			InputSchema: objectSchema(merge(sourceProperties(), tilingProperties(), map[string]interface{}{
				"index": map[string]interface{}{
					"type":        "integer",
					"description": "Chip index in row-major order (0-based)",
				},
			}), "source", "index"),
		},
		{
			Name:        "detect_objects",
			Description: "Run tiled object detection over an image: split it into chips, detect objects in every chip, map the boxes back to source pixels and merge duplicates across chip seams. Returns the merged detections and the chips skipped after a failure.",
			InputSchema: objectSchema(merge(sourceProperties(), tilingProperties(), map[string]interface{}{
				"confidence_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Drop detections below this confidence before merging (0-1). Default 0",
				},
				"iou_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Suppress same-class boxes overlapping a stronger box by more than this IoU (0-1). Default 0.5",
					"default":     0.5,
				},
				"small_box_overlap": map[string]interface{}{
					"type":        "number",
					"description": "Also suppress same-class boxes whose own area is covered by more than this fraction; 0 disables. Default 0",
				},
				"per_chip_output": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the chip-local detections of every chip. Default false",
				},
				"policy": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"lenient", "strict"},
					"description": "lenient skips chips whose inference fails, strict aborts the image. Default lenient",
				},
				"annotate": map[string]interface{}{
					"type":        "boolean",
					"description": "Return the image with detections drawn as base64-encoded PNG. Default false",
				},
				"max_side": maxSideProperty(),
			}), "source"),
		},
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func merge(groups ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, g := range groups {
		for k, v := range g {
			out[k] = v
		}
	}
	return out
}

func sourceProperties() map[string]interface{} {
	return map[string]interface{}{
		"source": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path or http(s) URL of the image",
		},
		"force_fetch": map[string]interface{}{
			"type":        "boolean",
			"description": "Allow downloading a remote GeoTIFF (.tif/.tiff). Default false",
		},
	}
}

func tilingProperties() map[string]interface{} {
	return map[string]interface{}{
		"max_chip_side": map[string]interface{}{
			"type":        "integer",
			"description": "Largest chip width and height in pixels. Default 512",
			"default":     512,
		},
		"downsample_factor": map[string]interface{}{
			"type":        "integer",
			"description": "Shrink the image by this factor before tiling. Default 1",
			"default":     1,
		},
		"overlap_margin": map[string]interface{}{
			"type":        "integer",
			"description": "Pixels shared by adjacent chips, in the downsampled frame. Default 0",
		},
		"layout": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"fixed", "balanced"},
			"description": "fixed clips the last chip of each row and column; balanced uses equal chips. Default fixed",
		},
	}
}

func maxSideProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Shrink the returned PNG to fit this size. 0 keeps full resolution. Default 2048",
		"default":     2048,
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
