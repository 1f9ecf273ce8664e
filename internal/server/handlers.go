package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ironsheep/chipdetect-mcp/internal/chipper"
	"github.com/ironsheep/chipdetect-mcp/internal/geometry"
	"github.com/ironsheep/chipdetect-mcp/internal/imaging"
	"github.com/ironsheep/chipdetect-mcp/internal/pipeline"
	"github.com/ironsheep/chipdetect-mcp/internal/render"
)

// defaultMaxSide bounds the side of returned PNGs unless a call overrides it.
const defaultMaxSide = 2048

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "detect_objects").
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
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warnw("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.logger.Debugw("tool done", "tool", params.Name, "took", time.Since(start))

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
//  2. Applies the call's overrides to the server's pipeline defaults
//  3. Loads the source image through the loader cache
//  4. Runs the chipper, pipeline or renderer
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(ctx, args)
	case "chips_plan":
		return s.handleChipsPlan(ctx, args)
	case "chips_overlay":
		return s.handleChipsOverlay(ctx, args)
	case "chip_image":
		return s.handleChipImage(ctx, args)
	case "detect_objects":
		return s.handleDetectObjects(ctx, args)
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

// === Shared Arguments ===

type sourceArgs struct {
	Source     string `json:"source"`
	ForceFetch bool   `json:"force_fetch"`
}

func (s *Server) load(ctx context.Context, a sourceArgs) (*imaging.Raster, error) {
	if a.Source == "" {
		return nil, fmt.Errorf("source is required")
	}
	return s.loader.Load(ctx, a.Source, imaging.LoadOptions{ForceFetch: a.ForceFetch})
}

// tilingArgs are optional chip geometry overrides. Pointers distinguish an
// explicit zero from an absent argument.
type tilingArgs struct {
	MaxChipSide      *int   `json:"max_chip_side"`
	DownsampleFactor *int   `json:"downsample_factor"`
	OverlapMargin    *int   `json:"overlap_margin"`
	Layout           string `json:"layout"`
}

func (a tilingArgs) apply(cfg *pipeline.Config) error {
	if a.MaxChipSide != nil {
		cfg.MaxChipSide = *a.MaxChipSide
	}
	if a.DownsampleFactor != nil {
		cfg.DownsampleFactor = *a.DownsampleFactor
	}
	if a.OverlapMargin != nil {
		cfg.OverlapMargin = *a.OverlapMargin
	}
	if a.Layout != "" {
		layout, err := chipper.ParseLayout(a.Layout)
		if err != nil {
			return err
		}
		cfg.Layout = layout
	}
	return nil
}

// plan loads the source and splits it into chips.
func (s *Server) plan(ctx context.Context, src sourceArgs, tiling tilingArgs) (*imaging.Raster, *chipper.Tiles, error) {
	cfg := s.config
	if err := tiling.apply(&cfg); err != nil {
		return nil, nil, err
	}
	c, err := chipper.New(cfg.ChipperOptions())
	if err != nil {
		return nil, nil, err
	}
	r, err := s.load(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	tiles, err := c.Plan(r.Image)
	if err != nil {
		return nil, nil, err
	}
	return r, tiles, nil
}

func maxSide(v *int) int {
	if v == nil {
		return defaultMaxSide
	}
	return *v
}

// === Image Information Handlers ===

type imageLoadArgs struct {
	sourceArgs
}

func (s *Server) handleImageLoad(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	r, err := s.load(ctx, a.sourceArgs)
	if err != nil {
		return nil, err
	}
	return r.Info(), nil
}

// === Chip Grid Handlers ===

type chipsPlanArgs struct {
	sourceArgs
	tilingArgs
}

// ChipInfo describes one planned chip.
type ChipInfo struct {
	Index  int            `json:"index"`
	Row    int            `json:"row"`
	Col    int            `json:"col"`
	Origin geometry.Point `json:"origin"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Source geometry.Box   `json:"source"`
}

// ChipsPlanResult is the chip grid of one image.
type ChipsPlanResult struct {
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Scale        int        `json:"scale"`
	ScaledWidth  int        `json:"scaled_width"`
	ScaledHeight int        `json:"scaled_height"`
	Rows         int        `json:"rows"`
	Columns      int        `json:"columns"`
	ChipCount    int        `json:"chip_count"`
	Chips        []ChipInfo `json:"chips"`
}

func (s *Server) handleChipsPlan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a chipsPlanArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	_, tiles, err := s.plan(ctx, a.sourceArgs, a.tilingArgs)
	if err != nil {
		return nil, err
	}

	src := tiles.SourceSize()
	scaled := tiles.ScaledSize()
	out := &ChipsPlanResult{
		Width:        src.X,
		Height:       src.Y,
		Scale:        tiles.Scale(),
		ScaledWidth:  scaled.X,
		ScaledHeight: scaled.Y,
		Rows:         tiles.Rows(),
		Columns:      tiles.Columns(),
		ChipCount:    tiles.Len(),
		Chips:        make([]ChipInfo, 0, tiles.Len()),
	}
	for _, c := range tiles.Chips() {
		out.Chips = append(out.Chips, ChipInfo{
			Index:  c.Index,
			Row:    c.Row,
			Col:    c.Col,
			Origin: geometry.PointFrom(c.Origin),
			Width:  c.Size.X,
			Height: c.Size.Y,
			Source: geometry.BoxFromRect(c.SourceRect()),
		})
	}
	return out, nil
}

type chipsOverlayArgs struct {
	sourceArgs
	tilingArgs
	ShowIndex *bool  `json:"show_index"`
	GridColor string `json:"grid_color"`
	MaxSide   *int   `json:"max_side"`
}

func (s *Server) handleChipsOverlay(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a chipsOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.GridColor == "" {
		a.GridColor = render.DefaultGridColor
	}
	showIndex := a.ShowIndex == nil || *a.ShowIndex

	r, tiles, err := s.plan(ctx, a.sourceArgs, a.tilingArgs)
	if err != nil {
		return nil, err
	}
	img, err := render.ChipGrid(r.Image, tiles.Chips(), render.GridOptions{
		Color:     a.GridColor,
		ShowIndex: showIndex,
	})
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(img, maxSide(a.MaxSide))
}

type chipImageArgs struct {
	sourceArgs
	tilingArgs
	Index   int  `json:"index"`
	MaxSide *int `json:"max_side"`
}

func (s *Server) handleChipImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a chipImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	_, tiles, err := s.plan(ctx, a.sourceArgs, a.tilingArgs)
	if err != nil {
		return nil, err
	}
	if a.Index < 0 || a.Index >= tiles.Len() {
		return nil, fmt.Errorf("chip index %d out of range [0,%d)", a.Index, tiles.Len())
	}
	return imaging.EncodePNG(tiles.At(a.Index).Pixels, maxSide(a.MaxSide))
}

// === Detection Handlers ===

type detectObjectsArgs struct {
	sourceArgs
	tilingArgs
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	IoUThreshold        *float64 `json:"iou_threshold"`
	SmallBoxOverlap     *float64 `json:"small_box_overlap"`
	PerChipOutput       *bool    `json:"per_chip_output"`
	Policy              string   `json:"policy"`
	Annotate            bool     `json:"annotate"`
	MaxSide             *int     `json:"max_side"`
}

func (a detectObjectsArgs) config(base pipeline.Config) (pipeline.Config, error) {
	cfg := base
	if err := a.tilingArgs.apply(&cfg); err != nil {
		return cfg, err
	}
	if a.ConfidenceThreshold != nil {
		cfg.ConfidenceThreshold = *a.ConfidenceThreshold
	}
	if a.IoUThreshold != nil {
		cfg.IoUThreshold = *a.IoUThreshold
	}
	if a.SmallBoxOverlap != nil {
		cfg.SmallBoxOverlap = *a.SmallBoxOverlap
	}
	if a.PerChipOutput != nil {
		cfg.PerChipOutput = *a.PerChipOutput
	}
	if a.Policy != "" {
		policy, err := pipeline.ParsePolicy(a.Policy)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = policy
	}
	return cfg, cfg.Validate()
}

// DetectObjectsResult is the detect_objects tool output.
type DetectObjectsResult struct {
	*pipeline.Result
	Policy    string                `json:"policy"`
	Annotated *imaging.EncodedImage `json:"annotated,omitempty"`
}

func (s *Server) handleDetectObjects(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectObjectsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	cfg, err := a.config(s.config)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, a.sourceArgs)
	if err != nil {
		return nil, err
	}

	res, err := s.pipeline.Run(ctx, r, cfg)
	if err != nil {
		return nil, err
	}

	out := &DetectObjectsResult{Result: res, Policy: cfg.Policy.String()}
	if a.Annotate {
		img, err := render.Detections(r.Image, res.Detections, render.DefaultOptions())
		if err != nil {
			return nil, err
		}
		if out.Annotated, err = imaging.EncodePNG(img, maxSide(a.MaxSide)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
