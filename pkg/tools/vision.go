package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-assistant/pkg/inference"
)

// DefaultVisionQuery is asked when the caller gives no question.
const DefaultVisionQuery = "What do you see in this image?"

type visionTool struct {
	camera   FrameSource
	provider inference.Provider
	model    string
}

func (v *visionTool) handle(ctx context.Context, args Args) (string, error) {
	query, ok := args["query"]
	if !ok {
		query = DefaultVisionQuery
	}

	if v.camera == nil || v.provider == nil {
		return visionError(errors.New("camera or vision model not configured")), nil
	}

	frame, err := v.camera.Capture(ctx)
	if err != nil {
		return visionError(err), nil
	}
	if query == "" || len(frame) == 0 {
		return "Error: both 'query' and image must be provided.", nil
	}

	resp, err := v.provider.Vision(ctx, &inference.VisionRequest{
		JPEG:   frame,
		Prompt: query,
		Model:  v.model,
	})
	if err != nil {
		return visionError(err), nil
	}
	return resp.Content, nil
}

func visionError(err error) string {
	return fmt.Sprintf("Vision analysis error: %v", err)
}
