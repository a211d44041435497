package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lamim/storyforge/internal/config"
)

// GenerateImage requests one image and returns the decoded file bytes
func (c *Client) GenerateImage(ctx context.Context, modelCfg config.ModelConfig, apiKey, prompt, size string) ([]byte, error) {
	req := ImageRequest{
		Model:          modelCfg.ModelName,
		Prompt:         prompt,
		N:              1,
		Size:           size,
		ResponseFormat: "b64_json",
	}

	body, err := c.call(ctx, modelCfg, apiKey, "images/generations", req)
	if err != nil {
		return nil, err
	}

	var resp ImageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse image response: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image returned in response")
	}

	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Synthesize turns text into MP3 audio with the given voice
func (c *Client) Synthesize(ctx context.Context, modelCfg config.ModelConfig, apiKey, text, voice string) ([]byte, error) {
	req := SpeechRequest{
		Model:          modelCfg.ModelName,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "mp3",
	}

	audio, err := c.call(ctx, modelCfg, apiKey, "audio/speech", req)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	return audio, nil
}
