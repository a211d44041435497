package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var markupReplacer = strings.NewReplacer("##", "", "**", "", "*", "")

// StripMarkup removes the heading and emphasis markers a narrator would read aloud
func StripMarkup(text string) string {
	return markupReplacer.Replace(text)
}

// NarrationText is the script sent to speech synthesis: the title, then the cleaned draft
func NarrationText(title, draft string) string {
	body := strings.TrimSpace(StripMarkup(draft))
	title = strings.TrimSpace(title)
	if title == "" {
		return body
	}
	return title + ".\n\n" + body
}

// Narrate synthesizes the draft in lang and writes audio_<lang>.mp3 to dir
func (p *Producer) Narrate(ctx context.Context, dir, lang, title, draft string) (string, error) {
	if p.cfg.SpeechModel == "" {
		return "", fmt.Errorf("%w: media.speech_model is not configured", ErrNoAudio)
	}
	voice := p.cfg.Voice(lang)
	if voice == "" {
		return "", fmt.Errorf("%w: no voice configured for %q", ErrNoAudio, lang)
	}

	audio, err := p.backend.Synthesize(ctx, p.cfg.Endpoint(p.cfg.SpeechModel), p.apiKey, NarrationText(title, draft), voice)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.metrics.RecordMediaAsset("audio", "failed")
		return "", fmt.Errorf("%w: %v", ErrNoAudio, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("audio_%s.mp3", lang))
	if err := os.WriteFile(path, audio, 0644); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	p.metrics.RecordMediaAsset("audio", "generated")
	p.logger.Debug("Narration written", "path", path, "voice", voice, "bytes", len(audio))
	return path, nil
}
