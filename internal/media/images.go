package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

var (
	placeholderColor = color.RGBA{R: 10, G: 10, B: 10, A: 255}
	coverColor       = color.RGBA{R: 15, G: 15, B: 25, A: 255}
	coverTextColor   = color.RGBA{R: 255, G: 215, B: 0, A: 255}
)

// Placeholder stills are always landscape full HD
const (
	placeholderWidth  = 1920
	placeholderHeight = 1080
)

// Images writes one still per prompt to dir as scene_NNN.png. A file already on disk is reused,
// and a failed generation is replaced by a dark placeholder. It returns the paths in prompt order
// and the number of placeholders.
func (p *Producer) Images(ctx context.Context, dir string, prompts []string) ([]string, int, error) {
	if len(prompts) == 0 {
		return nil, 0, ErrNoImages
	}
	paths := make([]string, len(prompts))
	placeholder := make([]bool, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, prompt := range prompts {
		path := filepath.Join(dir, fmt.Sprintf("scene_%03d.png", i+1))
		paths[i] = path

		if _, err := os.Stat(path); err == nil {
			p.metrics.RecordMediaAsset("image", "cached")
			continue
		}

		g.Go(func() error {
			used, err := p.generateImage(gctx, path, prompt)
			if err != nil {
				return err
			}
			placeholder[i] = used
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	count := 0
	for _, used := range placeholder {
		if used {
			count++
		}
	}
	return paths, count, nil
}

// generateImage writes the still for prompt, falling back to a placeholder. Only context and
// filesystem errors are returned.
func (p *Producer) generateImage(ctx context.Context, path, prompt string) (bool, error) {
	if p.cfg.ImageModel != "" {
		data, err := p.backend.GenerateImage(ctx, p.cfg.Endpoint(p.cfg.ImageModel), p.apiKey, prompt, p.size)
		if err == nil {
			if err := os.WriteFile(path, data, 0644); err != nil {
				return false, fmt.Errorf("failed to write image: %w", err)
			}
			p.metrics.RecordMediaAsset("image", "generated")
			return false, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Warn("Image generation failed, using placeholder", "path", filepath.Base(path), "error", err)
	}

	if err := writeSolidPNG(path, placeholderWidth, placeholderHeight, placeholderColor); err != nil {
		return false, fmt.Errorf("failed to write placeholder: %w", err)
	}
	p.metrics.RecordMediaAsset("image", "placeholder")
	return true, nil
}

func writeSolidPNG(path string, w, h int, c color.RGBA) error {
	return writePNG(path, solidImage(w, h, c))
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func writePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
