package media

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var resolutions = map[string][2]int{
	"16:9": {1920, 1080},
	"9:16": {1080, 1920},
	"1:1":  {1080, 1080},
}

// Resolution returns the output video size for the configured aspect ratio
func (p *Producer) Resolution() (int, int) {
	if r, ok := resolutions[p.cfg.AspectRatio]; ok {
		return r[0], r[1]
	}
	return 1920, 1080
}

// Duration reads the length of a media file with ffprobe
func (p *Producer) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := p.runner.Run(ctx, p.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%w: %s has zero duration", ErrNoAudio, path)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// SceneDurations splits total evenly across n stills. Durations are whole milliseconds and the
// last slot absorbs the rounding so the slots always sum to total.
func SceneDurations(total time.Duration, n int) []time.Duration {
	if n <= 0 {
		return nil
	}
	each := (total / time.Duration(n)).Truncate(time.Millisecond)
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = each
	}
	out[n-1] = total - each*time.Duration(n-1)
	return out
}

// Render shows each image for its share of total with a slow zoom and muxes the narration
func (p *Producer) Render(ctx context.Context, audio string, images []string, total time.Duration, out string) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	if audio == "" {
		return ErrNoAudio
	}

	args := p.renderArgs(audio, images, total, out)
	p.logger.Debug("Rendering video", "output", out, "images", len(images), "duration", total)
	if _, err := p.runner.Run(ctx, p.cfg.FFmpegPath, args...); err != nil {
		return fmt.Errorf("failed to render %s: %w", out, err)
	}
	return nil
}

func (p *Producer) renderArgs(audio string, images []string, total time.Duration, out string) []string {
	w, h := p.Resolution()
	fps := p.cfg.FPS
	step := p.cfg.ZoomPerSecond / float64(fps)
	durations := SceneDurations(total, len(images))

	// Each still is a single input frame; zoompan expands it to the scene length.
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, img := range images {
		args = append(args, "-i", img)
	}
	args = append(args, "-i", audio)

	var filter strings.Builder
	for i := range images {
		frames := int(durations[i].Seconds()*float64(fps)) + 1
		fmt.Fprintf(&filter,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,"+
				"zoompan=z='min(1+on*%.6f,1.5)':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d:fps=%d,"+
				"setsar=1,trim=duration=%s[v%d];",
			i, w, h, w, h, step, frames, w, h, fps, seconds(durations[i]), i)
	}
	for i := range images {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0,format=yuv420p[v]", len(images))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[v]",
		"-map", fmt.Sprintf("%d:a", len(images)),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-r", strconv.Itoa(fps),
		"-c:a", "aac",
		"-t", seconds(total),
		out,
	)
	return args
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
