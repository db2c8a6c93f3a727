package assembly

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/domain"
)

// shouldMixBGM reports whether step 6 should run at all. A zero volume
// leaves the primary track bit-identical to skipping the step, so it is
// treated the same as no BGM reference being set at all, rather than
// run through amix at volume 0.
func shouldMixBGM(bgmRef string, bgmVolume float64) bool {
	return bgmRef != "" && bgmVolume > 0
}

// clampBGMVolume enforces domain.MaxBGMVolume on a requested BGM
// volume.
func clampBGMVolume(volume float64) float64 {
	if volume > domain.MaxBGMVolume {
		return domain.MaxBGMVolume
	}
	return volume
}

// maxStderrBytes bounds captured ffmpeg failure output per §4.6 "Failure
// handling: any FFmpeg failure fails the VideoTask with captured stderr
// (truncated to 4 KiB)".
const maxStderrBytes = 4096

// ffmpegPath is resolved once at process start from FFMPEG_PATH,
// defaulting to the binary on $PATH (§6 environment variables).
var ffmpegPath = envOr("FFMPEG_PATH", "ffmpeg")

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// truncateOutput bounds captured ffmpeg/ffprobe output to maxStderrBytes.
func truncateOutput(output []byte) string {
	if len(output) <= maxStderrBytes {
		return string(output)
	}
	return string(output[:maxStderrBytes])
}

// runFFmpeg runs ffmpeg with the given args, returning a truncated,
// wrapped error on failure so the caller can surface it on the VideoTask
// row without retaining unbounded subprocess output.
func runFFmpeg(ctx context.Context, logger *zap.Logger, args ...string) error {
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.Error("ffmpeg failed", zap.Strings("args", args), zap.String("output", truncateOutput(output)))
		return fmt.Errorf("ffmpeg %s: %w: %s", args[0], err, truncateOutput(output))
	}
	return nil
}

// probeFPS returns a clip's framerate, used by the overlap-trim step's
// majority-vote fps detection (§4.6 step 3).
func probeFPS(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe fps: %w", err)
	}
	return parseRational(strings.TrimSpace(string(output)))
}

func parseRational(s string) (float64, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return strconv.ParseFloat(s, 64)
	}
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse framerate numerator %q: %w", parts[0], err)
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0, fmt.Errorf("parse framerate denominator %q: %w", parts[1], err)
	}
	return num / den, nil
}

// probeDimensions returns a clip's pixel width/height.
func probeDimensions(ctx context.Context, path string) (int, int, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe dimensions: %w", err)
	}
	parts := strings.SplitN(strings.TrimSpace(string(output)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe dimensions output %q", output)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse width: %w", err)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse height: %w", err)
	}
	return w, h, nil
}

// probeDuration returns a media file's duration in seconds, used for
// narrative-pipeline ken-burns clip sizing and for the movie pipeline's
// final-duration invariant check.
func probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", output, err)
	}
	return duration, nil
}

// trimLeadingFrames re-encodes src into dst with its first trimFrames
// video frames (and the equivalent audio duration) removed — §4.6 step
// 4's overlap trim, required because every Transition N+1 was generated
// starting from Transition N's last keyframe, duplicating it across the
// cut if clips were concatenated untrimmed.
func trimLeadingFrames(ctx context.Context, logger *zap.Logger, src, dst string, trimFrames int, fps float64) error {
	offset := float64(trimFrames) / fps
	return runFFmpeg(ctx, logger,
		"-y",
		"-i", src,
		"-vf", fmt.Sprintf("trim=start=%f,setpts=PTS-STARTPTS", offset),
		"-af", fmt.Sprintf("atrim=start=%f,asetpts=PTS-STARTPTS", offset),
		"-c:v", "libx264", "-crf", "18", "-preset", "medium",
		"-c:a", "aac",
		dst,
	)
}

// reencode normalizes a clip to a common codec/CRF so the concat
// demuxer's stream-copy path can stitch heterogeneous source clips.
func reencode(ctx context.Context, logger *zap.Logger, src, dst string) error {
	return runFFmpeg(ctx, logger,
		"-y", "-i", src,
		"-c:v", "libx264", "-crf", "18", "-preset", "medium",
		"-c:a", "aac",
		dst,
	)
}

// concatenate stitches ordered clips via the concat demuxer, the shape
// grounded on composeVideoCommon's concat-file + stream-copy pattern,
// re-encoding the joined result for a single consistent CRF 18 output.
func concatenate(ctx context.Context, logger *zap.Logger, clipPaths []string, workDir, dst string) error {
	concatFile := filepath.Join(workDir, "concat.txt")
	var sb strings.Builder
	for _, p := range clipPaths {
		fmt.Fprintf(&sb, "file '%s'\n", p)
	}
	if err := os.WriteFile(concatFile, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write concat file: %w", err)
	}

	return runFFmpeg(ctx, logger,
		"-y",
		"-f", "concat", "-safe", "0", "-i", concatFile,
		"-c:v", "libx264", "-crf", "18", "-preset", "medium",
		"-c:a", "aac",
		dst,
	)
}

// mixBGM loops/cuts bgmPath to match the video's duration, mixes it at
// volume (hard-capped at domain.MaxBGMVolume by the caller) under the
// dialogue track, and ducks the BGM with a sidechain compressor keyed on
// the dialogue track (threshold 0.05, ratio 8) (§4.6 step 6). The
// reduction grows with the dialogue level above the threshold; it is not
// a fixed 6 dB cut.
func mixBGM(ctx context.Context, logger *zap.Logger, videoPath, bgmPath, dst string, volume, durationSeconds float64) error {
	filter := buildMixFilter(volume, durationSeconds)
	return runFFmpeg(ctx, logger,
		"-y",
		"-i", videoPath,
		"-i", bgmPath,
		"-filter_complex", filter,
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy", "-c:a", "aac",
		dst,
	)
}

// buildMixFilter renders mixBGM's filter_complex graph. normalize=0 on
// the final amix keeps the dialogue track's level fixed regardless of
// the BGM input; amix's default (normalize=1) would otherwise attenuate
// both inputs, quietly changing the dialogue track's volume.
func buildMixFilter(volume, durationSeconds float64) string {
	return fmt.Sprintf(
		"[1:a]aloop=loop=-1:size=2e9,atrim=0:%f,volume=%f[bgm];"+
			"[bgm][0:a]sidechaincompress=threshold=0.05:ratio=8:attack=5:release=200[ducked];"+
			"[0:a][ducked]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]",
		durationSeconds, volume,
	)
}

// transcodeWebM produces a web-optimized VP9/WebM rendition; a failure
// here is non-fatal to the overall VideoTask (the MP4 remains the
// authoritative output), grounded on composeVideoCommon's WebM step.
func transcodeWebM(ctx context.Context, logger *zap.Logger, src, dst string) error {
	return runFFmpeg(ctx, logger,
		"-y", "-i", src,
		"-c:v", "libvpx-vp9", "-crf", "30", "-b:v", "0", "-row-mt", "1",
		"-c:a", "libopus",
		dst,
	)
}

// escapeDrawtext escapes characters that would otherwise break the
// drawtext/subtitles filter's colon-delimited option syntax, grounded on
// the teacher's escapeFfmpegText.
func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"'", "\\'",
		":", "\\:",
		"%", "\\%",
		"\n", "\\n",
	)
	return replacer.Replace(text)
}
