package assembly

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/blobstore"
	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/repository"
	"github.com/sceneforge/core/internal/taskstore"
)

// kenBurnsZoom is the per-frame zoom increment applied to each
// narrative still; a gentle drift rather than a dramatic push.
const kenBurnsZoom = 0.0015

// NarrativeAssembler runs the sentence-by-sentence narrative pipeline
// (§4.6: "image + audio per sentence is rendered into a ken-burns clip
// whose duration equals the measured audio length; subtitles are burned
// in from subtitle_text"), grounded on the same ffmpeg helpers as
// MovieAssembler.
type NarrativeAssembler struct {
	artifacts *repository.ArtifactRepository
	projects  *repository.ProjectRepository
	videos    *taskstore.VideoTaskStore
	blobs     *blobstore.Gateway
	logger    *zap.Logger
}

func NewNarrativeAssembler(
	artifacts *repository.ArtifactRepository,
	projects *repository.ProjectRepository,
	videos *taskstore.VideoTaskStore,
	blobs *blobstore.Gateway,
	logger *zap.Logger,
) *NarrativeAssembler {
	return &NarrativeAssembler{artifacts: artifacts, projects: projects, videos: videos, blobs: blobs, logger: logger}
}

func (n *NarrativeAssembler) Assemble(ctx context.Context, vt *domain.VideoTask) error {
	sentences, err := n.artifacts.ListSentencesByChapter(ctx, vt.ChapterID)
	if err != nil {
		return n.fail(ctx, vt.ChapterID, fmt.Sprintf("list sentences: %v", err))
	}

	var missing []string
	for _, s := range sentences {
		if s.ImageURL == "" || s.AudioURL == "" {
			missing = append(missing, fmt.Sprintf("sentence %s", s.ID))
		}
	}
	if len(missing) > 0 {
		return n.fail(ctx, vt.ChapterID, domain.NewIncompleteMaterialsError(missing).Error())
	}
	if err := n.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoValidating, 0); err != nil {
		n.logger.Warn("advance video task stage", zap.Error(err))
	}

	chapter, err := n.projects.GetChapter(ctx, vt.ChapterID)
	if err != nil {
		return n.fail(ctx, vt.ChapterID, fmt.Sprintf("load chapter: %v", err))
	}

	workDir, err := os.MkdirTemp("", "aicg-narrative-*")
	if err != nil {
		return n.fail(ctx, vt.ChapterID, fmt.Sprintf("scratch dir: %v", err))
	}
	defer os.RemoveAll(workDir)

	total := len(sentences)
	if err := n.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoDownloading, 0.05); err != nil {
		n.logger.Warn("advance video task stage", zap.Error(err))
	}

	imageKeys := make([]string, total)
	audioKeys := make([]string, total)
	for i, s := range sentences {
		imageKeys[i] = s.ImageURL
		audioKeys[i] = s.AudioURL
	}
	imagePaths, err := downloadAll(ctx, n.blobs, imageKeys, workDir, "img", n.logger)
	if err != nil {
		return n.fail(ctx, vt.ChapterID, fmt.Sprintf("download images: %v", err))
	}
	audioPaths, err := downloadAll(ctx, n.blobs, audioKeys, workDir, "mp3", n.logger)
	if err != nil {
		return n.fail(ctx, vt.ChapterID, fmt.Sprintf("download audio: %v", err))
	}

	if err := n.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoSynthesizing, 0.2); err != nil {
		n.logger.Warn("advance video task stage", zap.Error(err))
	}

	clipPaths := make([]string, total)
	for i, s := range sentences {
		duration, err := probeDuration(ctx, audioPaths[i])
		if err != nil {
			return n.fail(ctx, vt.ChapterID, fmt.Sprintf("probe sentence %d audio: %v", i, err))
		}
		clipPath := filepath.Join(workDir, fmt.Sprintf("clip-%04d.mp4", i))
		if err := n.renderSentenceClip(ctx, imagePaths[i], audioPaths[i], s.SubtitleText, duration, vt.Resolution, vt.FPS, clipPath); err != nil {
			return n.fail(ctx, vt.ChapterID, fmt.Sprintf("render sentence %d: %v", i, err))
		}
		clipPaths[i] = clipPath
		if err := n.videos.SetSentenceProgress(ctx, vt.ChapterID, i+1, total, 0.2+0.5*float64(i+1)/float64(total)); err != nil {
			n.logger.Warn("set sentence progress", zap.Error(err))
		}
	}

	if err := n.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoConcatenating, 0.75); err != nil {
		n.logger.Warn("advance video task stage", zap.Error(err))
	}
	concatenated := filepath.Join(workDir, "concatenated.mp4")
	if err := concatenate(ctx, n.logger, clipPaths, workDir, concatenated); err != nil {
		return n.fail(ctx, vt.ChapterID, fmt.Sprintf("concatenate: %v", err))
	}

	final := concatenated
	// A zero BGM volume leaves the primary track bit-identical: skip the
	// mix entirely rather than run it through amix at volume 0, which
	// would still re-encode the dialogue track.
	if shouldMixBGM(vt.BGMRef, vt.BGMVolume) {
		duration, err := probeDuration(ctx, concatenated)
		if err != nil {
			return n.fail(ctx, vt.ChapterID, fmt.Sprintf("probe duration: %v", err))
		}
		bgmPath := filepath.Join(workDir, "bgm.mp3")
		if err := n.blobs.GetFile(ctx, vt.BGMRef, bgmPath); err != nil {
			return n.fail(ctx, vt.ChapterID, fmt.Sprintf("download bgm: %v", err))
		}
		volume := clampBGMVolume(vt.BGMVolume)
		mixed := filepath.Join(workDir, "mixed.mp4")
		if err := mixBGM(ctx, n.logger, concatenated, bgmPath, mixed, volume, duration); err != nil {
			return n.fail(ctx, vt.ChapterID, fmt.Sprintf("mix bgm: %v", err))
		}
		final = mixed
	}

	if err := n.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoUploading, 0.9); err != nil {
		n.logger.Warn("advance video task stage", zap.Error(err))
	}
	mp4Key := blobstore.Key(chapter.ProjectID, "narrative", "mp4")
	if err := n.blobs.PutFile(ctx, mp4Key, final, "video/mp4"); err != nil {
		return n.fail(ctx, vt.ChapterID, fmt.Sprintf("upload mp4: %v", err))
	}

	var webmKey string
	webmPath := filepath.Join(workDir, "final.webm")
	if err := transcodeWebM(ctx, n.logger, final, webmPath); err != nil {
		n.logger.Warn("webm transcode failed, mp4 still available", zap.Error(err))
	} else {
		webmKey = blobstore.Key(chapter.ProjectID, "narrative", "webm")
		if err := n.blobs.PutFile(ctx, webmKey, webmPath, "video/webm"); err != nil {
			n.logger.Warn("webm upload failed, mp4 still available", zap.Error(err))
			webmKey = ""
		}
	}

	if err := n.videos.Complete(ctx, vt.ChapterID, mp4Key, webmKey); err != nil {
		return fmt.Errorf("complete video task: %w", err)
	}
	return nil
}

// renderSentenceClip builds one ken-burns-with-subtitle clip at the
// sentence's measured audio duration, fixing resolution/fps to the
// VideoTask's target in the same pass (§4.6: "target resolution/fps are
// enforced in one final pass").
func (n *NarrativeAssembler) renderSentenceClip(ctx context.Context, imagePath, audioPath, subtitle string, duration float64, resolution string, fps int, dst string) error {
	width, height, err := parseResolution(resolution)
	if err != nil {
		return err
	}

	zoomFrames := int(duration * float64(fps))
	kenBurns := fmt.Sprintf(
		"scale=%d*2:%d*2,zoompan=z='min(zoom+%f,1.5)':d=%d:s=%dx%d:fps=%d",
		width, height, kenBurnsZoom, zoomFrames, width, height, fps,
	)

	vf := kenBurns
	if subtitle != "" {
		vf += fmt.Sprintf(",drawtext=text='%s':fontcolor=white:fontsize=%d:box=1:boxcolor=black@0.5:boxborderw=8:x=(w-text_w)/2:y=h-th-40",
			escapeDrawtext(subtitle), height/20)
	}

	return runFFmpeg(ctx, n.logger,
		"-y",
		"-loop", "1", "-i", imagePath,
		"-i", audioPath,
		"-vf", vf,
		"-t", fmt.Sprintf("%f", duration),
		"-c:v", "libx264", "-crf", "18", "-preset", "medium", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-shortest",
		dst,
	)
}

func parseResolution(resolution string) (int, int, error) {
	if resolution == "" {
		return 1920, 1080, nil
	}
	var w, h int
	if _, err := fmt.Sscanf(resolution, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("parse resolution %q: %w", resolution, err)
	}
	return w, h, nil
}

func (n *NarrativeAssembler) fail(ctx context.Context, chapterID, errMsg string) error {
	if len(errMsg) > maxStderrBytes {
		errMsg = errMsg[:maxStderrBytes]
	}
	if err := n.videos.Fail(ctx, chapterID, errMsg); err != nil {
		n.logger.Error("record video task failure", zap.String("chapter_id", chapterID), zap.Error(err))
	}
	return fmt.Errorf("narrative assembly failed: %s", errMsg)
}
