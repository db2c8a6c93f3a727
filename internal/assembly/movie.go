package assembly

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/blobstore"
	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/repository"
	"github.com/sceneforge/core/internal/taskstore"
)

// overlapTrimFactor is §4.6 step 4's constant: "K = round(1.5 x
// clip_fps)", chosen so the duplicated leading keyframe of every clip
// after the first is removed along with a short settle-in margin.
const overlapTrimFactor = 1.5

// MovieAssembler runs the shot-transition movie pipeline (§4.6 steps
// 1-7), grounded on the teacher's composeVideoCommon/processVideoCommon
// pair generalized from a single-job handler into a standing component.
type MovieAssembler struct {
	artifacts *repository.ArtifactRepository
	projects  *repository.ProjectRepository
	videos    *taskstore.VideoTaskStore
	blobs     *blobstore.Gateway
	logger    *zap.Logger
}

func NewMovieAssembler(
	artifacts *repository.ArtifactRepository,
	projects *repository.ProjectRepository,
	videos *taskstore.VideoTaskStore,
	blobs *blobstore.Gateway,
	logger *zap.Logger,
) *MovieAssembler {
	return &MovieAssembler{artifacts: artifacts, projects: projects, videos: videos, blobs: blobs, logger: logger}
}

// Assemble runs the full movie pipeline for a chapter's Script. On any
// failure it fails the VideoTask with a truncated error message; on
// success it uploads the final MP4 (and, best-effort, WebM) and marks
// the VideoTask completed.
func (m *MovieAssembler) Assemble(ctx context.Context, vt *domain.VideoTask) error {
	script, err := m.artifacts.GetScriptByChapter(ctx, vt.ChapterID)
	if err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("load script: %v", err))
	}

	transitions, err := m.artifacts.ListTransitionsByScript(ctx, script.ID)
	if err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("list transitions: %v", err))
	}
	shots, err := m.artifacts.ListShotsByScript(ctx, script.ID)
	if err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("list shots: %v", err))
	}

	// Step 1: validate. A chapter with fewer than 2 shots has no
	// transitions to assemble at all; detectFPS below requires at least
	// one clip to probe, so this must fail before it ever runs.
	if err := validateMovieMaterials(shots, transitions); err != nil {
		return m.fail(ctx, vt.ChapterID, err.Error())
	}
	if err := m.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoValidating, 0); err != nil {
		m.logger.Warn("advance video task stage", zap.Error(err))
	}

	workDir, err := os.MkdirTemp("", "aicg-movie-*")
	if err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("scratch dir: %v", err))
	}
	defer os.RemoveAll(workDir)

	total := len(transitions)

	// Step 2: download.
	if err := m.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoDownloading, 0.05); err != nil {
		m.logger.Warn("advance video task stage", zap.Error(err))
	}
	keys := make([]string, total)
	for i, t := range transitions {
		keys[i] = t.VideoURL
	}
	clipPaths, err := downloadAll(ctx, m.blobs, keys, workDir, "mp4", m.logger)
	if err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("download clips: %v", err))
	}
	if err := m.videos.SetClipProgress(ctx, vt.ChapterID, total, total, 0.2); err != nil {
		m.logger.Warn("set clip progress", zap.Error(err))
	}

	// Step 3: probe fps, majority vote.
	fps, err := m.detectFPS(ctx, clipPaths)
	if err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("probe fps: %v", err))
	}

	// Step 4: overlap trim every clip after the first.
	if err := m.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoSynthesizing, 0.35); err != nil {
		m.logger.Warn("advance video task stage", zap.Error(err))
	}
	trimFrames := int(math.Round(overlapTrimFactor * fps))
	trimmed := make([]string, len(clipPaths))
	trimmed[0] = clipPaths[0]
	for i := 1; i < len(clipPaths); i++ {
		dst := filepath.Join(workDir, fmt.Sprintf("trimmed-%04d.mp4", i))
		if err := trimLeadingFrames(ctx, m.logger, clipPaths[i], dst, trimFrames, fps); err != nil {
			return m.fail(ctx, vt.ChapterID, fmt.Sprintf("trim clip %d: %v", i, err))
		}
		trimmed[i] = dst
		if err := m.videos.SetClipProgress(ctx, vt.ChapterID, i+1, total, 0.35+0.25*float64(i+1)/float64(total)); err != nil {
			m.logger.Warn("set clip progress", zap.Error(err))
		}
	}

	// Step 5: concatenate.
	if err := m.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoConcatenating, 0.65); err != nil {
		m.logger.Warn("advance video task stage", zap.Error(err))
	}
	concatenated := filepath.Join(workDir, "concatenated.mp4")
	if err := concatenate(ctx, m.logger, trimmed, workDir, concatenated); err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("concatenate: %v", err))
	}

	final := concatenated
	// Step 6: mix BGM, if present. A zero volume leaves the primary track
	// bit-identical: skip the mix entirely rather than run it through
	// amix at volume 0, which would still re-encode the dialogue track.
	if shouldMixBGM(vt.BGMRef, vt.BGMVolume) {
		duration, err := probeDuration(ctx, concatenated)
		if err != nil {
			return m.fail(ctx, vt.ChapterID, fmt.Sprintf("probe duration: %v", err))
		}
		bgmPath := filepath.Join(workDir, "bgm.mp3")
		if err := m.blobs.GetFile(ctx, vt.BGMRef, bgmPath); err != nil {
			return m.fail(ctx, vt.ChapterID, fmt.Sprintf("download bgm: %v", err))
		}
		volume := clampBGMVolume(vt.BGMVolume)
		mixed := filepath.Join(workDir, "mixed.mp4")
		if err := mixBGM(ctx, m.logger, concatenated, bgmPath, mixed, volume, duration); err != nil {
			return m.fail(ctx, vt.ChapterID, fmt.Sprintf("mix bgm: %v", err))
		}
		final = mixed
	}

	// Step 7: upload.
	if err := m.videos.AdvanceStage(ctx, vt.ChapterID, domain.VideoUploading, 0.9); err != nil {
		m.logger.Warn("advance video task stage", zap.Error(err))
	}
	chapter, err := m.projects.GetChapter(ctx, vt.ChapterID)
	if err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("load chapter: %v", err))
	}
	mp4Key := blobstore.Key(chapter.ProjectID, "movie", "mp4")
	if err := m.blobs.PutFile(ctx, mp4Key, final, "video/mp4"); err != nil {
		return m.fail(ctx, vt.ChapterID, fmt.Sprintf("upload mp4: %v", err))
	}

	var webmKey string
	webmPath := filepath.Join(workDir, "final.webm")
	if err := transcodeWebM(ctx, m.logger, final, webmPath); err != nil {
		m.logger.Warn("webm transcode failed, mp4 still available", zap.Error(err))
	} else {
		webmKey = blobstore.Key(chapter.ProjectID, "movie", "webm")
		if err := m.blobs.PutFile(ctx, webmKey, webmPath, "video/webm"); err != nil {
			m.logger.Warn("webm upload failed, mp4 still available", zap.Error(err))
			webmKey = ""
		}
	}

	if err := m.videos.Complete(ctx, vt.ChapterID, mp4Key, webmKey); err != nil {
		return fmt.Errorf("complete video task: %w", err)
	}
	return nil
}

// detectFPS implements §4.6 step 3's "majority vote; if split, use
// target fps and re-encode" rule, simplified to: the most common
// probed fps wins ties by first occurrence.
func (m *MovieAssembler) detectFPS(ctx context.Context, clipPaths []string) (float64, error) {
	if len(clipPaths) == 0 {
		return 0, fmt.Errorf("detect fps: no clips to probe")
	}
	counts := make(map[float64]int)
	order := make([]float64, 0, len(clipPaths))
	for _, path := range clipPaths {
		fps, err := probeFPS(ctx, path)
		if err != nil {
			return 0, err
		}
		if counts[fps] == 0 {
			order = append(order, fps)
		}
		counts[fps]++
	}
	best := order[0]
	for _, fps := range order {
		if counts[fps] > counts[best] {
			best = fps
		}
	}
	return best, nil
}

// validateMovieMaterials checks §4.6 step 1's precondition against
// already-loaded shots and transitions: at least 2 shots, exactly
// len(shots)-1 transitions, and every transition completed with a
// video. Split out of Assemble so the boundary is testable without a
// database.
func validateMovieMaterials(shots []domain.Shot, transitions []domain.Transition) error {
	wantTransitions := len(shots) - 1
	if wantTransitions < 1 {
		return domain.NewIncompleteMaterialsError([]string{"fewer than 2 shots; no transitions possible"})
	}
	var missing []string
	if len(transitions) != wantTransitions {
		missing = append(missing, fmt.Sprintf("expected %d transitions, have %d", wantTransitions, len(transitions)))
	}
	for _, t := range transitions {
		if t.Status != domain.TransitionStatusCompleted || t.VideoURL == "" {
			missing = append(missing, fmt.Sprintf("transition %s", t.ID))
		}
	}
	if len(missing) > 0 {
		return domain.NewIncompleteMaterialsError(missing)
	}
	return nil
}

func (m *MovieAssembler) fail(ctx context.Context, chapterID, errMsg string) error {
	if len(errMsg) > maxStderrBytes {
		errMsg = errMsg[:maxStderrBytes]
	}
	if err := m.videos.Fail(ctx, chapterID, errMsg); err != nil {
		m.logger.Error("record video task failure", zap.String("chapter_id", chapterID), zap.Error(err))
	}
	return fmt.Errorf("movie assembly failed: %s", errMsg)
}
