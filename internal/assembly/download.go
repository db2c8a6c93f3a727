// Package assembly implements the Video Assembly Engine (§4.6): the
// FFmpeg-driven movie and narrative composition pipelines, grounded on
// the teacher's internal/api/handlers/video_processing.go and
// generate_async.go ffmpeg subprocess patterns.
package assembly

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/blobstore"
	"github.com/sceneforge/core/internal/concurrency"
)

// maxParallelDownloads bounds clip/asset downloads per §4.6 step 2: "bounded to 5".
const maxParallelDownloads = 5

// downloadJob is one blob-store key to stage onto local disk before
// ffmpeg can touch it.
type downloadJob struct {
	key     string
	index   int
	destDir string
}

// downloadAll fetches every key in order, bounded to maxParallelDownloads
// concurrent transfers, and returns local file paths in the same order
// as the input keys. A failure on any key aborts the whole batch, the
// Video Assembly Engine's "no partial upload" failure contract.
func downloadAll(ctx context.Context, blobs *blobstore.Gateway, keys []string, destDir, ext string, logger *zap.Logger) ([]string, error) {
	paths := make([]string, len(keys))
	sem := concurrency.NewSemaphore(maxParallelDownloads)

	errCh := make(chan error, len(keys))
	for i, key := range keys {
		if err := sem.Acquire(ctx); err != nil {
			return nil, err
		}
		go func(i int, key string) {
			defer sem.Release()
			path := filepath.Join(destDir, fmt.Sprintf("%04d.%s", i, ext))
			if err := blobs.GetFile(ctx, key, path); err != nil {
				logger.Error("download clip", zap.String("key", key), zap.Error(err))
				errCh <- fmt.Errorf("download %s: %w", key, err)
				return
			}
			paths[i] = path
			errCh <- nil
		}(i, key)
	}

	for range keys {
		if err := <-errCh; err != nil {
			return nil, err
		}
	}
	return paths, nil
}
