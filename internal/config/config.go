// Package config binds the process configuration named in spec §6's
// external interface from environment variables, loaded the way the teacher's
// cmd/api/main.go loadConfig does (godotenv first, then envconfig).
package config

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/queue"
)

// Config is the process-wide configuration, assembled once at startup and
// passed down explicitly rather than read from package-global state
// (spec §9: "global mutable state is limited to process-wide singletons
// wired once at startup").
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Port        string `envconfig:"PORT" default:"8080"`

	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	QueueURL    string `envconfig:"QUEUE_URL" required:"true"`

	BlobBucket   string `envconfig:"BLOB_BUCKET" required:"true"`
	BlobRegion   string `envconfig:"BLOB_REGION" default:"us-east-1"`
	BlobEndpoint string `envconfig:"BLOB_ENDPOINT"` // optional: S3-compatible endpoint override

	JobTable        string `envconfig:"JOB_TABLE" default:"core-jobs"`
	TaskTable       string `envconfig:"TASK_TABLE" default:"core-tasks"`
	TaskJobIDIndex  string `envconfig:"TASK_JOB_ID_INDEX" default:"job_id-index"`
	VideoTaskTable  string `envconfig:"VIDEOTASK_TABLE" default:"core-video-tasks"`

	RedisAddr string `envconfig:"REDIS_ADDR"` // optional redis:// URL; enables the distributed semaphore when set

	FFmpegPath string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`

	WorkerConcurrencyText         int `envconfig:"WORKER_CONCURRENCY_TEXT" default:"3"`
	WorkerConcurrencyImage        int `envconfig:"WORKER_CONCURRENCY_IMAGE" default:"5"`
	WorkerConcurrencyTTS          int `envconfig:"WORKER_CONCURRENCY_TTS" default:"5"`
	WorkerConcurrencyVideoSubmit  int `envconfig:"WORKER_CONCURRENCY_VIDEO_SUBMIT" default:"5"`
	WorkerConcurrencyVideoPoll    int `envconfig:"WORKER_CONCURRENCY_VIDEO_POLL" default:"0"` // 0 -> domain.DefaultConcurrencyCaps sentinel
	WorkerConcurrencyAssembly     int `envconfig:"WORKER_CONCURRENCY_ASSEMBLY" default:"1"`
}

// Load mirrors the teacher's loadConfig: try a handful of .env paths
// relative to the working directory, then bind envconfig on top of
// whatever the process environment already has.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("warning: could not determine working directory: %v", err)
		wd = "."
	}

	envPaths := []string{".env.local", ".env", filepath.Join(wd, ".env.local"), filepath.Join(wd, ".env")}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment variables: %w", err)
	}
	return &cfg, nil
}

// ConcurrencyCaps assembles the per-capacity-kind worker pool sizes
// (§4.4), falling back to domain.DefaultConcurrencyCaps for any kind left
// at its zero value.
func (c *Config) ConcurrencyCaps() map[domain.CapacityKind]int {
	caps := map[domain.CapacityKind]int{
		domain.CapacityText:     c.WorkerConcurrencyText,
		domain.CapacityImage:    c.WorkerConcurrencyImage,
		domain.CapacityTTS:      c.WorkerConcurrencyTTS,
		domain.CapacityVideoSub: c.WorkerConcurrencyVideoSubmit,
		domain.CapacityVideoPol: c.WorkerConcurrencyVideoPoll,
		domain.CapacityAssembly: c.WorkerConcurrencyAssembly,
	}
	for kind, n := range caps {
		if n <= 0 {
			caps[kind] = domain.DefaultConcurrencyCaps[kind]
		}
	}
	return caps
}

// QueueURLs resolves QUEUE_URL into the per-capacity-kind queue URLs the
// Executor and worker pool route enqueue/receive calls through.
func (c *Config) QueueURLs() map[domain.CapacityKind]string {
	return queue.AllQueueURLs(c.QueueURL)
}

// CheckFFmpeg verifies the ffmpeg binary named by FFMPEG_PATH is
// reachable, the way the teacher's checkDependencies does for the
// hardcoded "ffmpeg" lookup.
func (c *Config) CheckFFmpeg() error {
	if _, err := exec.LookPath(c.FFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", c.FFmpegPath, err)
	}
	return nil
}
