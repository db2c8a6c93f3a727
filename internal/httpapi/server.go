// Package httpapi is the operational HTTP control surface §6's `serve`
// command exposes: submit/query/cancel Job, health, the generation
// history browse/restore endpoints, and an SSE progress stream. It is
// not a public user-facing REST product surface (§1 excludes that); it
// is the same shape of controller the teacher's internal/api package
// is, generalized from a single-job-per-request video generator to the
// Job/Task/Chapter pipeline this spec describes.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/executor"
	"github.com/sceneforge/core/internal/repository"
	"github.com/sceneforge/core/internal/taskstore"
)

// maxJobSubmitBodyBytes bounds the POST /jobs request body; job submit
// requests are small JSON documents, never file uploads.
const maxJobSubmitBodyBytes = 64 * 1024

// Config holds everything the serve command needs to construct the
// HTTP control surface, mirroring the teacher's ServerConfig shape.
type Config struct {
	Port        string
	Environment string // "production" disables gin debug mode and swagger
	Logger      *zap.Logger

	Jobs      *taskstore.JobStore
	Tasks     *taskstore.TaskStore
	VideoJobs *taskstore.VideoTaskStore
	Artifacts *repository.ArtifactRepository
	Projects  *repository.ProjectRepository
	Executor  *executor.JobExecutor

	AllowedOrigins []string
}

// Server wraps the gin engine the way the teacher's Server does.
type Server struct {
	config *Config
	router *gin.Engine
}

func NewServer(config *Config) *Server {
	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(config.Logger))

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{config: config, router: router}
	s.setupRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	health := newHealthHandler(s.config.Jobs, s.config.Tasks, s.config.VideoJobs, s.config.Artifacts, s.config.Projects, s.config.Logger)
	s.router.GET("/health", health.Check)
	s.router.HEAD("/health", health.Check)

	if s.config.Environment != "production" {
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	jobs := newJobsHandler(s.config.Executor, s.config.Jobs, s.config.Logger)
	history := newHistoryHandler(s.config.Artifacts, s.config.Logger)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/jobs", maxRequestBodySize(maxJobSubmitBodyBytes), jobs.Submit)
		v1.GET("/jobs/:id", jobs.Get)
		v1.POST("/jobs/:id/cancel", jobs.Cancel)
		v1.GET("/jobs/:id/stream", jobs.Stream)

		v1.GET("/artifacts/:type/:id/history", history.List)
		v1.POST("/artifacts/:type/:id/history/:entry_id/select", history.Select)
	}
}
