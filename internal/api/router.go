package api

import (
	"github.com/gin-gonic/gin"

	"github.com/diviora/ingest/internal/api/handler"
	"github.com/diviora/ingest/internal/api/middleware"
	"github.com/diviora/ingest/internal/logger"
	"github.com/diviora/ingest/internal/service"
)

// RouterConfig holds router-level settings.
type RouterConfig struct {
	Mode string
	CORS middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	ingestionService *service.IngestionService,
	log *logger.Logger,
	cfg *RouterConfig,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler()
	ingestionHandler := handler.NewIngestionHandler(ingestionService)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Uploads
		v1.POST("/upload", ingestionHandler.UploadCSV)

		// Data sources
		v1.POST("/sources", ingestionHandler.CreateDataSource)
		v1.GET("/sources", ingestionHandler.ListDataSources)
		v1.POST("/sources/:id/ingest", ingestionHandler.TriggerIngestion)
		v1.GET("/sources/:id/tables", ingestionHandler.DiscoverTables)
		v1.GET("/sources/:id/jobs", ingestionHandler.ListJobs)

		// Jobs
		v1.GET("/jobs/:id", ingestionHandler.GetJob)
		v1.GET("/jobs/:id/data", ingestionHandler.GetProcessedData)
		v1.GET("/jobs/:id/download", ingestionHandler.DownloadFile)
	}

	return r
}
