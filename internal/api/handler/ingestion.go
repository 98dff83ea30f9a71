package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/diviora/ingest/internal/api/middleware"
	"github.com/diviora/ingest/internal/domain"
	"github.com/diviora/ingest/internal/service"
)

// maxUploadBytes bounds accepted CSV uploads (50 MB).
const maxUploadBytes = 50 << 20

// IngestionHandler handles upload, source, job, and processed-data endpoints.
type IngestionHandler struct {
	ingestion *service.IngestionService
}

// NewIngestionHandler creates a new ingestion handler.
func NewIngestionHandler(ingestion *service.IngestionService) *IngestionHandler {
	return &IngestionHandler{ingestion: ingestion}
}

// UploadCSV handles POST /api/v1/upload. It accepts a multipart form with a
// "file" field, stores the file, and queues an ingestion job.
func (h *IngestionHandler) UploadCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}
	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only CSV files are supported"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	result, err := h.ingestion.ProcessCSVUpload(c.Request.Context(), filepath.Base(fileHeader.Filename), data)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to process CSV upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process upload: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, result)
}

// CreateDataSource handles POST /api/v1/sources.
func (h *IngestionHandler) CreateDataSource(c *gin.Context) {
	var req struct {
		Name          string              `json:"name" binding:"required"`
		Type          string              `json:"type" binding:"required"`
		Configuration domain.SourceConfig `json:"configuration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	srcType := domain.SourceType(strings.ToLower(req.Type))
	switch srcType {
	case domain.SourceTypeCSV, domain.SourceTypeSQL, domain.SourceTypeAPI:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported source type: " + req.Type})
		return
	}

	src := &domain.DataSource{
		Name:          req.Name,
		Type:          srcType,
		Configuration: req.Configuration,
		IsActive:      true,
	}
	if err := h.ingestion.CreateDataSource(c.Request.Context(), src); err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to create data source")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create data source"})
		return
	}

	c.JSON(http.StatusCreated, src)
}

// ListDataSources handles GET /api/v1/sources.
func (h *IngestionHandler) ListDataSources(c *gin.Context) {
	sources, err := h.ingestion.ListDataSources(c.Request.Context())
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list data sources")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list data sources"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sources})
}

// TriggerIngestion handles POST /api/v1/sources/:id/ingest.
func (h *IngestionHandler) TriggerIngestion(c *gin.Context) {
	sourceID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	job, err := h.ingestion.TriggerIngestion(c.Request.Context(), sourceID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to trigger ingestion")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger ingestion: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// DiscoverTables handles GET /api/v1/sources/:id/tables.
func (h *IngestionHandler) DiscoverTables(c *gin.Context) {
	sourceID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	tables, err := h.ingestion.DiscoverTables(c.Request.Context(), sourceID)
	if err != nil {
		if errors.Is(err, service.ErrSourceNotSQL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to discover tables")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// ListJobs handles GET /api/v1/sources/:id/jobs.
func (h *IngestionHandler) ListJobs(c *gin.Context) {
	sourceID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	jobs, err := h.ingestion.ListJobsForSource(c.Request.Context(), sourceID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": jobs})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *IngestionHandler) GetJob(c *gin.Context) {
	jobID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	job, err := h.ingestion.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetProcessedData handles GET /api/v1/jobs/:id/data.
func (h *IngestionHandler) GetProcessedData(c *gin.Context) {
	jobID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	result, err := h.ingestion.GetProcessedData(c.Request.Context(), jobID, page, limit)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to load processed data")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load processed data"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// DownloadFile handles GET /api/v1/jobs/:id/download, streaming back the
// originally uploaded file.
func (h *IngestionHandler) DownloadFile(c *gin.Context) {
	jobID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	fileName, data, err := h.ingestion.DownloadOriginalFile(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	c.Data(http.StatusOK, "text/csv", data)
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " parameter"})
		return 0, false
	}
	return uint(id), true
}
