package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sliink/mensura/internal/core"
	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/model"
)

// Run is the part of the run manager the API reports on
type Run interface {
	Summary() core.Summary
	Datasets() []model.Dataset
}

// API is the read-only HTTP status API of a run
type API struct {
	run     Run
	monitor *core.Monitor
	metrics http.Handler
	router  *gin.Engine
	server  *http.Server
	logger  *slog.Logger
	port    int
	host    string
}

// NewAPI creates a new API instance. metrics may be nil, in which case /metrics is not served.
func NewAPI(run Run, monitor *core.Monitor, metrics http.Handler, host string, port int) *API {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	api := &API{
		run:     run,
		monitor: monitor,
		metrics: metrics,
		router:  router,
		logger:  log.WithComponent(nil, "api"),
		port:    port,
		host:    host,
	}
	router.Use(gin.Recovery(), api.requestLogger())

	api.setupRoutes()
	return api
}

// setupRoutes configures all the API routes
func (a *API) setupRoutes() {
	a.router.GET("/health", a.healthCheck)
	a.router.GET("/status", a.getStatus)
	a.router.GET("/summary", a.getSummary)

	datasets := a.router.Group("/datasets")
	{
		datasets.GET("", a.getDatasets)
		datasets.GET("/:id", a.getDatasetByID)
	}

	a.router.GET("/plugins", a.getPlugins)
	a.router.GET("/workers", a.getWorkers)

	if a.metrics != nil {
		a.router.GET("/metrics", gin.WrapH(a.metrics))
	}
}

// Handler returns the HTTP handler of the API
func (a *API) Handler() http.Handler {
	return a.router
}

// Start serves the API until Stop is called
func (a *API) Start() error {
	addr := fmt.Sprintf("%s:%d", a.host, a.port)
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.logger.Info("Status API listening", "addr", addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the API server
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug("Request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// healthCheck reports component health; 503 when a component is in error
func (a *API) healthCheck(c *gin.Context) {
	health := a.monitor.Health()
	code := http.StatusOK
	if health.Status == model.StatusError {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

func (a *API) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, a.monitor.Progress())
}

func (a *API) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, a.run.Summary())
}

// DatasetView is one atomic dataset together with its result, if any
type DatasetView struct {
	ID      string               `json:"id"`
	File    string               `json:"file"`
	Process model.Process        `json:"process"`
	IsMC    bool                 `json:"is_mc"`
	Status  model.DatasetStatus  `json:"status"`
	Result  *model.DatasetResult `json:"result,omitempty"`
}

const statusPending model.DatasetStatus = "pending"

// datasetViews joins the atomic datasets with the recorded results
func (a *API) datasetViews() []DatasetView {
	results := make(map[string]model.DatasetResult)
	for _, r := range a.monitor.Results() {
		results[r.File] = r
	}

	datasets := a.run.Datasets()
	views := make([]DatasetView, 0, len(datasets))
	for _, ds := range datasets {
		file := ds.Files()[0].Name
		view := DatasetView{
			ID:      ds.ID,
			File:    file,
			Process: ds.Process(),
			IsMC:    ds.IsMC(),
			Status:  statusPending,
		}
		if r, ok := results[file]; ok {
			view.Status = r.Status
			view.Result = &r
		}
		views = append(views, view)
	}
	return views
}

// getDatasets lists atomic datasets, optionally filtered with ?status=
func (a *API) getDatasets(c *gin.Context) {
	status := model.DatasetStatus(c.Query("status"))

	views := a.datasetViews()
	if status != "" {
		filtered := views[:0]
		for _, v := range views {
			if v.Status == status {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	c.JSON(http.StatusOK, views)
}

// getDatasetByID lists the atomic datasets built from one dataset
func (a *API) getDatasetByID(c *gin.Context) {
	id := c.Param("id")

	var views []DatasetView
	for _, v := range a.datasetViews() {
		if v.ID == id {
			views = append(views, v)
		}
	}
	if len(views) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}
	c.JSON(http.StatusOK, views)
}

// PluginView is the counters of one plugin summed over workers
type PluginView struct {
	model.PluginStat
	Position   int     `json:"position"`
	Efficiency float64 `json:"efficiency"`
}

func (a *API) getPlugins(c *gin.Context) {
	stats := a.run.Summary().Plugins
	views := make([]PluginView, len(stats))
	for i, stat := range stats {
		views[i] = PluginView{PluginStat: stat, Position: i}
		if stat.Visited > 0 {
			views[i].Efficiency = float64(stat.Passed) / float64(stat.Visited)
		}
	}
	c.JSON(http.StatusOK, views)
}

func (a *API) getWorkers(c *gin.Context) {
	c.JSON(http.StatusOK, a.run.Summary().Workers)
}
