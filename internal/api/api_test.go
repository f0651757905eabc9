package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sliink/mensura/internal/core"
	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/metrics"
	"github.com/sliink/mensura/internal/model"
)

// countReader yields a fixed number of events per dataset and fails on one file
type countReader struct {
	events  int
	failOn  string
	current string
	read    int
}

func (r *countReader) Name() string                     { return "Reader" }
func (r *countReader) Category() model.PluginCategory   { return model.CategoryReader }
func (r *countReader) EndRun(rc model.RunContext) error { return nil }

func (r *countReader) BeginRun(rc model.RunContext, ds model.Dataset) error {
	r.current = ds.Files()[0].Name
	r.read = 0
	return nil
}

func (r *countReader) ProcessEvent(rc model.RunContext) (bool, error) {
	if r.current == r.failOn {
		return false, assert.AnError
	}
	if r.read >= r.events {
		return false, nil
	}
	r.read++
	return true, nil
}

type apiFixture struct {
	api     *API
	manager *core.RunManager
}

func newFixture(t *testing.T, failOn string) apiFixture {
	bus := core.NewEventBus()
	monitor := core.NewMonitor(bus)

	ttbar := model.NewDataset("ttbar", model.Generator("Powheg"), "TTbar")
	ttbar.AddFile(model.File{Name: "ttbar_1.mpk"})
	ttbar.AddFile(model.File{Name: "ttbar_2.mpk"})
	data := model.NewDataset("SingleMuon", model.GeneratorUndefined, model.ProcessData)
	data.AddFile(model.File{Name: "muon_1.mpk"})

	m := core.NewRunManager([]model.Dataset{ttbar, data},
		core.WithEventBus(bus), core.WithRunLogger(log.Discard()), core.WithRunIdentifier("run-api"),
		core.WithFailurePolicy(core.PolicyContinue))
	monitor.RegisterComponent(m)
	require.NoError(t, m.RegisterPlugin(func() model.Plugin { return &countReader{events: 4, failOn: failOn} }))

	met := metrics.New(bus, m.Stats)
	return apiFixture{api: NewAPI(m, monitor, met.Handler(), "127.0.0.1", 0), manager: m}
}

func get(t *testing.T, api *API, path string, out interface{}) int {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	api.Handler().ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestAPIBeforeRun(t *testing.T) {
	f := newFixture(t, "")

	t.Run("Datasets are pending", func(t *testing.T) {
		var views []DatasetView
		require.Equal(t, http.StatusOK, get(t, f.api, "/datasets", &views))
		require.Len(t, views, 3)
		for _, v := range views {
			assert.Equal(t, statusPending, v.Status)
			assert.Nil(t, v.Result)
		}
		assert.False(t, views[2].IsMC)
	})

	t.Run("Health is reported", func(t *testing.T) {
		var health model.HealthStatus
		assert.Equal(t, http.StatusOK, get(t, f.api, "/health", &health))
		assert.Contains(t, health.Components, "run_manager")
	})
}

func TestAPIAfterRun(t *testing.T) {
	f := newFixture(t, "ttbar_2.mpk")
	require.Error(t, f.manager.Process(context.Background(), 2))

	t.Run("Status reflects the finished run", func(t *testing.T) {
		var progress model.Progress
		require.Equal(t, http.StatusOK, get(t, f.api, "/status", &progress))
		assert.Equal(t, "run-api", progress.RunID)
		assert.Equal(t, model.StatusError, progress.Status)
		assert.Equal(t, 2, progress.Done)
		assert.Equal(t, 1, progress.Failed)
	})

	t.Run("Health turns unavailable", func(t *testing.T) {
		assert.Equal(t, http.StatusServiceUnavailable, get(t, f.api, "/health", nil))
	})

	t.Run("Datasets can be filtered by status", func(t *testing.T) {
		var views []DatasetView
		require.Equal(t, http.StatusOK, get(t, f.api, "/datasets?status=failed", &views))
		require.Len(t, views, 1)
		assert.Equal(t, "ttbar_2.mpk", views[0].File)
		require.NotNil(t, views[0].Result)
		assert.NotEmpty(t, views[0].Result.Error)
	})

	t.Run("Datasets can be looked up by ID", func(t *testing.T) {
		var views []DatasetView
		require.Equal(t, http.StatusOK, get(t, f.api, "/datasets/ttbar", &views))
		assert.Len(t, views, 2)

		assert.Equal(t, http.StatusNotFound, get(t, f.api, "/datasets/wjets", nil))
	})

	t.Run("Plugins report efficiency", func(t *testing.T) {
		var views []PluginView
		require.Equal(t, http.StatusOK, get(t, f.api, "/plugins", &views))
		require.Len(t, views, 1)
		assert.Equal(t, "Reader", views[0].Plugin)
		// 8 events plus the failing call, which counts as a visit
		assert.Equal(t, uint64(9), views[0].Visited)
		assert.InDelta(t, 8.0/9.0, views[0].Efficiency, 1e-9)
	})

	t.Run("Workers and summary are served", func(t *testing.T) {
		var workers []core.WorkerStat
		require.Equal(t, http.StatusOK, get(t, f.api, "/workers", &workers))
		assert.Len(t, workers, 2)

		var summary core.Summary
		require.Equal(t, http.StatusOK, get(t, f.api, "/summary", &summary))
		assert.Equal(t, int64(8), summary.Events)
	})

	t.Run("Metrics are exposed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `mensura_datasets_total{status="failed"} 1`)
	})

	t.Run("Stop without Start does nothing", func(t *testing.T) {
		assert.NoError(t, f.api.Stop(context.Background()))
	})
}
