package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/plugin"
)

func TestEventWeight(t *testing.T) {
	source := newFakeSource()
	rc := newRunContext(t, source)

	t.Run("Simulation is normalised to the luminosity", func(t *testing.T) {
		ds := model.NewDataset("ttbar", model.Generator("Powheg"), "TTbar")
		ds.AddFile(model.File{Name: "ttbar_1.mpk", CrossSection: 800, EventsProcessed: 1000, MeanWeight: 2})
		source.file = ds.Files()[0]

		w := NewEventWeight("Weight", "Reader", 10)
		require.NoError(t, w.BeginRun(rc, ds))

		source.event.Weight = -1
		pass, err := w.ProcessEvent(rc)
		require.NoError(t, err)
		assert.True(t, pass)
		// 800 pb * 10 /pb / (1000 * 2) * -1
		assert.InDelta(t, -4.0, w.Weight(), 1e-12)

		t.Run("and follows the input file", func(t *testing.T) {
			source.file = model.File{Name: "ttbar_2.mpk", CrossSection: 800, EventsProcessed: 4000, MeanWeight: 1}
			source.event.Weight = 1
			_, err := w.ProcessEvent(rc)
			require.NoError(t, err)
			assert.InDelta(t, 2.0, w.Weight(), 1e-12)
		})
	})

	t.Run("Collision data has unit weight", func(t *testing.T) {
		ds := model.NewDataset("SingleMuon", model.GeneratorUndefined, model.ProcessData)
		ds.AddFile(model.File{Name: "data.mpk"})

		w := NewEventWeight("Weight", "Reader", 10)
		require.NoError(t, w.BeginRun(rc, ds))

		source.event.Weight = 3
		pass, err := w.ProcessEvent(rc)
		require.NoError(t, err)
		assert.True(t, pass)
		assert.Equal(t, 1.0, w.Weight())
	})

	t.Run("Files without normalisation fail", func(t *testing.T) {
		ds := model.NewDataset("ttbar", model.Generator("Powheg"), "TTbar")
		ds.AddFile(model.File{Name: "broken.mpk", CrossSection: 800})
		source.file = ds.Files()[0]

		w := NewEventWeight("Weight", "Reader", 10)
		require.NoError(t, w.BeginRun(rc, ds))
		_, err := w.ProcessEvent(rc)
		assert.ErrorContains(t, err, "broken.mpk")
	})

	t.Run("Creator rejects a non-positive luminosity", func(t *testing.T) {
		_, err := NewEventWeightCreator()("Weight", plugin.Options{"luminosity": 0}, plugin.Env{})
		assert.Error(t, err)

		factory, err := NewEventWeightCreator()("Weight", plugin.Options{"luminosity": 35900}, plugin.Env{})
		require.NoError(t, err)
		assert.Equal(t, 35900.0, factory().(*EventWeight).luminosity)
	})
}
