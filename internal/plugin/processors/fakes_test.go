package processors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/model"
	"github.com/sliink/mensura/internal/model/mocks"
	"github.com/sliink/mensura/internal/plugin"
)

// fakeSource stands in for the reader and exposes whatever event the test sets
type fakeSource struct {
	plugin.BasePlugin
	event model.Event
	file  model.File
}

func newFakeSource() *fakeSource {
	return &fakeSource{BasePlugin: plugin.NewBasePlugin("Reader", model.CategoryReader)}
}

func (s *fakeSource) ProcessEvent(model.RunContext) (bool, error) { return true, nil }
func (s *fakeSource) Event() *model.Event                         { return &s.event }
func (s *fakeSource) EventID() model.EventID                      { return s.event.ID }
func (s *fakeSource) Weight() float64                             { return s.event.Weight }
func (s *fakeSource) CurrentFile() model.File                     { return s.file }

func (s *fakeSource) set(run, lumi, event uint64) {
	s.event = model.Event{ID: model.EventID{Run: run, LumiBlock: lumi, Event: event}, Weight: 1}
}

// newRunContext returns a context in which "Reader" resolves to source
func newRunContext(t *testing.T, source model.Plugin) *mocks.MockRunContext {
	ctrl := gomock.NewController(t)
	rc := mocks.NewMockRunContext(ctrl)
	rc.EXPECT().Logger().Return(log.Discard()).AnyTimes()
	rc.EXPECT().DependencyPlugin("Reader").Return(source, nil).AnyTimes()
	return rc
}

func atomicDataset(file string) model.Dataset {
	ds := model.NewDataset("ttbar", model.Generator("Powheg"), "TTbar")
	ds.AddFile(model.File{Name: file, CrossSection: 831.76, EventsProcessed: 1000})
	return ds
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
