package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sliink/mensura/internal/log"
	"github.com/sliink/mensura/internal/model"
)

// callLog records lifecycle calls in order
type callLog struct {
	calls []string
	mutex sync.Mutex
}

func (l *callLog) add(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) list() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.calls...)
}

// fakeReader yields a fixed number of events per input file
type fakeReader struct {
	name      string
	perFile   map[string]int
	fallback  int
	remaining int
	index     int
	read      int
	datasets  int
	log       *callLog
	beginErr  error
}

func newFakeReader(name string, fallback int, perFile map[string]int, log *callLog) model.PluginFactory {
	return func() model.Plugin {
		return &fakeReader{name: name, fallback: fallback, perFile: perFile, log: log}
	}
}

func (r *fakeReader) Name() string                   { return r.name }
func (r *fakeReader) Category() model.PluginCategory { return model.CategoryReader }

func (r *fakeReader) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	r.log.add("begin:%s", r.name)
	if r.beginErr != nil {
		return r.beginErr
	}

	r.remaining = 0
	for _, f := range dataset.Files() {
		if n, ok := r.perFile[f.Name]; ok {
			r.remaining += n
		} else {
			r.remaining += r.fallback
		}
	}
	r.index = -1
	r.datasets++
	return nil
}

func (r *fakeReader) ProcessEvent(rc model.RunContext) (bool, error) {
	if r.remaining == 0 {
		return false, nil
	}
	r.remaining--
	r.index++
	r.read++
	return true, nil
}

func (r *fakeReader) EndRun(rc model.RunContext) error {
	r.log.add("end:%s", r.name)
	return nil
}

func (r *fakeReader) EventID() model.EventID {
	return model.EventID{Run: 1, LumiBlock: 1, Event: uint64(r.index)}
}

// fakeFilter passes events according to a predicate on the event number of the reader
type fakeFilter struct {
	name      string
	source    string
	pass      func(event uint64) bool
	reader    model.EventIDSource
	calls     int
	log       *callLog
	beginErr  error
	eventErr  error
	panicWith interface{}
	endErr    error
}

func (f *fakeFilter) Name() string                   { return f.name }
func (f *fakeFilter) Category() model.PluginCategory { return model.CategoryAnalysis }

func (f *fakeFilter) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	f.log.add("begin:%s", f.name)
	if f.beginErr != nil {
		return f.beginErr
	}
	if f.source == "" {
		return nil
	}

	reader, err := model.DependencyAs[model.EventIDSource](rc, f.source)
	if err != nil {
		return err
	}
	f.reader = reader
	return nil
}

func (f *fakeFilter) ProcessEvent(rc model.RunContext) (bool, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.eventErr != nil {
		return false, f.eventErr
	}
	if f.pass == nil || f.reader == nil {
		return true, nil
	}
	return f.pass(f.reader.EventID().Event), nil
}

func (f *fakeFilter) EndRun(rc model.RunContext) error {
	f.log.add("end:%s", f.name)
	return f.endErr
}

// fakeService records its lifecycle
type fakeService struct {
	name     string
	log      *callLog
	beginErr error
	begun    int
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) BeginRun(rc model.RunContext, dataset model.Dataset) error {
	s.log.add("begin:%s", s.name)
	s.begun++
	return s.beginErr
}

func (s *fakeService) EndRun(rc model.RunContext) error {
	s.log.add("end:%s", s.name)
	if rc.Failed() {
		s.log.add("failed:%s", s.name)
	}
	return nil
}

func filterFactory(f fakeFilter) model.PluginFactory {
	return func() model.Plugin {
		c := f
		return &c
	}
}

func serviceFactory(s fakeService) model.ServiceFactory {
	return func() model.Service {
		c := s
		return &c
	}
}

func atomicDataset(id string, files ...string) model.Dataset {
	ds := model.NewDataset(id, "MadGraph", "TTbar")
	for _, f := range files {
		ds.AddFile(model.File{Name: f, CrossSection: 1, EventsProcessed: 100})
	}
	return ds
}

func newTestProcessor() *Processor {
	return NewProcessor(WithLogger(log.Discard()), WithRunID("test-run"))
}

var errBoom = errors.New("boom")
