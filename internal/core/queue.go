package core

import (
	"sync"

	"github.com/sliink/mensura/internal/model"
)

// DatasetQueue is the FIFO of atomic datasets shared by all workers of a run
type DatasetQueue struct {
	datasets []model.Dataset
	popped   int
	mutex    sync.Mutex
}

// NewDatasetQueue splits every dataset into one atomic dataset per file and enqueues them
// in input order
func NewDatasetQueue(datasets []model.Dataset) *DatasetQueue {
	q := &DatasetQueue{}
	for _, ds := range datasets {
		q.datasets = append(q.datasets, ds.Atomize()...)
	}
	return q
}

// Push appends atomic datasets to the queue
func (q *DatasetQueue) Push(datasets ...model.Dataset) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.datasets = append(q.datasets, datasets...)
}

// Pop removes the first dataset. The boolean is false when the queue is empty.
func (q *DatasetQueue) Pop() (model.Dataset, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.datasets) == 0 {
		return model.Dataset{}, false
	}

	ds := q.datasets[0]
	q.datasets[0] = model.Dataset{}
	q.datasets = q.datasets[1:]
	q.popped++
	return ds, true
}

// Drain removes and returns all remaining datasets
func (q *DatasetQueue) Drain() []model.Dataset {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	rest := q.datasets
	q.datasets = nil
	return rest
}

// Len returns the number of datasets waiting in the queue
func (q *DatasetQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.datasets)
}

// Popped returns how many datasets have been taken from the queue
func (q *DatasetQueue) Popped() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.popped
}

// Snapshot returns a copy of the waiting datasets
func (q *DatasetQueue) Snapshot() []model.Dataset {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return append([]model.Dataset(nil), q.datasets...)
}
