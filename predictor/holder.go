package predictor

import (
	"log"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

type loadResult struct {
	model Classifier
	err   error
}

// ModelHolder lazily loads a classifier once per process. Concurrent first
// callers share one load attempt; the result, success or failure, is kept
// and later reads take no lock.
type ModelHolder struct {
	load  func() (Classifier, error)
	group singleflight.Group
	state atomic.Pointer[loadResult]
}

func NewModelHolder(load func() (Classifier, error)) *ModelHolder {
	return &ModelHolder{load: load}
}

// NewFileModelHolder loads the artifact at path on first use.
func NewFileModelHolder(path string) *ModelHolder {
	return NewModelHolder(func() (Classifier, error) { return LoadModelFile(path) })
}

// Get returns the loaded model, loading it on first call. A load error is
// cached and returned until Reset.
func (h *ModelHolder) Get() (Classifier, error) {
	if r := h.state.Load(); r != nil {
		return r.model, r.err
	}
	v, _, _ := h.group.Do("model", func() (any, error) {
		if r := h.state.Load(); r != nil {
			return r, nil
		}
		m, err := h.load()
		r := &loadResult{model: m, err: err}
		if err != nil {
			log.Printf("predictor: model load failed, serving fallback heuristic until reset: %v", err)
		} else {
			log.Printf("predictor: model loaded")
		}
		h.state.Store(r)
		return r, nil
	})
	r := v.(*loadResult)
	return r.model, r.err
}

// Reset drops the cached model or load error so the next Get reloads.
func (h *ModelHolder) Reset() {
	h.state.Store(nil)
}
