package cache

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/annofrag/internal/model"
)

// Reports stores render reports as JSON in an underlying cache
type Reports struct {
	backend Cache
}

func NewReports(backend Cache) *Reports {
	return &Reports{backend: backend}
}

// Get returns the report under key marked as cached, and the layer that
// served it when the backend is layered. An unreadable entry is deleted and
// reported as an error so the caller renders afresh.
func (r *Reports) Get(key string) (*model.RenderReport, Layer, error) {
	data, layer := r.lookup(key)
	if layer == LayerNone {
		return nil, LayerNone, nil
	}
	var report model.RenderReport
	if err := json.Unmarshal(data, &report); err != nil {
		_ = r.backend.Delete(key)
		return nil, LayerNone, fmt.Errorf("unreadable entry %s: %w", key, err)
	}
	report.Cached = true
	return &report, layer, nil
}

// Put stores report under key with the backend's default ttl
func (r *Reports) Put(key string, report *model.RenderReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return r.backend.Set(key, data, 0)
}

func (r *Reports) lookup(key string) ([]byte, Layer) {
	if l, ok := r.backend.(*LayeredCache); ok {
		return l.Lookup(key)
	}
	data, found := r.backend.Get(key)
	if !found {
		return nil, LayerNone
	}
	return data, LayerMemory
}
