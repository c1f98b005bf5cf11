package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"crisim/internal/model"
)

// MemoryStore keeps encoded records so callers never share slices with it.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	networks    map[string][]byte
	traces      map[string][]byte
	summaries   map[string]model.TraceSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.networks = make(map[string][]byte)
	s.traces = make(map[string][]byte)
	s.summaries = make(map[string]model.TraceSummary)
	return nil
}

func (s *MemoryStore) checkInit() error {
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (s *MemoryStore) SaveNetwork(_ context.Context, spec model.NetworkSpec) error {
	payload, err := EncodeNetwork(spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}
	s.networks[spec.ID] = payload
	return nil
}

func (s *MemoryStore) GetNetwork(_ context.Context, id string) (model.NetworkSpec, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkInit(); err != nil {
		return model.NetworkSpec{}, false, err
	}
	payload, ok := s.networks[id]
	if !ok {
		return model.NetworkSpec{}, false, nil
	}
	spec, err := DecodeNetwork(payload)
	if err != nil {
		return model.NetworkSpec{}, false, fmt.Errorf("decode network %s: %w", id, err)
	}
	return spec, true, nil
}

func (s *MemoryStore) SaveTrace(_ context.Context, trace model.Trace) error {
	payload, err := EncodeTrace(trace)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}
	s.traces[trace.ID] = payload
	s.summaries[trace.ID] = Summarize(trace)
	return nil
}

func (s *MemoryStore) GetTrace(_ context.Context, id string) (model.Trace, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkInit(); err != nil {
		return model.Trace{}, false, err
	}
	payload, ok := s.traces[id]
	if !ok {
		return model.Trace{}, false, nil
	}
	trace, err := DecodeTrace(payload)
	if err != nil {
		return model.Trace{}, false, fmt.Errorf("decode trace %s: %w", id, err)
	}
	return trace, true, nil
}

func (s *MemoryStore) ListTraces(_ context.Context, networkID string) ([]model.TraceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkInit(); err != nil {
		return nil, err
	}
	out := make([]model.TraceSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		if networkID != "" && summary.NetworkID != networkID {
			continue
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC != out[j].CreatedAtUTC {
			return out[i].CreatedAtUTC < out[j].CreatedAtUTC
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteTrace(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInit(); err != nil {
		return err
	}
	if _, ok := s.traces[id]; !ok {
		return fmt.Errorf("%w: trace %s", ErrNotFound, id)
	}
	delete(s.traces, id)
	delete(s.summaries, id)
	return nil
}
