// Package zonestore provides the zone sources used by the density engine.
package zonestore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

// Static is an in-memory zone set.
type Static struct {
	mu    sync.RWMutex
	zones []model.Zone
}

func NewStatic(zones ...model.Zone) *Static {
	return &Static{zones: append([]model.Zone(nil), zones...)}
}

func (s *Static) ListZones(context.Context) ([]model.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Zone(nil), s.zones...), nil
}

func (s *Static) Get(id string) (model.Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.zones, id)
}

// Set replaces the zone set after validating every zone.
func (s *Static) Set(zones []model.Zone) error {
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = append([]model.Zone(nil), zones...)
	return nil
}

// FileStore serves zones decoded from a GeoJSON file. A failed Reload keeps
// the previously loaded set.
type FileStore struct {
	path string

	mu       sync.RWMutex
	zones    []model.Zone
	loadedAt time.Time
}

func NewFileStore(path string) (*FileStore, error) {
	f := &FileStore{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileStore) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read zones file: %w", err)
	}
	zones, err := Decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.zones = zones
	f.loadedAt = time.Now()
	f.mu.Unlock()

	log.Info().Str("file", f.path).Int("zones", len(zones)).Msg("zones loaded")
	return nil
}

func (f *FileStore) ListZones(context.Context) ([]model.Zone, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.Zone(nil), f.zones...), nil
}

func (f *FileStore) Get(id string) (model.Zone, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return find(f.zones, id)
}

func (f *FileStore) LoadedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadedAt
}

func find(zones []model.Zone, id string) (model.Zone, bool) {
	for _, z := range zones {
		if z.ID == id {
			return z, true
		}
	}
	return model.Zone{}, false
}
