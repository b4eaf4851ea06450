package zonestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/entities"
)

func TestDecode_SampleFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "config", "zones.geojson"))
	require.NoError(t, err)

	zones, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, zones, 3)

	assert.Equal(t, "main-stage", zones[0].ID)
	assert.Equal(t, "Main Stage", zones[0].Name)
	assert.Equal(t, 1000, zones[0].Capacity)
	assert.Equal(t, 3, zones[0].RiskLevel)
	assert.Equal(t, 750, zones[2].Capacity, "maxCapacity is accepted")
	assert.Equal(t, SeedZones()[1].Ring(), zones[1].Ring())
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json": `{`,
		"point geometry": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"id":"a","capacity":10},"geometry":{"type":"Point","coordinates":[0,0]}}]}`,
		"zero capacity": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"id":"a","capacity":0},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]}}]}`,
		"open ring": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"id":"a","capacity":5},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0]]]}}]}`,
		"missing id": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"capacity":5},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]}}]}`,
		"duplicate id": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"id":"a","capacity":5},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]}},
			{"type":"Feature","properties":{"id":"a","capacity":5},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]}}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, entities.ErrInvalidZone)
		})
	}
}

func TestDecode_Defaults(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"gate","properties":{"capacity":20},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[0,0]]]}}]}`
	zones, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "gate", zones[0].ID)
	assert.Equal(t, "gate", zones[0].Name)
	assert.Equal(t, defaultRiskLevel, zones[0].RiskLevel)
}

func TestEncodeDecode_SeedZones(t *testing.T) {
	data, err := Encode(SeedZones())
	require.NoError(t, err)
	zones, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, SeedZones(), zones)
}

func TestFileStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.geojson")
	data, err := Encode(SeedZones()[:1])
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	zones, err := fs.ListZones(context.Background())
	require.NoError(t, err)
	assert.Len(t, zones, 1)
	assert.False(t, fs.LoadedAt().IsZero())

	data, err = Encode(SeedZones())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, fs.Reload())
	zones, _ = fs.ListZones(context.Background())
	assert.Len(t, zones, 3)

	z, ok := fs.Get("food-court")
	require.True(t, ok)
	assert.Equal(t, 500, z.Capacity)

	// a broken file keeps the last good set
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	require.Error(t, fs.Reload())
	zones, _ = fs.ListZones(context.Background())
	assert.Len(t, zones, 3)
}

func TestNewFileStore_Missing(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope.geojson"))
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := NewStatic(SeedZones()...)
	zones, err := s.ListZones(context.Background())
	require.NoError(t, err)
	assert.Len(t, zones, 3)

	_, ok := s.Get("nowhere")
	assert.False(t, ok)

	assert.Error(t, s.Set([]model.Zone{{ID: "bad"}}))
	require.NoError(t, s.Set(SeedZones()[:2]))
	zones, _ = s.ListZones(context.Background())
	assert.Len(t, zones, 2)
}
