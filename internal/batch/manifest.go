package batch

import (
	"encoding/json"
	"os"
	"path/filepath"

	"iso-slope-tiles/internal/shading"
)

// ManifestEntry represents one mask in the output manifest.
type ManifestEntry struct {
	Input     string             `json:"input"`
	Shadermap string             `json:"shadermap,omitempty"`
	Tile      string             `json:"tile,omitempty"`
	Coverage  map[string]float64 `json:"coverage,omitempty"`
	Snapped   int                `json:"snapped"`
	Blended   int                `json:"blended"`
	Error     string             `json:"error,omitempty"`
}

// WriteManifest writes manifest.json describing every result.
// Output paths are stored relative to the manifest's directory.
func WriteManifest(path string, results []Result) error {
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		e := ManifestEntry{Input: r.Name, Error: r.Error}
		if r.Success {
			e.Shadermap = filepath.Base(r.Shadermap)
			e.Tile = filepath.Base(r.Tile)
			e.Coverage = make(map[string]float64, len(shading.Categories))
			for _, c := range shading.Categories {
				e.Coverage[c.String()] = r.Stats.Coverage(c)
			}
			for _, n := range r.Stats.Snapped {
				e.Snapped += n
			}
			for _, n := range r.Stats.Interpolated {
				e.Blended += n
			}
		}
		entries[i] = e
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
