// Package seed loads the bundled vessel identifier defaults.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/asli-tracking/backend/internal/store"
	"github.com/asli-tracking/backend/internal/vessel"
)

// VesselIdentifiers is one entry of the seed file: a canonical vessel name
// with the identifiers known ahead of the first provider lookup.
type VesselIdentifiers struct {
	Name string `yaml:"name"`
	IMO  string `yaml:"imo"`
	MMSI string `yaml:"mmsi"`
}

// SeedFile mirrors the YAML layout of data/defaults/vessels.yaml.
type SeedFile struct {
	Vessels []VesselIdentifiers `yaml:"vessels"`
}

// ParseFile reads the identifier seed file from disk.
func ParseFile(filePath string) (*SeedFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseFromReader(file)
}

// ParseFromReader parses the seed file from an io.Reader.
func ParseFromReader(r io.Reader) (*SeedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, err
	}

	return &sf, nil
}

// Apply writes the seed identifiers into the position cache. Entries without
// a usable name or without either identifier are skipped. Returns the number
// of vessels written.
func Apply(ctx context.Context, s store.Store, sf *SeedFile) (int, error) {
	applied := 0
	for _, v := range sf.Vessels {
		name := vessel.Normalize(v.Name)
		if name == "" || (v.IMO == "" && v.MMSI == "") {
			continue
		}
		if err := s.SetIdentifiers(ctx, name, v.IMO, v.MMSI); err != nil {
			return applied, fmt.Errorf("failed to seed identifiers for %s: %w", name, err)
		}
		applied++
	}
	return applied, nil
}

// LoadAndApply combines ParseFile and Apply. A missing file is not an error;
// it returns (0, nil) so a deployment without seed data starts clean.
func LoadAndApply(ctx context.Context, s store.Store, filePath string) (int, error) {
	sf, err := ParseFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return Apply(ctx, s, sf)
}
