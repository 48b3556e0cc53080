package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"lautcoach/internal/models"
	"lautcoach/internal/repository"
	"lautcoach/internal/validation"
)

//go:embed data/modules.yaml
var moduleCatalogue []byte

type catalogueFile struct {
	Modules []models.SoundModule `yaml:"modules"`
}

// Catalogue returns the built-in German sound modules.
func Catalogue() ([]models.SoundModule, error) {
	return parseCatalogue(moduleCatalogue)
}

func parseCatalogue(data []byte) ([]models.SoundModule, error) {
	var f catalogueFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding module catalogue: %w", err)
	}

	seen := make(map[string]bool, len(f.Modules))
	for _, m := range f.Modules {
		if err := validation.ValidateSoundID(m.SoundID); err != nil {
			return nil, fmt.Errorf("module %q: %w", m.Name, err)
		}
		if seen[m.SoundID] {
			return nil, fmt.Errorf("duplicate module %s", m.SoundID)
		}
		seen[m.SoundID] = true
		if !m.DifficultyLevel.Valid() {
			return nil, fmt.Errorf("module %s: unknown difficulty %q", m.SoundID, m.DifficultyLevel)
		}
		if len(m.Exercises) == 0 {
			return nil, fmt.Errorf("module %s has no exercises", m.SoundID)
		}
	}
	return f.Modules, nil
}

// SeedModules upserts the built-in catalogue and returns the number of
// modules written. Cached benchmark audio survives for unchanged words.
func SeedModules(ctx context.Context, modules *repository.ModuleRepository, logger *slog.Logger) (int, error) {
	catalogue, err := Catalogue()
	if err != nil {
		return 0, err
	}
	for i := range catalogue {
		if err := modules.Upsert(ctx, &catalogue[i]); err != nil {
			return i, fmt.Errorf("seeding %s: %w", catalogue[i].SoundID, err)
		}
	}
	if logger != nil {
		logger.InfoContext(ctx, "seeded sound modules", "count", len(catalogue))
	}
	return len(catalogue), nil
}

// SeedIfEmpty seeds the catalogue only when no module exists yet.
func SeedIfEmpty(ctx context.Context, modules *repository.ModuleRepository, logger *slog.Logger) error {
	n, err := modules.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting modules: %w", err)
	}
	if n > 0 {
		return nil
	}
	_, err = SeedModules(ctx, modules, logger)
	return err
}
