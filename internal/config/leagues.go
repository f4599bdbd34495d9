package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/virtuals-lab/leaguescout/internal/domain/league"
)

type leagueEntry struct {
	Code           string `yaml:"code" validate:"required,alpha,uppercase,min=2,max=3"`
	Name           string `yaml:"name" validate:"required"`
	SelectionIndex int    `yaml:"selection_index" validate:"gte=0"`
}

type leaguesFile struct {
	Leagues []leagueEntry `yaml:"leagues" validate:"required,min=1,dive"`
}

// DefaultLeagues is the built-in league set used when no leagues file is
// configured.
func DefaultLeagues() []league.League {
	return []league.League{
		{Code: "EL", Name: "English League", SelectionIndex: 0},
		{Code: "SL", Name: "Spanish League", SelectionIndex: 1},
		{Code: "KL", Name: "Kenyan League", SelectionIndex: 2},
		{Code: "IL", Name: "Italian League", SelectionIndex: 3},
	}
}

// LoadLeagues reads the league set from a YAML file, falling back to the
// built-in set when path is empty. Codes and selection indexes must be
// unique; each worker claims exactly one board slot.
func LoadLeagues(path string) ([]league.League, error) {
	if path == "" {
		return DefaultLeagues(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read leagues file: %w", err)
	}

	var file leaguesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse leagues file: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("validate leagues file: %w", err)
	}

	codes := make(map[string]struct{}, len(file.Leagues))
	indexes := make(map[int]struct{}, len(file.Leagues))
	leagues := make([]league.League, 0, len(file.Leagues))
	for _, entry := range file.Leagues {
		if _, dup := codes[entry.Code]; dup {
			return nil, fmt.Errorf("duplicate league code %q", entry.Code)
		}
		if _, dup := indexes[entry.SelectionIndex]; dup {
			return nil, fmt.Errorf("duplicate selection index %d for league %q", entry.SelectionIndex, entry.Code)
		}
		codes[entry.Code] = struct{}{}
		indexes[entry.SelectionIndex] = struct{}{}

		lg := league.League{
			Code:           entry.Code,
			Name:           entry.Name,
			SelectionIndex: entry.SelectionIndex,
		}
		if err := lg.Validate(); err != nil {
			return nil, err
		}
		leagues = append(leagues, lg)
	}

	return leagues, nil
}
