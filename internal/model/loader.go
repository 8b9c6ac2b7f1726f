package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type speciesFile struct {
	Name              string  `yaml:"name"`
	InitialPopulation float64 `yaml:"initial_population"`
	Mode              string  `yaml:"mode"`
	SwitchTol         float64 `yaml:"switch_tol"`
	SwitchMin         float64 `yaml:"switch_min"`
}

type reactionFile struct {
	Name      string         `yaml:"name"`
	Reactants map[string]int `yaml:"reactants"`
	Products  map[string]int `yaml:"products"`
	Rate      float64        `yaml:"rate"`
}

type modelFile struct {
	Name      string         `yaml:"name"`
	Species   []speciesFile  `yaml:"species"`
	Reactions []reactionFile `yaml:"reactions"`
}

// LoadFile reads a reaction network definition from a YAML file and compiles
// it.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a YAML model definition and compiles it.
func Parse(data []byte) (*Model, error) {
	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	m := &Model{Name: file.Name}
	for _, sp := range file.Species {
		m.Species = append(m.Species, Species{
			Name:              sp.Name,
			InitialPopulation: sp.InitialPopulation,
			Mode:              SpeciesMode(sp.Mode),
			SwitchTol:         sp.SwitchTol,
			SwitchMin:         sp.SwitchMin,
		})
	}
	for _, rxn := range file.Reactions {
		m.Reactions = append(m.Reactions, Reaction{
			Name:      rxn.Name,
			Reactants: rxn.Reactants,
			Products:  rxn.Products,
			Rate:      rxn.Rate,
		})
	}
	if err := m.Compile(); err != nil {
		return nil, err
	}
	return m, nil
}
