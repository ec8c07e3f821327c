package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sweepgrid/sweepgrid/pkg/grid"
)

// Loader parses and validates sweep definitions.
type Loader struct {
	validator *validator.Validate
}

// NewLoader creates a new definition loader.
func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(),
	}
}

// LoadFromFile loads a sweep definition from a YAML file.
func (l *Loader) LoadFromFile(path string) (*SweepDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep definition: %w", err)
	}
	return l.LoadFromBytes(data)
}

// LoadFromBytes loads a sweep definition from raw YAML bytes.
func (l *Loader) LoadFromBytes(data []byte) (*SweepDefinition, error) {
	var def SweepDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse sweep definition YAML: %w", err)
	}
	if err := l.validator.Struct(&def); err != nil {
		return nil, grid.NewConfigurationError("invalid sweep definition").WithErr(err)
	}
	return &def, nil
}

// GridParameters converts the declared axes to the grid's parameter form.
func (d *SweepDefinition) GridParameters() []grid.Parameter {
	params := make([]grid.Parameter, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		params = append(params, grid.Parameter{Name: p.Name, Values: p.Values})
	}
	return params
}

// GridReturnValues converts the declared return slots to the grid's form.
func (d *SweepDefinition) GridReturnValues() []grid.ReturnValue {
	returns := make([]grid.ReturnValue, 0, len(d.Returns))
	for _, r := range d.Returns {
		returns = append(returns, grid.ReturnValue{Name: r.Name, Kind: grid.Kind(r.Kind)})
	}
	return returns
}

// Build constructs a fresh grid from the definition and applies the feature
// flags. Naming collisions surface here as the grid's own configuration
// errors.
func (d *SweepDefinition) Build() (*grid.Grid, error) {
	g, err := grid.New(d.GridParameters(), d.GridReturnValues())
	if err != nil {
		return nil, err
	}
	if d.Features.UUID {
		g.EnableUUID()
	}
	if d.Features.Timing {
		g.EnableTiming()
	}
	if d.Features.Priorities {
		g.EnablePriorities()
	}
	return g, nil
}
