package config

// SweepDefinition is the top-level YAML document describing one sweep.
type SweepDefinition struct {
	// Name identifies the sweep in logs and summaries.
	Name string `yaml:"name" validate:"required"`

	// Parameters are the grid axes, in declaration order.
	Parameters []ParameterDef `yaml:"parameters" validate:"required,min=1,dive"`

	// Returns declares the result slots experiments fill in.
	Returns []ReturnDef `yaml:"returns" validate:"omitempty,dive"`

	// Features toggles the optional per-cell slots.
	Features FeatureFlags `yaml:"features"`

	// Save configures dataset persistence.
	Save SaveConfig `yaml:"save"`
}

// ParameterDef declares one axis: a name and its ordered values.
type ParameterDef struct {
	Name   string        `yaml:"name" validate:"required"`
	Values []interface{} `yaml:"values" validate:"required,min=1"`
}

// ReturnDef declares one named return slot with its storage kind.
type ReturnDef struct {
	Name string `yaml:"name" validate:"required"`
	Kind string `yaml:"kind" validate:"required,oneof=int float complex bool string object"`
}

// FeatureFlags enables the optional per-cell slots at creation time.
type FeatureFlags struct {
	UUID       bool `yaml:"uuid"`
	Timing     bool `yaml:"timing"`
	Priorities bool `yaml:"priorities"`
}

// SaveConfig sets the dataset location and the auto-save policy.
type SaveConfig struct {
	// Path is the dataset file; its extension picks the persistence form.
	Path string `yaml:"path"`

	// Auto saves the whole grid after every finished experiment.
	Auto bool `yaml:"auto"`
}
