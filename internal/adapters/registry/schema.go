package registry

// RecipeDTO is the on-disk shape of toolchain.yaml and toolchain.toml.
type RecipeDTO struct {
	Base        string            `yaml:"base" toml:"base"`
	Platform    string            `yaml:"platform" toml:"platform"`
	Criticality string            `yaml:"criticality" toml:"criticality"`
	Packages    PackagesDTO       `yaml:"packages" toml:"packages"`
	Env         map[string]string `yaml:"env" toml:"env"`
	Args        map[string]string `yaml:"args" toml:"args"`
	Workdir     string            `yaml:"workdir" toml:"workdir"`
	Shell       []string          `yaml:"shell" toml:"shell"`
	Steps       []StepDTO         `yaml:"steps" toml:"steps"`
}

// PackagesDTO lists distribution packages installed before the steps run.
type PackagesDTO struct {
	Manager string   `yaml:"manager" toml:"manager"`
	Install []string `yaml:"install" toml:"install"`
}

// StepDTO is one shell step of a recipe.
type StepDTO struct {
	Run     string            `yaml:"run" toml:"run"`
	Workdir string            `yaml:"workdir" toml:"workdir"`
	Env     map[string]string `yaml:"env" toml:"env"`
}
