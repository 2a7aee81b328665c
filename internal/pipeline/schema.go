package pipeline

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block of a pipeline file.
type fileRoot struct {
	Environments []*environmentBlock `hcl:"environment,block"`
	Tasks        []*taskBlock        `hcl:"task,block"`
	Remain       hcl.Body            `hcl:",remain"`
}

type dependencyBlock struct {
	Conda     []string `hcl:"conda,optional"`
	Pip       []string `hcl:"pip,optional"`
	PipNoDeps []string `hcl:"pip_no_deps,optional"`
}

type installBlock struct {
	Platform string   `hcl:"platform,label"`
	Commands []string `hcl:"commands"`
}

type environmentBlock struct {
	Name      string           `hcl:"name,label"`
	Python    string           `hcl:"python,optional"`
	Conda     []string         `hcl:"conda,optional"`
	Pip       []string         `hcl:"pip,optional"`
	PipNoDeps []string         `hcl:"pip_no_deps,optional"`
	Optional  *dependencyBlock `hcl:"optional,block"`
	Install   []*installBlock  `hcl:"install,block"`
}

type taskBlock struct {
	ID          string         `hcl:"id,label"`
	Environment string         `hcl:"environment,optional"`
	Module      string         `hcl:"module"`
	Function    string         `hcl:"function"`
	Args        hcl.Expression `hcl:"args,optional"`
	DependsOn   []string       `hcl:"depends_on,optional"`
	Participate *bool          `hcl:"participate,optional"`
}
