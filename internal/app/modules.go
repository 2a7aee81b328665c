package app

import (
	"github.com/specialistvlad/bioflow/internal/registry"
	"github.com/specialistvlad/bioflow/modules/env_vars"
	"github.com/specialistvlad/bioflow/modules/http_request"
	"github.com/specialistvlad/bioflow/modules/mathx"
	"github.com/specialistvlad/bioflow/modules/print"
	"github.com/specialistvlad/bioflow/modules/s3"
	"github.com/specialistvlad/bioflow/modules/shell"
)

// CoreModules returns the modules compiled into the bioflow binaries. The
// controller serves them to tasks without an environment; the worker serves
// them inside environments.
func CoreModules() []registry.Module {
	return []registry.Module{
		&env_vars.Module{},
		&print.Module{},
		&http_request.Module{},
		&mathx.Module{},
		&s3.Module{},
		&shell.Module{},
	}
}
