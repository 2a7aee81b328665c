// Package pipeline loads pipeline definitions from HCL files.
//
// A pipeline declares named environments with their dependency descriptors
// and the tasks that call module functions inside them:
//
//	environment "cellpose" {
//	  python = "3.10"
//	  conda  = ["cellpose==3.0.8|win-64,linux-64"]
//	  optional {
//	    pip = ["torch|linux-64"]
//	  }
//	}
//
//	task "segment" {
//	  environment = "cellpose"
//	  module      = "segment"
//	  function    = "run"
//	  args        = ["image.tif", 30]
//	  depends_on  = ["load"]
//	}
//
// Loading validates references but does not look for cycles; the scheduler
// reports those when it plans a run.
package pipeline
