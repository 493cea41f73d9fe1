package cmd

import "github.com/urfave/cli/v2"

var (
	WriteConfigTemplate = writeConfigTemplate
	PrintExploreResult  = printExploreResult
	PrintCheckReport    = printCheckReport
)

// PipelineFlags returns flags of run command for tests.
func PipelineFlags() []cli.Flag {
	var p pipeline
	return p.Flags()
}
