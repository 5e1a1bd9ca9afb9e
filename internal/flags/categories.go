// Package flags holds the urfave/cli/v2 scaffolding shared by cmd/lknode
// and cmd/lkcli: flag categories for --help grouping and the NewApp
// constructor, trimmed from the much larger category set
// internal/flags/categories.go carried for gtos's many subsystems down to
// the ones this node actually has.
package flags

import "github.com/urfave/cli/v2"

const (
	NodeCategory       = "NODE"
	AccountCategory    = "ACCOUNT"
	APICategory        = "API"
	NetworkingCategory = "NETWORKING"
	MinerCategory      = "MINER"
	LoggingCategory    = "LOGGING AND DEBUGGING"
	MiscCategory       = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}

// NewApp builds a cli.App with the version/commit metadata this node's two
// binaries both report, mirroring gtos's own flags.NewApp.
func NewApp(gitCommit, gitDate, usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Version = buildVersion(gitCommit, gitDate)
	app.Usage = usage
	app.Copyright = "Copyright 2020-2026 The lkchain Authors"
	return app
}

func buildVersion(gitCommit, gitDate string) string {
	v := "0.1.0"
	if gitCommit != "" {
		v += "-" + gitCommit
		if len(gitCommit) >= 8 {
			v = v[:len(v)-len(gitCommit)] + gitCommit[:8]
		}
	}
	if gitDate != "" {
		v += "-" + gitDate
	}
	return v
}
