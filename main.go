package main

import (
	"github.com/nodewee/doc-structurer/cmd"
)

// Version information - set during build time via ldflags
var (
	Version   = "dev"
	GitCommit = "none"
	BuildTime = "unknown"
)

func main() {
	cmd.SetVersionInfo(Version, GitCommit, BuildTime)
	cmd.Execute()
}
