package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information variables - set by main.go
var (
	version   = "dev"
	gitCommit = "none"
	buildTime = "unknown"
)

// SetVersionInfo sets the version information from main.go
func SetVersionInfo(v, commit, built string) {
	version = v
	gitCommit = commit
	buildTime = built
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("📄 doc-structurer\n")
		fmt.Printf("=================\n\n")
		fmt.Printf("  Version:     %s\n", version)
		fmt.Printf("  Git Commit:  %s\n", gitCommit)
		fmt.Printf("  Build Time:  %s\n", buildTime)
		fmt.Printf("  Go Version:  %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:     %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
