package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/redline/internal/api"
	"github.com/jackzampolin/redline/version"
)

var versionShort bool

// buildInfo is the structured form of `redline version`.
type buildInfo struct {
	Version string `json:"version" yaml:"version"`
	Go      string `json:"go" yaml:"go"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the redline build (release, commit, toolchain)",
	Long: `Print the redline build information.

With --short only the release tag is printed, which is what scripts
checking a deployed binary usually want. Otherwise the build is written
in the format chosen by --output.`,
	Example: `  redline version --short
  redline version -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), api.GetOutputFormat(), versionShort)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the release tag")
}

func writeVersion(w io.Writer, format api.OutputFormat, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, version.GitRelease)
		return err
	}
	return api.OutputTo(w, format, buildInfo{
		Version: version.GitRelease,
		Go:      version.GoInfo,
		Commit:  version.GitCommit,
		Date:    version.GitCommitDate,
	})
}
