// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package app

import (
	"fmt"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/wangtaoking1/sockbridge/app.GitVersion=...".
var (
	GitVersion = "v0.0.0-master+$Format:%h$"
	GitCommit  = "$Format:%H$"
	BuildDate  = "1970-01-01T00:00:00Z"
)

// VersionInfo contains versioning information.
type VersionInfo struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Compiler   string `json:"compiler"`
	Platform   string `json:"platform"`
}

// Version returns the overall codebase version.
func Version() VersionInfo {
	return VersionInfo{
		GitVersion: GitVersion,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		Compiler:   runtime.Compiler,
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns info as a human-friendly version string.
func (info VersionInfo) String() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("gitVersion:", info.GitVersion)
	table.AddRow("gitCommit:", info.GitCommit)
	table.AddRow("buildDate:", info.BuildDate)
	table.AddRow("goVersion:", info.GoVersion)
	table.AddRow("compiler:", info.Compiler)
	table.AddRow("platform:", info.Platform)

	return table.String()
}

// ToJSON returns the JSON string of version information.
func (info VersionInfo) ToJSON() string {
	s, _ := json.Marshal(info)

	return string(s)
}

// versionCommand prints the version information, as a table or as JSON.
type versionCommand struct {
	output string
}

var _ Command = (*versionCommand)(nil)

func newVersionCommand() Command {
	return &versionCommand{}
}

// AddCommands does nothing, version has no children.
func (c *versionCommand) AddCommands(...Command) {}

func (c *versionCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "version",
		Short:         "Print the version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := Version()
			switch c.output {
			case "":
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			case "json":
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), info.ToJSON())
			default:
				return fmt.Errorf("--output %q must be empty or json", c.output)
			}

			return nil
		},
	}
	cmd.Flags().StringVarP(&c.output, "output", "o", c.output, "Output format, empty for a table or json.")

	return cmd
}
