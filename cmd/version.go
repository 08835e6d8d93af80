package cmd

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "(devel)"

type buildInfo struct {
	Version  string
	Revision string
	Modified bool
	Go       string
	Platform string
}

// readBuildInfo prefers the ldflags version and falls back to the module
// version stamped by "go install".
func readBuildInfo() buildInfo {
	bi := buildInfo{
		Version:  version,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	if bi.Version == "(devel)" && info.Main.Version != "" {
		bi.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			bi.Revision = s.Value
		case "vcs.modified":
			bi.Modified = s.Value == "true"
		}
	}
	return bi
}

func printVersion(w io.Writer, bi buildInfo, short bool) {
	if short {
		fmt.Fprintln(w, bi.Version)
		return
	}
	fmt.Fprintf(w, "learnpath %s\n", bi.Version)
	if bi.Revision != "" {
		rev := bi.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		if bi.Modified {
			rev += "-dirty"
		}
		fmt.Fprintf(w, "  commit:   %s\n", rev)
	}
	fmt.Fprintf(w, "  go:       %s\n", bi.Go)
	fmt.Fprintf(w, "  platform: %s\n", bi.Platform)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		short, _ := cmd.Flags().GetBool("short")
		printVersion(cmd.OutOrStdout(), readBuildInfo(), short)
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "Print only the version")
}
