package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/aretw0/wayfarer"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the wayfarer version and build platform",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "wayfarer %s (%s, %s/%s)\n",
		strings.TrimSpace(wayfarer.Version), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
