// Package util holds small helpers shared by the command binaries.
package util

import (
	"fmt"
	"io"
)

func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// FprintBuildInfo writes the build version, date, and commit to w.
func FprintBuildInfo(w io.Writer, version, date, commit string) {
	fmt.Fprintf(w, "Build version: %s\n", na(version))
	fmt.Fprintf(w, "Build date: %s\n", na(date))
	fmt.Fprintf(w, "Build commit: %s\n", na(commit))
}
