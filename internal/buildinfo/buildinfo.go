// Package buildinfo exposes build metadata injected at link time via -ldflags.
package buildinfo

import (
	"fmt"
	"io"
)

// Populated by the build, e.g.:
//
//	go build -ldflags "-X github.com/dmitrijs2005/kopeck/internal/buildinfo.buildVersion=v1.2.3"
var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

// PrintBuildData writes the version banner to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", buildVersion)
	fmt.Fprintf(w, "Build date: %s\n", buildDate)
	fmt.Fprintf(w, "Build commit: %s\n", buildCommit)
}
