package main

import (
	"log"
	"os"

	"github.com/wavefrontHQ/newrelic/pkg/util"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	util.FprintBuildInfo(os.Stdout, buildVersion, buildDate, buildCommit)

	if err := newRootCmd().Execute(); err != nil {
		// Startup failures happen before the zap logger exists.
		log.Fatalln("Error:", err)
	}
}
