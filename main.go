package main

import (
	"fmt"
	"os"

	"github.com/avatar-cli/avatar/internal/avatarerr"
	"github.com/avatar-cli/avatar/internal/cli"
)

const defaultVersion = "unversioned"

var (
	commit  string
	version = defaultVersion
	date    string
)

// main performs the identity dispatcher (spec.md 4.H) before anything
// else: argv[0]'s basename decides whether this process is the `avatar`
// front-end or a shim for one of the declared binaries.
func main() {
	buildVersion := version
	if buildVersion == defaultVersion {
		buildVersion = fmt.Sprintf("%s (%s)", defaultVersion, date)
	}

	var err error
	if cli.IsFrontEnd(os.Args[0]) {
		err = cli.Run(os.Args, buildVersion)
	} else {
		err = cli.ShimInvoke(os.Args)
	}

	if err == nil {
		return
	}

	wrapped := avatarerr.WrapStack(err)
	fmt.Fprintln(os.Stderr, wrapped.Error())
	if os.Getenv("AVATAR_DEBUG") == "TRUE" {
		fmt.Fprintln(os.Stderr, avatarerr.StackTrace(err))
	}
	os.Exit(int(avatarerr.ExitCode(err)))
}
