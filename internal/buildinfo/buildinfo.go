package buildinfo

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Version is overridden at link time with -ldflags "-X ...buildinfo.Version=v1.2.3".
var Version = ""

func Dump(w io.Writer) error {
	version := Version
	goVersion := "unknown"
	revision := ""

	if info, ok := debug.ReadBuildInfo(); ok {
		goVersion = info.GoVersion
		if version == "" {
			version = info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				revision = setting.Value
			}
		}
	}
	if version == "" {
		version = "(devel)"
	}

	_, err := fmt.Fprintf(w, "dhatfold %s", version)
	if err != nil {
		return err
	}
	if revision != "" {
		_, err = fmt.Fprintf(w, " (%s)", revision)
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, ", built with %s\n", goVersion)
	return err
}
