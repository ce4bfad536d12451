// Package version holds the build version, overridden with -ldflags at release time.
package version

var Version = "dev"
