// Package buildinfo carries build-time metadata that is not part of the
// user configuration.
package buildinfo

import "runtime/debug"

const unknown = "unknown"

// Context holds build-time metadata injected at startup.
type Context struct {
	Version   string // git tag set with -ldflags
	BuildDate string
	SystemID  string // persistent identifier used by error telemetry
}

// GetVersion returns the build version, falling back to the module version
// recorded by the Go toolchain.
func (c *Context) GetVersion() string {
	if c != nil && c.Version != "" {
		return c.Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return unknown
}

// GetBuildDate returns the build date.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// GetSystemID returns the system identifier.
func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return unknown
	}
	return c.SystemID
}
