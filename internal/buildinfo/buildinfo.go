// Package buildinfo holds build-time metadata injected through ldflags. It is
// kept apart from user configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Info contains build-time metadata that is not user-configurable.
type Info struct {
	Version   string
	BuildDate string
	Commit    string
}

// New creates build metadata. Empty values are reported as UnknownValue.
func New(version, buildDate, commit string) *Info {
	return &Info{Version: version, BuildDate: buildDate, Commit: commit}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// GetVersion returns the release version.
func (i *Info) GetVersion() string {
	if i == nil {
		return UnknownValue
	}
	return orUnknown(i.Version)
}

// GetBuildDate returns the build timestamp.
func (i *Info) GetBuildDate() string {
	if i == nil {
		return UnknownValue
	}
	return orUnknown(i.BuildDate)
}

// GetCommit returns the source revision.
func (i *Info) GetCommit() string {
	if i == nil {
		return UnknownValue
	}
	return orUnknown(i.Commit)
}

// UserAgent is the User-Agent sent on outbound requests.
func (i *Info) UserAgent() string {
	return "leadgate/" + i.GetVersion()
}

// String formats the metadata for the version command.
func (i *Info) String() string {
	return fmt.Sprintf("leadgate %s (commit %s, built %s)", i.GetVersion(), i.GetCommit(), i.GetBuildDate())
}
