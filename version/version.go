package version

import (
	"fmt"
	"runtime"

	"github.com/Masterminds/semver/v3"

	"github.com/axiomata/atomstore/errors"
)

// Build information. These variables are set at build time via ldflags.
var (
	// CommitHash is the git commit hash when the binary was built
	CommitHash = "dev"

	// BuildTime is when the binary was built
	BuildTime = "unknown"

	// Version is the semantic version (if tagged)
	Version = "dev"
)

// SchemaVersion is the store schema generation this binary writes. Stores
// created by a different major schema generation cannot be opened.
const SchemaVersion = "1.0.0"

// Info contains version and build information
type Info struct {
	CommitHash    string `json:"commit_hash"`
	BuildTime     string `json:"build_time"`
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash:    CommitHash,
		BuildTime:     BuildTime,
		Version:       Version,
		SchemaVersion: SchemaVersion,
		GoVersion:     runtime.Version(),
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	if i.Version != "dev" {
		return fmt.Sprintf("atomstore %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
	}
	return fmt.Sprintf("atomstore dev (commit %s, built %s)", i.CommitHash, i.BuildTime)
}

// Short returns a short version string with just the commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

// SchemaCompatible reports whether a store written by schema version other
// can be opened by this binary. Same major generation means compatible.
func SchemaCompatible(other string) (bool, error) {
	ours, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return false, errors.Wrap(err, "version: parse own schema version")
	}
	theirs, err := semver.NewVersion(other)
	if err != nil {
		return false, errors.Mark(
			errors.Wrapf(err, "version: parse schema version %q", other),
			errors.ErrInvalidArgument)
	}
	return ours.Major() == theirs.Major(), nil
}
