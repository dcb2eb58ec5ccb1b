package app

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Version is filled by ldflags in release builds.
	Version = "dev"
	// BuildDate is filled by ldflags in release builds.
	BuildDate = ""
)

const shortRevisionLen = 7

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Date      string
	Revision  string
	Modified  bool
	GoVersion string
}

// CurrentBuildInfo combines ldflags values with the VCS stamp the Go
// toolchain embeds in the binary.
func CurrentBuildInfo() BuildInfo {
	info := BuildInfo{
		Version: strings.TrimSpace(Version),
		Date:    normalizeBuildDate(BuildDate),
	}
	if info.Version == "" {
		info.Version = "dev"
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		case "vcs.time":
			if info.Date == "" {
				info.Date = normalizeBuildDate(s.Value)
			}
		}
	}

	return info
}

// ShortRevision returns the abbreviated commit hash, marked when the tree was dirty.
func (b BuildInfo) ShortRevision() string {
	rev := b.Revision
	if len(rev) > shortRevisionLen {
		rev = rev[:shortRevisionLen]
	}
	if rev != "" && b.Modified {
		rev += "-dirty"
	}

	return rev
}

// String renders "version (date, revision)", omitting unknown parts.
func (b BuildInfo) String() string {
	var extra []string
	if b.Date != "" {
		extra = append(extra, b.Date)
	}
	if rev := b.ShortRevision(); rev != "" {
		extra = append(extra, rev)
	}
	if len(extra) == 0 {
		return b.Version
	}

	return fmt.Sprintf("%s (%s)", b.Version, strings.Join(extra, ", "))
}

// registerBuildInfo exposes the build as a constant clemremote_build_info gauge.
func registerBuildInfo(reg prometheus.Registerer, info BuildInfo) error {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Name,
		Name:      "build_info",
		Help:      "Build information of the running binary.",
		ConstLabels: prometheus.Labels{
			"version":   info.Version,
			"revision":  info.ShortRevision(),
			"goversion": info.GoVersion,
		},
	})
	gauge.Set(1)

	return reg.Register(gauge)
}

// normalizeBuildDate reduces RFC 3339 timestamps and date-prefixed strings to YYYY-MM-DD.
func normalizeBuildDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC().Format(time.DateOnly)
	}
	if len(raw) >= len(time.DateOnly) {
		if _, err := time.Parse(time.DateOnly, raw[:len(time.DateOnly)]); err == nil {
			return raw[:len(time.DateOnly)]
		}
	}

	return raw
}
