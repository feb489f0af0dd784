// Package appinfo provides build and version information for the service
package appinfo

import (
	"os"
	"runtime"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
)

// version can be set at build time:
//
//	go build -ldflags "-X petfolio/internal/utils/appinfo.version=1.2.3"
var version string

// GetVersion returns the application version. It checks, in order, the
// linker-set version, VERSION and APP_VERSION, the module version from the
// build info, and finally falls back to "0.0.0-unknown".
func GetVersion() string {
	if version != "" {
		return version
	}
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "0.0.0-unknown"
}

// GetRevision returns the short VCS revision embedded by the toolchain, or
// "unknown" for builds without VCS stamping.
func GetRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			if len(setting.Value) > 12 {
				return setting.Value[:12]
			}
			return setting.Value
		}
	}
	return "unknown"
}

// RegisterBuildInfo exposes petfolio_build_info with a constant value of 1.
func RegisterBuildInfo(registerer prometheus.Registerer) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "petfolio_build_info",
		Help: "Build information of the running binary.",
	}, []string{"version", "revision", "go_version"})
	gauge.WithLabelValues(GetVersion(), GetRevision(), runtime.Version()).Set(1)

	registerer.MustRegister(gauge)
}
