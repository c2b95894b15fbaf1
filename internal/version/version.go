// Package version provides build and version information for Sentient Studio.
package version

// Version is the current release version of Sentient Studio.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/SentientStudio/internal/version.Version=x.y.z"
var Version = "0.3.0"
