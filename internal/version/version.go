package version

import (
	"fmt"
	"runtime"
)

// Name is the program name.
const Name = "chevai-chat"

// Set via ldflags at build time:
//
//	go build -ldflags "-X github.com/soyeahso/chevai-chat/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/chevai-chat/internal/version.Commit=abc123
//	  -X github.com/soyeahso/chevai-chat/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s/%s)",
		Name, Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on outbound HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
