package koth

import (
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/koth/internal/platform/branding"
)

// Banner writes the startup banner followed by the indented version.
func Banner(w io.Writer, version string) error {
	version = strings.TrimSpace(version)
	if version == "" {
		version = "dev"
	}
	_, err := fmt.Fprintf(w, "%s\n%s%s %s\n", branding.Banner, strings.Repeat(" ", 20), strings.ToLower(branding.AppName), version)
	return err
}
