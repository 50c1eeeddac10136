package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// formatFlag is a pflag.Value restricted to a fixed set of output formats.
type formatFlag struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*formatFlag)(nil)

func newFormatFlag(def string, allowed ...string) *formatFlag {
	return &formatFlag{value: def, allowed: allowed}
}

func (f *formatFlag) String() string { return f.value }

func (f *formatFlag) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range f.allowed {
		if s == a {
			f.value = s
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (supported: %s)", s, strings.Join(f.allowed, ", "))
}

func (f *formatFlag) Type() string { return "format" }
