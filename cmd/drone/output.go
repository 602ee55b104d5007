package main

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/drone-os/drone/pkg/config"
)

// outputsFlag collects repeated --output values.
type outputsFlag []config.LogOutput

var _ pflag.Value = (*outputsFlag)(nil)

func (f *outputsFlag) String() string {
	parts := make([]string, len(*f))
	for i, o := range *f {
		parts[i] = o.String()
	}
	return strings.Join(parts, " ")
}

func (f *outputsFlag) Set(s string) error {
	o, err := config.ParseOutput(s)
	if err != nil {
		return err
	}
	*f = append(*f, o)
	return nil
}

func (f *outputsFlag) Type() string { return "output" }
