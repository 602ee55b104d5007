package config

import (
	"fmt"
	"strconv"
	"strings"
)

// PortsCount is the number of addressable log ports.
const PortsCount = 32

// LogOutput routes a set of log ports to a destination.  An empty Ports
// list selects every port; an empty Path selects standard output.
type LogOutput struct {
	Ports []uint32 `yaml:"ports"`
	Path  string   `yaml:"path"`
}

func (o LogOutput) validate() error {
	for _, p := range o.Ports {
		if p >= PortsCount {
			return fmt.Errorf("port %d out of range (0-%d)", p, PortsCount-1)
		}
	}
	return nil
}

// String renders o in the form accepted by ParseOutput.
func (o LogOutput) String() string {
	if len(o.Ports) == 0 {
		return o.Path
	}
	ports := make([]string, len(o.Ports))
	for i, p := range o.Ports {
		ports[i] = strconv.FormatUint(uint64(p), 10)
	}
	return strings.Join(ports, ",") + ":" + o.Path
}

// ParseOutput parses a route of the form "[PORTS:]PATH", where PORTS is
// a comma-separated list of port numbers.  A route without a colon, or
// whose prefix is not a port list, is taken to be a path for all ports.
// An empty PATH means standard output.
func ParseOutput(route string) (LogOutput, error) {
	prefix, path, found := strings.Cut(route, ":")
	if !found || !looksLikePorts(prefix) {
		return LogOutput{Path: route}, nil
	}
	out := LogOutput{Path: path}
	for _, field := range strings.Split(prefix, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		port, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return LogOutput{}, fmt.Errorf("invalid port %q in output %q", field, route)
		}
		out.Ports = append(out.Ports, uint32(port))
	}
	if err := out.validate(); err != nil {
		return LogOutput{}, fmt.Errorf("output %q: %w", route, err)
	}
	return out, nil
}

func looksLikePorts(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != ',' && r != ' ' {
			return false
		}
	}
	return true
}
