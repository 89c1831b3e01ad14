package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
)

// maxUDPPayload is the largest payload a single IPv4 UDP datagram can carry.
const maxUDPPayload = 65507

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Validate checks that the configuration is valid. Errors are returned as
// criterio.FieldErrors keyed by the YAML path of the offending option.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.HTTP.Addr == "" {
		errs = errs.Append("http.addr", fmt.Errorf("cannot be empty"))
	}
	if err := validatePort(c.HTTP.Port); err != nil {
		errs = errs.Append("http.port", err)
	}
	if _, err := c.MaxBodyBytes(); err != nil {
		errs = errs.Append("http.max_body", err)
	}
	if c.HTTP.ShutdownTimeout < 0 {
		errs = errs.Append("http.shutdown_timeout", fmt.Errorf("cannot be negative"))
	}

	if c.Datagram.Addr == "" {
		errs = errs.Append("datagram.addr", fmt.Errorf("cannot be empty"))
	}
	if err := validatePort(c.Datagram.Port); err != nil {
		errs = errs.Append("datagram.port", err)
	}
	if c.Datagram.BufferSize < 1 || c.Datagram.BufferSize > maxUDPPayload {
		errs = errs.Append("datagram.buffer_size", fmt.Errorf("must be between 1 and %d", maxUDPPayload))
	}
	if c.Datagram.PollInterval < 0 {
		errs = errs.Append("datagram.poll_interval", fmt.Errorf("cannot be negative"))
	}

	if c.Storage.Path == "" {
		errs = errs.Append("storage.path", fmt.Errorf("cannot be empty"))
	}

	seen := make(map[string]bool, len(c.Static.Routes))
	for i, r := range c.Static.Routes {
		field := fmt.Sprintf("static.routes[%d]", i)
		if !strings.HasPrefix(r.Path, "/") {
			errs = errs.Append(field+".path", fmt.Errorf("%q must start with '/'", r.Path))
		}
		if seen[r.Path] {
			errs = errs.Append(field+".path", fmt.Errorf("duplicate path %q", r.Path))
		}
		seen[r.Path] = true
		if r.File == "" {
			errs = errs.Append(field+".file", fmt.Errorf("cannot be empty"))
		}
	}

	if c.Metrics.Enabled {
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs = errs.Append("metrics.path", fmt.Errorf("%q must start with '/'", c.Metrics.Path))
		}
		if seen[c.Metrics.Path] {
			errs = errs.Append("metrics.path", fmt.Errorf("%q conflicts with a static route", c.Metrics.Path))
		}
	}

	return errs.ToError()
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%d is not a valid port", port)
	}
	return nil
}

// Warnings returns non-fatal issues with the configuration.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Storage.InPlace {
		warnings = append(warnings, ValidationWarning{
			Category: "Storage",
			Item:     "storage.in_place",
			Message:  "in-place writes can leave a truncated document if the process dies mid-write",
		})
	}

	if c.HTTP.Port == 0 || c.Datagram.Port == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Network",
			Item:     "port",
			Message:  "port 0 picks a different random port on every start",
		})
	}

	if ip := net.ParseIP(c.Datagram.Addr); ip != nil && !ip.IsLoopback() {
		warnings = append(warnings, ValidationWarning{
			Category: "Network",
			Item:     "datagram.addr",
			Message:  "datagrams are unauthenticated and unencrypted; binding beyond loopback exposes the receiver",
		})
	}

	if c.Static.Dir != "" {
		if info, err := os.Stat(c.Static.Dir); err != nil || !info.IsDir() {
			warnings = append(warnings, ValidationWarning{
				Category: "Static",
				Item:     "static.dir",
				Message:  fmt.Sprintf("%s is not a readable directory", c.Static.Dir),
			})
		}
	}

	return warnings
}
