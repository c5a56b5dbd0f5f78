package core

import (
	"regexp"
	"strings"
)

// DefaultProtocol is assumed when a printer id carries no protocol of its
// own. It is also the only protocol the auto-detect provisioning mode can
// handle.
const DefaultProtocol = "ipp"

// Resolve parses a logical printer identifier into a Destination. Accepted
// shapes, in order: "proto://host", "host/proto" (segment after the last
// slash is the protocol), and a bare host with the default protocol.
func Resolve(printerID string) Destination {
	var protocol, host string
	if i := strings.Index(printerID, "://"); i >= 0 {
		protocol, host = printerID[:i], printerID[i+3:]
	} else if i := strings.LastIndex(printerID, "/"); i >= 0 {
		host, protocol = printerID[:i], printerID[i+1:]
	} else {
		protocol, host = DefaultProtocol, printerID
	}
	if protocol == "" {
		protocol = DefaultProtocol
	}

	return Destination{
		Protocol: protocol,
		Host:     host,
		Name:     Normalize(host),
	}
}

var destNameChars = regexp.MustCompile(`[\s.]`)

// Normalize turns an arbitrary host or printer string into a valid spooler
// destination name: whitespace and dots become underscores, and a leading
// underscore is added when the result does not start with a letter or
// underscore. Idempotent.
func Normalize(s string) string {
	name := destNameChars.ReplaceAllString(s, "_")
	if name == "" || !isNameStart(name[0]) {
		name = "_" + name
	}
	return name
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

const driverEnvPrefix = "PRINTER_DRIVER_"

// DriverRule maps protocol plus a host glob to a spooler driver. Rules come
// from PRINTER_DRIVER_<name>="<protocol>:<hostGlob>:<driverPath>" entries;
// the first matching rule in declaration order wins.
type DriverRule struct {
	Protocol string
	HostGlob string
	Path     string
	hostRe   *regexp.Regexp
}

type DriverTable []DriverRule

// ParseDriverTable reads driver rules from an environment block, preserving
// declaration order. Malformed entries are skipped.
func ParseDriverTable(environ []string) DriverTable {
	var table DriverTable
	for _, kv := range environ {
		if !strings.HasPrefix(kv, driverEnvPrefix) {
			continue
		}
		_, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		rule, ok := parseDriverRule(value)
		if !ok {
			continue
		}
		table = append(table, rule)
	}
	return table
}

func parseDriverRule(value string) (DriverRule, bool) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return DriverRule{}, false
	}
	re, err := compileHostGlob(parts[1])
	if err != nil {
		return DriverRule{}, false
	}
	return DriverRule{
		Protocol: parts[0],
		HostGlob: parts[1],
		Path:     parts[2],
		hostRe:   re,
	}, true
}

// compileHostGlob translates a glob where "*" matches anything into a regex
// anchored at both ends.
func compileHostGlob(glob string) (*regexp.Regexp, error) {
	segments := strings.Split(glob, "*")
	for i, s := range segments {
		segments[i] = regexp.QuoteMeta(s)
	}
	return regexp.Compile("^" + strings.Join(segments, ".*") + "$")
}

// FindDriver returns the driver path for the first rule matching the
// protocol and host. A miss is not an error; the caller falls back to
// auto-detect provisioning.
func (t DriverTable) FindDriver(protocol, host string) (string, bool) {
	for _, r := range t {
		if r.Protocol == protocol && r.hostRe.MatchString(host) {
			return r.Path, true
		}
	}
	return "", false
}
