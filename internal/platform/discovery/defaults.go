// Package discovery centralizes in-network address conventions.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceKoth is the scoring service identity.
	ServiceKoth = "koth"
)

var healthPorts = map[string]int{
	ServiceKoth: 9100,
}

// DefaultHealthAddr returns the canonical in-network gRPC health address for a service.
func DefaultHealthAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), healthPorts)
}

// OrDefaultHealthAddr returns value when set, otherwise the service convention.
func OrDefaultHealthAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultHealthAddr(service)
}

func defaultAddr(service string, ports map[string]int) string {
	port, ok := ports[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}
