// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values keeps the command, runtime and probe in step.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the health endpoint.
const GRPCDial = 2 * time.Second

// Shutdown limits how long telemetry and the health server get to drain
// once the process is asked to stop.
const Shutdown = 5 * time.Second

// AcceptBackoff is the minimum spacing between accept retries after a
// transient listener error.
const AcceptBackoff = 50 * time.Millisecond
