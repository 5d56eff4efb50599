package ws

import "time"

// ConnInfo carries transport metadata captured at handshake time, used for
// logging and published lifecycle events.
type ConnInfo struct {
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
