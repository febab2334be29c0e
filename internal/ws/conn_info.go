package ws

import "time"

// ConnInfo captures identity and correlation data for one websocket
// connection, used for metrics and event publishing.
type ConnInfo struct {
	ConnID      string
	UserID      string
	Username    string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
