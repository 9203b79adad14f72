package store

import "time"

// Host is a row in the hosts table. LastScan is stored as RFC 3339 text.
type Host struct {
	ID       int64  `db:"id" json:"id"`
	IP       string `db:"ip" json:"ip"`
	Hostname string `db:"hostname" json:"hostname"`
	LastScan string `db:"last_scan" json:"last_scan"`
	OSGuess  string `db:"os_guess" json:"os_guess"`
	Status   string `db:"status" json:"status"`
}

// Port is a row in the ports table.
type Port struct {
	ID         int64  `db:"id" json:"id"`
	HostID     int64  `db:"host_id" json:"-"`
	PortNumber int    `db:"port_number" json:"port_number"`
	Service    string `db:"service" json:"service"`
	Version    string `db:"version" json:"version"`
	State      string `db:"state" json:"state"`
}

// HostRecord is a host with its ports, as returned by Snapshot.
type HostRecord struct {
	Host
	Ports []Port `json:"ports"`
}

// Timestamp formats t the way last_scan is stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTimestamp parses a stored last_scan value. The zero time is returned
// for empty or malformed values.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
