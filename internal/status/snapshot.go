// internal/status/snapshot.go
package status

// Snapshot is the station's current health as seen from the poll results.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
}

// OK reports whether the last poll result was good.
func (s Snapshot) OK() bool {
	return s.Health == HealthOK
}
