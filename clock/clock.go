package clock

import "time"

// Clock supplies the timestamps stamped into the document's last_saved
// field. The store takes one so tests can pin time and deployments on
// hosts with drifting clocks can swap in the NTP-corrected variant.
type Clock interface {
	Now() time.Time
}

// System returns a Clock that reads the host clock directly.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
