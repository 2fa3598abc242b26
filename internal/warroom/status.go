package warroom

import "strings"

type Status string

const (
	StatusActive      Status = "active"
	StatusOnline      Status = "online"
	StatusWarning     Status = "warning"
	StatusCritical    Status = "critical"
	StatusOffline     Status = "offline"
	StatusMaintenance Status = "maintenance"
	StatusInactive    Status = "inactive"
)

var allStatuses = []Status{
	StatusActive,
	StatusOnline,
	StatusWarning,
	StatusCritical,
	StatusOffline,
	StatusMaintenance,
	StatusInactive,
}

func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func NormalizeStatus(s Status) Status {
	return Status(strings.ToLower(strings.TrimSpace(string(s))))
}

// IsCanonical reports whether s (after normalisation) is one of the known
// statuses. Unknown statuses are still stored as given.
func (s Status) IsCanonical() bool {
	n := NormalizeStatus(s)
	for _, st := range allStatuses {
		if st == n {
			return true
		}
	}
	return false
}

func statusOr(s, fallback Status) Status {
	if n := NormalizeStatus(s); n != "" {
		return n
	}
	return fallback
}
