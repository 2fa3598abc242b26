package warroom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// MaxActivityLogs caps the activity feed.
const MaxActivityLogs = 40

// AddActivityLog inserts entry newest-first, replacing any earlier entry for
// the same factory, and keeps the MaxActivityLogs most recent entries. A
// factory id that names no factory is rejected with ErrNotFound.
func (s *Store) AddActivityLog(entry ActivityLog) (ActivityLog, error) {
	var out ActivityLog
	err := s.update("add_activity_log", func(st *State) error {
		if strings.TrimSpace(entry.Title) == "" {
			return fmt.Errorf("%w: activity log title is required", ErrInvalidInput)
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.Timestamp.IsZero() {
			entry.Timestamp = NewTimestamp(s.now())
		}
		entry.Status = NormalizeStatus(entry.Status)
		entry.FactoryID = strings.TrimSpace(entry.FactoryID)
		if entry.FactoryID != "" {
			gi, si, _, ok := locateFactory(st.ParentGroups, entry.FactoryID)
			if !ok {
				return fmt.Errorf("%w: factory %q", ErrNotFound, entry.FactoryID)
			}
			entry.SubsidiaryID = st.ParentGroups[gi].Subsidiaries[si].ID
			entry.ParentGroupID = st.ParentGroups[gi].ID
		}
		st.ActivityLogs = appendActivityLog(st.ActivityLogs, entry)
		out = entry
		return nil
	})
	return out, err
}

func appendActivityLog(logs []ActivityLog, entry ActivityLog) []ActivityLog {
	out := make([]ActivityLog, 0, len(logs)+1)
	out = append(out, entry)
	for _, l := range logs {
		if entry.FactoryID != "" && l.FactoryID == entry.FactoryID {
			continue
		}
		out = append(out, l)
	}
	sortActivityLogs(out)
	if len(out) > MaxActivityLogs {
		out = out[:MaxActivityLogs]
	}
	return out
}

// sortActivityLogs orders newest first; ties keep insertion order so a fresh
// entry stays ahead of older ones with the same timestamp.
func sortActivityLogs(logs []ActivityLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp.Time)
	})
}

// normalizeActivityLogs applies the feed rules to a bulk-loaded list.
func normalizeActivityLogs(logs []ActivityLog) []ActivityLog {
	sorted := make([]ActivityLog, len(logs))
	copy(sorted, logs)
	sortActivityLogs(sorted)

	out := make([]ActivityLog, 0, len(sorted))
	seen := make(map[string]struct{}, len(sorted))
	for _, l := range sorted {
		if l.FactoryID != "" {
			if _, ok := seen[l.FactoryID]; ok {
				continue
			}
			seen[l.FactoryID] = struct{}{}
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		out = append(out, l)
		if len(out) == MaxActivityLogs {
			break
		}
	}
	return out
}
