package sqlcgen

import "time"

type WarroomSnapshot struct {
	ID        int64
	Label     string
	Document  []byte
	CreatedAt time.Time
}
