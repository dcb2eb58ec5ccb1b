package persistence

import (
	"database/sql"
	"time"
)

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func unixMillisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(v)
}

func nullableMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t.UnixMilli()
}

func nullInt64ToTime(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}

	return unixMillisToTime(v.Int64)
}
