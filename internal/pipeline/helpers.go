package pipeline

import (
	"database/sql"
	"encoding/json"
	"time"
)

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func sqlNullTime(ts time.Time) sql.NullTime {
	if ts.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: ts, Valid: true}
}
