package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"
)

// UUIDToPgtype converts uuid.UUID to pgtype.UUID
func UUIDToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// PgtypeToUUID converts pgtype.UUID to uuid.UUID
func PgtypeToUUID(id pgtype.UUID) uuid.UUID {
	return id.Bytes
}

// PgtypeToTime converts pgtype.Timestamptz to time.Time
func PgtypeToTime(t pgtype.Timestamptz) time.Time {
	return t.Time
}

// OptionIntToPgInt4 converts mo.Option[int] to pgtype.Int4
func OptionIntToPgInt4(o mo.Option[int]) pgtype.Int4 {
	v, ok := o.Get()
	if !ok {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(v), Valid: true}
}

// PgInt4ToOption converts pgtype.Int4 to mo.Option[int]
func PgInt4ToOption(i pgtype.Int4) mo.Option[int] {
	if !i.Valid {
		return mo.None[int]()
	}
	return mo.Some(int(i.Int32))
}

// OptionStringToPgtext converts mo.Option[string] to pgtype.Text
func OptionStringToPgtext(o mo.Option[string]) pgtype.Text {
	v, ok := o.Get()
	if !ok {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

// PgtextToOption converts pgtype.Text to mo.Option[string]
func PgtextToOption(t pgtype.Text) mo.Option[string] {
	if !t.Valid {
		return mo.None[string]()
	}
	return mo.Some(t.String)
}

// MetadataToJSONB converts map[string]any to []byte (JSONB). nil は空オブジェクトになる
func MetadataToJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// JSONBToMetadata converts []byte (JSONB) to map[string]any
func JSONBToMetadata(b []byte) map[string]any {
	if len(b) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
