package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSink menyimpan audit ke tabel audit_log; id event jadi kunci dedup.
type PGSink struct{ DB *pgxpool.Pool }

func (s *PGSink) Append(ctx context.Context, e Event) error {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO audit_log(id, at, actor, role, action, entity_type, entity_id, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.At, e.Actor, e.Role, e.Action, e.EntityType, e.EntityID, string(meta))
	return err
}

func (s *PGSink) Search(ctx context.Context, q string, limit int) ([]Event, error) {
	sql := `SELECT id, at, actor, role, action, entity_type, entity_id, meta FROM audit_log`
	args := []any{}
	if qq := strings.TrimSpace(q); qq != "" {
		args = append(args, "%"+escapeLike(qq)+"%")
		sql += ` WHERE actor ILIKE $1 OR action ILIKE $1 OR entity_id ILIKE $1`
	}
	args = append(args, clampLimit(limit))
	sql += ` ORDER BY at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e    Event
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.At, &e.Actor, &e.Role, &e.Action, &e.EntityType, &e.EntityID, &meta); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

