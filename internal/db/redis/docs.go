package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/backsync/internal/db"
	"github.com/kailas-cloud/backsync/internal/domain/record"
)

// putScript writes a document if ARGV[1] matches the stored rev ("" = must not exist).
// KEYS: doc hash, ids zset. ARGV: expected rev, body, id, rev suffix.
const putScript = `
local cur = redis.call('HGET', KEYS[1], 'rev')
if ARGV[1] == '' then
  if cur then return redis.error_reply('CONFLICT document exists') end
elseif cur ~= ARGV[1] then
  return redis.error_reply('CONFLICT revision mismatch')
end
local gen = 1
if cur then gen = tonumber(string.match(cur, '^(%d+)')) + 1 end
local rev = gen .. '-' .. ARGV[4]
redis.call('HSET', KEYS[1], 'rev', rev, 'body', ARGV[2])
redis.call('ZADD', KEYS[2], 0, ARGV[3])
return rev
`

// deleteScript removes a document if ARGV[1] is empty or matches the stored rev.
// KEYS: doc hash, ids zset. ARGV: expected rev, id.
const deleteScript = `
local cur = redis.call('HGET', KEYS[1], 'rev')
if not cur then return redis.error_reply('NOTFOUND') end
if ARGV[1] ~= '' and cur ~= ARGV[1] then
  return redis.error_reply('CONFLICT revision mismatch')
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[2])
return 1
`

// GetDoc reads a single document.
func (s *Store) GetDoc(ctx context.Context, collection, id string) (db.Row, error) {
	cmd := s.b().Hmget().Key(s.docKey(collection, id)).Field("rev", "body").Build()
	vals, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return db.Row{}, &db.Error{Op: db.OpGet, Err: err}
	}
	row, ok, err := decodeRow(id, vals)
	if err != nil {
		return db.Row{}, err
	}
	if !ok {
		return db.Row{}, db.ErrNotFound
	}
	return row, nil
}

// PutDoc writes a document atomically against its current revision.
func (s *Store) PutDoc(ctx context.Context, collection, id, rev string, doc map[string]any) (string, error) {
	body, err := json.Marshal(record.CouchCodec.Denormalize(record.Record{Fields: doc}))
	if err != nil {
		return "", &db.Error{Op: db.OpPut, Err: fmt.Errorf("marshal: %w", err)}
	}

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	cmd := s.b().Eval().Script(putScript).Numkeys(2).
		Key(s.docKey(collection, id), s.idsKey(collection)).
		Arg(rev, string(body), id, suffix).
		Build()

	newRev, err := s.do(ctx, cmd).ToString()
	if err != nil {
		return "", scriptErr(db.OpPut, err)
	}
	return newRev, nil
}

// DeleteDoc removes a document. An empty rev deletes whatever revision is current.
func (s *Store) DeleteDoc(ctx context.Context, collection, id, rev string) error {
	cmd := s.b().Eval().Script(deleteScript).Numkeys(2).
		Key(s.docKey(collection, id), s.idsKey(collection)).
		Arg(rev, id).
		Build()

	if err := s.do(ctx, cmd).Error(); err != nil {
		return scriptErr(db.OpDelete, err)
	}
	return nil
}

func scriptErr(op string, err error) error {
	switch {
	case isRedisErr(err, "conflict"):
		return &db.Error{Op: op, Err: fmt.Errorf("%w: %s", db.ErrConflict, err.Error())}
	case isRedisErr(err, "notfound"):
		return &db.Error{Op: op, Err: db.ErrNotFound}
	case rueidis.IsRedisNil(err):
		return &db.Error{Op: op, Err: db.ErrNotFound}
	}
	return &db.Error{Op: op, Err: err}
}
