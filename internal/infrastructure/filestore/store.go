// Package filestore is the flat-file state store: the whole entity state lives in one
// CBOR snapshot replaced by atomic rename, and audit events go to an append-only JSONL
// log next to it.
package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/fxamacker/cbor/v2"
)

const (
	snapshotFile = "state.cbor"
	auditFile    = "audit-log.jsonl"
)

type snapshot struct {
	Offers          map[string]*domain.Offer          `cbor:"offers"`
	Orders          map[string]*domain.Order          `cbor:"orders"`
	Consents        map[string]*domain.Consent        `cbor:"consents"`
	Deliveries      map[string]*domain.Delivery       `cbor:"deliveries"`
	Settlements     map[string]*domain.Settlement     `cbor:"settlements"`
	Resources       map[string]*domain.Resource       `cbor:"resources"`
	Leases          map[string]*domain.Lease          `cbor:"leases"`
	Disputes        map[string]*domain.Dispute        `cbor:"disputes"`
	RevocationJobs  map[string]*domain.RevocationJob  `cbor:"revocationJobs"`
	BridgeTransfers map[string]*domain.BridgeTransfer `cbor:"bridgeTransfers"`
	Ledger          []*domain.LedgerEntry             `cbor:"ledger"`
	// AuditOutbox holds audit events committed with the snapshot but not yet
	// appended to the JSONL log.
	AuditOutbox []*domain.AuditEvent `cbor:"auditOutbox,omitempty"`
}

func (s *snapshot) ensure() {
	if s.Offers == nil {
		s.Offers = map[string]*domain.Offer{}
	}
	if s.Orders == nil {
		s.Orders = map[string]*domain.Order{}
	}
	if s.Consents == nil {
		s.Consents = map[string]*domain.Consent{}
	}
	if s.Deliveries == nil {
		s.Deliveries = map[string]*domain.Delivery{}
	}
	if s.Settlements == nil {
		s.Settlements = map[string]*domain.Settlement{}
	}
	if s.Resources == nil {
		s.Resources = map[string]*domain.Resource{}
	}
	if s.Leases == nil {
		s.Leases = map[string]*domain.Lease{}
	}
	if s.Disputes == nil {
		s.Disputes = map[string]*domain.Dispute{}
	}
	if s.RevocationJobs == nil {
		s.RevocationJobs = map[string]*domain.RevocationJob{}
	}
	if s.BridgeTransfers == nil {
		s.BridgeTransfers = map[string]*domain.BridgeTransfer{}
	}
}

type codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCodec() (*codec, error) {
	enc, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) clone(src, dst any) error {
	raw, err := c.enc.Marshal(src)
	if err != nil {
		return err
	}
	return c.dec.Unmarshal(raw, dst)
}

// Store holds one process-wide mutex. Reads and transactions both take it, so a
// transaction observes no concurrent writer and readers never see a half-applied group.
type Store struct {
	mu    sync.Mutex
	dir   string
	codec *codec
	state *snapshot
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	c, err := newCodec()
	if err != nil {
		return nil, fmt.Errorf("init cbor codec: %w", err)
	}
	s := &Store{dir: dir, codec: c, state: &snapshot{}}
	raw, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read snapshot: %w", err)
	default:
		if err := c.dec.Unmarshal(raw, s.state); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	s.state.ensure()
	if err := s.flushOutbox(true); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return nil }

// RunInTransaction runs fn against a deep copy of the state. The copy replaces the
// current state only after it has been written to disk; any error leaves both the
// in-memory and on-disk state untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	staged := &snapshot{}
	if err := s.codec.clone(s.state, staged); err != nil {
		return fmt.Errorf("stage snapshot: %w", err)
	}
	staged.ensure()

	v := &view{store: s, state: staged}
	if err := fn(v); err != nil {
		return err
	}
	if !v.stateDirty {
		// audit-only groups are a single append
		return s.appendAudit(v.audit)
	}
	staged.AuditOutbox = append(staged.AuditOutbox, v.audit...)
	if err := s.writeSnapshot(staged); err != nil {
		return err
	}
	s.state = staged
	// the group is durable; a failed flush is retried on the next commit or open
	_ = s.flushOutbox(false)
	return nil
}

// flushOutbox moves outbox events into the audit log. After a crash the log may
// already hold some of them, so on open events already present are skipped.
func (s *Store) flushOutbox(dedupe bool) error {
	pending := s.state.AuditOutbox
	if len(pending) == 0 {
		return nil
	}
	if dedupe {
		existing, err := s.readAudit(0)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(existing))
		for _, e := range existing {
			seen[e.ID] = struct{}{}
		}
		filtered := pending[:0:0]
		for _, e := range pending {
			if _, ok := seen[e.ID]; !ok {
				filtered = append(filtered, e)
			}
		}
		pending = filtered
	}
	if err := s.appendAudit(pending); err != nil {
		return err
	}
	s.state.AuditOutbox = nil
	return nil
}

func (s *Store) writeSnapshot(state *snapshot) error {
	raw, err := s.codec.enc.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, snapshotFile)); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *Store) appendAudit(events []*domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(s.dir, auditFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range events {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode audit event: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return f.Sync()
}

func (s *Store) readAudit(limit int) ([]*domain.AuditEvent, error) {
	f, err := os.Open(filepath.Join(s.dir, auditFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var ring []*domain.AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e domain.AuditEvent
		if err := json.Unmarshal(line, &e); err != nil {
			// a torn trailing line from a crash is skipped
			continue
		}
		ring = append(ring, &e)
		if limit > 0 && len(ring) > limit {
			ring = ring[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return ring, nil
}

// read runs fn against the live state under the store lock. View getters copy
// entities out, so callers never alias stored values.
func read[T any](s *Store, fn func(v *view) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{store: s, state: s.state, readOnly: true})
}

func (s *Store) write(ctx context.Context, fn func(v domain.Repository) error) error {
	return s.RunInTransaction(ctx, fn)
}
