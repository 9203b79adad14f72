// Package store persists scan results to SQLite. One row per host keyed by
// IP, with the host's ports replaced wholesale on every completed scan.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	verrors "github.com/edgerunner0x01/violette/internal/errors"
	"github.com/edgerunner0x01/violette/internal/logging"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const schema = `
CREATE TABLE IF NOT EXISTS hosts (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    ip        TEXT NOT NULL UNIQUE,
    hostname  TEXT NOT NULL DEFAULT '',
    last_scan TEXT NOT NULL DEFAULT '',
    os_guess  TEXT NOT NULL DEFAULT '',
    status    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ports (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    host_id     INTEGER NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
    port_number INTEGER NOT NULL,
    service     TEXT NOT NULL DEFAULT '',
    version     TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL DEFAULT '',
    UNIQUE(host_id, port_number)
);

CREATE INDEX IF NOT EXISTS idx_ports_host_id ON ports(host_id);
`

// Store is the result store. All write failures are wrapped as StoreError
// with CodePersistence; only Open failures are fatal to the caller.
type Store struct {
	db *sqlx.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open opens (or creates) the SQLite database at path, applies pragmas, and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, verrors.WrapStoreError("open", err)
	}

	pragmas := []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA synchronous = NORMAL;`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, verrors.WrapStoreError("pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, verrors.WrapStoreError("schema", err)
	}

	logging.InfoStore("result store opened", "path", path)
	return newStore(db), nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sqlx.DB) *Store {
	return newStore(db)
}

func newStore(db *sqlx.DB) *Store {
	return &Store{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// lockFor returns the mutex serializing writes for one host IP. Writes for
// different hosts proceed concurrently.
func (s *Store) lockFor(ip string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ip]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ip] = l
	}
	return l
}

// UpsertHost inserts or updates the host row keyed by IP and returns its id.
// Repeating the call with identical data leaves a single row.
func (s *Store) UpsertHost(ctx context.Context, h Host) (int64, error) {
	l := s.lockFor(h.IP)
	l.Lock()
	defer l.Unlock()
	return s.upsertHost(ctx, s.db, h)
}

func (s *Store) upsertHost(ctx context.Context, q sqlx.ExtContext, h Host) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `
		INSERT INTO hosts (ip, hostname, last_scan, os_guess, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET
			hostname  = excluded.hostname,
			last_scan = excluded.last_scan,
			os_guess  = excluded.os_guess,
			status    = excluded.status
		RETURNING id`,
		h.IP, h.Hostname, h.LastScan, h.OSGuess, h.Status)
	if err != nil {
		return 0, verrors.WrapStoreError("upsert host", err)
	}
	return id, nil
}

// ReplacePorts transactionally replaces the port set for a host. Observers
// never see a partially replaced set.
func (s *Store) ReplacePorts(ctx context.Context, hostID int64, ports []Port) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return verrors.WrapStoreError("replace ports begin", err)
	}
	if err := replacePortsTx(ctx, tx, hostID, ports); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return verrors.WrapStoreError("replace ports commit", err)
	}
	return nil
}

func replacePortsTx(ctx context.Context, tx *sqlx.Tx, hostID int64, ports []Port) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ports WHERE host_id = ?`, hostID); err != nil {
		return verrors.WrapStoreError("delete ports", err)
	}
	for _, p := range ports {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ports (host_id, port_number, service, version, state)
			VALUES (?, ?, ?, ?, ?)`,
			hostID, p.PortNumber, p.Service, p.Version, p.State)
		if err != nil {
			return verrors.WrapStoreError("insert port", err)
		}
	}
	return nil
}

// RecordScan writes a host and its ports atomically under the host's write
// lock. This is the single write a terminal scan transition performs.
func (s *Store) RecordScan(ctx context.Context, h Host, ports []Port) (int64, error) {
	l := s.lockFor(h.IP)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, verrors.WrapStoreError("record scan begin", err)
	}
	id, err := s.upsertHost(ctx, tx, h)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := replacePortsTx(ctx, tx, id, ports); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, verrors.WrapStoreError("record scan commit", err)
	}
	return id, nil
}

// UpdateHostStatus sets the status column for a host, creating the row if
// it does not exist yet, and clears any port rows left from an earlier
// scan so the snapshot never pairs a timed-out or error status with stale
// ports. last_scan is left untouched: these writes must not make the host
// look recently scanned.
func (s *Store) UpdateHostStatus(ctx context.Context, ip, status string) error {
	l := s.lockFor(ip)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return verrors.WrapStoreError("update host status begin", err)
	}
	var id int64
	err = sqlx.GetContext(ctx, tx, &id, `
		INSERT INTO hosts (ip, status) VALUES (?, ?)
		ON CONFLICT(ip) DO UPDATE SET status = excluded.status
		RETURNING id`,
		ip, status)
	if err != nil {
		_ = tx.Rollback()
		return verrors.WrapStoreError("update host status", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ports WHERE host_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return verrors.WrapStoreError("update host status clear ports", err)
	}
	if err := tx.Commit(); err != nil {
		return verrors.WrapStoreError("update host status commit", err)
	}
	return nil
}

// RecentlyScanned reports whether the host at ip completed a scan within
// the given window. Unknown hosts and hosts without a recorded scan time
// are not recent.
func (s *Store) RecentlyScanned(ctx context.Context, ip string, window time.Duration) (bool, error) {
	var lastScan string
	err := s.db.GetContext(ctx, &lastScan,
		`SELECT last_scan FROM hosts WHERE ip = ?`, ip)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, verrors.WrapStoreError("recently scanned", err)
	}

	t := ParseTimestamp(lastScan)
	if t.IsZero() {
		return false, nil
	}
	return time.Since(t) < window, nil
}

// Snapshot returns all hosts with their ports, ordered by IP in address
// order (the ip column is TEXT, so the sort happens here on the parsed
// address), ports ordered by number.
func (s *Store) Snapshot(ctx context.Context) ([]HostRecord, error) {
	var hosts []Host
	err := s.db.SelectContext(ctx, &hosts,
		`SELECT id, ip, hostname, last_scan, os_guess, status FROM hosts`)
	if err != nil {
		return nil, verrors.WrapStoreError("snapshot hosts", err)
	}
	sort.Slice(hosts, func(i, j int) bool {
		a, errA := netip.ParseAddr(hosts[i].IP)
		b, errB := netip.ParseAddr(hosts[j].IP)
		if errA != nil || errB != nil {
			return hosts[i].IP < hosts[j].IP
		}
		return a.Compare(b) < 0
	})

	var ports []Port
	err = s.db.SelectContext(ctx, &ports,
		`SELECT id, host_id, port_number, service, version, state FROM ports ORDER BY host_id, port_number`)
	if err != nil {
		return nil, verrors.WrapStoreError("snapshot ports", err)
	}

	byHost := make(map[int64][]Port, len(hosts))
	for _, p := range ports {
		byHost[p.HostID] = append(byHost[p.HostID], p)
	}

	records := make([]HostRecord, 0, len(hosts))
	for _, h := range hosts {
		records = append(records, HostRecord{Host: h, Ports: byHost[h.ID]})
	}
	return records, nil
}

// Reset deletes all stored results. Used by --fresh before a run.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return verrors.WrapStoreError("reset begin", err)
	}
	for _, stmt := range []string{`DELETE FROM ports`, `DELETE FROM hosts`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return verrors.WrapStoreError("reset", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return verrors.WrapStoreError("reset commit", err)
	}
	return nil
}
