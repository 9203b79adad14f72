package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/edgerunner0x01/violette/internal/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUpsertHost(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	host := Host{
		IP:       "10.0.0.2",
		Hostname: "web01",
		LastScan: Timestamp(time.Now()),
		OSGuess:  "Linux 5.x",
		Status:   "up",
	}

	t.Run("insert returns an id", func(t *testing.T) {
		id, err := st.UpsertHost(ctx, host)
		require.NoError(t, err)
		assert.Greater(t, id, int64(0))
	})

	t.Run("repeat upsert keeps a single row and the same id", func(t *testing.T) {
		first, err := st.UpsertHost(ctx, host)
		require.NoError(t, err)
		second, err := st.UpsertHost(ctx, host)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		records, err := st.Snapshot(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("upsert updates mutable columns", func(t *testing.T) {
		updated := host
		updated.Status = "down"
		updated.Hostname = ""
		_, err := st.UpsertHost(ctx, updated)
		require.NoError(t, err)

		records, err := st.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "down", records[0].Status)
		assert.Equal(t, "", records[0].Hostname)
	})
}

func TestReplacePorts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.UpsertHost(ctx, Host{IP: "10.0.0.2", Status: "up"})
	require.NoError(t, err)

	require.NoError(t, st.ReplacePorts(ctx, id, []Port{
		{PortNumber: 22, Service: "ssh", Version: "OpenSSH 9.6", State: "open"},
		{PortNumber: 80, Service: "http", State: "open"},
	}))

	t.Run("replacement discards the previous set", func(t *testing.T) {
		require.NoError(t, st.ReplacePorts(ctx, id, []Port{
			{PortNumber: 443, Service: "https", State: "open"},
		}))

		records, err := st.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Len(t, records[0].Ports, 1)
		assert.Equal(t, 443, records[0].Ports[0].PortNumber)
	})

	t.Run("empty replacement clears all ports", func(t *testing.T) {
		require.NoError(t, st.ReplacePorts(ctx, id, nil))

		records, err := st.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Empty(t, records[0].Ports)
	})
}

func TestRecordScan(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	host := Host{IP: "10.0.0.5", Status: "up", LastScan: Timestamp(time.Now())}
	ports := []Port{{PortNumber: 22, Service: "ssh", State: "open"}}

	id, err := st.RecordScan(ctx, host, ports)
	require.NoError(t, err)

	// A rescan of the same host replaces its row and ports.
	id2, err := st.RecordScan(ctx, host, []Port{{PortNumber: 8080, Service: "http-proxy", State: "open"}})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	records, err := st.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Ports, 1)
	assert.Equal(t, 8080, records[0].Ports[0].PortNumber)
}

func TestSnapshotOrdering(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	// 10.0.0.10 sorts before 10.0.0.2 lexicographically; the snapshot must
	// order by address value instead.
	for _, ip := range []string{"10.0.0.10", "10.0.0.3", "10.0.0.1", "10.0.0.2"} {
		_, err := st.UpsertHost(ctx, Host{IP: ip, Status: "up"})
		require.NoError(t, err)
	}

	records, err := st.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "10.0.0.1", records[0].IP)
	assert.Equal(t, "10.0.0.2", records[1].IP)
	assert.Equal(t, "10.0.0.3", records[2].IP)
	assert.Equal(t, "10.0.0.10", records[3].IP)
}

func TestUpdateHostStatus(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	t.Run("creates the row when missing", func(t *testing.T) {
		require.NoError(t, st.UpdateHostStatus(ctx, "10.0.0.9", "timed-out"))

		records, err := st.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "timed-out", records[0].Status)
	})

	t.Run("clears ports left from an earlier scan", func(t *testing.T) {
		stamp := Timestamp(time.Now())
		_, err := st.RecordScan(ctx, Host{IP: "10.0.0.4", Status: "up", LastScan: stamp},
			[]Port{{PortNumber: 22, Service: "ssh", State: "open"}})
		require.NoError(t, err)

		require.NoError(t, st.UpdateHostStatus(ctx, "10.0.0.4", "timed-out"))

		records, err := st.Snapshot(ctx)
		require.NoError(t, err)
		byIP := make(map[string]HostRecord)
		for _, r := range records {
			byIP[r.IP] = r
		}
		got := byIP["10.0.0.4"]
		assert.Equal(t, "timed-out", got.Status)
		assert.Empty(t, got.Ports, "stale ports paired with a timed-out status")
		// Only the status changes; the scan timestamp is untouched.
		assert.Equal(t, stamp, got.LastScan)
	})
}

func TestRecentlyScanned(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	t.Run("unknown host is not recent", func(t *testing.T) {
		recent, err := st.RecentlyScanned(ctx, "10.9.9.9", 24*time.Hour)
		require.NoError(t, err)
		assert.False(t, recent)
	})

	t.Run("host scanned just now is recent", func(t *testing.T) {
		_, err := st.UpsertHost(ctx, Host{IP: "10.0.0.1", Status: "up", LastScan: Timestamp(time.Now())})
		require.NoError(t, err)

		recent, err := st.RecentlyScanned(ctx, "10.0.0.1", 24*time.Hour)
		require.NoError(t, err)
		assert.True(t, recent)
	})

	t.Run("host scanned outside the window is not recent", func(t *testing.T) {
		old := Timestamp(time.Now().Add(-48 * time.Hour))
		_, err := st.UpsertHost(ctx, Host{IP: "10.0.0.2", Status: "up", LastScan: old})
		require.NoError(t, err)

		recent, err := st.RecentlyScanned(ctx, "10.0.0.2", 24*time.Hour)
		require.NoError(t, err)
		assert.False(t, recent)
	})

	t.Run("host without a scan timestamp is not recent", func(t *testing.T) {
		err := st.UpdateHostStatus(ctx, "10.0.0.3", "timed-out")
		require.NoError(t, err)

		recent, err := st.RecentlyScanned(ctx, "10.0.0.3", 24*time.Hour)
		require.NoError(t, err)
		assert.False(t, recent)
	})
}

func TestReset(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.UpsertHost(ctx, Host{IP: "10.0.0.1", Status: "up"})
	require.NoError(t, err)
	require.NoError(t, st.ReplacePorts(ctx, id, []Port{{PortNumber: 22, State: "open"}}))

	require.NoError(t, st.Reset(ctx))

	records, err := st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreErrorsArePersistenceCoded(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	st := NewWithDB(sqlx.NewDb(mockDB, "sqlite"))

	t.Run("upsert failure", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO hosts").WillReturnError(assert.AnError)

		_, err := st.UpsertHost(context.Background(), Host{IP: "10.0.0.1"})
		require.Error(t, err)
		assert.Equal(t, verrors.CodePersistence, verrors.GetCode(err))
	})

	t.Run("replace ports rolls back on insert failure", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM ports").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ports").WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := st.ReplacePorts(context.Background(), 1, []Port{{PortNumber: 22}})
		require.Error(t, err)
		assert.Equal(t, verrors.CodePersistence, verrors.GetCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("snapshot failure", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, ip").WillReturnError(assert.AnError)

		_, err := st.Snapshot(context.Background())
		require.Error(t, err)
		assert.Equal(t, verrors.CodePersistence, verrors.GetCode(err))
	})
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	assert.Equal(t, now, ParseTimestamp(Timestamp(now)))
	assert.True(t, ParseTimestamp("").IsZero())
	assert.True(t, ParseTimestamp("not-a-time").IsZero())
}
