package targets

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/edgerunner0x01/violette/internal/errors"
)

func addrStrings(set *Set) []string {
	out := make([]string, 0, set.Len())
	for _, a := range set.Addrs() {
		out = append(out, a.String())
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("enumerates every address of the prefix in order", func(t *testing.T) {
		set, err := New("10.0.0.0/30", nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"10.0.0.0", "10.0.0.1", "10.0.0.2", "10.0.0.3"}, addrStrings(set))
		assert.Equal(t, 4, set.Len())
	})

	t.Run("omits excluded addresses", func(t *testing.T) {
		set, err := New("10.0.0.0/30", []string{"10.0.0.1"})
		require.NoError(t, err)

		assert.Equal(t, []string{"10.0.0.0", "10.0.0.2", "10.0.0.3"}, addrStrings(set))
	})

	t.Run("accepts CIDR exclusion entries", func(t *testing.T) {
		set, err := New("10.0.0.0/28", []string{"10.0.0.8/30"})
		require.NoError(t, err)

		assert.Equal(t, 12, set.Len())
		for _, a := range set.Addrs() {
			assert.False(t, netip.MustParsePrefix("10.0.0.8/30").Contains(a),
				"excluded address %s present", a)
		}
	})

	t.Run("exclusions outside the range have no effect", func(t *testing.T) {
		set, err := New("10.0.0.0/30", []string{"192.168.1.1"})
		require.NoError(t, err)
		assert.Equal(t, 4, set.Len())
	})

	t.Run("normalizes an unmasked prefix", func(t *testing.T) {
		set, err := New("10.0.0.5/30", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.4", "10.0.0.5", "10.0.0.6", "10.0.0.7"}, addrStrings(set))
	})

	t.Run("single address prefix", func(t *testing.T) {
		set, err := New("192.168.1.7/32", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"192.168.1.7"}, addrStrings(set))
	})

	t.Run("point to point prefix", func(t *testing.T) {
		set, err := New("192.168.1.0/31", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"192.168.1.0", "192.168.1.1"}, addrStrings(set))
	})

	t.Run("rejects a malformed CIDR", func(t *testing.T) {
		_, err := New("not-a-cidr", nil)
		require.Error(t, err)
		assert.Equal(t, verrors.CodeInvalidRange, verrors.GetCode(err))
	})

	t.Run("rejects a bare address without prefix length", func(t *testing.T) {
		_, err := New("10.0.0.1", nil)
		require.Error(t, err)
		assert.Equal(t, verrors.CodeInvalidRange, verrors.GetCode(err))
	})

	t.Run("rejects a malformed exclusion entry", func(t *testing.T) {
		_, err := New("10.0.0.0/24", []string{"bogus"})
		require.Error(t, err)
		assert.Equal(t, verrors.CodeInvalidRange, verrors.GetCode(err))
	})

	t.Run("every address appears exactly once", func(t *testing.T) {
		set, err := New("172.16.0.0/24", nil)
		require.NoError(t, err)

		seen := make(map[netip.Addr]int)
		for _, a := range set.Addrs() {
			seen[a]++
		}
		assert.Len(t, seen, 256)
		for a, n := range seen {
			assert.Equal(t, 1, n, "address %s repeated", a)
		}
	})

	t.Run("addresses are strictly ascending", func(t *testing.T) {
		set, err := New("10.1.2.0/26", []string{"10.1.2.10", "10.1.2.40/29"})
		require.NoError(t, err)

		addrs := set.Addrs()
		for i := 1; i < len(addrs); i++ {
			assert.Equal(t, -1, addrs[i-1].Compare(addrs[i]),
				"%s not before %s", addrs[i-1], addrs[i])
		}
	})
}

func TestSetIsRestartable(t *testing.T) {
	set, err := New("10.0.0.0/29", []string{"10.0.0.3"})
	require.NoError(t, err)

	first := addrStrings(set)
	second := addrStrings(set)
	assert.Equal(t, first, second)
	assert.Equal(t, "10.0.0.0/29", set.Prefix().String())
}
