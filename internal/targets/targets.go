// Package targets resolves a CIDR range and exclusion list into the ordered
// set of addresses a scan run will visit.
package targets

import (
	"net/netip"

	"go4.org/netipx"

	verrors "github.com/edgerunner0x01/violette/internal/errors"
)

// Set is an immutable, ordered collection of scan targets. A Set can be
// iterated any number of times; restarting a run re-reads the same sequence.
type Set struct {
	cidr  netip.Prefix
	addrs []netip.Addr
}

// New parses the CIDR and exclusion entries and enumerates every address of
// the prefix in ascending order, exactly once, with excluded addresses
// omitted. Exclusion entries may be single addresses or CIDR blocks;
// entries outside the target range are accepted and have no effect.
func New(cidr string, exclude []string) (*Set, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, verrors.ErrInvalidRange(cidr, err)
	}
	prefix = prefix.Masked()

	var excluded netipx.IPSetBuilder
	for _, entry := range exclude {
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			excluded.AddPrefix(p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, verrors.ErrInvalidRange(entry, err)
		}
		excluded.Add(addr)
	}
	skip, err := excluded.IPSet()
	if err != nil {
		return nil, verrors.WrapScanError(verrors.CodeInvalidRange, "invalid exclusion set", err)
	}

	s := &Set{cidr: prefix}
	r := netipx.RangeOfPrefix(prefix)
	for addr := r.From(); addr.Compare(r.To()) <= 0; addr = addr.Next() {
		if !skip.Contains(addr) {
			s.addrs = append(s.addrs, addr)
		}
		if addr == r.To() {
			break
		}
	}
	return s, nil
}

// Addrs returns the target addresses in ascending order. The returned slice
// is shared; callers must not modify it.
func (s *Set) Addrs() []netip.Addr {
	return s.addrs
}

// Len reports the number of targets.
func (s *Set) Len() int {
	return len(s.addrs)
}

// Prefix returns the masked prefix the Set was built from.
func (s *Set) Prefix() netip.Prefix {
	return s.cidr
}
