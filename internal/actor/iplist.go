// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

package actor

import (
	"net"

	"github.com/kentik/patricia"
	"github.com/kentik/patricia/uint32_tree"
	"github.com/wardsec/go-ward/internal/wdlib/wderrors"
)

type (
	// CIDRIPListStore is the set of data-structures to store CIDR IPv6 and
	// IPv4 exemption lists. Locking is avoided by not having concurrent
	// insertions and lookups: a new CIDRIPListStore is created when a new
	// list is loaded, and only swapping the store pointer needs to be
	// thread-safe.
	CIDRIPListStore struct {
		treeV4 *cidrTreeV4
		treeV6 *cidrTreeV6
	}

	// IPv4 radix tree mapping CIDR IPv4 addresses to the entry index of the
	// matched CIDR string.
	cidrTreeV4 struct {
		tree    *uint32_tree.TreeV4
		entries []string
	}

	cidrTreeV6 struct {
		tree    *uint32_tree.TreeV6
		entries []string
	}
)

func NewCIDRIPListStore(cidrs []string) (*CIDRIPListStore, error) {
	if len(cidrs) == 0 {
		return nil, nil
	}
	if len(cidrs) > maxStoreEntries {
		return nil, wderrors.Errorf("too many list entries: `%d` exceeds `%d`", len(cidrs), maxStoreEntries)
	}

	treeV4 := &cidrTreeV4{tree: uint32_tree.NewTreeV4()}
	treeV6 := &cidrTreeV6{tree: uint32_tree.NewTreeV6()}
	var hasIPv4, hasIPv6 bool // true when at least one IP was added to the tree
	for _, cidr := range cidrs {
		ipv4, ipv6, err := patricia.ParseIPFromString(cidr)
		if err != nil {
			return nil, wderrors.Wrapf(err, "could not parse the IP address or CIDR `%s`", cidr)
		}
		if ipv4 != nil {
			if err := treeV4.add(ipv4, cidr); err != nil {
				return nil, err
			}
			hasIPv4 = true
		} else if ipv6 != nil {
			if err := treeV6.add(ipv6, cidr); err != nil {
				return nil, err
			}
			hasIPv6 = true
		}
	}
	// Release empty trees when nothing was added to them.
	if !hasIPv4 {
		treeV4 = nil
	}
	if !hasIPv6 {
		treeV6 = nil
	}
	return &CIDRIPListStore{
		treeV4: treeV4,
		treeV6: treeV6,
	}, nil
}

// Find returns true when the given IP v4/v6 address matches a list entry,
// along with the most specific matched entry.
func (s *CIDRIPListStore) Find(ip net.IP) (exists bool, matched string, err error) {
	var tags []uint32
	var entries []string
	if stdIPv4 := ip.To4(); stdIPv4 != nil {
		tree := s.treeV4
		if tree == nil {
			return false, "", nil
		}
		IPv4 := patricia.NewIPv4AddressFromBytes(stdIPv4, ipv4Bits)
		tags, err = tree.tree.FindTags(IPv4)
		entries = tree.entries
	} else if stdIPv6 := ip.To16(); stdIPv6 != nil {
		// warning: the previous condition is also true with an ipv4 address
		// (as they can be represented using ipv6 ::ffff:ipv4), so testing the
		// ipv4 first is important to avoid entering this case with ipv4
		// addresses.
		tree := s.treeV6
		if tree == nil {
			return false, "", nil
		}
		IPv6 := patricia.NewIPv6Address(stdIPv6, ipv6Bits)
		tags, err = tree.tree.FindTags(IPv6)
		entries = tree.entries
	}
	if err != nil {
		return false, "", err
	}
	if len(tags) == 0 {
		return false, "", nil
	}
	// Returned tags are ordered by matching prefix length, ie. the
	// right-most is the deepest match (eg. match in a /16, then in a /24).
	return true, entries[tags[len(tags)-1]], nil
}

func (t *cidrTreeV4) add(ip *patricia.IPv4Address, cidr string) error {
	tag := uint32(len(t.entries))
	added, _, err := t.tree.Add(*ip, tag, func(current uint32, _ uint32) bool {
		// Called only when the address is already in the tree. Overwrite the
		// entry at the existing tag and report it as existing to avoid adding
		// it again.
		t.entries[current] = cidr
		return true
	})
	if added {
		t.entries = append(t.entries, cidr)
	}
	return err
}

func (t *cidrTreeV6) add(ip *patricia.IPv6Address, cidr string) error {
	tag := uint32(len(t.entries))
	added, _, err := t.tree.Add(*ip, tag, func(current uint32, _ uint32) bool {
		t.entries[current] = cidr
		return true
	})
	if added {
		t.entries = append(t.entries, cidr)
	}
	return err
}
