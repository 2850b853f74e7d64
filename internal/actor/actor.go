// Copyright (c) 2024 - 2026 Wardsec. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.wardsec.io/terms.html

// Package actor holds the exemption stores consulted by the pipeline: the
// CIDR IP passlist, the excluded-path list and the exempt principal set. It
// wraps memory- and cpu-efficient data-structures and is designed to have
// the shortest possible lookup time from HTTP request handlers while
// allowing new lists to be loaded concurrently, without locking the lookup
// operations. When a new list is set, a new store is built while the current
// one is still being used, and only the store pointer swap is synchronized,
// using atomic pointer operations.

package actor

import (
	"net"
	"sync/atomic"
	"unsafe"

	"github.com/wardsec/go-ward/internal/plog"
)

// Maximum number of list entries that can be stored.
const maxStoreEntries = 1024 * 1024

// Number of bits in IP addresses.
const (
	ipv4Bits = net.IPv4len * 8
	ipv6Bits = net.IPv6len * 8
)

// Store is the set of exemption lists.
type Store struct {
	// The CIDR IP exemption passlist.
	cidrIPExemptionStore *CIDRIPListStore
	// The excluded-path prefix list.
	excludedPathStore *PathListStore
	// The exempt principal identifier set.
	exemptUserStore *UserListStore

	logger *plog.Logger
}

func NewStore(logger *plog.Logger) *Store {
	return &Store{
		logger: logger,
	}
}

// SetIPExemptions creates a new passlist store out of the given IP addresses
// and CIDR ranges and then replaces the current one. The new store is built
// while allowing accesses to the current one.
func (s *Store) SetIPExemptions(cidrs []string) error {
	store, err := NewCIDRIPListStore(cidrs)
	if err != nil {
		s.logger.Error(err)
		return err
	}
	s.setCIDRIPExemptionStore(store)
	return nil
}

func (s *Store) getCIDRIPExemptionStore() (store *CIDRIPListStore) {
	return (*CIDRIPListStore)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&s.cidrIPExemptionStore))))
}

func (s *Store) setCIDRIPExemptionStore(store *CIDRIPListStore) {
	atomic.StorePointer((*unsafe.Pointer)(unsafe.Pointer(&s.cidrIPExemptionStore)), unsafe.Pointer(store))
}

// IsIPExempt returns true when the given IP address matched an exemption
// entry, along with the matched entry. The error is non-nil when an internal
// error occurred.
func (s *Store) IsIPExempt(ip net.IP) (exempt bool, matchedCIDR string, err error) {
	store := s.getCIDRIPExemptionStore()
	if store == nil {
		return false, "", nil
	}
	return store.Find(ip)
}

// SetExcludedPaths creates a new excluded-path store and then replaces the
// current one.
func (s *Store) SetExcludedPaths(paths []string) {
	s.setExcludedPathStore(NewPathListStore(paths))
}

func (s *Store) getExcludedPathStore() (store *PathListStore) {
	return (*PathListStore)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&s.excludedPathStore))))
}

func (s *Store) setExcludedPathStore(store *PathListStore) {
	atomic.StorePointer((*unsafe.Pointer)(unsafe.Pointer(&s.excludedPathStore)), unsafe.Pointer(store))
}

// IsPathExcluded returns true when an excluded-path entry is a prefix of the
// given request path.
func (s *Store) IsPathExcluded(path string) bool {
	store := s.getExcludedPathStore()
	if store == nil {
		return false
	}
	return store.Find(path)
}

// SetUserExemptions creates a new exempt principal store and then replaces
// the current one.
func (s *Store) SetUserExemptions(users []string) {
	s.setExemptUserStore(NewUserListStore(users))
}

func (s *Store) getExemptUserStore() (store *UserListStore) {
	return (*UserListStore)(atomic.LoadPointer((*unsafe.Pointer)(unsafe.Pointer(&s.exemptUserStore))))
}

func (s *Store) setExemptUserStore(store *UserListStore) {
	atomic.StorePointer((*unsafe.Pointer)(unsafe.Pointer(&s.exemptUserStore)), unsafe.Pointer(store))
}

// IsUserExempt returns true when the given principal identifier is exempt.
func (s *Store) IsUserExempt(id string) bool {
	store := s.getExemptUserStore()
	if store == nil {
		return false
	}
	return store.Find(id)
}

// UserListStore is an immutable principal identifier set.
type UserListStore struct {
	users map[string]struct{}
}

func NewUserListStore(users []string) *UserListStore {
	if len(users) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(users))
	for _, u := range users {
		m[u] = struct{}{}
	}
	return &UserListStore{users: m}
}

func (s *UserListStore) Find(id string) (exists bool) {
	_, exists = s.users[id]
	return
}
