// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mm implements the user address space of a process: a page table
// of private anonymous pages below PhysBase and the text symbol table that
// maps code addresses to user code.
//
// Lock order:
//
//	AddressSpace.mu
package mm

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/arch"
	"pintos.dev/userprog/pkg/errors/linuxerr"
	"pintos.dev/userprog/pkg/hostarch"
)

// btreeDegree is the degree of the page table btree.
const btreeDegree = 8

// page is one mapped user page.
type page struct {
	// vpn is the virtual page number. It is immutable.
	vpn uint32

	// perms are the permissions user accesses are checked against.
	perms hostarch.AccessType

	data [hostarch.PageSize]byte
}

func (p *page) start() hostarch.Addr {
	return hostarch.Addr(p.vpn) << hostarch.PageShift
}

func pageLess(a, b *page) bool {
	return a.vpn < b.vpn
}

// AddressSpace is the user address space of one process.
type AddressSpace struct {
	// MaxAddr is the first address user code may not access.
	MaxAddr hostarch.Addr

	// mu protects the fields below.
	mu sync.Mutex

	// pages is the page table, ordered by virtual page number.
	pages *btree.BTreeG[*page]

	// text maps code addresses to user code.
	text map[hostarch.Addr]arch.Entry

	// released is set by Release. All accesses fail afterwards.
	released bool
}

// NewAddressSpace returns an empty address space limited to PhysBase.
func NewAddressSpace() *AddressSpace {
	return &AddressSpace{
		MaxAddr: pintos.PhysBase,
		pages:   btree.NewG[*page](btreeDegree, pageLess),
		text:    make(map[hostarch.Addr]arch.Entry),
	}
}

// String implements fmt.Stringer.String.
func (as *AddressSpace) String() string {
	as.mu.Lock()
	defer as.mu.Unlock()
	return fmt.Sprintf("AddressSpace{pages: %d, symbols: %d}", as.pages.Len(), len(as.text))
}

// checkRange returns the page-aligned range covering [addr, addr+length), or
// EINVAL if it is malformed or reaches past MaxAddr.
func (as *AddressSpace) checkRange(addr hostarch.Addr, length uint32) (hostarch.AddrRange, error) {
	if !addr.IsPageAligned() || length == 0 {
		return hostarch.AddrRange{}, linuxerr.EINVAL
	}
	ar, ok := addr.ToRange(length)
	if !ok || ar.End > as.MaxAddr {
		return hostarch.AddrRange{}, linuxerr.EINVAL
	}
	end, ok := ar.End.RoundUp()
	if !ok || end > as.MaxAddr {
		return hostarch.AddrRange{}, linuxerr.EINVAL
	}
	ar.End = end
	return ar, nil
}

// Map maps zeroed pages covering [addr, addr+length) with the given
// permissions. addr must be page aligned. Map fails with ENOMEM if any page
// in the range is already mapped, in which case nothing is mapped.
func (as *AddressSpace) Map(addr hostarch.Addr, length uint32, perms hostarch.AccessType) error {
	ar, err := as.checkRange(addr, length)
	if err != nil {
		return err
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.released {
		return linuxerr.EFAULT
	}
	first, last := ar.Start.PageNumber(), (ar.End-1).PageNumber()
	overlap := false
	as.pages.AscendRange(&page{vpn: first}, &page{vpn: last + 1}, func(*page) bool {
		overlap = true
		return false
	})
	if overlap {
		return linuxerr.ENOMEM
	}
	for vpn := first; ; vpn++ {
		as.pages.ReplaceOrInsert(&page{vpn: vpn, perms: perms})
		if vpn == last {
			break
		}
	}
	return nil
}

// Unmap removes every page in [addr, addr+length). Pages in the range that
// are not mapped are ignored.
func (as *AddressSpace) Unmap(addr hostarch.Addr, length uint32) error {
	ar, err := as.checkRange(addr, length)
	if err != nil {
		return err
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	var doomed []*page
	as.pages.AscendRange(&page{vpn: ar.Start.PageNumber()}, &page{vpn: (ar.End - 1).PageNumber() + 1}, func(p *page) bool {
		doomed = append(doomed, p)
		return true
	})
	for _, p := range doomed {
		as.pages.Delete(p)
	}
	return nil
}

// IsMapped returns true if addr is a user address backed by a page.
func (as *AddressSpace) IsMapped(addr hostarch.Addr) bool {
	if addr >= as.MaxAddr {
		return false
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	_, ok := as.pages.Get(&page{vpn: addr.PageNumber()})
	return ok
}

// Translate returns the permissions of the page containing addr, or EFAULT
// if it is not mapped.
func (as *AddressSpace) Translate(addr hostarch.Addr) (hostarch.AccessType, error) {
	if addr >= as.MaxAddr {
		return hostarch.NoAccess, linuxerr.EFAULT
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	p, ok := as.pages.Get(&page{vpn: addr.PageNumber()})
	if !ok {
		return hostarch.NoAccess, linuxerr.EFAULT
	}
	return p.perms, nil
}

// NumPages returns the number of mapped pages.
func (as *AddressSpace) NumPages() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.pages.Len()
}

// SetSymbol installs fn as the code at addr.
func (as *AddressSpace) SetSymbol(addr hostarch.Addr, fn arch.Entry) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.text[addr] = fn
}

// Resolve returns the code at addr.
func (as *AddressSpace) Resolve(addr hostarch.Addr) (arch.Entry, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.released {
		return nil, false
	}
	fn, ok := as.text[addr]
	return fn, ok
}

// Fork returns a deep copy of as: every page is duplicated and the symbol
// table is shared by value.
func (as *AddressSpace) Fork() (*AddressSpace, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.released {
		return nil, linuxerr.EFAULT
	}
	child := NewAddressSpace()
	child.MaxAddr = as.MaxAddr
	as.pages.Ascend(func(p *page) bool {
		cp := *p
		child.pages.ReplaceOrInsert(&cp)
		return true
	})
	for addr, fn := range as.text {
		child.text[addr] = fn
	}
	return child, nil
}

// Release drops every page. Later accesses fail with EFAULT. Release is
// idempotent.
func (as *AddressSpace) Release() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.released = true
	as.pages.Clear(false)
	as.text = nil
}
