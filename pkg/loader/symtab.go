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

package loader

import (
	"context"
	"fmt"
	"sort"

	"pintos.dev/userprog/pkg/abi/pintos"
	"pintos.dev/userprog/pkg/hostarch"
	"pintos.dev/userprog/pkg/mm"
	"pintos.dev/userprog/pkg/usermem"
)

// The symbol table sits at the start of the text segment:
//
//	uint32 count
//	count * { uint32 addr; char name[SymNameMax+1] }
//
// Code addresses follow on the next page, CodeAlign bytes apart.
const (
	// SymtabAddr is the address of the symbol table.
	SymtabAddr = hostarch.Addr(pintos.TextBase)

	// SymNameMax is the longest symbol name.
	SymNameMax = 27

	// SymEntrySize is the size of one symbol table entry.
	SymEntrySize = 4 + SymNameMax + 1

	// CodeAlign is the distance between consecutive code addresses.
	CodeAlign = 16
)

// mapText maps the symbol table and code of p and returns the address of
// every symbol.
func mapText(ctx context.Context, as *mm.AddressSpace, p *Program) (map[string]hostarch.Addr, error) {
	names := make([]string, 0, len(p.Symbols))
	for name := range p.Symbols {
		if len(name) > SymNameMax {
			return nil, fmt.Errorf("%w: symbol name %q too long", ErrNoExec, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	tab := make([]byte, 4+SymEntrySize*len(names))
	tabEnd := (SymtabAddr + hostarch.Addr(len(tab))).MustRoundUp()
	codeEnd := (tabEnd + hostarch.Addr(CodeAlign*len(names))).MustRoundUp()
	if err := as.Map(SymtabAddr, uint32(codeEnd-SymtabAddr), hostarch.ReadExec); err != nil {
		return nil, fmt.Errorf("mapping text: %w", err)
	}

	syms := make(map[string]hostarch.Addr, len(names))
	usermem.ByteOrder.PutUint32(tab, uint32(len(names)))
	for i, name := range names {
		addr := tabEnd + hostarch.Addr(CodeAlign*i)
		syms[name] = addr
		as.SetSymbol(addr, p.Symbols[name])
		ent := tab[4+SymEntrySize*i:]
		usermem.ByteOrder.PutUint32(ent, uint32(addr))
		copy(ent[4:4+SymNameMax], name)
	}
	if _, err := as.CopyOut(ctx, SymtabAddr, tab, usermem.IOOpts{IgnorePermissions: true}); err != nil {
		return nil, fmt.Errorf("writing symbol table: %w", err)
	}
	return syms, nil
}
