package state

import "github.com/sbip-sg/tevm/types"

// accessList tracks warm addresses and storage slots per EIP-2929, for
// one transaction (Finalize resets it once each top-level invocation of the
// session façade ends, so the next one starts cold).
type accessList struct {
	addresses map[types.Address]int
	slots     []map[types.Word]struct{}
}

func newAccessList() *accessList {
	return &accessList{addresses: make(map[types.Address]int)}
}

// AddAddress marks addr warm. Returns true if it was already warm.
func (al *accessList) AddAddress(addr types.Address) bool {
	if _, ok := al.addresses[addr]; ok {
		return true
	}
	al.addresses[addr] = -1
	return false
}

// AddSlot marks (addr, slot) warm. Returns whether the address and the
// slot were warm before this call.
func (al *accessList) AddSlot(addr types.Address, slot types.Word) (addrWarm, slotWarm bool) {
	idx, addrWarm := al.addresses[addr]
	if addrWarm && idx != -1 {
		if _, ok := al.slots[idx][slot]; ok {
			return true, true
		}
		al.slots[idx][slot] = struct{}{}
		return true, false
	}
	al.addresses[addr] = len(al.slots)
	al.slots = append(al.slots, map[types.Word]struct{}{slot: {}})
	return addrWarm, false
}

func (al *accessList) ContainsAddress(addr types.Address) bool {
	_, ok := al.addresses[addr]
	return ok
}

func (al *accessList) ContainsSlot(addr types.Address, slot types.Word) (addrWarm, slotWarm bool) {
	idx, ok := al.addresses[addr]
	if !ok {
		return false, false
	}
	if idx == -1 {
		return true, false
	}
	_, slotWarm = al.slots[idx][slot]
	return true, slotWarm
}

func (al *accessList) DeleteAddress(addr types.Address) { delete(al.addresses, addr) }

func (al *accessList) DeleteSlot(addr types.Address, slot types.Word) {
	idx, ok := al.addresses[addr]
	if !ok || idx == -1 {
		return
	}
	delete(al.slots[idx], slot)
}

func (al *accessList) copy() *accessList {
	cp := &accessList{
		addresses: make(map[types.Address]int, len(al.addresses)),
		slots:     make([]map[types.Word]struct{}, len(al.slots)),
	}
	for k, v := range al.addresses {
		cp.addresses[k] = v
	}
	for i, m := range al.slots {
		cp.slots[i] = make(map[types.Word]struct{}, len(m))
		for k := range m {
			cp.slots[i][k] = struct{}{}
		}
	}
	return cp
}
