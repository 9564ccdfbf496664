package ipmifru

import "sync"

// RegistryAttributeName is the literal per-domain attribute key spec.md §3
// names for this engine's FRU list ("its payload is a concurrent list of
// FRU objects"). A real IPMI domain object would store the registry under
// this key in a generic attribute map; this stand-in's Domain owns the list
// directly under that same name for traceability.
const RegistryAttributeName = "ipmi_fru"

// Domain is the minimal per-domain registry host this engine needs: an id
// and the "ipmi_fru" list of live FRU objects. It stands in for the
// external domain object named in spec.md §1 ("Out of scope: ... the
// domain object").
type Domain struct {
	id string

	listMu sync.Mutex
	frus   []*FRU
}

// NewDomain creates an empty per-domain FRU registry.
func NewDomain(id string) *Domain {
	return &Domain{id: id}
}

// ID returns the domain's identifier.
func (d *Domain) ID() string { return d.id }

// insert attaches fru to the registry. Must run before fru is handed back
// to any caller: nothing else holds a reference to fru yet, so there is no
// construction race to guard against beyond what the list lock already
// serializes against concurrent iterate/remove calls.
func (d *Domain) insert(fru *FRU) {
	d.listMu.Lock()
	defer d.listMu.Unlock()
	d.frus = append(d.frus, fru)
	fru.mu.Lock()
	fru.inFRUList = true
	fru.mu.Unlock()
}

// remove detaches fru from the registry. It does not change fru's refcount;
// the caller drops the reference afterward. Reports whether fru was found
// (a concurrent destroy may have already removed it).
func (d *Domain) remove(fru *FRU) bool {
	d.listMu.Lock()
	defer d.listMu.Unlock()
	for i, f := range d.frus {
		if f == fru {
			d.frus = append(d.frus[:i], d.frus[i+1:]...)
			return true
		}
	}
	return false
}

// iterate visits every FRU present in the registry at entry, using the
// prefunc pattern from spec.md §4.A: snapshot a strong reference per item
// under the list lock, release the list lock, then invoke the callback per
// item outside it. This guarantees the callback sees live objects even if a
// concurrent deleter removes them from the list mid-iteration, and never
// visits items inserted after iterate began.
func (d *Domain) iterate(cb func(*FRU)) {
	d.listMu.Lock()
	snapshot := make([]*FRU, 0, len(d.frus))
	for _, f := range d.frus {
		f.mu.Lock()
		f.ref()
		f.mu.Unlock()
		snapshot = append(snapshot, f)
	}
	d.listMu.Unlock()

	for _, f := range snapshot {
		cb(f)
		f.mu.Lock()
		zero := f.unref()
		f.mu.Unlock()
		if zero {
			f.finalize()
		}
	}
}
