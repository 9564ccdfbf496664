package ipmifru

// Name returns the FRU's printable name (domain name + numeric suffix).
func (f *FRU) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// DomainID returns the id of the domain the FRU was allocated in (untracked
// FRUs from AllocNoTrack included), or "" if the FRU has no domain.
func (f *FRU) DomainID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.domain == nil {
		return ""
	}
	return f.domain.id
}

// Data returns the raw inventory buffer. The returned slice aliases the
// FRU's internal storage; callers must not retain it past the next write.
func (f *FRU) Data() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

// DataLen returns the declared inventory area length.
func (f *FRU) DataLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dataLen
}

// RecData returns the decoder-scratch slot installed by the decoder
// registry's dispatch, or nil if no decoder has accepted the buffer yet.
func (f *FRU) RecData() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recData
}

// IsNormal reports whether this is a "normal" (logical) FRU, as opposed to
// a physical one. Physical FRU access is not implemented (§1 Non-goals).
func (f *FRU) IsNormal() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr.IsLogical
}

// FetchSize returns the current adaptive read chunk size (16-32 bytes).
func (f *FRU) FetchSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchSize
}

// Address returns a copy of the FRU's immutable addressing fields.
func (f *FRU) Address() Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr
}
