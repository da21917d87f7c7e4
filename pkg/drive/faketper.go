// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package drive

import "sync"

// FakeTPer is a minimal in-process DriveIntf double used by package unit
// tests. It is not a full SSC emulation: callers register fixed or
// computed responses per (protocol, sps) pair and FakeTPer plays them
// back, recording every send for assertions.
type FakeTPer struct {
	mu        sync.Mutex
	Identity_ Identity
	Sent      []FakeTPerCall
	Responses map[fakeTPerKey][]byte
	OnSend    func(proto SecurityProtocol, sps uint16, data []byte) ([]byte, error)
	closed    bool
}

type FakeTPerCall struct {
	Protocol SecurityProtocol
	SPS      uint16
	Data     []byte
}

type fakeTPerKey struct {
	proto SecurityProtocol
	sps   uint16
}

func NewFakeTPer() *FakeTPer {
	return &FakeTPer{
		Identity_: Identity{Protocol: "fake", Model: "FakeTPer", SerialNumber: "000000", Firmware: "0.0"},
		Responses: map[fakeTPerKey][]byte{},
	}
}

// SetResponse registers the bytes IFRecv should return for a given
// (protocol, sps) pair regardless of prior sends.
func (f *FakeTPer) SetResponse(proto SecurityProtocol, sps uint16, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[fakeTPerKey{proto, sps}] = data
}

func (f *FakeTPer) IFSend(proto SecurityProtocol, sps uint16, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.Sent = append(f.Sent, FakeTPerCall{proto, sps, cp})
	if f.OnSend != nil {
		resp, err := f.OnSend(proto, sps, cp)
		if err != nil {
			return err
		}
		if resp != nil {
			f.Responses[fakeTPerKey{proto, sps}] = resp
		}
	}
	return nil
}

func (f *FakeTPer) IFRecv(proto SecurityProtocol, sps uint16, data *[]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.Responses[fakeTPerKey{proto, sps}]
	if !ok {
		// Zero-fill: looks like an idle/empty TPer response.
		for i := range *data {
			(*data)[i] = 0
		}
		return nil
	}
	n := copy(*data, resp)
	for i := n; i < len(*data); i++ {
		(*data)[i] = 0
	}
	return nil
}

func (f *FakeTPer) Identify() (*Identity, error) {
	id := f.Identity_
	return &id, nil
}

func (f *FakeTPer) SerialNumber() ([]byte, error) {
	return []byte(f.Identity_.SerialNumber), nil
}

func (f *FakeTPer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeTPer) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
