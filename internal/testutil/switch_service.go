package testutil

import (
	"context"
	"sync"

	"github.com/Agrid-Dev/heatzyswitch/internal/device"
)

// FakeSwitchService is a reusable fake implementing ports.SwitchService.
// Put ONLY what multiple test packages need here.
type FakeSwitchService struct {
	mu sync.Mutex

	On      bool
	ReadErr error

	ReadCalls int

	WriteCalled bool
	WriteArg    bool
	WriteErr    error

	CachedOn    bool
	CachedKnown bool

	RefreshCalls int

	DeviceInfo device.Info
}

func NewFakeSwitchService() *FakeSwitchService {
	return &FakeSwitchService{
		On:         true,
		DeviceInfo: device.New("did42", "Living room", ""),
	}
}

func (f *FakeSwitchService) Read(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadCalls++
	if f.ReadErr != nil {
		return false, f.ReadErr
	}
	return f.On, nil
}

func (f *FakeSwitchService) Write(_ context.Context, on bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WriteCalled = true
	f.WriteArg = on
	if f.WriteErr != nil {
		return false, f.WriteErr
	}
	f.On = on
	return on, nil
}

func (f *FakeSwitchService) Cached() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CachedOn, f.CachedKnown
}

// Refresh marks the cached state known with the current On value.
func (f *FakeSwitchService) Refresh(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls++
	if f.ReadErr == nil {
		f.CachedOn, f.CachedKnown = f.On, true
	}
}

func (f *FakeSwitchService) Info() device.Info { return f.DeviceInfo }

// Written returns the recorded write call under the lock.
func (f *FakeSwitchService) Written() (called bool, arg bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.WriteCalled, f.WriteArg
}

// Reads returns the number of Read calls under the lock.
func (f *FakeSwitchService) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ReadCalls
}
