package connectivity

import (
	"context"
	"fmt"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// Probe reports whether outbound connectivity is present.
type Probe interface {
	Connected(ctx context.Context) bool
}

// Static is a Probe with a fixed answer.
type Static bool

// Connected implements Probe.
func (s Static) Connected(context.Context) bool {
	return bool(s)
}

// interfaceLister lists host network interfaces.
type interfaceLister func(ctx context.Context) (psnet.InterfaceStatList, error)

// InterfaceProbe reports connectivity when at least one non-loopback
// interface is up and has an address.
type InterfaceProbe struct {
	// list returns the host interfaces; replaced in tests.
	list interfaceLister
}

// NewInterfaceProbe creates a probe backed by the host interface table.
func NewInterfaceProbe() *InterfaceProbe {
	return &InterfaceProbe{
		list: psnet.InterfacesWithContext,
	}
}

// Connected implements Probe. Listing failures count as disconnected.
func (p *InterfaceProbe) Connected(ctx context.Context) bool {
	interfaces, err := p.list(ctx)
	if err != nil {
		return false
	}

	return slices.ContainsFunc(interfaces, usable)
}

// usable reports whether the interface can carry outbound traffic.
func usable(iface psnet.InterfaceStat) bool {
	if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
		return false
	}

	return len(iface.Addrs) > 0
}

// Mode selects the probe implementation.
type Mode string

const (
	// ModeInterfaces inspects host network interfaces.
	ModeInterfaces Mode = "interfaces"
	// ModeAlways assumes connectivity is always present.
	ModeAlways Mode = "always"
)

// FromMode builds the probe for mode.
//
//nolint:ireturn // The concrete type depends on the mode.
func FromMode(mode Mode) (Probe, error) {
	switch mode {
	case ModeInterfaces:
		return NewInterfaceProbe(), nil
	case ModeAlways, "":
		return Static(true), nil
	default:
		return nil, fmt.Errorf("unknown connectivity mode %q", mode)
	}
}
