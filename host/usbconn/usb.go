package usbconn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/rs/zerolog"
)

// USB identity of the LMC controller board.
const (
	VendorID  = 0x9588
	ProductID = 0x9899

	ConfigNum    = 1
	InterfaceNum = 0

	EndpointBulkOut = 0x02
	EndpointBulkIn  = 0x88

	// TransferTimeout bounds every bulk transfer against real hardware.
	TransferTimeout = 100 * time.Millisecond
)

// errClosed marks a transfer attempted while the handle is down, inside
// the retry loop where a reopen may still recover it.
var errClosed = errors.New("device handle closed")

// usbDevice bundles the libusb resources owned for one device index.
type usbDevice struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
}

// USBConnection drives the controller over USB bulk transfers. One
// instance exclusively owns the OS handle for each index it opens.
type USBConnection struct {
	log     zerolog.Logger
	policy  RetryPolicy
	timeout time.Duration
	devices map[int]*usbDevice
}

// NewUSBConnection returns an unopened USB transport.
func NewUSBConnection(log zerolog.Logger) *USBConnection {
	return &USBConnection{
		log:     log,
		policy:  TransferRetry,
		timeout: TransferTimeout,
		devices: make(map[int]*usbDevice),
	}
}

// SetRetryPolicy overrides the per-transfer retry policy.
func (u *USBConnection) SetRetryPolicy(p RetryPolicy) {
	u.policy = p
}

// Open enumerates candidate controllers, claims the one at the given
// index and prepares its bulk endpoints.
func (u *USBConnection) Open(index int) (int, error) {
	if _, ok := u.devices[index]; ok {
		return index, nil
	}
	d, err := u.openDevice(index)
	if err != nil {
		return -1, err
	}
	u.devices[index] = d
	u.log.Info().Int("device", index).Msg("galvo controller connected")
	return index, nil
}

func (u *USBConnection) openDevice(index int) (*usbDevice, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		match := desc.Vendor == VendorID && desc.Product == ProductID
		u.log.Info().
			Int("bus", desc.Bus).
			Int("address", desc.Address).
			Str("vid", desc.Vendor.String()).
			Str("pid", desc.Product.String()).
			Bool("match", match).
			Msg("usb device discovered")
		return match
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		if errors.Is(err, gousb.ErrorAccess) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: enumeration failed: %v", ErrDeviceUnavailable, err)
	}
	if index >= len(devs) {
		for _, d := range devs {
			d.Close()
		}
		ctx.Close()
		return nil, fmt.Errorf("%w: %d candidate device(s), index %d requested",
			ErrDeviceUnavailable, len(devs), index)
	}

	dev := devs[index]
	for i, d := range devs {
		if i != index {
			d.Close()
		}
	}

	// A kernel driver holding the interface is detached on claim and
	// reattached on release.
	if err := dev.SetAutoDetach(true); err != nil {
		u.log.Warn().Err(err).Msg("kernel driver auto-detach unsupported")
	}

	cfg, err := dev.Config(ConfigNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: set configuration %d: %v", ErrDeviceUnavailable, ConfigNum, err)
	}

	intf, err := cfg.Interface(InterfaceNum, 0)
	if errors.Is(err, gousb.ErrorBusy) {
		// One unclaim/reclaim cycle before giving up on a claim
		// conflict.
		u.log.Warn().Int("device", index).Msg("interface busy, attempting reclaim")
		cfg.Close()
		if cfg, err = dev.Config(ConfigNum); err == nil {
			intf, err = cfg.Interface(InterfaceNum, 0)
		}
	}
	if err != nil {
		if cfg != nil {
			cfg.Close()
		}
		dev.Reset()
		dev.Close()
		ctx.Close()
		if errors.Is(err, gousb.ErrorAccess) {
			return nil, fmt.Errorf("%w: claim interface: %v", ErrPermissionDenied, err)
		}
		if errors.Is(err, gousb.ErrorBusy) {
			return nil, fmt.Errorf("%w: device found but in use by another process: %v",
				ErrDeviceUnavailable, err)
		}
		return nil, fmt.Errorf("%w: claim interface: %v", ErrDeviceUnavailable, err)
	}

	out, err := intf.OutEndpoint(EndpointBulkOut)
	if err == nil {
		var in *gousb.InEndpoint
		// gousb wants the endpoint number, not the address.
		in, err = intf.InEndpoint(EndpointBulkIn & 0x0F)
		if err == nil {
			return &usbDevice{ctx: ctx, dev: dev, cfg: cfg, intf: intf, out: out, in: in}, nil
		}
	}
	intf.Close()
	cfg.Close()
	dev.Close()
	ctx.Close()
	return nil, fmt.Errorf("%w: open bulk endpoints: %v", ErrDeviceUnavailable, err)
}

// Close releases the claimed interface, reattaches any detached kernel
// driver, resets the device and disposes the libusb context. Every step
// runs even when an earlier one fails; a claimed interface left behind
// would block all future opens of the device.
func (u *USBConnection) Close(index int) error {
	d, ok := u.devices[index]
	if !ok {
		return nil
	}
	delete(u.devices, index)

	if d.intf != nil {
		d.intf.Close()
	}
	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			u.log.Warn().Int("device", index).Err(err).Msg("release configuration failed")
		}
	}
	if d.dev != nil {
		if err := d.dev.Reset(); err != nil {
			u.log.Warn().Int("device", index).Err(err).Msg("device reset failed")
		}
		if err := d.dev.Close(); err != nil {
			u.log.Warn().Int("device", index).Err(err).Msg("device close failed")
		}
	}
	if d.ctx != nil {
		if err := d.ctx.Close(); err != nil {
			u.log.Warn().Int("device", index).Err(err).Msg("context close failed")
		}
	}
	u.log.Info().Int("device", index).Msg("galvo controller disconnected")
	return nil
}

// IsOpen reports whether the index currently holds a claimed interface.
func (u *USBConnection) IsOpen(index int) bool {
	_, ok := u.devices[index]
	return ok
}

// Write sends one command frame or list packet.
func (u *USBConnection) Write(index int, frame []byte) error {
	if err := checkFrame(frame); err != nil {
		return err
	}
	if !u.IsOpen(index) {
		return ErrNotConnected
	}
	_, err := transfer(u, u.log, u.policy, index, frame, false)
	return err
}

// Read returns the 8-byte status reply from the bulk-in endpoint.
func (u *USBConnection) Read(index int) ([]byte, error) {
	if !u.IsOpen(index) {
		return nil, ErrNotConnected
	}
	return transfer(u, u.log, u.policy, index, nil, true)
}

func (u *USBConnection) transferOnce(index int, frame []byte, read bool) ([]byte, error) {
	d, ok := u.devices[index]
	if !ok {
		return nil, errClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()

	if read {
		buf := make([]byte, 8)
		n, err := d.in.ReadContext(ctx, buf)
		if err != nil {
			return nil, err
		}
		if n != len(buf) {
			return nil, fmt.Errorf("short status read: %d/%d bytes", n, len(buf))
		}
		return buf, nil
	}

	n, err := d.out.WriteContext(ctx, frame)
	if err != nil {
		return nil, err
	}
	if n != len(frame) {
		return nil, fmt.Errorf("short write: %d/%d bytes", n, len(frame))
	}
	return nil, nil
}

func (u *USBConnection) reopen(index int) error {
	u.Close(index)
	_, err := u.Open(index)
	return err
}
