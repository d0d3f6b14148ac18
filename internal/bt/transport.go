package bt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/link"

	"tinygo.org/x/bluetooth"
)

var _ link.Transport = (*Transport)(nil)

// Transport connects to the wearable through a host Bluetooth adapter.
type Transport struct {
	adapter     *bluetooth.Adapter
	target      Target
	serviceUUID bluetooth.UUID
	charUUID    bluetooth.UUID
	logger      *log.Logger

	enableOnce sync.Once
	enableErr  error

	mu     sync.Mutex
	active map[string]*peripheral
}

func NewTransport(adapter *bluetooth.Adapter, target Target, logger *log.Logger) (*Transport, error) {
	if logger == nil {
		panic("Transport: logger cannot be nil")
	}
	if adapter == nil {
		return nil, errors.New("bt: adapter cannot be nil")
	}
	if target.Address == "" && target.Name == "" {
		return nil, errors.New("bt: target needs an address or a name")
	}
	serviceUUID, charUUID, err := target.uuids()
	if err != nil {
		return nil, err
	}
	return &Transport{
		adapter:     adapter,
		target:      target,
		serviceUUID: serviceUUID,
		charUUID:    charUUID,
		logger:      logger,
		active:      make(map[string]*peripheral),
	}, nil
}

func (t *Transport) enable() error {
	t.enableOnce.Do(func() {
		t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			addressStr := device.Address.String()
			if connected {
				t.logger.Printf("BT: device connected: %s", addressStr)
				return
			}
			t.logger.Printf("BT: device disconnected: %s", addressStr)
			t.mu.Lock()
			p, ok := t.active[addressStr]
			delete(t.active, addressStr)
			t.mu.Unlock()
			if ok {
				p.markGone()
			}
		})
		t.enableErr = t.adapter.Enable()
	})
	return t.enableErr
}

// Connect scans for the target and connects to it. Both steps stop when ctx
// is done.
func (t *Transport) Connect(ctx context.Context) (link.Conn, error) {
	if err := t.enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %w", err)
	}

	found, err := t.find(ctx)
	if err != nil {
		return nil, err
	}
	addressStr := found.Address.String()
	t.logger.Printf("BT: found %s at %s, connecting", t.target, addressStr)

	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	resultChan := make(chan connectResult, 1)
	go_func_utils.SafeGo(t.logger, func() {
		device, err := t.adapter.Connect(found.Address, bluetooth.ConnectionParams{})
		resultChan <- connectResult{device: device, err: err}
	})

	var result connectResult
	select {
	case result = <-resultChan:
	case <-ctx.Done():
		// The stack may still complete the connection; close it when it does.
		go_func_utils.SafeGo(t.logger, func() {
			if late := <-resultChan; late.err == nil {
				_ = late.device.Disconnect()
			}
		})
		return nil, ctx.Err()
	}
	if result.err != nil {
		return nil, fmt.Errorf("connect %s: %w", addressStr, result.err)
	}

	p := newPeripheral(result.device, addressStr, t.serviceUUID, t.charUUID, t.logger)
	t.mu.Lock()
	t.active[addressStr] = p
	t.mu.Unlock()
	return p, nil
}

func (t *Transport) find(ctx context.Context) (bluetooth.ScanResult, error) {
	foundChan := make(chan bluetooth.ScanResult, 1)
	scanDone := make(chan error, 1)

	go_func_utils.SafeGo(t.logger, func() {
		scanDone <- t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !t.target.matches(result.Address.String(), result.LocalName()) {
				return
			}
			select {
			case foundChan <- result:
				if err := adapter.StopScan(); err != nil {
					t.logger.Printf("BT: stop scan: %v", err)
				}
			default:
			}
		})
	})

	select {
	case result := <-foundChan:
		select {
		case <-scanDone:
		case <-ctx.Done():
			return bluetooth.ScanResult{}, ctx.Err()
		}
		return result, nil
	case err := <-scanDone:
		if err == nil {
			err = errors.New("scan ended")
		}
		return bluetooth.ScanResult{}, fmt.Errorf("scan for %s: %w", t.target, err)
	case <-ctx.Done():
		if err := t.adapter.StopScan(); err != nil {
			t.logger.Printf("BT: stop scan: %v", err)
		}
		return bluetooth.ScanResult{}, ctx.Err()
	}
}
