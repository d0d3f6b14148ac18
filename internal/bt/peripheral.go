package bt

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/smart-trainer/pool-assistant/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/pool-assistant/internal/safe_map"

	"tinygo.org/x/bluetooth"
)

// peripheral is a connected wearable. GATT operations are serialised by bleMu
// and services/characteristics are discovered once per connection.
type peripheral struct {
	device      bluetooth.Device
	address     string
	serviceUUID bluetooth.UUID
	charUUID    bluetooth.UUID
	logger      *log.Logger

	bleMu                 sync.Mutex
	serviceByUuid         *safe_map.SafeMap[string, *bluetooth.DeviceService]
	characteristicByUuid  *safe_map.SafeMap[string, *bluetooth.DeviceCharacteristic]
	allServicesDiscovered bool

	gone     chan struct{}
	goneOnce sync.Once
}

func newPeripheral(device bluetooth.Device, address string, serviceUUID, charUUID bluetooth.UUID, logger *log.Logger) *peripheral {
	return &peripheral{
		device:               device,
		address:              address,
		serviceUUID:          serviceUUID,
		charUUID:             charUUID,
		logger:               logger,
		serviceByUuid:        safe_map.NewSafeMap[string, *bluetooth.DeviceService](),
		characteristicByUuid: safe_map.NewSafeMap[string, *bluetooth.DeviceCharacteristic](),
		gone:                 make(chan struct{}),
	}
}

func (p *peripheral) Subscribe(handler func([]byte)) error {
	p.bleMu.Lock()
	defer p.bleMu.Unlock()

	characteristic, err := p.characteristic()
	if err != nil {
		return err
	}
	if err := characteristic.EnableNotifications(handler); err != nil {
		return fmt.Errorf("enable notifications on %s: %w", p.charUUID.String(), err)
	}
	p.logger.Printf("BT: notifications enabled on %s", p.charUUID.String())
	return nil
}

// Write performs a write with response. The GATT call itself cannot be
// cancelled; when ctx ends first it finishes in the background.
func (p *peripheral) Write(ctx context.Context, data []byte) error {
	errChan := make(chan error, 1)
	go_func_utils.SafeGo(p.logger, func() {
		p.bleMu.Lock()
		defer p.bleMu.Unlock()
		if ctx.Err() != nil {
			errChan <- ctx.Err()
			return
		}
		characteristic, err := p.characteristic()
		if err != nil {
			errChan <- err
			return
		}
		if _, err := characteristic.Write(data); err != nil {
			errChan <- fmt.Errorf("write characteristic: %w", err)
			return
		}
		errChan <- nil
	})

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *peripheral) Disconnected() <-chan struct{} {
	return p.gone
}

func (p *peripheral) Disconnect(ctx context.Context) error {
	errChan := make(chan error, 1)
	go_func_utils.SafeGo(p.logger, func() {
		errChan <- p.device.Disconnect()
	})

	select {
	case err := <-errChan:
		p.markGone()
		if err != nil {
			return fmt.Errorf("disconnect %s: %w", p.address, err)
		}
		return nil
	case <-ctx.Done():
		p.markGone()
		return fmt.Errorf("disconnect %s: %w", p.address, ctx.Err())
	}
}

func (p *peripheral) markGone() {
	p.goneOnce.Do(func() { close(p.gone) })
}

// characteristic resolves the telemetry characteristic, discovering all
// services and the target service's characteristics on first use.
// Caller holds bleMu.
func (p *peripheral) characteristic() (*bluetooth.DeviceCharacteristic, error) {
	serviceUuidStr := p.serviceUUID.String()
	comboUuidStr := serviceUuidStr + "_" + p.charUUID.String()

	if characteristic, ok := p.characteristicByUuid.Load(comboUuidStr); ok {
		return characteristic, nil
	}

	service, err := p.service()
	if err != nil {
		return nil, err
	}

	p.logger.Printf("BT: discovering characteristics for service %s", serviceUuidStr)
	discovered, err := service.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("discover characteristics of %s: %w", serviceUuidStr, err)
	}
	for i := range discovered {
		char := &discovered[i]
		p.characteristicByUuid.Store(serviceUuidStr+"_"+char.UUID().String(), char)
	}

	characteristic, ok := p.characteristicByUuid.Load(comboUuidStr)
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found in service %s", p.charUUID.String(), serviceUuidStr)
	}
	return characteristic, nil
}

// service discovers every service at once; discovering them one by one
// interrupts services already in use on some stacks.
func (p *peripheral) service() (*bluetooth.DeviceService, error) {
	serviceUuidStr := p.serviceUUID.String()
	if service, ok := p.serviceByUuid.Load(serviceUuidStr); ok {
		return service, nil
	}

	if !p.allServicesDiscovered {
		p.logger.Printf("BT: discovering services on %s", p.address)
		services, err := p.device.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("discover services: %w", err)
		}
		for i := range services {
			svc := &services[i]
			p.serviceByUuid.Store(svc.UUID().String(), svc)
		}
		p.allServicesDiscovered = true
	}

	service, ok := p.serviceByUuid.Load(serviceUuidStr)
	if !ok {
		return nil, fmt.Errorf("service %s not found on %s", serviceUuidStr, p.address)
	}
	return service, nil
}
