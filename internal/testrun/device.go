package testrun

import (
	"time"

	"github.com/google/uuid"
)

// DeviceType names the hardware class of a test device.
type DeviceType string

const (
	DeviceVRHeadset DeviceType = "vr_headset"
	DeviceARGlasses DeviceType = "ar_glasses"
	DeviceMobile    DeviceType = "mobile"
	DeviceDesktop   DeviceType = "desktop"
	DeviceSimulator DeviceType = "simulator"
	DeviceCustom    DeviceType = "custom"
)

// Valid reports whether t is a known device type.
func (t DeviceType) Valid() bool {
	switch t {
	case DeviceVRHeadset, DeviceARGlasses, DeviceMobile, DeviceDesktop, DeviceSimulator, DeviceCustom:
		return true
	}
	return false
}

// Device is a headset, phone or simulator test runs execute on.
type Device struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name" validate:"required"`
	Type            DeviceType             `json:"type" validate:"required"`
	Capabilities    []string               `json:"capabilities,omitempty"`
	Manufacturer    string                 `json:"manufacturer,omitempty"`
	Model           string                 `json:"model,omitempty"`
	SerialNumber    string                 `json:"serial_number,omitempty"`
	FirmwareVersion string                 `json:"firmware_version,omitempty"`
	IPAddress       string                 `json:"ip_address,omitempty"`
	IsConnected     bool                   `json:"is_connected"`
	IsAvailable     bool                   `json:"is_available"`
	LastSeen        *time.Time             `json:"last_seen,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	Properties      map[string]interface{} `json:"properties,omitempty"`
}

// NewDevice creates an available, disconnected device.
func NewDevice(name string, t DeviceType) *Device {
	return &Device{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        t,
		IsAvailable: true,
		CreatedAt:   time.Now().UTC(),
	}
}

func (d *Device) Connect(now time.Time) {
	d.IsConnected = true
	d.LastSeen = &now
}

func (d *Device) Disconnect() {
	d.IsConnected = false
}

func (d *Device) HasCapability(c string) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// AddCapability records c once.
func (d *Device) AddCapability(c string) {
	if !d.HasCapability(c) {
		d.Capabilities = append(d.Capabilities, c)
	}
}
