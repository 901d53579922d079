package transport

import "github.com/commonsense-kb/commonsense/usb"

// Interface numbers of the two HID interfaces.
const (
	InterfaceKeyboard = 0
	InterfaceExtra    = 1
)

// keyboardReport describes the NKRO report: modifier byte, reserved byte and
// a 256-bit usage bitmap.
var keyboardReport = []byte{
	0x05, 0x01,       // Usage Page (Generic Desktop)
	0x09, 0x06,       // Usage (Keyboard)
	0xA1, 0x01,       // Collection (Application)
	0x05, 0x07,       //   Usage Page (Keyboard/Keypad)
	0x19, 0xE0,       //   Usage Minimum (Left Control)
	0x29, 0xE7,       //   Usage Maximum (Right GUI)
	0x15, 0x00,       //   Logical Minimum (0)
	0x25, 0x01,       //   Logical Maximum (1)
	0x75, 0x01,       //   Report Size (1)
	0x95, 0x08,       //   Report Count (8)
	0x81, 0x02,       //   Input (Data,Var,Abs)
	0x75, 0x08,       //   Report Size (8)
	0x95, 0x01,       //   Report Count (1)
	0x81, 0x01,       //   Input (Const)
	0x19, 0x00,       //   Usage Minimum (0)
	0x2A, 0xFF, 0x00, //   Usage Maximum (255)
	0x75, 0x01,       //   Report Size (1)
	0x96, 0x00, 0x01, //   Report Count (256)
	0x81, 0x02,       //   Input (Data,Var,Abs)
	0xC0,             // End Collection
}

// extraReport describes the system control (id 2) and consumer (id 3)
// reports, one 16-bit usage each.
var extraReport = []byte{
	0x05, 0x01,       // Usage Page (Generic Desktop)
	0x09, 0x80,       // Usage (System Control)
	0xA1, 0x01,       // Collection (Application)
	0x85, 0x02,       //   Report ID (2)
	0x19, 0x01,       //   Usage Minimum (0x01)
	0x2A, 0xB7, 0x00, //   Usage Maximum (0xB7)
	0x15, 0x01,       //   Logical Minimum (0x01)
	0x26, 0xB7, 0x00, //   Logical Maximum (0xB7)
	0x75, 0x10,       //   Report Size (16)
	0x95, 0x01,       //   Report Count (1)
	0x81, 0x00,       //   Input (Data,Array,Abs)
	0xC0,             // End Collection
	0x05, 0x0C,       // Usage Page (Consumer)
	0x09, 0x01,       // Usage (Consumer Control)
	0xA1, 0x01,       // Collection (Application)
	0x85, 0x03,       //   Report ID (3)
	0x19, 0x01,       //   Usage Minimum (0x001)
	0x2A, 0xA0, 0x02, //   Usage Maximum (0x2A0)
	0x15, 0x01,       //   Logical Minimum (0x001)
	0x26, 0xA0, 0x02, //   Logical Maximum (0x2A0)
	0x75, 0x10,       //   Report Size (16)
	0x95, 0x01,       //   Report Count (1)
	0x81, 0x00,       //   Input (Data,Array,Abs)
	0xC0,             // End Collection
}

// Descriptors are the USB descriptors the device enumerates with.
type Descriptors struct {
	Device        usb.DeviceDescriptor
	Configuration usb.Configuration
	Strings       map[uint8]string
}

// DefaultDescriptors describes a bus powered keyboard with remote wakeup.
func DefaultDescriptors() Descriptors {
	return Descriptors{
		Device: usb.DeviceDescriptor{
			BcdUSB:            0x0200,
			MaxPacketSize0:    0x40,
			VendorID:          0x1209,
			ProductID:         0x4C53,
			BcdDevice:         0x0100,
			Manufacturer:      1,
			Product:           2,
			NumConfigurations: 1,
		},
		Configuration: usb.Configuration{
			Value:      1,
			Attributes: usb.AttrBusPowered | usb.AttrRemoteWakeup,
			MaxPower:   50,
			Interfaces: []usb.Interface{
				{
					Number:   InterfaceKeyboard,
					Report:   keyboardReport,
					Endpoint: usb.Endpoint{Address: 0x81, Attributes: 0x03, MaxPacketSize: 64, Interval: 1},
				},
				{
					Number:   InterfaceExtra,
					Report:   extraReport,
					Endpoint: usb.Endpoint{Address: 0x82, Attributes: 0x03, MaxPacketSize: 8, Interval: 10},
				},
			},
		},
		Strings: map[uint8]string{
			1: "CommonSense",
			2: "CommonSense Keyboard",
		},
	}
}

// RemoteWakeup reports whether the configuration allows SendWakeup.
func (d Descriptors) RemoteWakeup() bool {
	return d.Configuration.Attributes&usb.AttrRemoteWakeup != 0
}
