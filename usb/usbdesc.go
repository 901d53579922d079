// Package usb encodes the standard USB descriptors the controller presents
// to the host.
package usb

import (
	"bytes"
	"encoding/binary"
)

// Descriptor types.
const (
	DeviceDescType    = 0x01
	ConfigDescType    = 0x02
	StringDescType    = 0x03
	InterfaceDescType = 0x04
	EndpointDescType  = 0x05
	HIDDescType       = 0x21
	ReportDescType    = 0x22
)

// Descriptor lengths in bytes.
const (
	DeviceDescLen    = 18
	ConfigDescLen    = 9
	InterfaceDescLen = 9
	EndpointDescLen  = 7
	HIDDescLen       = 9
)

// Configuration attribute bits.
const (
	AttrBusPowered   = 0x80
	AttrRemoteWakeup = 0x20
)

// ClassHID is the interface class of HID interfaces.
const ClassHID = 0x03

// EncodeString converts s to a string descriptor (UTF-16LE, BMP only).
func EncodeString(s string) []byte {
	runes := []rune(s)
	buf := make([]byte, 2+len(runes)*2)
	buf[0] = uint8(len(buf))
	buf[1] = StringDescType
	for i, r := range runes {
		binary.LittleEndian.PutUint16(buf[2+i*2:], uint16(r))
	}
	return buf
}

// DeviceDescriptor is the standard device descriptor.
type DeviceDescriptor struct {
	BcdUSB            uint16
	Class             uint8
	SubClass          uint8
	Protocol          uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	BcdDevice         uint16
	Manufacturer      uint8
	Product           uint8
	SerialNumber      uint8
	NumConfigurations uint8
}

func (d DeviceDescriptor) Bytes() []byte {
	var b bytes.Buffer
	b.WriteByte(DeviceDescLen)
	b.WriteByte(DeviceDescType)
	_ = binary.Write(&b, binary.LittleEndian, d.BcdUSB)
	b.Write([]byte{d.Class, d.SubClass, d.Protocol, d.MaxPacketSize0})
	_ = binary.Write(&b, binary.LittleEndian, []uint16{d.VendorID, d.ProductID, d.BcdDevice})
	b.Write([]byte{d.Manufacturer, d.Product, d.SerialNumber, d.NumConfigurations})
	return b.Bytes()
}

// Endpoint is an interrupt or bulk endpoint.
type Endpoint struct {
	Address       uint8
	Attributes    uint8
	MaxPacketSize uint16
	Interval      uint8
}

func (e Endpoint) write(b *bytes.Buffer) {
	b.Write([]byte{EndpointDescLen, EndpointDescType, e.Address, e.Attributes})
	_ = binary.Write(b, binary.LittleEndian, e.MaxPacketSize)
	b.WriteByte(e.Interval)
}

// Interface is a HID interface with one report descriptor and one IN
// endpoint.
type Interface struct {
	Number   uint8
	SubClass uint8
	Protocol uint8
	Name     uint8
	Report   []byte
	Endpoint Endpoint
}

func (i Interface) write(b *bytes.Buffer) {
	b.Write([]byte{InterfaceDescLen, InterfaceDescType, i.Number, 0, 1, ClassHID, i.SubClass, i.Protocol, i.Name})

	// HID 1.11, no country code, one report descriptor
	b.Write([]byte{HIDDescLen, HIDDescType, 0x11, 0x01, 0x00, 0x01, ReportDescType})
	_ = binary.Write(b, binary.LittleEndian, uint16(len(i.Report)))

	i.Endpoint.write(b)
}

// Configuration is a configuration descriptor with its interfaces.
type Configuration struct {
	Value      uint8
	Attributes uint8
	MaxPower   uint8 // in 2 mA units
	Interfaces []Interface
}

// Bytes encodes the full configuration with wTotalLength patched in.
func (c Configuration) Bytes() []byte {
	var b bytes.Buffer
	b.Write([]byte{ConfigDescLen, ConfigDescType, 0, 0, uint8(len(c.Interfaces)), c.Value, 0, c.Attributes, c.MaxPower})
	for _, i := range c.Interfaces {
		i.write(&b)
	}
	out := b.Bytes()
	binary.LittleEndian.PutUint16(out[2:], uint16(len(out)))
	return out
}

// Report returns the report descriptor of interface n, or nil.
func (c Configuration) Report(n uint8) []byte {
	for _, i := range c.Interfaces {
		if i.Number == n {
			return i.Report
		}
	}
	return nil
}
