package usb

// DeviceType identifies an Ion device model.
type DeviceType string

// Supported device types.
const (
	TypeNova   DeviceType = "nova"
	TypePulsar DeviceType = "pulsar"
	TypeQuasar DeviceType = "quasar"
	TypeComet  DeviceType = "comet"
	TypeHalo   DeviceType = "halo"
)

// ProductKey is a (vendor ID, product ID) pair.
type ProductKey struct {
	Vendor  uint16
	Product uint16
}

// DeviceEntry describes one supported device type: its platform ID and the
// USB IDs it enumerates with in normal and DFU mode.
type DeviceEntry struct {
	// Type is the symbolic device name
	Type DeviceType

	// PlatformID is the numeric platform identifier reported by the firmware
	PlatformID uint16

	// USB is the (vendor, product) pair in normal operation
	USB ProductKey

	// DFU is the (vendor, product) pair in bootloader (DFU) mode
	DFU ProductKey
}

// VendorIon is the vendor ID shared by all Ion devices.
const VendorIon = 0x1d50

// DFU-mode product IDs set this bit on top of the normal-mode product ID.
const dfuProductBit = 0x0080

// deviceTable is the static list of supported devices. Immutable.
var deviceTable = []DeviceEntry{
	{Type: TypeNova, PlatformID: 6, USB: ProductKey{VendorIon, 0x6106}, DFU: ProductKey{VendorIon, 0x6106 | dfuProductBit}},
	{Type: TypePulsar, PlatformID: 8, USB: ProductKey{VendorIon, 0x6108}, DFU: ProductKey{VendorIon, 0x6108 | dfuProductBit}},
	{Type: TypeQuasar, PlatformID: 10, USB: ProductKey{VendorIon, 0x610a}, DFU: ProductKey{VendorIon, 0x610a | dfuProductBit}},
	{Type: TypeComet, PlatformID: 12, USB: ProductKey{VendorIon, 0x610c}, DFU: ProductKey{VendorIon, 0x610c | dfuProductBit}},
	{Type: TypeHalo, PlatformID: 14, USB: ProductKey{VendorIon, 0x610e}, DFU: ProductKey{VendorIon, 0x610e | dfuProductBit}},
}

// Devices returns a copy of the supported-device table.
func Devices() []DeviceEntry {
	out := make([]DeviceEntry, len(deviceTable))
	copy(out, deviceTable)
	return out
}

// LookupType returns the table entry for a symbolic device name.
func LookupType(t DeviceType) (DeviceEntry, bool) {
	for _, e := range deviceTable {
		if e.Type == t {
			return e, true
		}
	}
	return DeviceEntry{}, false
}

// LookupPlatform returns the table entry for a platform ID.
func LookupPlatform(id uint16) (DeviceEntry, bool) {
	for _, e := range deviceTable {
		if e.PlatformID == id {
			return e, true
		}
	}
	return DeviceEntry{}, false
}

// Lookup classifies a (vendor, product) pair against the device table.
// The second result reports whether the pair is the entry's DFU-mode pair.
func Lookup(vendor, product uint16) (entry DeviceEntry, dfu bool, ok bool) {
	key := ProductKey{vendor, product}
	for _, e := range deviceTable {
		if e.USB == key {
			return e, false, true
		}
		if e.DFU == key {
			return e, true, true
		}
	}
	return DeviceEntry{}, false, false
}
