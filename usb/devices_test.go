package usb

import "testing"

func TestLookupNormalMode(t *testing.T) {
	entry, dfu, ok := Lookup(VendorIon, 0x6106)

	if !ok {
		t.Fatal("0x1d50:0x6106 should be a known device")
	}
	if dfu {
		t.Error("0x6106 is the normal-mode product ID")
	}
	if entry.Type != TypeNova {
		t.Errorf("type should be %q, got %q", TypeNova, entry.Type)
	}
	if entry.PlatformID != 6 {
		t.Errorf("platform ID should be 6, got %d", entry.PlatformID)
	}
}

func TestLookupDFUMode(t *testing.T) {
	entry, dfu, ok := Lookup(VendorIon, 0x6186)

	if !ok {
		t.Fatal("0x1d50:0x6186 should be a known device")
	}
	if !dfu {
		t.Error("0x6186 is the DFU-mode product ID")
	}
	if entry.Type != TypeNova {
		t.Errorf("type should be %q, got %q", TypeNova, entry.Type)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, _, ok := Lookup(0x0483, 0xdf11); ok {
		t.Error("an unknown (vid, pid) pair should not match")
	}
}

func TestLookupType(t *testing.T) {
	entry, ok := LookupType(TypeQuasar)

	if !ok {
		t.Fatal("quasar should be a known type")
	}
	if entry.PlatformID != 10 {
		t.Errorf("platform ID should be 10, got %d", entry.PlatformID)
	}
	if entry.USB.Vendor != VendorIon {
		t.Errorf("vendor should be 0x%04X, got 0x%04X", VendorIon, entry.USB.Vendor)
	}

	if _, ok := LookupType("toaster"); ok {
		t.Error("an unknown type should not match")
	}
}

func TestLookupPlatform(t *testing.T) {
	entry, ok := LookupPlatform(14)

	if !ok {
		t.Fatal("platform 14 should be known")
	}
	if entry.Type != TypeHalo {
		t.Errorf("type should be %q, got %q", TypeHalo, entry.Type)
	}

	if _, ok := LookupPlatform(255); ok {
		t.Error("an unknown platform should not match")
	}
}

func TestDevicesIsACopy(t *testing.T) {
	devs := Devices()
	if len(devs) == 0 {
		t.Fatal("device table should not be empty")
	}

	devs[0].PlatformID = 0xFFFF

	if orig, _ := LookupType(devs[0].Type); orig.PlatformID == 0xFFFF {
		t.Error("mutating the returned slice should not affect the table")
	}
}

func TestEveryEntryHasDistinctModePairs(t *testing.T) {
	for _, e := range Devices() {
		if e.USB == e.DFU {
			t.Errorf("%s: normal and DFU product IDs should differ", e.Type)
		}
		if e.USB.Vendor != e.DFU.Vendor {
			t.Errorf("%s: both modes should share the vendor ID", e.Type)
		}
	}
}
