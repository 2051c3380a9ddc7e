package device

import "testing"

func TestNewDevice(t *testing.T) {
	info := New("did42", "Living room", "")

	if info.ID != "did42" {
		t.Errorf("Expected device ID to be did42, got %s", info.ID)
	}
	if info.Manufacturer != "Heatzy" || info.Model != "Heatzy Pilote V2" {
		t.Errorf("unexpected metadata %+v", info)
	}
	if info.SerialNumber != UnknownSerial {
		t.Errorf("expected unknown serial, got %q", info.SerialNumber)
	}
}

func TestNewDeviceNameFallsBackToID(t *testing.T) {
	info := New("did42", "", "SN1")
	if info.Name != "did42" {
		t.Errorf("expected name fallback to id, got %q", info.Name)
	}
	if info.SerialNumber != "SN1" {
		t.Errorf("expected configured serial, got %q", info.SerialNumber)
	}
}
