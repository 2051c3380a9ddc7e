package device

const (
	Manufacturer  = "Heatzy"
	Model         = "Heatzy Pilote V2"
	UnknownSerial = "unknown"
)

// Info is the static accessory metadata advertised to hosts.
type Info struct {
	ID           string `json:"device_id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
}

func New(id, name, serial string) Info {
	if serial == "" {
		serial = UnknownSerial
	}
	if name == "" {
		name = id
	}
	return Info{
		ID:           id,
		Name:         name,
		Manufacturer: Manufacturer,
		Model:        Model,
		SerialNumber: serial,
	}
}
