package catalog

// Service keys for the reference deployment.
const (
	KeyPhone      = "phone"
	KeyNationalID = "aadhaar"
	KeyVehicle    = "vehicle"
	KeyBankCode   = "ifsc"
	KeyIP         = "ip"
	KeyPincode    = "pincode"
)

// Default returns the reference catalog. Only the phone service participates
// in protected-record checks.
func Default() (*Catalog, error) {
	return New([]Service{
		{
			Key:         KeyPhone,
			Name:        "Phone Lookup",
			Command:     "phone",
			URLTemplate: "https://demon.taitanx.workers.dev/?mobile={query}",
			Pattern:     `[6-9]\d{9}`,
			Example:     "9876543210",
			Cost:        1,
			Protectable: true,
		},
		{
			Key:         KeyNationalID,
			Name:        "Aadhaar Lookup",
			Command:     "aadhaar",
			URLTemplate: "https://family-members-n5um.vercel.app/fetch?aadhaar={query}&key=paidchx",
			Pattern:     `\d{12}`,
			Example:     "123456789012",
			Cost:        1,
		},
		{
			Key:         KeyVehicle,
			Name:        "Vehicle Lookup",
			Command:     "vehicle",
			URLTemplate: "https://vehicleinfo-v2.zerovault.workers.dev/?vehicle_number={query}",
			Pattern:     `[A-Z]{2}\d{1,2}[A-Z]{1,2}\d{1,4}`,
			Example:     "KA04EQ4521",
			Cost:        1,
			Uppercase:   true,
		},
		{
			Key:         KeyBankCode,
			Name:        "IFSC Lookup",
			Command:     "ifsc",
			URLTemplate: "https://ifsc.razorpay.com/{query}",
			Pattern:     `[A-Z]{4}0[A-Z0-9]{6}`,
			Example:     "SBIN0000001",
			Cost:        1,
			Uppercase:   true,
		},
		{
			Key:         KeyIP,
			Name:        "IP Lookup",
			Command:     "ip",
			URLTemplate: "https://ip-info.bjcoderx.workers.dev/?ip={query}",
			Pattern:     `(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)`,
			Example:     "149.154.167.91",
			Cost:        1,
		},
		{
			Key:          KeyPincode,
			Name:         "Pincode Lookup",
			Command:      "pincode",
			URLTemplate:  "http://www.postalpincode.in/api/pincode/{query}",
			Pattern:      `\d{6}`,
			Example:      "110006",
			Cost:         1,
			ExtraHeaders: map[string]string{"Referer": "http://www.postalpincode.in/"},
		},
	})
}
