// Package receipt turns raw Grab e-receipt emails into structured ledger
// records. The pipeline is pure and deterministic: raw message -> combined
// text -> service type -> extracted fields -> record. Nothing in here fails;
// missing data simply yields absent fields.
package receipt

// ServiceType is the category of transaction a receipt represents. The
// string values are stable and used for filtering and reporting downstream.
type ServiceType string

const (
	ServiceFood      ServiceType = "GrabFood"
	ServiceTransport ServiceType = "GrabTransport"
	ServiceTip       ServiceType = "GrabTip"
	ServiceUnknown   ServiceType = "Unknown"
)

// ServiceTypes lists every known label, Unknown last.
func ServiceTypes() []ServiceType {
	return []ServiceType{ServiceFood, ServiceTransport, ServiceTip, ServiceUnknown}
}

// ParseServiceType maps a label string back to a ServiceType.
func ParseServiceType(s string) (ServiceType, bool) {
	for _, t := range ServiceTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Metadata is the service-type-specific field set of one receipt. Values are
// strings, floats or ints depending on the field. Kept dynamically keyed so
// new service types stay additive; the CSV contract serializes it to one JSON
// cell anyway.
type Metadata map[string]any
