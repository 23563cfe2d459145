package ledger

import "time"

// Vehicle is a rentable unit type: a pooled resource with quantity
// counters, not an individual physical unit.  It corresponds to a row
// in the `vehicles` table, keyed by the human-assigned code rather
// than a storage-internal identifier.
//
// Fields:
//
//	Code            – unique human-assigned inventory code (e.g. CAR001).
//	Designation     – display name of the vehicle type.
//	Category        – free-form grouping used by inventory views.
//	Make, Model     – manufacturer and model name.
//	SerialNumber    – chassis/serial reference.
//	OldAssetTag     – barcode assigned under the previous tagging scheme.
//	NewAssetTag     – barcode assigned under the current tagging scheme.
//	InventoryDate   – date the unit batch was inventoried (YYYY-MM-DD).
//	Description     – free-text description / observations.
//	DailyPriceCents – rental price per day, in cents.
//	FuelType        – e.g. Essence, Diesel, Electrique.
//	Transmission    – e.g. Manuelle, Automatique.
//	Image           – stored image reference (nil when none uploaded).
//	Status          – asserted condition label, kept in line with counters.
//	Quantities      – the six unit counters (see QuantitySet).
//	Notes           – staff notes recorded at return time (nullable).
type Vehicle struct {
	Code            string
	Designation     string
	Category        string
	Make            string
	Model           string
	SerialNumber    string
	OldAssetTag     string
	NewAssetTag     string
	InventoryDate   string
	Description     string
	DailyPriceCents uint32
	FuelType        string
	Transmission    string
	Image           *string
	Status          VehicleStatus
	Quantities      QuantitySet
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
