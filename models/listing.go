package models

// Property types as written to the ledger.
const (
	TypePH        = "PH"
	TypeApartment = "Depto"
)

// Listing holds the attributes extracted from one listing page.
// Rooms, PriceUSD and FeesARS are nil when the page text did not yield
// a value; zero is a real observation, nil is "unknown".
type Listing struct {
	URL             string
	Title           string
	Rooms           *int
	PriceUSD        *int
	FeesARS         *int
	Neighborhood    string
	PropertyType    string
	HasOutdoorSpace bool
}
