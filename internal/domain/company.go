package domain

// KeyPrefix namespaces every Redis key written by scout.
const KeyPrefix = "scout:"

// CatalogIndex is the FT index over company documents.
const CatalogIndex = KeyPrefix + "companies:idx"

// Company is a catalog record. Filterable attributes live in the search
// index; supplemental fields (WebsiteURL, City) come from the record store.
type Company struct {
	ID             string
	Name           string
	Description    string
	City           string
	WebsiteURL     string
	Location       string
	FundingStage   string
	Industries     []string
	TargetMarkets  []string
	BusinessModels []string
	RevenueModels  []string
	EmployeeCount  *int
	FundingAmount  *int64
	StageOrder     *int
}
