package models

import "fmt"

// EntityType identifies which approval pipeline applies to a record.
type EntityType string

const (
	EntityTypeTransfer EntityType = "transfer"
	EntityTypeRequest  EntityType = "request"
	EntityTypeReport   EntityType = "report"
	EntityTypeProposal EntityType = "proposal"
)

// Report variants carry different stage sequences.
const (
	ReportVariantBlockInventory = "BLOCK_INVENTORY"
	ReportVariantSummary        = "SUMMARY_REPORT"
)

// ParseEntityType validates a raw entity type string, typically from a URL path.
func ParseEntityType(raw string) (EntityType, error) {
	switch EntityType(raw) {
	case EntityTypeTransfer, EntityTypeRequest, EntityTypeReport, EntityTypeProposal:
		return EntityType(raw), nil
	default:
		return "", fmt.Errorf("unknown entity type: %q", raw)
	}
}
