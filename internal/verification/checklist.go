package verification

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// baseChecklistTemplate holds the requirements every methodology shares.
// Order is preserved through instantiation and the frozen audit snapshot.
var baseChecklistTemplate = []ChecklistItem{
	{ID: "monitoring-data-complete", Category: "data", Description: "Monitoring data covers the full reporting period without gaps", Required: true},
	{ID: "methodology-applied", Category: "methodology", Description: "Calculations follow the registered methodology", Required: true},
	{ID: "baseline-justified", Category: "methodology", Description: "Baseline scenario is documented and justified", Required: true},
	{ID: "additionality-demonstrated", Category: "methodology", Description: "Impact would not have occurred without carbon finance", Required: true},
	{ID: "leakage-assessed", Category: "risk", Description: "Emission displacement outside the project boundary is assessed", Required: true},
	{ID: "permanence-plan", Category: "risk", Description: "Reversal risk mitigation plan is in place", Required: true},
	{ID: "community-consultation", Category: "safeguards", Description: "Local stakeholders were consulted", Required: false},
	{ID: "co-benefits-documented", Category: "safeguards", Description: "Secondary environmental benefits are documented", Required: false},
}

// methodologyChecklistItems are appended per methodology code
var methodologyChecklistItems = map[string][]ChecklistItem{
	"VM-FOR": {
		{ID: "forest-inventory-verified", Category: "data", Description: "Field inventory plots match reported biomass", Required: true},
	},
	"VM-REN": {
		{ID: "grid-factor-verified", Category: "data", Description: "Grid emission factor matches the published registry value", Required: true},
	},
	"VM-BLC": {
		{ID: "hydrology-assessed", Category: "data", Description: "Tidal hydrology supports long-term sediment retention", Required: true},
	},
	"VM-WST": {
		{ID: "capture-efficiency-verified", Category: "data", Description: "Metered gas capture matches the claimed efficiency", Required: true},
	},
}

// NewChecklist instantiates the verification checklist for a methodology.
// Every item starts Pending.
func NewChecklist(methodologyCode string) Checklist {
	items := make(Checklist, 0, len(baseChecklistTemplate)+2)
	for _, item := range baseChecklistTemplate {
		item.Status = ItemPending
		items = append(items, item)
	}
	for _, item := range methodologyChecklistItems[methodologyCode] {
		item.Status = ItemPending
		items = append(items, item)
	}
	return items
}

// WithItemStatus returns a copy of the checklist with one item updated.
// Status changes are reversible until the review reaches a terminal decision;
// the copy keeps error paths free of partial mutation.
func (c Checklist) WithItemStatus(itemID string, status ItemStatus, notes string, evidenceCIDs []string, updatedBy uuid.UUID, now time.Time) (Checklist, error) {
	switch status {
	case ItemPending, ItemVerified, ItemFlagged:
	default:
		return nil, fmt.Errorf("unknown checklist item status: %s", status)
	}

	updated := make(Checklist, len(c))
	copy(updated, c)
	for i := range updated {
		if updated[i].ID != itemID {
			continue
		}
		updated[i].Status = status
		updated[i].Notes = notes
		if evidenceCIDs != nil {
			updated[i].EvidenceCIDs = evidenceCIDs
		}
		updated[i].UpdatedBy = &updatedBy
		updated[i].UpdatedAt = &now
		return updated, nil
	}
	return nil, fmt.Errorf("checklist item not found: %s", itemID)
}

// IsApprovable reports whether every required item is verified. A flagged
// required item blocks approval regardless of the others; optional items
// never block.
func (c Checklist) IsApprovable() bool {
	for _, item := range c {
		if item.Required && item.Status != ItemVerified {
			return false
		}
	}
	return true
}

// BlockingItems lists the required items that currently prevent approval
func (c Checklist) BlockingItems() []string {
	var blocking []string
	for _, item := range c {
		if item.Required && item.Status != ItemVerified {
			blocking = append(blocking, fmt.Sprintf("%s (%s)", item.ID, item.Status))
		}
	}
	return blocking
}
