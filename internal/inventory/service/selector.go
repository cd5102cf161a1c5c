package service

import (
	"sort"

	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/pkg/errors"
)

// Allocation is one planned draw against a single lot
type Allocation struct {
	Lot      *repository.InventoryLot
	Quantity int
}

// AllocationPlan is the ordered set of lot draws covering a requested
// quantity. Planning is pure; nothing is mutated until the plan executes.
type AllocationPlan struct {
	ProductID   string
	LocationID  string
	Requested   int
	Allocations []Allocation
}

// TotalAvailable sums the free quantity across candidate lots
func TotalAvailable(lots []*repository.InventoryLot) int {
	total := 0
	for _, lot := range lots {
		total += lot.AvailableQuantity()
	}
	return total
}

// PlanDeduction builds an allocation plan over the candidate lots. Lots are
// consumed greedily in selection order: open units first, then earliest
// expiration, then receipt order. A zero request yields an empty plan;
// returns an aggregate insufficiency error when the candidates cannot
// cover the request.
func PlanDeduction(productID, locationID string, quantity int, candidates []*repository.InventoryLot) (*AllocationPlan, error) {
	if quantity < 0 {
		return nil, errors.InvalidQuantity(quantity)
	}

	lots := sortForSelection(candidates)

	plan := &AllocationPlan{
		ProductID:  productID,
		LocationID: locationID,
		Requested:  quantity,
	}

	remaining := quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		available := lot.AvailableQuantity()
		if available <= 0 {
			continue
		}
		take := available
		if take > remaining {
			take = remaining
		}
		plan.Allocations = append(plan.Allocations, Allocation{Lot: lot, Quantity: take})
		remaining -= take
	}

	if remaining > 0 {
		return nil, errors.InsufficientInventory(productID, quantity, quantity-remaining)
	}
	return plan, nil
}

// PlanFromLot builds a single-lot plan for a caller-forced lot selection,
// used when a clinician overrides automatic selection.
func PlanFromLot(lot *repository.InventoryLot, quantity int) (*AllocationPlan, error) {
	if quantity < 0 {
		return nil, errors.InvalidQuantity(quantity)
	}
	if lot.Status == repository.LotQuarantine {
		return nil, errors.LotQuarantined(lot.ID)
	}
	if quantity == 0 {
		return &AllocationPlan{
			ProductID:  lot.ProductID,
			LocationID: lot.LocationID,
		}, nil
	}
	if lot.AvailableQuantity() < quantity {
		return nil, errors.InsufficientQuantity(lot.ID, quantity, lot.AvailableQuantity())
	}

	return &AllocationPlan{
		ProductID:  lot.ProductID,
		LocationID: lot.LocationID,
		Requested:  quantity,
		Allocations: []Allocation{
			{Lot: lot, Quantity: quantity},
		},
	}, nil
}

// sortForSelection orders lots by consumption priority without mutating
// the caller's slice. Open units come first, latest opened winning when
// several are open, then earliest expiration, then receipt order.
func sortForSelection(lots []*repository.InventoryLot) []*repository.InventoryLot {
	sorted := make([]*repository.InventoryLot, len(lots))
	copy(sorted, lots)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]

		if a.IsOpen() != b.IsOpen() {
			return a.IsOpen()
		}
		if a.IsOpen() && b.IsOpen() && !a.OpenedDate.Equal(*b.OpenedDate) {
			return a.OpenedDate.After(*b.OpenedDate)
		}
		if !a.ExpirationDate.Equal(b.ExpirationDate) {
			return a.ExpirationDate.Before(b.ExpirationDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	return sorted
}
