package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/lchartrand/shelfprice/internal/domain"
)

// Compare derives one PriceComparison per product from the latest
// observation per (supplier, product). Ties on minimum or maximum price go
// to the first row in the batch's stored order, which the store keeps
// deterministic. A product quoted by a single supplier still produces a row
// with zero spread and zero savings.
func Compare(latest []domain.Observation, snapshotDate time.Time) []domain.PriceComparison {
	var productOrder []string
	groups := make(map[string][]domain.Observation)
	for _, obs := range latest {
		if _, ok := groups[obs.ProductID]; !ok {
			productOrder = append(productOrder, obs.ProductID)
		}
		groups[obs.ProductID] = append(groups[obs.ProductID], obs)
	}

	snapshot := snapshotDate.UTC().Truncate(24 * time.Hour)
	comparisons := make([]domain.PriceComparison, 0, len(groups))
	for _, productID := range productOrder {
		group := groups[productID]

		cheapest := group[0]
		mostExpensive := group[0]
		suppliers := make(map[string]struct{}, len(group))
		for _, obs := range group {
			suppliers[obs.Supplier] = struct{}{}
			if obs.Price < cheapest.Price {
				cheapest = obs
			}
			if obs.Price > mostExpensive.Price {
				mostExpensive = obs
			}
		}

		spread := mostExpensive.Price - cheapest.Price
		savingsPct := 0.0
		if mostExpensive.Price > 0 {
			savingsPct = spread / mostExpensive.Price * 100
		}

		comparisons = append(comparisons, domain.PriceComparison{
			ProductID:             productID,
			SnapshotDate:          snapshot,
			CheapestSupplier:      cheapest.Supplier,
			CheapestPrice:         cheapest.Price,
			MostExpensiveSupplier: mostExpensive.Supplier,
			MostExpensivePrice:    mostExpensive.Price,
			PriceSpread:           spread,
			SavingsPct:            savingsPct,
			NumSuppliers:          len(suppliers),
		})
	}
	return comparisons
}

// Report renders a plain-text summary of the comparisons: per product, the
// cheapest supplier and price, and the savings versus the most expensive.
func Report(comparisons []domain.PriceComparison) string {
	if len(comparisons) == 0 {
		return "no price comparisons available\n"
	}

	var b strings.Builder
	b.WriteString("PRICE COMPARISON REPORT\n")
	b.WriteString("Snapshot: " + comparisons[0].SnapshotDate.Format("2006-01-02") + "\n")
	b.WriteString(strings.Repeat("-", 60) + "\n")

	for _, c := range comparisons {
		fmt.Fprintf(&b, "%s\n", c.ProductID)
		fmt.Fprintf(&b, "  cheapest:       %s at %.2f\n", c.CheapestSupplier, c.CheapestPrice)
		fmt.Fprintf(&b, "  most expensive: %s at %.2f\n", c.MostExpensiveSupplier, c.MostExpensivePrice)
		fmt.Fprintf(&b, "  spread: %.2f  savings: %.1f%%  suppliers: %d\n",
			c.PriceSpread, c.SavingsPct, c.NumSuppliers)
	}
	return b.String()
}
