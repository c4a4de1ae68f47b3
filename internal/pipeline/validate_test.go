package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/domain"
)

func testRules() config.PipelineConfig {
	return config.PipelineConfig{
		MinPrice:        0.01,
		MaxPrice:        1_000_000,
		ValidCurrencies: []string{"CAD", "USD", "KRW"},
	}
}

func obsAt(day int, supplier, product string, price float64, currency string) domain.Observation {
	return domain.Observation{
		Timestamp: time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC),
		Supplier:  supplier,
		ProductID: product,
		Price:     price,
		Currency:  currency,
	}
}

func window() (time.Time, time.Time) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	return start, end
}

func TestValidatePartitionLaw(t *testing.T) {
	start, end := window()
	input := []domain.Observation{
		obsAt(5, "lamour", "A", 20, "CAD"),
		obsAt(5, "sukoshi", "A", -3, "CAD"),     // price below minimum
		obsAt(5, "oomomo", "A", 15, "EUR"),      // currency not whitelisted
		obsAt(5, "kiyoko", "A", 2_000_000, "CAD"), // price above maximum
		obsAt(5, "stylevana", "A", 18, "USD"),
	}
	// Out-of-window row.
	late := obsAt(5, "kiokii", "A", 10, "CAD")
	late.Timestamp = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	input = append(input, late)

	accepted, rejected := Validate(input, testRules(), start, end)

	if len(accepted)+len(rejected) != len(input) {
		t.Fatalf("partition law violated: %d accepted + %d rejected != %d input",
			len(accepted), len(rejected), len(input))
	}
	if len(accepted) != 2 {
		t.Errorf("accepted = %d, want 2", len(accepted))
	}
	if len(rejected) != 4 {
		t.Errorf("rejected = %d, want 4", len(rejected))
	}

	rules := testRules()
	currencies := rules.CurrencySet()
	for _, obs := range accepted {
		if obs.Price < rules.MinPrice || obs.Price > rules.MaxPrice {
			t.Errorf("accepted row with out-of-bounds price %v", obs.Price)
		}
		if _, ok := currencies[obs.Currency]; !ok {
			t.Errorf("accepted row with invalid currency %q", obs.Currency)
		}
		if obs.Timestamp.Before(start) || obs.Timestamp.After(end) {
			t.Errorf("accepted row outside window: %v", obs.Timestamp)
		}
	}
	for _, r := range rejected {
		if r.Reason == "" {
			t.Errorf("rejected row without reason: %+v", r.Observation)
		}
	}
}

func TestValidateRejectionReasons(t *testing.T) {
	start, end := window()

	_, rejected := Validate([]domain.Observation{obsAt(5, "s", "P", -1, "CAD")}, testRules(), start, end)
	if len(rejected) != 1 || !strings.Contains(rejected[0].Reason, "price") {
		t.Errorf("expected price reason, got %+v", rejected)
	}

	_, rejected = Validate([]domain.Observation{obsAt(5, "s", "P", 10, "EUR")}, testRules(), start, end)
	if len(rejected) != 1 || !strings.Contains(rejected[0].Reason, "currency") {
		t.Errorf("expected currency reason, got %+v", rejected)
	}
}

func TestValidateWindowBoundsInclusive(t *testing.T) {
	start, end := window()

	atStart := obsAt(5, "s", "P", 10, "CAD")
	atStart.Timestamp = start
	atEnd := obsAt(5, "s", "P", 10, "CAD")
	atEnd.Timestamp = end

	accepted, rejected := Validate([]domain.Observation{atStart, atEnd}, testRules(), start, end)
	if len(accepted) != 2 || len(rejected) != 0 {
		t.Errorf("boundary timestamps should be accepted: accepted=%d rejected=%d",
			len(accepted), len(rejected))
	}
}

// End-to-end clean+validate scenario: five raw rows, one negative price and
// one off-whitelist currency survive cleaning but fail validation.
func TestCleanThenValidateScenario(t *testing.T) {
	raw := []domain.RawRecord{
		{"timestamp": "2024-03-05", "supplier": "lamour", "product_id": "p1", "price": "20.00", "currency": "CAD"},
		{"timestamp": "2024-03-06", "supplier": "sukoshi", "product_id": "p1", "price": "22.00", "currency": "CAD"},
		{"timestamp": "2024-03-07", "supplier": "oomomo", "product_id": "p1", "price": "21.50", "currency": "USD"},
		{"timestamp": "2024-03-08", "supplier": "kiyoko", "product_id": "p1", "price": "-5.00", "currency": "CAD"},
		{"timestamp": "2024-03-09", "supplier": "kiokii", "product_id": "p1", "price": "30.00", "currency": "EUR"},
	}

	cleaned, dropped := Clean(raw, testLogger())
	if dropped != 0 {
		t.Fatalf("unexpected drops: %d", dropped)
	}

	start, end := window()
	accepted, rejected := Validate(cleaned, testRules(), start, end)
	if len(accepted) != 3 {
		t.Errorf("accepted = %d, want 3", len(accepted))
	}
	if len(rejected) != 2 {
		t.Errorf("rejected = %d, want 2", len(rejected))
	}
}
