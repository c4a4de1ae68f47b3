package pipeline

import (
	"fmt"
	"time"

	"github.com/lchartrand/shelfprice/internal/config"
	"github.com/lchartrand/shelfprice/internal/domain"
)

// Validate applies the domain rules to a cleaned batch and partitions it:
// every input row lands in exactly one of the accepted or rejected sets.
// Rejected rows keep their reason so the runner can write them to the audit
// side file; they are never silently discarded.
func Validate(
	observations []domain.Observation,
	rules config.PipelineConfig,
	start, end time.Time,
) (accepted []domain.Observation, rejected []domain.RejectedRecord) {
	currencies := rules.CurrencySet()

	for _, obs := range observations {
		if reason := checkRules(obs, rules, currencies, start, end); reason != "" {
			rejected = append(rejected, domain.RejectedRecord{Observation: obs, Reason: reason})
			continue
		}
		accepted = append(accepted, obs)
	}
	return accepted, rejected
}

// checkRules returns the first failed rule's description, or "" when the
// observation passes all of them.
func checkRules(
	obs domain.Observation,
	rules config.PipelineConfig,
	currencies map[string]struct{},
	start, end time.Time,
) string {
	if obs.Price < rules.MinPrice || obs.Price > rules.MaxPrice {
		return fmt.Sprintf("price %.4f outside [%g, %g]", obs.Price, rules.MinPrice, rules.MaxPrice)
	}
	if _, ok := currencies[obs.Currency]; !ok {
		return fmt.Sprintf("currency %q not in valid set", obs.Currency)
	}
	if obs.Timestamp.Before(start) || obs.Timestamp.After(end) {
		return fmt.Sprintf("timestamp %s outside [%s, %s]",
			obs.Timestamp.Format(time.RFC3339),
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return ""
}
