package evaluation

import "github.com/fatinm1/promptrix/services/promptrix/datatypes"

// Aggregate computes the statistics view over a set of PairwiseResults.
// Pure and commutative: permuting the input never changes any field.
// Aggregating zero results is valid and returns all-zero counts with an
// overall TIE, not an error.
func Aggregate(results []datatypes.PairwiseResult) datatypes.TestAggregate {
	agg := datatypes.TestAggregate{
		TotalTests:    len(results),
		OverallWinner: datatypes.WinnerTie,
	}
	if len(results) == 0 {
		return agg
	}

	var sumA, sumB float64
	for _, result := range results {
		switch result.Winner {
		case datatypes.WinnerA:
			agg.AWins++
		case datatypes.WinnerB:
			agg.BWins++
		default:
			agg.Ties++
		}
		sumA += result.ScoreA
		sumB += result.ScoreB
	}

	total := float64(agg.TotalTests)
	agg.AWinRate = float64(agg.AWins) / total * 100
	agg.BWinRate = float64(agg.BWins) / total * 100
	agg.TieRate = float64(agg.Ties) / total * 100
	agg.AvgRatingA = sumA / total
	agg.AvgRatingB = sumB / total

	switch {
	case agg.AWins > agg.BWins:
		agg.OverallWinner = datatypes.WinnerA
	case agg.BWins > agg.AWins:
		agg.OverallWinner = datatypes.WinnerB
	}

	// Majority margin as a percentage. Not a statistical significance
	// test; see the TestAggregate doc comment.
	agg.ConfidenceLevel = float64(max(agg.AWins, agg.BWins)) / total * 100
	return agg
}
