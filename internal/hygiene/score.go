package hygiene

// ComputeScore derives the weighted cleanliness score from a Report's raw
// findings: five piecewise-constant component scorers on a 0.0-1.0 scale,
// each multiplied by its configured weight (already expressed on a 0-100
// scale, so the weighted sum is itself 0-100), then mapped to a letter
// grade.
func ComputeScore(r *Report, weights ScoreWeights) ScoreResult {
	orphanScore := scoreOrphans(len(r.Orphans))
	largeFileScore := scoreLargeFiles(len(r.nonWhitelistedLargeFiles()))
	deadCodeScore := scoreDeadCodeWeighted(deadCodeWeightedTotal(r.DeadCode))
	notebookScore := scoreNotebooks(len(r.nonWhitelistedNotebooks()))
	secretsScore := scoreSecrets(len(r.Secrets))

	total := orphanScore*float64(weights.Orphans) +
		largeFileScore*float64(weights.LargeFiles) +
		deadCodeScore*float64(weights.DeadCode) +
		notebookScore*float64(weights.Notebooks) +
		secretsScore*float64(weights.Secrets)

	return ScoreResult{
		Score: total,
		Grade: gradeFor(total),
		Breakdown: map[string]float64{
			"orphans":    orphanScore,
			"largeFiles": largeFileScore,
			"deadCode":   deadCodeScore,
			"notebooks":  notebookScore,
			"secrets":    secretsScore,
		},
		Weights: weights,
	}
}

func scoreOrphans(n int) float64 {
	switch {
	case n == 0:
		return 1.0
	case n <= 5:
		return 0.8
	case n <= 10:
		return 0.6
	case n <= 20:
		return 0.4
	case n <= 50:
		return 0.2
	default:
		return 0.0
	}
}

func scoreLargeFiles(n int) float64 {
	switch {
	case n == 0:
		return 1.0
	case n <= 3:
		return 0.7
	case n <= 5:
		return 0.5
	case n <= 10:
		return 0.3
	default:
		return 0.0
	}
}

// deadCodeWeightedTotal weights the finding kinds before bucketing:
// unused functions and types count 3x, unused imports count 1x.
func deadCodeWeightedTotal(findings []DeadCodeFinding) int {
	total := 0
	for _, f := range findings {
		switch f.Kind {
		case DeadCodeFunction, DeadCodeType:
			total += 3
		case DeadCodeImport:
			total++
		}
	}
	return total
}

func scoreDeadCodeWeighted(weightedTotal int) float64 {
	switch {
	case weightedTotal == 0:
		return 1.0
	case weightedTotal <= 10:
		return 0.8
	case weightedTotal <= 20:
		return 0.6
	case weightedTotal <= 50:
		return 0.4
	default:
		return 0.2
	}
}

func scoreNotebooks(n int) float64 {
	switch {
	case n == 0:
		return 1.0
	case n <= 2:
		return 0.7
	case n <= 5:
		return 0.5
	case n <= 10:
		return 0.3
	default:
		return 0.0
	}
}

func scoreSecrets(n int) float64 {
	if n == 0 {
		return 1.0
	}
	return 0.0
}

func gradeFor(score float64) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 90:
		return "A"
	case score >= 85:
		return "B+"
	case score >= 80:
		return "B"
	case score >= 75:
		return "C+"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
