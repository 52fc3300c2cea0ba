package pnl

import "github.com/mtlprog/vaultfee/internal/domain"

// SampleSeries thins points to at most maxPoints, keeping evenly spaced
// points and always the last one. Series already within the limit are returned as is.
func SampleSeries(points []domain.SeriesPoint, maxPoints int) []domain.SeriesPoint {
	if len(points) <= maxPoints {
		return points
	}
	if maxPoints <= 1 {
		return points[len(points)-1:]
	}

	sampled := make([]domain.SeriesPoint, 0, maxPoints)
	for i := range maxPoints - 1 {
		idx := min(i*len(points)/(maxPoints-1), len(points)-1)
		sampled = append(sampled, points[idx])
	}
	return append(sampled, points[len(points)-1])
}
