// Package stats derives aggregate statistics from the record set. There are
// no cached counters; everything is recomputed from scratch per call.
package stats

import (
	"math"

	"imagehub/internal/models"
)

func Compute(images []models.Image) models.Stats {
	st := models.Stats{TotalImages: len(images)}

	var totalSeconds float64
	var terminal int
	for _, img := range images {
		switch img.Status {
		case models.StatusSuccess:
			st.Successful++
		case models.StatusFailed:
			st.Failed++
		default:
			st.Processing++
		}
		if img.ProcessedAt != nil {
			totalSeconds += img.ProcessedAt.Sub(img.CreatedAt).Seconds()
			terminal++
		}
	}

	if st.TotalImages > 0 {
		st.SuccessRate = round2(float64(st.Successful) / float64(st.TotalImages) * 100)
	}
	if terminal > 0 {
		st.AverageProcessingTimeSeconds = round2(totalSeconds / float64(terminal))
	}
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
