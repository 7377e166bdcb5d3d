package profile

import (
	"gonum.org/v1/gonum/stat"

	"github.com/zombar/communityanalyzer/internal/models"
)

// Averages computes the community baseline as means over non-null values
func Averages(features []models.TextFeatures) models.CommunityAverages {
	var formality, length, std []float64
	for _, f := range features {
		if f.FormalityScore != nil {
			formality = append(formality, *f.FormalityScore)
		}
		if f.AvgSentenceLength != nil {
			length = append(length, *f.AvgSentenceLength)
		}
		if f.SentenceLengthStd != nil {
			std = append(std, *f.SentenceLengthStd)
		}
	}
	return models.CommunityAverages{
		FormalityLevel:    mean(formality),
		AvgSentenceLength: mean(length),
		SentenceLengthStd: mean(std),
	}
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := stat.Mean(values, nil)
	return &m
}
