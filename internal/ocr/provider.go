package ocr

import (
	"context"

	"github.com/icitysystems/academia-sub002/internal/exam"
)

// Provider hands back the recognized text for one question region of a
// sheet. Implementations must tolerate missing regions: an empty Region with
// confidence 0 is the defined placeholder, never an error.
type Provider interface {
	RegionText(ctx context.Context, sheet exam.Sheet, questionID string) (exam.Region, error)
}

// StoredRegions serves regions already recognized upstream and persisted on
// the sheet. When a region carries only an image path, the optional Engine
// is consulted at grading time.
type StoredRegions struct {
	Engine Engine // nil means no on-demand OCR
}

func (p *StoredRegions) RegionText(ctx context.Context, sheet exam.Sheet, questionID string) (exam.Region, error) {
	region, ok := sheet.Regions[questionID]
	if !ok {
		return exam.Region{}, nil
	}
	if region.Text == "" && region.ImagePath != "" && p.Engine != nil {
		text, err := p.Engine.ExtractPath(ctx, region.ImagePath)
		if err != nil {
			// OCR unavailability degrades to the placeholder contract.
			return exam.Region{}, nil
		}
		region.Text = text
		if region.Confidence == 0 {
			region.Confidence = 0.5
		}
	}
	return region, nil
}
