package image

import (
	"context"

	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/ports/adapter"
)

var _ adapter.BackgroundRemover = NoopRemover{}

// NoopRemover echoes the upload back; used in dev mode without a remove.bg key.
type NoopRemover struct{}

func (NoopRemover) RemoveBackground(ctx context.Context, img adapter.Image) (adapter.Image, error) {
	if len(img.Data) == 0 {
		return adapter.Image{}, domain.ErrInvalidArgument
	}
	return adapter.Image{Filename: pngName(img.Filename), ContentType: img.ContentType, Data: img.Data}, nil
}
