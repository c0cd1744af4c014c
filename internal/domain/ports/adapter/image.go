package adapter

import "context"

// Image is an in-memory image payload.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BackgroundRemover is the port for the background-removal provider.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, img Image) (Image, error)
}
