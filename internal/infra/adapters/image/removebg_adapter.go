package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"listing-assistant/internal/config"
	"listing-assistant/internal/domain"
	"listing-assistant/internal/domain/ports/adapter"
	"listing-assistant/internal/infra/metrics"
)

const ProviderRemoveBG = "removebg"

// Compile-time assurance this adapter satisfies the port
var _ adapter.BackgroundRemover = (*RemoveBGClient)(nil)

// RemoveBGClient calls the remove.bg HTTP API.
// Requests carry the image as multipart field image_file with size=auto;
// the response body is the processed PNG.
type RemoveBGClient struct {
	apiKey string
	url    string
	client *http.Client
	sem    chan struct{}
}

func NewRemoveBGClient(cfg config.ImageConfig) (*RemoveBGClient, error) {
	if cfg.RemoveBGKey == "" {
		return nil, errors.New("remove.bg api key empty")
	}
	c := &RemoveBGClient{
		apiKey: cfg.RemoveBGKey,
		url:    cfg.RemoveBGURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.ConcurrentLimit > 0 {
		c.sem = make(chan struct{}, cfg.ConcurrentLimit)
	}
	return c, nil
}

func (c *RemoveBGClient) RemoveBackground(ctx context.Context, img adapter.Image) (adapter.Image, error) {
	if len(img.Data) == 0 {
		return adapter.Image{}, domain.ErrInvalidArgument
	}
	if c.sem != nil {
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return adapter.Image{}, ctx.Err()
		}
	}

	body, contentType, err := encodeForm(img)
	if err != nil {
		return adapter.Image{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return adapter.Image{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Api-Key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveProviderCall(ProviderRemoveBG, time.Since(start).Milliseconds(), false)
		return adapter.Image{}, &domain.ProviderError{Provider: ProviderRemoveBG, Message: "Failed to process image", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.ObserveProviderCall(ProviderRemoveBG, time.Since(start).Milliseconds(), false)
		return adapter.Image{}, decodeError(resp)
	}

	out, err := io.ReadAll(resp.Body)
	metrics.ObserveProviderCall(ProviderRemoveBG, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return adapter.Image{}, &domain.ProviderError{Provider: ProviderRemoveBG, Message: "Failed to process image", Err: err}
	}
	return adapter.Image{
		Filename:    pngName(img.Filename),
		ContentType: "image/png",
		Data:        out,
	}, nil
}

func encodeForm(img adapter.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := img.Filename
	if name == "" {
		name = "upload"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image_file"; filename="%s"`, strings.ReplaceAll(name, `"`, "")))
	ct := img.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("size", "auto"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// decodeError surfaces errors[0].title from the provider body.
func decodeError(resp *http.Response) error {
	var payload struct {
		Errors []struct {
			Title string `json:"title"`
		} `json:"errors"`
	}
	msg := "Background removal failed"
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &payload) == nil && len(payload.Errors) > 0 && payload.Errors[0].Title != "" {
		msg = payload.Errors[0].Title
	}
	return &domain.ProviderError{
		Provider: ProviderRemoveBG,
		Status:   resp.StatusCode,
		Message:  msg,
	}
}

func pngName(name string) string {
	if name == "" {
		return "processed-image.png"
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ".png"
}
