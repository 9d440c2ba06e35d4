// Package upload sends images to the hosting service and builds delivery
// URLs for them.
package upload

import (
	"context"
	"io"
)

// Result reports the outcome of an upload. Failures are carried in the
// result rather than returned, so the admin panel can show them inline.
type Result struct {
	Success bool `json:"success"`
	// Unavailable is set when no image host is configured.
	Unavailable bool   `json:"unavailable,omitempty"`
	URL         string `json:"url,omitempty"`
	PublicID    string `json:"publicId,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Uploader stores an image and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) *Result
}

// UnavailableMessage is returned when no image host is configured.
const UnavailableMessage = "Image upload is not configured. Set cloudinary.cloud_name and cloudinary.upload_preset."

// Unavailable is the Uploader used when no image host is configured.
type Unavailable struct{}

func (Unavailable) Upload(context.Context, string, io.Reader) *Result {
	return &Result{Unavailable: true, Error: UnavailableMessage}
}
