package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	// DefaultFolder is where uploads land when no folder is configured.
	DefaultFolder = "lucho-web"

	deliveryBase  = "https://res.cloudinary.com"
	uploadTimeout = 60 * time.Second
)

// CloudinaryConfig configures unsigned uploads.
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	Folder       string
	// APIBase overrides the upload API root.
	APIBase      string
	Logger       *slog.Logger
}

// Cloudinary uploads through an unsigned upload preset.
type Cloudinary struct {
	cfg    CloudinaryConfig
	cld    *cloudinary.Cloudinary
	logger *slog.Logger
}

// New returns a Cloudinary uploader, or Unavailable when the cloud name or
// the upload preset is missing.
func New(cfg CloudinaryConfig) Uploader {
	if cfg.CloudName == "" || cfg.UploadPreset == "" {
		return Unavailable{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// unsigned uploads need no key or secret
	cld, err := cloudinary.NewFromParams(cfg.CloudName, "", "")
	if err != nil {
		logger.Error("image host rejected configuration", "cloud", cfg.CloudName, "error", err)

		return Unavailable{}
	}

	if cfg.APIBase != "" {
		cld.Config.API.UploadPrefix = strings.TrimSuffix(cfg.APIBase, "/")
	}

	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}

	return &Cloudinary{cfg: cfg, cld: cld, logger: logger}
}

// Upload sends the image with the configured preset and folder.
func (c *Cloudinary) Upload(ctx context.Context, filename string, r io.Reader) *Result {
	res, err := c.upload(ctx, r)
	if err != nil {
		c.logger.Error("image upload failed", "file", filename, "error", err)

		return &Result{Error: err.Error()}
	}

	c.logger.Info("image uploaded", "file", filename, "public_id", res.PublicID)

	return res
}

func (c *Cloudinary) upload(ctx context.Context, r io.Reader) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	out, err := c.cld.Upload.UnsignedUpload(ctx, r, c.cfg.UploadPreset, uploader.UploadParams{
		Folder:       c.cfg.Folder,
		ResourceType: "image",
	})
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	if out.Error.Message != "" {
		return nil, fmt.Errorf("upload image: %s", out.Error.Message)
	}

	if out.SecureURL == "" {
		return nil, errors.New("upload image: response carried no URL")
	}

	return &Result{
		Success:   true,
		URL:       out.SecureURL,
		PublicID:  out.PublicID,
		Width:     out.Width,
		Height:    out.Height,
		Thumbnail: ImageURL(c.cfg.CloudName, out.PublicID, thumbnailOptions),
	}, nil
}

var thumbnailOptions = ImageOptions{Width: 320, Height: 200}

// ImageOptions are delivery transformations.
type ImageOptions struct {
	Width   int
	Height  int
	Crop    string
	Quality string
	Format  string
}

// ImageURL builds a delivery URL for publicID with the given
// transformations. Crop, quality and format default to fill, auto, auto.
func ImageURL(cloudName, publicID string, opts ImageOptions) string {
	var t []string

	if opts.Width > 0 {
		t = append(t, fmt.Sprintf("w_%d", opts.Width))
	}

	if opts.Height > 0 {
		t = append(t, fmt.Sprintf("h_%d", opts.Height))
	}

	t = append(t,
		"c_"+orDefault(opts.Crop, "fill"),
		"q_"+orDefault(opts.Quality, "auto"),
		"f_"+orDefault(opts.Format, "auto"),
	)

	return fmt.Sprintf("%s/%s/image/upload/%s/%s", deliveryBase, cloudName, strings.Join(t, ","), publicID)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
