package pipeline

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"imagehub/internal/models"
)

// Artifacts is the all-or-nothing output of a generator run.
type Artifacts struct {
	Metadata   *models.Metadata
	Thumbnails map[string]string
}

var thumbnailSizes = map[string]int{
	models.ThumbSmall:  128,
	models.ThumbMedium: 512,
}

// ArtifactGenerator resizes images and extracts their metadata bundle.
type ArtifactGenerator struct {
	thumbDir string
}

func NewArtifactGenerator(thumbDir string) (*ArtifactGenerator, error) {
	const op = "pipeline.NewArtifactGenerator"
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return &ArtifactGenerator{thumbDir: thumbDir}, nil
}

func (g *ArtifactGenerator) Generate(storedPath, originalName string) (*Artifacts, error) {
	const op = "pipeline.Generate"

	f, err := os.Open(storedPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	cfg, format, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	src, err := imaging.Open(storedPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	info, err := os.Stat(storedPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	metadata := &models.Metadata{
		Width:        cfg.Width,
		Height:       cfg.Height,
		Format:       format,
		SizeBytes:    info.Size(),
		FileDatetime: info.ModTime().UTC(),
		Exif:         extractExif(storedPath),
	}

	stamp := time.Now().UnixNano()
	thumbnails := make(map[string]string, len(thumbnailSizes))
	for name, px := range thumbnailSizes {
		thumb := imaging.Thumbnail(src, px, px, imaging.Lanczos)
		path := filepath.Join(g.thumbDir,
			fmt.Sprintf("%d_%s_%s", stamp, name, thumbFileName(originalName, format)))
		if err := imaging.Save(thumb, path); err != nil {
			return nil, fmt.Errorf("%s: save %s thumbnail: %v", op, name, err)
		}
		thumbnails[name] = path
	}

	return &Artifacts{Metadata: metadata, Thumbnails: thumbnails}, nil
}

func thumbFileName(originalName, format string) string {
	base := sanitizeName(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if base == "" {
		base = "image"
	}
	ext := ".jpg"
	if format == "png" {
		ext = ".png"
	}
	return base + ext
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

type exifWalker map[string]string

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	w[string(name)] = tag.String()
	return nil
}

// extractExif is best-effort: most PNGs and many JPEGs carry no EXIF block.
func extractExif(path string) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}

	tags := make(exifWalker)
	if err := x.Walk(tags); err != nil {
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
