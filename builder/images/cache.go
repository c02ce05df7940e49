package images

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/bengal-ssg/bengal/builder/atomicio"
	"github.com/bengal-ssg/bengal/builder/hashing"
)

// CacheSchemaVersion invalidates the whole image cache when bumped.
const CacheSchemaVersion = 1

// ProcessedImage is the result of a cache hit or a fresh processing run.
type ProcessedImage struct {
	Path         string `json:"-"` // cache file path
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Format       string `json:"format"`
	RelPermalink string `json:"rel_permalink"`
}

// Cache is the versioned disk cache of processed images. Per-key writes
// are serialized by the atomic temp-rename pattern; reads take no lock.
type Cache struct {
	fs     afero.Fs
	dir    string
	warnFn func(format string, args ...interface{})
}

// NewCache opens the cache rooted at dir.
func NewCache(fs afero.Fs, dir string, warnFn func(string, ...interface{})) *Cache {
	if warnFn == nil {
		warnFn = func(string, ...interface{}) {}
	}
	return &Cache{fs: fs, dir: dir, warnFn: warnFn}
}

// sourceIdentity keys the cache on path + mtime so edits invalidate.
func (c *Cache) sourceIdentity(sourcePath string) (string, error) {
	info, err := c.fs.Stat(sourcePath)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s-%d", sourcePath, info.ModTime().UnixNano())
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:12], nil
}

func (c *Cache) cacheName(srcID string, op Op, spec Spec, ext string) string {
	specHash := string(hashing.HashString(spec.Canonical()))[:12]
	return fmt.Sprintf("v%d_%s_%s_%s%s", CacheSchemaVersion, srcID, op, specHash, ext)
}

// Process runs op+spec over sourcePath, returning the cached result when
// the key matches. Cache files and sidecars are written atomically.
func (c *Cache) Process(sourcePath string, op Op, specStr string) (*ProcessedImage, error) {
	spec := ParseSpec(specStr)
	for _, tok := range spec.Unknown {
		c.warnFn("⚠️ unknown image spec token %q (ignored)", tok)
	}

	srcID, err := c.sourceIdentity(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("image source %s: %w", sourcePath, err)
	}

	format := spec.Format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(sourcePath)), ".")
		if format == "jpg" {
			format = "jpeg"
		}
	}
	if format == "avif" {
		// No AVIF encoder in the toolchain; webp is the nearest target.
		c.warnFn("⚠️ avif output unsupported, encoding %s as webp", filepath.Base(sourcePath))
		format = "webp"
	}

	name := c.cacheName(srcID, op, spec, "."+format)
	imgPath := filepath.Join(c.dir, name)
	sidecarPath := strings.TrimSuffix(imgPath, "."+format) + ".json"

	// Cache hit: sidecar plus image file both present.
	if data, err := afero.ReadFile(c.fs, sidecarPath); err == nil {
		if ok, _ := afero.Exists(c.fs, imgPath); ok {
			var meta ProcessedImage
			if err := json.Unmarshal(data, &meta); err == nil {
				meta.Path = imgPath
				return &meta, nil
			}
		}
	}

	// Cache miss: decode, apply, encode, persist both files.
	f, err := c.fs.Open(sourcePath)
	if err != nil {
		return nil, err
	}
	src, err := imaging.Decode(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", sourcePath, err)
	}

	out := apply(src, op, spec)
	encoded, err := encode(out, format, spec.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s as %s: %w", sourcePath, format, err)
	}

	meta := &ProcessedImage{
		Path:         imgPath,
		Width:        out.Bounds().Dx(),
		Height:       out.Bounds().Dy(),
		Format:       format,
		RelPermalink: "/" + filepath.ToSlash(filepath.Join("images", name)),
	}

	if err := atomicio.WriteBytes(c.fs, imgPath, encoded); err != nil {
		return nil, err
	}
	sidecar, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	if err := atomicio.WriteBytes(c.fs, sidecarPath, sidecar); err != nil {
		return nil, err
	}
	return meta, nil
}

func encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: float32(quality)}); err != nil {
			return nil, err
		}
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return buf.Bytes(), nil
}
