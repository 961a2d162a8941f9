// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objectstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoders
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
	"github.com/poiesic/snapnote/storage"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedImage indicates bytes that do not decode as a supported image format.
	ErrUnsupportedImage = errors.New("unsupported image")

	// ErrImageTooLarge indicates an image whose pixel count exceeds the configured bound.
	ErrImageTooLarge = errors.New("image too large")
)

// extensions maps decoder format names to file extensions.
var extensions = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"gif":  ".gif",
	"webp": ".webp",
	"bmp":  ".bmp",
}

// contentTypes maps file extensions back to content types.
var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// objectPathPattern matches every path the store hands out:
// owner directory / object id, then either an image extension or the thumbnail suffix.
var objectPathPattern = regexp.MustCompile(`^[0-9a-f]{32}/[0-9a-f-]{36}(_thumb\.jpg|\.(png|jpg|gif|webp|bmp))$`)

const thumbnailQuality = 80

// KeyFileName is the file under the root holding the generated signing key
// when none is configured.
const KeyFileName = ".signing_key"

// Store implements storage.ObjectStore on the local filesystem.
type Store struct {
	root      string
	baseURL   string
	key       []byte
	ttl       time.Duration
	thumbSize int
	maxPixels int
	now       func() time.Time
	logger    *slog.Logger
}

var _ storage.ObjectStore = (*Store)(nil)

// NewObjectStore creates a filesystem object store rooted at root.
//
// Returns storage.ObjectStore interface to enforce abstraction.
func NewObjectStore(root string, opts ...Option) (storage.ObjectStore, error) {
	return New(root, opts...)
}

// New creates a filesystem object store rooted at root, creating the directory if needed.
func New(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("object store root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating object root: %w", err)
	}

	s := &Store{
		root:      abs,
		baseURL:   "file://" + filepath.ToSlash(abs),
		ttl:       DefaultURLTTL,
		thumbSize: DefaultThumbnailSize,
		maxPixels: DefaultMaxPixels,
		now:       time.Now,
		logger:    slog.Default().With("component", "objectstore"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.key == nil {
		key, err := s.loadOrCreateKey()
		if err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
		s.key = key
	}
	return s, nil
}

// loadOrCreateKey returns the key persisted under the root, generating and
// writing one on first use so stored URLs verify across restarts.
func (s *Store) loadOrCreateKey() ([]byte, error) {
	path := filepath.Join(s.root, KeyFileName)
	raw, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil || len(key) == 0 || len(key) > 64 {
			return nil, fmt.Errorf("malformed key file %s", path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// Another process won the race.
			return s.loadOrCreateKey()
		}
		return nil, err
	}
	if _, err := f.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	s.logger.Info("generated signing key", "path", path)
	return key, nil
}

// StoreImage decodes data, writes it together with a JPEG thumbnail and
// returns signed URLs for both. The content type is taken from the decoded
// format; the hint is only logged when it disagrees.
func (s *Store) StoreImage(ctx context.Context, data []byte, owner, contentType string) (*storage.StoredImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, errors.New("owner cannot be empty")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	ext, ok := extensions[format]
	if !ok {
		return nil, fmt.Errorf("%w: format %s", ErrUnsupportedImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > s.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	detected := contentTypes[ext]
	if contentType != "" && contentType != detected {
		s.logger.Debug("content type hint disagrees with image data", "hint", contentType, "detected", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	var thumb bytes.Buffer
	if err := jpeg.Encode(&thumb, thumbnail(img, s.thumbSize), &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}

	dir := ownerDir(owner)
	id := uuid.NewString()
	imagePath := dir + "/" + id + ext
	thumbPath := dir + "/" + id + "_thumb.jpg"

	if err := s.write(imagePath, data); err != nil {
		return nil, err
	}
	if err := s.write(thumbPath, thumb.Bytes()); err != nil {
		s.remove(imagePath)
		return nil, err
	}

	s.logger.Debug("stored image", "path", imagePath, "bytes", len(data), "width", cfg.Width, "height", cfg.Height)
	return &storage.StoredImage{
		ImageURL:     s.sign(imagePath),
		ThumbnailURL: s.sign(thumbPath),
		Width:        cfg.Width,
		Height:       cfg.Height,
		FileSize:     int64(len(data)),
		ContentType:  detected,
	}, nil
}

// LoadImage reads back the bytes behind a URL issued by this store.
// Expired URLs are accepted; the signature is not optional.
func (s *Store) LoadImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	path, _, err := s.parse(rawURL)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(s.fsPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", storage.ErrNotFound
		}
		return nil, "", err
	}
	return data, contentTypes[filepath.Ext(path)], nil
}

// DeleteImage removes the image and thumbnail. Missing files are ignored;
// an empty URL is skipped.
func (s *Store) DeleteImage(ctx context.Context, imageURL, thumbnailURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	for _, rawURL := range []string{imageURL, thumbnailURL} {
		if rawURL == "" {
			continue
		}
		path, _, err := s.parse(rawURL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.remove(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RefreshAccessURL re-signs a URL issued by this store with a fresh expiry.
func (s *Store) RefreshAccessURL(ctx context.Context, rawURL string) (string, error) {
	path, _, err := s.parse(rawURL)
	if err != nil {
		return "", err
	}
	return s.sign(path), nil
}

// verify checks that rawURL was issued by this store and has not expired.
func (s *Store) verify(rawURL string) error {
	_, exp, err := s.parse(rawURL)
	if err != nil {
		return err
	}
	if s.now().Unix() > exp {
		return fmt.Errorf("%w: expired", storage.ErrInvalidURL)
	}
	return nil
}

func (s *Store) sign(path string) string {
	exp := s.now().Add(s.ttl).Unix()
	return s.baseURL + "/" + path + "?exp=" + strconv.FormatInt(exp, 10) + "&sig=" + s.mac(path, exp)
}

// parse splits a signed URL into its object path and expiry and checks the signature.
func (s *Store) parse(rawURL string) (string, int64, error) {
	rest, ok := strings.CutPrefix(rawURL, s.baseURL+"/")
	if !ok {
		return "", 0, fmt.Errorf("%w: foreign URL", storage.ErrInvalidURL)
	}
	path, rawQuery, _ := strings.Cut(rest, "?")
	if !objectPathPattern.MatchString(path) {
		return "", 0, fmt.Errorf("%w: bad object path", storage.ErrInvalidURL)
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", storage.ErrInvalidURL, err)
	}
	exp, err := strconv.ParseInt(query.Get("exp"), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: bad expiry", storage.ErrInvalidURL)
	}
	if subtle.ConstantTimeCompare([]byte(query.Get("sig")), []byte(s.mac(path, exp))) != 1 {
		return "", 0, fmt.Errorf("%w: bad signature", storage.ErrInvalidURL)
	}
	return path, exp, nil
}

// mac returns the hex keyed BLAKE2b-256 of path and expiry.
func (s *Store) mac(path string, exp int64) string {
	h, err := blake2b.New(32, s.key)
	if err != nil {
		// Key length is checked when the store is created
		panic(err)
	}
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) fsPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// write stores data under path via a temp file and rename so readers never
// see a partial object.
func (s *Store) write(path string, data []byte) error {
	full := s.fsPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

func (s *Store) remove(path string) error {
	err := os.Remove(s.fsPath(path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ownerDir maps an owner to a fixed-width directory name that is safe on
// any filesystem regardless of the characters in the owner identifier.
func ownerDir(owner string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(owner))
	return hex.EncodeToString(h.Sum(nil))
}

// thumbnail scales img so that its longest side is at most size, flattening
// transparency onto white since JPEG has no alpha channel.
func thumbnail(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tw, th := w, h
	if w > size || h > size {
		if w >= h {
			tw, th = size, max(1, h*size/w)
		} else {
			tw, th = max(1, w*size/h), size
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func trimSlash(s string) string {
	return strings.TrimRight(s, "/")
}
