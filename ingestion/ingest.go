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

package ingestion

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	_ "image/gif" // register decoders
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/snapnote/ai"
	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultContentType is assumed when neither the payload nor the caller
// names an image type.
const DefaultContentType = "image/png"

// Request is one screenshot upload.
type Request struct {
	Owner string

	// Payload is the image as base64 text or a data: URL.
	Payload string

	// ContentType optionally names the image type. Sniffed bytes win.
	ContentType string

	// CapturedAt is when the screenshot was taken, in seconds since the epoch.
	CapturedAt int64

	// AppName and Tags are the client's descriptors, stored as the note
	// "<app>: <tags>". Note, when set, is stored verbatim instead.
	AppName string
	Tags    []string
	Note    string
}

// Ingestor validates uploads, stores them and schedules enrichment.
type Ingestor struct {
	repository storage.ScreenshotRepository
	objects    storage.ObjectStore
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(repository storage.ScreenshotRepository, objects storage.ObjectStore, dispatcher *Dispatcher, logger *slog.Logger) (*Ingestor, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if dispatcher == nil {
		return nil, ErrDispatcherRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		repository: repository,
		objects:    objects,
		dispatcher: dispatcher,
		logger:     logger.With("component", "ingestor"),
	}, nil
}

// Ingest saves the screenshot in req and runs or queues its enrichment.
//
// Errors are returned only for failures before the record exists:
// *MalformedInputError for a bad payload and *StorageError when the image or
// record cannot be saved. Once the record is created Ingest succeeds,
// whatever happens to enrichment. In inline mode the returned record
// carries the enrichment when it succeeded.
func (in *Ingestor) Ingest(ctx context.Context, req Request) (*core.Screenshot, error) {
	if req.Owner == "" {
		return nil, &MalformedInputError{Reason: "owner is required"}
	}
	capturedAt, err := captureTime(req.CapturedAt)
	if err != nil {
		return nil, err
	}
	data, hint, err := decodePayload(req.Payload)
	if err != nil {
		return nil, err
	}
	contentType, err := sniffImage(data, firstNonEmpty(req.ContentType, hint))
	if err != nil {
		return nil, err
	}

	stored, err := in.objects.StoreImage(ctx, data, req.Owner, contentType)
	if err != nil {
		return nil, &StorageError{Op: "store image", Err: err}
	}

	added, err := in.repository.AddScreenshot(ctx, &core.Screenshot{
		Owner:        req.Owner,
		ImageURL:     stored.ImageURL,
		ThumbnailURL: stored.ThumbnailURL,
		Width:        stored.Width,
		Height:       stored.Height,
		FileSize:     stored.FileSize,
		ContentType:  firstNonEmpty(stored.ContentType, contentType),
		Digest:       core.DigestFromContent(data),
		CapturedAt:   capturedAt,
		Note:         composeNote(req),
	})
	if err != nil {
		if derr := in.objects.DeleteImage(context.WithoutCancel(ctx), stored.ImageURL, stored.ThumbnailURL); derr != nil {
			in.logger.Warn("failed to remove image of unsaved record", "image", stored.ImageURL, "err", derr)
		}
		return nil, &StorageError{Op: "create record", Err: err}
	}
	in.logger.Info("ingested screenshot", "record", added.Id, "owner", added.Owner,
		"bytes", added.FileSize, "width", added.Width, "height", added.Height)

	outcome := in.dispatcher.Dispatch(ctx, Job{
		ID:    added.Id,
		Owner: added.Owner,
		Image: ai.Image{Data: data, ContentType: added.ContentType},
	})
	if outcome.Status == StatusEnriched && outcome.Record != nil {
		return outcome.Record, nil
	}
	return added, nil
}

func captureTime(unix int64) (time.Time, error) {
	if unix <= 0 {
		return time.Time{}, &MalformedInputError{Reason: "capture timestamp is required"}
	}
	ts := time.Unix(unix, 0).UTC()
	if !core.IsValidTimestamp(ts) {
		return time.Time{}, &MalformedInputError{Reason: "capture timestamp out of range", Err: core.ErrInvalidTimestamp}
	}
	return ts, nil
}

// decodePayload accepts plain base64 (padded or not) or a base64 data: URL
// and returns the bytes plus any media type the data URL named.
func decodePayload(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	hint := ""
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, body, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", &MalformedInputError{Reason: "data URL has no payload"}
		}
		mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
		if !isBase64 {
			return nil, "", &MalformedInputError{Reason: "data URL is not base64 encoded"}
		}
		hint, payload = mediaType, body
	}
	if payload == "" {
		return nil, "", &MalformedInputError{Reason: "empty image payload"}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		var rerr error
		if data, rerr = base64.RawStdEncoding.DecodeString(payload); rerr != nil {
			return nil, "", &MalformedInputError{Reason: "invalid base64 image data", Err: err}
		}
	}
	if len(data) == 0 {
		return nil, "", &MalformedInputError{Reason: "empty image payload"}
	}
	return data, hint, nil
}

// sniffImage checks that data is a decodable image and returns its content type.
func sniffImage(data []byte, hint string) (string, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", &MalformedInputError{Reason: "payload is not a supported image", Err: err}
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	if strings.HasPrefix(hint, "image/") {
		return hint, nil
	}
	return DefaultContentType, nil
}

func composeNote(req Request) string {
	if req.Note != "" {
		return req.Note
	}
	tags := strings.Join(req.Tags, ", ")
	if req.AppName == "" {
		return tags
	}
	return req.AppName + ": " + tags
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsMalformedInput reports whether err was caused by a rejected payload.
func IsMalformedInput(err error) bool {
	var mi *MalformedInputError
	return errors.As(err, &mi)
}
