package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"meridian/internal/util"
	"meridian/pkg/domain"
)

// UploadAsset runs the two-phase upload: object first, metadata second,
// with a compensating object delete when the metadata insert fails.
func (a *App) UploadAsset(ctx context.Context, userID, projectID, filename string, r io.Reader, size int64) (domain.Asset, error) {
	project, err := a.ownedProject(userID, projectID)
	if err != nil {
		return domain.Asset{}, err
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return domain.Asset{}, NewValidationError(map[string]string{"file": "filename required"})
	}

	// The upload cap is also enforced at the HTTP layer; re-check here so
	// direct app callers cannot bypass it.
	body, err := io.ReadAll(io.LimitReader(r, a.maxUploadBytes+1))
	if err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if int64(len(body)) > a.maxUploadBytes {
		return domain.Asset{}, NewValidationError(map[string]string{"file": "file too large"})
	}
	if size <= 0 {
		size = int64(len(body))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := buildAssetKey(project.ClientID, project.ID, filename)

	if err := a.objects.Put(ctx, key, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		return domain.Asset{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	attributes := map[string]string{"storage_key": key}
	if ext == ".pdf" {
		if pages, ok := pdfPageCount(body); ok {
			attributes["pdf_pages"] = strconv.Itoa(pages)
		}
	}

	asset := domain.Asset{
		ID:         util.NewID(),
		ProjectID:  project.ID,
		FileURL:    a.objects.Reference(key),
		FileName:   filename,
		FileType:   contentType,
		FileSize:   int64(len(body)),
		UploadedBy: userID,
		Attributes: attributes,
		UploadedAt: time.Now().UTC(),
	}
	if err := a.store.SaveAsset(asset); err != nil {
		if delErr := a.objects.Delete(ctx, key); delErr != nil {
			slog.Error("compensating delete failed, object orphaned", "key", key, "err", delErr)
		} else {
			slog.Warn("asset metadata write failed, object deleted", "key", key, "err", err)
		}
		return domain.Asset{}, fmt.Errorf("%w: %v", ErrMetadataWriteFailed, err)
	}
	return asset, nil
}

// AssetDownloadURL returns a short-lived pre-signed URL for an asset the
// session's client owns.
func (a *App) AssetDownloadURL(ctx context.Context, userID, projectID, assetID string) (string, string, error) {
	if _, err := a.ownedProject(userID, projectID); err != nil {
		return "", "", err
	}
	assets, err := a.store.ListAssetsByProject(projectID)
	if err != nil {
		return "", "", fmt.Errorf("list assets: %w", err)
	}
	for _, asset := range assets {
		if asset.ID != assetID {
			continue
		}
		key := asset.Attributes["storage_key"]
		if key == "" {
			key = asset.FileURL
		}
		url, err := a.objects.PresignGet(ctx, key, 15*time.Minute)
		if err != nil {
			return "", "", fmt.Errorf("presign asset: %w", err)
		}
		return url, asset.FileName, nil
	}
	return "", "", ErrNotFound
}

// buildAssetKey yields {clientID}/{projectID}/{unixMillis}-{suffix}{ext}
// with the original name reduced to its sanitized extension.
func buildAssetKey(clientID, projectID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	suffix := uuid.NewString()
	if i := strings.LastIndexByte(suffix, '-'); i >= 0 {
		suffix = suffix[i+1:]
	}
	return fmt.Sprintf("%s/%s/%d-%s%s", clientID, projectID, time.Now().UnixMilli(), suffix, b.String())
}

// pdfPageCount reads the page count from an in-memory PDF. Corrupt or
// encrypted files simply report no count.
func pdfPageCount(data []byte) (pages int, ok bool) {
	defer func() {
		if recover() != nil {
			pages, ok = 0, false
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, false
	}
	n := reader.NumPage()
	if n <= 0 {
		return 0, false
	}
	return n, true
}
