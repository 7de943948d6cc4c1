// Package attachment uploads applicant documents using human-equivalent
// interaction only. The upload is always triggered by activating the visible
// control and letting the browser surface its native file-selection
// affordance; a normally-hidden upload input is never forced visible or
// interactable, because that DOM signature has no human equivalent and is a
// primary signal automation detectors key on.
package attachment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

// Handler attaches documents with bounded retries and fallback.
type Handler struct {
	driver      schemas.BrowserDriver
	pacer       schemas.Pacer
	maxAttempts int
	log         *zap.Logger
}

// NewHandler creates an attachment handler. maxAttempts bounds tries on the
// custom document path before the default asset is considered.
func NewHandler(driver schemas.BrowserDriver, pacer schemas.Pacer, maxAttempts int, logger *zap.Logger) *Handler {
	return &Handler{
		driver:      driver,
		pacer:       pacer,
		maxAttempts: maxAttempts,
		log:         logger.Named("attachment"),
	}
}

// Attach uploads the asset through the control at selector. The custom
// document is always preferred; the default fallback is a last resort used
// only after maxAttempts failures on the custom path, and once used it is
// recorded on the asset and the custom path is never re-attempted for the
// session. Each failed attempt is retried with unchanged input.
func (h *Handler) Attach(ctx context.Context, selector string, asset *schemas.DocumentAsset) (*schemas.AttachResult, error) {
	if !asset.FallbackUsed && asset.CustomPath != "" {
		for asset.UploadAttemptCount < h.maxAttempts {
			if err := h.pacer.Pause(ctx); err != nil {
				return nil, err
			}

			err := h.driver.AttachFile(ctx, selector, asset.CustomPath)
			if err == nil {
				h.log.Info("Attached custom document",
					zap.String("kind", string(asset.Kind)),
					zap.String("path", asset.CustomPath),
					zap.Int("attempts", asset.UploadAttemptCount+1))
				return &schemas.AttachResult{
					Kind:     asset.Kind,
					Used:     schemas.AssetCustom,
					Path:     asset.CustomPath,
					Attempts: asset.UploadAttemptCount + 1,
				}, nil
			}

			asset.UploadAttemptCount++
			h.log.Warn("Custom document upload failed",
				zap.String("kind", string(asset.Kind)),
				zap.Int("attempt", asset.UploadAttemptCount),
				zap.Int("max_attempts", h.maxAttempts),
				zap.Error(err))

			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	if asset.DefaultFallbackPath == "" {
		return nil, fmt.Errorf("custom upload exhausted %d attempts and no fallback asset is configured", h.maxAttempts)
	}

	if err := h.pacer.Pause(ctx); err != nil {
		return nil, err
	}
	if err := h.driver.AttachFile(ctx, selector, asset.DefaultFallbackPath); err != nil {
		return nil, fmt.Errorf("fallback upload failed after custom path exhaustion: %w", err)
	}

	asset.FallbackUsed = true
	h.log.Warn("Fell back to default document",
		zap.String("kind", string(asset.Kind)),
		zap.String("path", asset.DefaultFallbackPath),
		zap.Int("custom_attempts", asset.UploadAttemptCount))
	return &schemas.AttachResult{
		Kind:     asset.Kind,
		Used:     schemas.AssetFallback,
		Path:     asset.DefaultFallbackPath,
		Attempts: asset.UploadAttemptCount + 1,
	}, nil
}
