// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/docport/docport/internal/fsutil"
	"github.com/docport/docport/internal/log"
)

// writeManifest writes data/manifest.json atomically. renameio handles temp
// file creation, fsync, rename and cleanup, so readers never see a torn
// manifest.
func writeManifest(ctx context.Context, dataDir string, m *Manifest) error {
	logger := log.FromContext(ctx)

	if err := fsutil.EnsureDir(dataDir); err != nil {
		return err
	}

	path := filepath.Join(dataDir, "manifest.json")
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending manifest: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending manifest")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace manifest: %w", err)
	}

	logger.Debug().Str(log.FieldPath, path).Int("pages", len(m.Pages)).Msg("manifest written")
	return nil
}
