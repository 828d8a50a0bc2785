package service

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/revision/internal/model"
	"github.com/emrgen/revision/internal/snapshot"
	"github.com/emrgen/revision/internal/store"
)

// Export formats.
const (
	FormatMetadata = "metadata" // single JSON document
	FormatArchive  = "archive"  // tar.gz bundle
)

// NewExportService creates a new ExportService.
func NewExportService(store store.Store) *ExportService {
	return &ExportService{
		store: store,
	}
}

// ExportService packages a version for download. Exports are read-only over
// history; the only write is the version's export counters.
type ExportService struct {
	store store.Store
}

// ExportRequest selects a version and the shape of its export.
type ExportRequest struct {
	VersionID string
	Format    string
	// IncludeAssets adds the snapshot's file bodies to the export.
	IncludeAssets bool
	// IncludeMetadata adds the version's descriptive fields to the export.
	IncludeMetadata bool
}

// ExportResult is a finished export ready to hand to the caller.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// exportMetadata is the descriptive half of an export document.
type exportMetadata struct {
	VersionID   string            `json:"version_id"`
	ContentID   string            `json:"content_id"`
	BranchID    string            `json:"branch_id"`
	Status      string            `json:"status"`
	Changelog   string            `json:"changelog,omitempty"`
	Tags        []string          `json:"tags"`
	CreatedBy   string            `json:"created_by"`
	CreatedAt   string            `json:"created_at"`
	Manifest    map[string]string `json:"manifest"`
	Compression string            `json:"compression"`
	ExportedAt  string            `json:"exported_at"`
}

// Export packages a version in the requested format. include flags that
// leave nothing to export are rejected rather than producing an empty file.
func (e *ExportService) Export(ctx context.Context, request ExportRequest) (*ExportResult, error) {
	id, err := uuid.Parse(request.VersionID)
	if err != nil {
		return nil, invalidArgument("version id must be a valid uuid")
	}
	if !request.IncludeAssets && !request.IncludeMetadata {
		return nil, invalidArgument("export must include assets, metadata or both")
	}

	version, err := e.store.GetVersion(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}

	snap, err := SnapshotOf(version)
	if err != nil {
		return nil, internal(err)
	}

	now := time.Now().UTC()

	var result *ExportResult
	switch request.Format {
	case FormatMetadata:
		result, err = e.exportJSON(version, snap, request, now)
	case FormatArchive:
		result, err = e.exportArchive(version, snap, request, now)
	default:
		return nil, invalidArgument(fmt.Sprintf("unknown export format: %q", request.Format))
	}
	if err != nil {
		return nil, internal(err)
	}

	if err := e.store.BumpExportStats(ctx, id, int64(len(result.Data)), now); err != nil {
		return nil, internal(err)
	}

	logrus.Infof("exported version %s as %s (%d bytes)", version.ID, request.Format, len(result.Data))

	return result, nil
}

func (e *ExportService) exportJSON(version *model.Version, snap *snapshot.Snapshot, request ExportRequest, now time.Time) (*ExportResult, error) {
	doc := make(map[string]interface{})
	if request.IncludeMetadata {
		doc["metadata"] = metadataOf(version, snap, now)
	}
	if request.IncludeAssets {
		assets := make(map[string]string, len(snap.Files))
		for _, path := range snap.Paths() {
			assets[path] = snap.Files[path].Body
		}
		doc["assets"] = assets
		doc["dependencies"] = snap.Dependencies
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("version-%s.json", version.ID),
		ContentType: "application/json",
		Data:        data,
	}, nil
}

func (e *ExportService) exportArchive(version *model.Version, snap *snapshot.Snapshot, request ExportRequest, now time.Time) (*ExportResult, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if request.IncludeMetadata {
		meta, err := json.MarshalIndent(metadataOf(version, snap, now), "", "  ")
		if err != nil {
			return nil, err
		}
		if err := writeEntry(tw, "metadata.json", meta, now); err != nil {
			return nil, err
		}
	}
	if request.IncludeAssets {
		// Paths() is sorted, archives of the same version are identical
		for _, path := range snap.Paths() {
			if err := writeEntry(tw, "assets/"+path, []byte(snap.Files[path].Body), now); err != nil {
				return nil, err
			}
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	return &ExportResult{
		Filename:    fmt.Sprintf("version-%s.tar.gz", version.ID),
		ContentType: "application/gzip",
		Data:        buf.Bytes(),
	}, nil
}

func metadataOf(version *model.Version, snap *snapshot.Snapshot, now time.Time) exportMetadata {
	return exportMetadata{
		VersionID:   version.ID,
		ContentID:   version.ContentID,
		BranchID:    version.BranchID,
		Status:      version.Status,
		Changelog:   version.Changelog,
		Tags:        version.TagList(),
		CreatedBy:   version.CreatedBy,
		CreatedAt:   version.CreatedAt.UTC().Format(time.RFC3339),
		Manifest:    snap.Manifest(),
		Compression: version.Compression,
		ExportedAt:  now.Format(time.RFC3339),
	}
}

func writeEntry(tw *tar.Writer, name string, data []byte, at time.Time) error {
	if err := tw.WriteHeader(&tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: at,
	}); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
