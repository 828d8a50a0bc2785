package service

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/emrgen/revision/internal/compress"
)

func TestExportService_Metadata(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.Gzip)
	exports := NewExportService(st)
	ctx := context.TODO()

	version, err := versions.CreateVersion(ctx, CreateVersionRequest{
		ContentID: uuid.New().String(),
		Content:   snapshotJSON(map[string]string{"style.css": "h1 {}"}),
		Changelog: "first",
		CreatedBy: "alice",
	})
	assert.NoError(t, err)

	result, err := exports.Export(ctx, ExportRequest{
		VersionID:       version.ID,
		Format:          FormatMetadata,
		IncludeAssets:   true,
		IncludeMetadata: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, "application/json", result.ContentType)

	var doc struct {
		Metadata exportMetadata    `json:"metadata"`
		Assets   map[string]string `json:"assets"`
	}
	assert.NoError(t, json.Unmarshal(result.Data, &doc))
	assert.Equal(t, version.ID, doc.Metadata.VersionID)
	assert.Equal(t, "first", doc.Metadata.Changelog)
	assert.Equal(t, "h1 {}", doc.Assets["style.css"])

	// export counters were bumped
	got, err := versions.GetVersion(ctx, version.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), got.ExportCount)
	assert.Equal(t, int64(len(result.Data)), got.ExportSize)
	assert.NotNil(t, got.LastExportedAt)
}

func TestExportService_Archive(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	exports := NewExportService(st)
	ctx := context.TODO()

	version, err := versions.CreateVersion(ctx, CreateVersionRequest{
		ContentID: uuid.New().String(),
		Content: snapshotJSON(map[string]string{
			"style.css": "h1 {}",
			"app.js":    "go()",
		}),
		CreatedBy: "alice",
	})
	assert.NoError(t, err)

	result, err := exports.Export(ctx, ExportRequest{
		VersionID:       version.ID,
		Format:          FormatArchive,
		IncludeAssets:   true,
		IncludeMetadata: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, "application/gzip", result.ContentType)

	gz, err := gzip.NewReader(bytes.NewReader(result.Data))
	assert.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := make(map[string]string)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		body, err := io.ReadAll(tr)
		assert.NoError(t, err)
		entries[header.Name] = string(body)
	}

	assert.Contains(t, entries, "metadata.json")
	assert.Equal(t, "h1 {}", entries["assets/style.css"])
	assert.Equal(t, "go()", entries["assets/app.js"])

	var meta exportMetadata
	assert.NoError(t, json.Unmarshal([]byte(entries["metadata.json"]), &meta))
	assert.Equal(t, version.ID, meta.VersionID)
}

func TestExportService_Invalid(t *testing.T) {
	st := testStore()
	versions := NewVersionService(st, compress.None)
	exports := NewExportService(st)
	ctx := context.TODO()

	version, err := versions.CreateVersion(ctx, CreateVersionRequest{
		ContentID: uuid.New().String(),
		Content:   snapshotJSON(nil),
		CreatedBy: "alice",
	})
	assert.NoError(t, err)

	_, err = exports.Export(ctx, ExportRequest{
		VersionID: version.ID,
		Format:    "xml",
		IncludeAssets:   true,
		IncludeMetadata: true,
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = exports.Export(ctx, ExportRequest{
		VersionID: version.ID,
		Format:    FormatArchive,
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = exports.Export(ctx, ExportRequest{
		VersionID:       uuid.New().String(),
		Format:          FormatArchive,
		IncludeAssets:   true,
		IncludeMetadata: true,
	})
	assert.Equal(t, codes.NotFound, status.Code(err))

	// counters stay untouched after failed exports
	got, err := versions.GetVersion(ctx, version.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), got.ExportCount)
}
