package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	snap, err := Decode([]byte(`{
		"files": {
			"style.css": {"body": "h1 { color: red }"},
			"app.js": {"hash": "abc", "size": 42}
		},
		"dependencies": {
			"required": {"base-theme": "1.2.0"}
		}
	}`))
	assert.NoError(t, err)

	assert.Len(t, snap.Files, 2)
	assert.Equal(t, "abc", snap.Files["app.js"].ContentHash())
	assert.Equal(t, int64(42), snap.Files["app.js"].ByteSize())
	assert.Equal(t, int64(len("h1 { color: red }")), snap.Files["style.css"].ByteSize())
	assert.Equal(t, "1.2.0", snap.Dependencies.Required["base-theme"])

	// hash is derived from the body when the manifest has none
	assert.NotEmpty(t, snap.Files["style.css"].ContentHash())

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestDecode_EmptyFiles(t *testing.T) {
	snap, err := Decode([]byte(`{}`))
	assert.NoError(t, err)
	assert.NotNil(t, snap.Files)
	assert.Empty(t, snap.Paths())
}

func TestCategory(t *testing.T) {
	assert.Equal(t, CategoryCSS, Category("theme/style.css"))
	assert.Equal(t, CategoryCSS, Category("main.scss"))
	assert.Equal(t, CategoryJS, Category("app.js"))
	assert.Equal(t, CategoryJS, Category("mod.TS"))
	assert.Equal(t, CategoryImage, Category("logo.png"))
	assert.Equal(t, CategoryImage, Category("photo.JPEG"))
	assert.Equal(t, CategoryOther, Category("index.html"))
	assert.Equal(t, CategoryOther, Category("README"))
}

func TestSizeByCategory(t *testing.T) {
	snap := &Snapshot{Files: map[string]File{
		"a.css":  {Size: 100},
		"b.css":  {Size: 50},
		"app.js": {Size: 200},
		"x.bin":  {Size: 7},
	}}

	sizes := snap.SizeByCategory()
	assert.Equal(t, int64(357), sizes[CategoryTotal])
	assert.Equal(t, int64(150), sizes[CategoryCSS])
	assert.Equal(t, int64(200), sizes[CategoryJS])
	assert.Equal(t, int64(0), sizes[CategoryImage])
	assert.Equal(t, int64(7), sizes[CategoryOther])
}

func TestBucket(t *testing.T) {
	assert.Equal(t, "0-10KB", Bucket(0))
	assert.Equal(t, "0-10KB", Bucket(10*1024-1))
	assert.Equal(t, "10-100KB", Bucket(10*1024))
	assert.Equal(t, "100KB-1MB", Bucket(200*1024))
	assert.Equal(t, "1MB+", Bucket(5*1024*1024))
}

func TestSizeDistribution(t *testing.T) {
	snap := &Snapshot{Files: map[string]File{
		"small.js": {Size: 100},
		"tiny.css": {Size: 1},
		"big.png":  {Size: 2 * 1024 * 1024},
	}}

	dist := snap.SizeDistribution()
	assert.Equal(t, 2, dist["0-10KB"])
	assert.Equal(t, 0, dist["10-100KB"])
	assert.Equal(t, 0, dist["100KB-1MB"])
	assert.Equal(t, 1, dist["1MB+"])
}

func TestLargestFile(t *testing.T) {
	snap := &Snapshot{Files: map[string]File{
		"a.js": {Size: 10},
		"b.js": {Size: 30},
		"c.js": {Size: 30},
	}}

	// ties resolve to the smaller path
	name, size := snap.LargestFile()
	assert.Equal(t, "b.js", name)
	assert.Equal(t, int64(30), size)

	empty := &Snapshot{Files: map[string]File{}}
	name, size = empty.LargestFile()
	assert.Equal(t, "", name)
	assert.Equal(t, int64(0), size)
}

func TestEncodeRoundTrip(t *testing.T) {
	snap := &Snapshot{
		Files: map[string]File{"a.js": {Body: "x", Size: 1}},
		Dependencies: Dependencies{
			Required: map[string]string{"core": "2.0.0"},
		},
	}

	data, err := snap.Encode()
	assert.NoError(t, err)

	decoded, err := Decode(data)
	assert.NoError(t, err)
	assert.Equal(t, snap.Files, decoded.Files)
	assert.Equal(t, snap.Dependencies, decoded.Dependencies)
}
