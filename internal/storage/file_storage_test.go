// internal/storage/file_storage_test.go
package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFileRoundTrip(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	type record struct {
		Title string `json:"title"`
		Count int    `json:"count"`
	}

	in := record{Title: "测试存档", Count: 3}
	require.NoError(t, fs.SaveJSONFile("archives", "a.json", in))

	var out record
	require.NoError(t, fs.LoadJSONFile("archives", "a.json", &out))
	assert.Equal(t, in, out)
}

func TestTextFileOverwriteAndCache(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.SaveTextFile("notes", "n.txt", []byte("第一版")))
	require.NoError(t, fs.SaveTextFile("notes", "n.txt", []byte("第二版")))

	data, err := fs.LoadTextFile("notes", "n.txt")
	require.NoError(t, err)
	assert.Equal(t, "第二版", string(data))

	// 再读一次走缓存，内容一致
	cached, err := fs.LoadTextFile("notes", "n.txt")
	require.NoError(t, err)
	assert.Equal(t, data, cached)
}

func TestFileExistsAndDelete(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	assert.False(t, fs.FileExists("d", "x.json"))
	require.NoError(t, fs.SaveJSONFile("d", "x.json", map[string]string{"k": "v"}))
	assert.True(t, fs.FileExists("d", "x.json"))

	require.NoError(t, fs.DeleteFile("d", "x.json"))
	assert.False(t, fs.FileExists("d", "x.json"))
}

func TestListFilesFiltersByExtension(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.SaveTextFile("mix", "a.json", []byte("{}")))
	require.NoError(t, fs.SaveTextFile("mix", "b.json", []byte("{}")))
	require.NoError(t, fs.SaveTextFile("mix", "c.txt", []byte("x")))

	files, err := fs.ListFiles("mix", ".json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.json", "b.json"}, files)
}

func TestLoadMissingFileFails(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = fs.LoadTextFile("nowhere", "missing.txt")
	assert.Error(t, err)
}
