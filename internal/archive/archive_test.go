package archive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type docMeta struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestWriteRead_RoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter(&buf)
	require.NoError(t, w.WriteMeta("manifest", docMeta{ID: "b1", Name: "cabinet snapshot"}))
	require.NoError(t, w.WriteMeta("entity/f1", docMeta{ID: "f1", Name: "report.pdf"}))
	require.NoError(t, w.WriteContent("f1", []byte{0xde, 0xad, 0xbe, 0xef}))
	require.NoError(t, w.Close())

	meta, content, err := ReadAll(&buf)
	require.NoError(t, err)

	require.Len(t, meta, 2)
	require.Contains(t, meta, "manifest")
	require.Contains(t, meta, "entity/f1")
	require.JSONEq(t, `{"id":"f1","name":"report.pdf"}`, string(meta["entity/f1"]))

	require.Len(t, content, 1)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, content["f1"])
}

func TestReadAll_EmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())

	meta, content, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Empty(t, meta)
	require.Empty(t, content)
}

func TestNewReader_NotGzip(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("plain text, not an archive")))
	require.Error(t, err)
}

func TestReadAll_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteContent("f1", bytes.Repeat([]byte{0xab}, 4096)))
	require.NoError(t, w.Close())

	truncated := buf.Bytes()[:buf.Len()/2]
	_, _, err := ReadAll(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestReader_SkipsUnknownPrefixes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	// write a raw entry outside the known prefixes
	require.NoError(t, w.write("junk/readme.txt", []byte("ignored")))
	require.NoError(t, w.WriteContent("f1", []byte("kept")))
	require.NoError(t, w.Close())

	meta, content, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Empty(t, meta)
	require.Equal(t, map[string][]byte{"f1": []byte("kept")}, content)
}
