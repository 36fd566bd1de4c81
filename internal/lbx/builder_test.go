package lbx

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaryAsset = []byte{0x42, 0x4d, 0x00, '{', 'h', 'w', 'i', 'd', '}', 0xff, 0x7b, 0x7d}

func testTemplates() fstest.MapFS {
	return fstest.MapFS{
		"widget/label.xml":   {Data: []byte("<label><id>{hwid}</id><kind>{hardware}</kind></label>")},
		"widget/Object0.bmp": {Data: binaryAsset},
		"widget/nested/x":    {Data: []byte("ignored")},
		"owned/label.xml":    {Data: []byte("<owner>{owner}</owner>")},
	}
}

func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	members := make(map[string][]byte)
	for _, f := range r.File {
		assert.Equal(t, zip.Deflate, f.Method, "member %s should be deflated", f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		members[f.Name] = data
	}
	return members
}

func memberNames(members map[string][]byte) []string {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestBuild_SubstitutesTextAndCopiesBinary(t *testing.T) {
	out := t.TempDir()
	b := NewBuilder(NewResolverFS(testTemplates()))

	path, err := b.Build(Options{Hardware: "widget", HWID: "W-17", OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "widget-W-17.lbx"), path)

	members := readArchive(t, path)
	assert.Equal(t, []string{"Object0.bmp", "label.xml"}, memberNames(members))
	assert.Equal(t, "<label><id>W-17</id><kind>widget</kind></label>", string(members["label.xml"]))
	assert.Equal(t, binaryAsset, members["Object0.bmp"])
}

func TestBuild_ExtraFields(t *testing.T) {
	out := t.TempDir()
	b := NewBuilder(NewResolverFS(testTemplates()))

	path, err := b.Build(Options{
		Hardware:  "owned",
		HWID:      "O1",
		Filename:  "{owner}_{hwid}.lbx",
		OutputDir: out,
		Fields:    map[string]string{"owner": "ACME", "hwid": "ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "ACME_O1.lbx"), path)
	assert.Equal(t, "<owner>ACME</owner>", string(readArchive(t, path)["label.xml"]))
}

func TestBuild_StripsDirectoriesFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		hwid    string
		want    string
	}{
		{name: "directory in pattern", pattern: "../../etc/{hwid}.lbx", hwid: "A1", want: "A1.lbx"},
		{name: "separator in value", pattern: "{hardware}-{hwid}.lbx", hwid: "rack/A1", want: "A1.lbx"},
		{name: "backslash in value", pattern: "{hwid}.lbx", hwid: `C:\temp\A1`, want: "A1.lbx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			b := NewBuilder(NewResolverFS(testTemplates()))

			path, err := b.Build(Options{Hardware: "widget", HWID: tt.hwid, Filename: tt.pattern, OutputDir: out})
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(out, tt.want), path)
			assert.FileExists(t, path)
		})
	}
}

func TestBuild_InvalidFilename(t *testing.T) {
	b := NewBuilder(NewResolverFS(testTemplates()))
	for _, pattern := range []string{"{hwid}/", "..", "dir/."} {
		_, err := b.Build(Options{Hardware: "widget", HWID: "X", Filename: pattern, OutputDir: t.TempDir()})
		assert.ErrorIs(t, err, ErrInvalidFilename, "pattern %q", pattern)
	}
}

func TestBuild_MissingFieldLeavesNoFile(t *testing.T) {
	out := t.TempDir()
	b := NewBuilder(NewResolverFS(testTemplates()))

	_, err := b.Build(Options{Hardware: "owned", HWID: "O2", OutputDir: out})
	require.ErrorIs(t, err, ErrMissingField)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuild_UnwritableDestination(t *testing.T) {
	b := NewBuilder(NewResolverFS(testTemplates()))
	_, err := b.Build(Options{
		Hardware:  "widget",
		HWID:      "W1",
		OutputDir: filepath.Join(t.TempDir(), "does", "not", "exist"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild_OverwritesExistingArchive(t *testing.T) {
	out := t.TempDir()
	b := NewBuilder(NewResolverFS(testTemplates()))

	first, err := b.Build(Options{Hardware: "owned", HWID: "O3", OutputDir: out, Fields: map[string]string{"owner": "old"}})
	require.NoError(t, err)
	second, err := b.Build(Options{Hardware: "owned", HWID: "O3", OutputDir: out, Fields: map[string]string{"owner": "new"}})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "<owner>new</owner>", string(readArchive(t, second)["label.xml"]))
}

func TestBuild_TemplateNotFound(t *testing.T) {
	b := NewBuilder(NewResolverFS(testTemplates()))
	_, err := b.Build(Options{Hardware: "no-such-hardware-category", HWID: "X", OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestBuild_BuiltinTelescope(t *testing.T) {
	out := t.TempDir()
	b := NewBuilder(NewResolver())

	path, err := b.Build(Options{
		Hardware:  "telescope",
		HWID:      "T12",
		OutputDir: out,
		Fields:    map[string]string{"owner": "Obstech", "queue": "7", "roof": "3"},
	})
	require.NoError(t, err)

	members := readArchive(t, path)
	assert.Equal(t, []string{"label.xml", "prop.xml"}, memberNames(members))
	assert.Contains(t, string(members["label.xml"]), "<pt:data>T12</pt:data>")
	assert.Contains(t, string(members["label.xml"]), "tickets.php?queue=7")
	assert.Contains(t, string(members["prop.xml"]), "<dc:title>telescope T12</dc:title>")
}

func TestBuild_FollowsSymlinkedMembers(t *testing.T) {
	root := t.TempDir()
	shared := filepath.Join(root, "shared")
	widget := filepath.Join(root, "widget")
	require.NoError(t, os.MkdirAll(shared, 0o755))
	require.NoError(t, os.MkdirAll(widget, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shared, "Object0.bmp"), binaryAsset, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(widget, "label.xml"), []byte("<id>{hwid}</id>"), 0o644))
	if err := os.Symlink(filepath.Join(shared, "Object0.bmp"), filepath.Join(widget, "Object0.bmp")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	b := NewBuilder(NewResolver(root))
	path, err := b.Build(Options{Hardware: "widget", HWID: "W2", OutputDir: t.TempDir()})
	require.NoError(t, err)

	members := readArchive(t, path)
	assert.Equal(t, []string{"Object0.bmp", "label.xml"}, memberNames(members))
	assert.Equal(t, binaryAsset, members["Object0.bmp"])
	assert.Equal(t, "<id>W2</id>", string(members["label.xml"]))
}

func TestBuild_StampsMemberTimes(t *testing.T) {
	b := NewBuilder(NewResolverFS(testTemplates()))
	path, err := b.Build(Options{Hardware: "widget", HWID: "W3", OutputDir: t.TempDir()})
	require.NoError(t, err)

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	require.NotEmpty(t, r.File)
	for _, f := range r.File {
		assert.WithinDuration(t, time.Now(), f.Modified, time.Hour, "member %s", f.Name)
	}
}

func TestBuild_TextSuffixIsCaseSensitive(t *testing.T) {
	templates := fstest.MapFS{
		"mixed/label.xml": {Data: []byte("<id>{hwid}</id>")},
		"mixed/raw.XML":   {Data: []byte("<id>{hwid}</id>")},
	}
	b := NewBuilder(NewResolverFS(templates))
	path, err := b.Build(Options{Hardware: "mixed", HWID: "M1", OutputDir: t.TempDir()})
	require.NoError(t, err)

	members := readArchive(t, path)
	assert.Equal(t, "<id>M1</id>", string(members["label.xml"]))
	assert.Equal(t, "<id>{hwid}</id>", string(members["raw.XML"]))
}
