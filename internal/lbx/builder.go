package lbx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
)

// DefaultFilename is the output filename pattern used when none is given.
const DefaultFilename = "{hardware}-{hwid}.lbx"

// ErrInvalidFilename is returned when the rendered filename has no usable
// final component.
var ErrInvalidFilename = errors.New("invalid label filename")

// Options describes one label archive.
type Options struct {
	Hardware  string
	HWID      string
	Filename  string // pattern; DefaultFilename when empty
	OutputDir string // "." when empty
	Fields    map[string]string
}

// Builder renders label archives from hardware templates.
type Builder struct {
	resolver *Resolver
}

// NewBuilder creates a builder using resolver to find templates.
func NewBuilder(resolver *Resolver) *Builder {
	return &Builder{resolver: resolver}
}

type member struct {
	name string
	data []byte
}

// Build writes the label archive described by opts and returns its path.
// All members are rendered before the archive is created, so a missing
// placeholder value leaves nothing behind.
func (b *Builder) Build(opts Options) (string, error) {
	tmpl, err := b.resolver.Lookup(opts.Hardware)
	if err != nil {
		return "", err
	}

	fields := mergeFields(opts)

	pattern := opts.Filename
	if pattern == "" {
		pattern = DefaultFilename
	}
	rendered, err := Format(pattern, fields)
	if err != nil {
		return "", fmt.Errorf("failed to render filename %q: %w", pattern, err)
	}
	name, err := baseName(rendered)
	if err != nil {
		return "", err
	}

	members, err := renderMembers(tmpl, fields)
	if err != nil {
		return "", err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	path := filepath.Join(outputDir, name)

	if err := writeArchive(path, members); err != nil {
		return "", err
	}
	return path, nil
}

// mergeFields combines the caller's fields with hardware and hwid, which
// take precedence.
func mergeFields(opts Options) map[string]string {
	fields := make(map[string]string, len(opts.Fields)+2)
	for k, v := range opts.Fields {
		fields[k] = v
	}
	fields["hardware"] = opts.Hardware
	fields["hwid"] = opts.HWID
	return fields
}

// baseName keeps the last path component of name, treating both slash
// styles as separators.
func baseName(name string) (string, error) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return name, nil
}

func isTextMember(name string) bool {
	return strings.HasSuffix(name, ".xml")
}

func renderMembers(tmpl fs.FS, fields map[string]string) ([]member, error) {
	entries, err := fs.ReadDir(tmpl, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	members := make([]member, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		// Stat follows symlinks, so linked assets are packaged like files
		info, err := fs.Stat(tmpl, name)
		if err != nil {
			return nil, fmt.Errorf("failed to stat template %s: %w", name, err)
		}
		if info.IsDir() {
			continue
		}

		data, err := fs.ReadFile(tmpl, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		if isTextMember(name) {
			if !utf8.Valid(data) {
				return nil, fmt.Errorf("template %s is not valid UTF-8", name)
			}
			text, err := Format(string(data), fields)
			if err != nil {
				return nil, fmt.Errorf("failed to render template %s: %w", name, err)
			}
			data = []byte(text)
		}

		members = append(members, member{name: name, data: data})
	}

	return members, nil
}

func writeArchive(path string, members []member) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create label file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close label file: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	w := zip.NewWriter(file)
	w.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	modified := time.Now()
	for _, m := range members {
		mw, err := w.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", m.name, err)
		}
		if _, err := mw.Write(m.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", m.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize label file: %w", err)
	}
	return nil
}
