package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	esbuild "github.com/evanw/esbuild/pkg/api"

	"github.com/cryguy/scriptworker/internal/core"
)

// maxSourceSize caps a script after decompression.
const maxSourceSize = 8 << 20

// File serves "file:" locations from disk. Sources ending in .br are
// brotli-decompressed first; the remaining extension then selects how the
// text is prepared:
//
//   - .html, .htm: the text of inline <script> elements, in document order
//   - .ts, .mts: TypeScript, transformed (and bundled when it imports)
//   - anything else: JavaScript, bundled into an IIFE when it imports
type File struct {
	// Root confines resolution to a directory. Location paths are taken
	// relative to it and cannot climb out. Empty means the location path
	// is used as is.
	Root string
}

var _ core.SourceLoader = (*File)(nil)

func (f *File) Resolve(loc core.Location) (string, error) {
	p, err := f.path(loc)
	if err != nil {
		return "", err
	}

	data, err := readLimited(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%q: %w", loc, core.ErrNotFound)
		}
		return "", fmt.Errorf("reading %q: %w", loc, err)
	}

	name := p
	if strings.HasSuffix(strings.ToLower(name), ".br") {
		data, err = decompress(data)
		if err != nil {
			return "", fmt.Errorf("decompressing %q: %w", loc, err)
		}
		name = name[:len(name)-len(".br")]
	}

	src := string(data)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return extractScripts(src)
	case ".ts", ".mts":
		if needsBundling(src) {
			return bundle(src, name, esbuild.LoaderTS)
		}
		return transformTS(src, name)
	default:
		if needsBundling(src) {
			return bundle(src, name, esbuild.LoaderJS)
		}
		return src, nil
	}
}

func (f *File) path(loc core.Location) (string, error) {
	u, err := url.Parse(string(loc))
	if err != nil || u.Scheme != "file" {
		return "", fmt.Errorf("%q is not a file location: %w", loc, core.ErrUnresolvable)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	if p == "" {
		return "", fmt.Errorf("%q names no file: %w", loc, core.ErrUnresolvable)
	}
	if f.Root == "" {
		return filepath.FromSlash(p), nil
	}
	// Cleaning against "/" first drops any leading "..", so the joined
	// path always stays below Root.
	return filepath.Join(f.Root, filepath.FromSlash(path.Clean("/"+p))), nil
}

func readLimited(p string) ([]byte, error) {
	fh, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	data, err := io.ReadAll(io.LimitReader(fh, maxSourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSourceSize {
		return nil, fmt.Errorf("source exceeds %d bytes", maxSourceSize)
	}
	return data, nil
}

func decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(io.LimitReader(r, maxSourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxSourceSize {
		return nil, fmt.Errorf("decompressed source exceeds %d bytes", maxSourceSize)
	}
	return out, nil
}

// needsBundling checks if a script contains import statements that
// require bundling. Scripts without imports skip esbuild entirely.
func needsBundling(source string) bool {
	return strings.Contains(source, "import ") ||
		strings.Contains(source, "import{") ||
		strings.Contains(source, "import(")
}

// bundle inlines the imports of src, resolved relative to the directory
// of name, into a single IIFE.
func bundle(src, name string, loader esbuild.Loader) (string, error) {
	result := esbuild.Build(esbuild.BuildOptions{
		Stdin: &esbuild.StdinOptions{
			Contents:   src,
			ResolveDir: filepath.Dir(name),
			Sourcefile: filepath.Base(name),
			Loader:     loader,
		},
		Bundle:      true,
		Format:      esbuild.FormatIIFE,
		Write:       false,
		Platform:    esbuild.PlatformBrowser,
		Target:      esbuild.ES2022,
		TreeShaking: esbuild.TreeShakingFalse,
		LogLevel:    esbuild.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("bundling %s: %s", filepath.Base(name), joinMessages(result.Errors))
	}
	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("bundling %s produced no output", filepath.Base(name))
	}
	return string(result.OutputFiles[0].Contents), nil
}

func transformTS(src, name string) (string, error) {
	result := esbuild.Transform(src, esbuild.TransformOptions{
		Loader:     esbuild.LoaderTS,
		Target:     esbuild.ES2022,
		Sourcefile: filepath.Base(name),
		LogLevel:   esbuild.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("transforming %s: %s", filepath.Base(name), joinMessages(result.Errors))
	}
	return string(result.Code), nil
}

func joinMessages(msgs []esbuild.Message) string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	return strings.Join(texts, "; ")
}
