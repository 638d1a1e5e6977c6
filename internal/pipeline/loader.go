package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ppiankov/annofrag/internal/extract"
	"github.com/ppiankov/annofrag/internal/model"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for sources whose format cannot be told
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Document formats understood by Decode
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatHTML = "html"
)

// StdinSource reads a JSON document from standard input
const StdinSource = "-"

// LoadDocument reads a document from a file, stdin or an http(s) URL.
// Documents without an id are named after their source.
func (p *Pipeline) LoadDocument(ctx context.Context, source string) (model.Document, error) {
	var (
		data   []byte
		format string
		err    error
	)

	switch {
	case source == StdinSource:
		data, err = io.ReadAll(p.stdin)
		if err != nil {
			return model.Document{}, fmt.Errorf("read stdin: %w", err)
		}
		format = FormatJSON
	case isRemote(source):
		res, fetchErr := p.fetcher.FetchWithRetry(ctx, source)
		if fetchErr != nil {
			return model.Document{}, fmt.Errorf("fetch: %w", fetchErr)
		}
		data = res.Body
		format = formatFromContentType(res.ContentType)
		if format == "" {
			format = FormatFromPath(res.FinalURL)
		}
	default:
		data, err = os.ReadFile(source)
		if err != nil {
			return model.Document{}, fmt.Errorf("read file: %w", err)
		}
		format = FormatFromPath(source)
	}

	if p.inputFormat != "" {
		format = p.inputFormat
	}
	doc, err := Decode(data, format)
	if err != nil {
		return model.Document{}, fmt.Errorf("decode %s: %w", source, err)
	}
	if doc.ID == "" {
		doc.ID = documentID(source)
	}
	return doc, nil
}

// Decode parses a document in the given format
func Decode(data []byte, format string) (model.Document, error) {
	var doc model.Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return model.Document{}, fmt.Errorf("parse json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return model.Document{}, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return model.Document{}, fmt.Errorf("parse toml: %w", err)
		}
	case FormatHTML:
		return extract.FromHTML(string(data))
	default:
		return model.Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return doc, nil
}

// FormatFromPath guesses a format from a file name or URL extension
func FormatFromPath(source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Host != "" {
		source = u.Path
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".html", ".htm":
		return FormatHTML
	}
	return ""
}

func formatFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "application/json":
		return FormatJSON
	case "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML
	case "application/toml":
		return FormatTOML
	case "text/html", "application/xhtml+xml":
		return FormatHTML
	}
	return ""
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// documentID derives an id from the last path segment of a source
func documentID(source string) string {
	if source == StdinSource {
		return "stdin"
	}
	p := source
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Host != "" {
		p = strings.Trim(u.Path, "/")
		if p == "" {
			return u.Host
		}
		p = path.Base(p)
	} else {
		p = filepath.Base(p)
	}

	if idx := strings.LastIndex(p, "."); idx > 0 {
		p = p[:idx]
	}
	return p
}
