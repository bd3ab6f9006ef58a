// Package source acquires raw documents for synchronization: local Markdown,
// text, HTML and PDF exports, web pages and standard input.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ppiankov/kbsync/internal/model"
)

// Stdin is the location that reads standard input
const Stdin = "-"

// ErrUnsupportedFormat is the cause of an IngestionError for inputs kbsync cannot read
var ErrUnsupportedFormat = errors.New("unsupported input format")

// Format is the detected shape of a raw document
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// Document is raw input ready for the pipeline
type Document struct {
	Source string // Path, URL or "-"
	Format Format
	Title  string
	Text   string // UTF-8, HTML converted to Markdown, PDF reduced to plain text
}

// ReaderOptions configures a Reader
type ReaderOptions struct {
	MaxBytes        int64
	StripConfluence bool
	Stdin           io.Reader
}

// Reader loads documents from files, URLs and stdin
type Reader struct {
	fetcher   *Fetcher
	converter *HTMLConverter
	opts      ReaderOptions
}

// NewReader creates a Reader. fetcher may be nil to refuse URLs.
func NewReader(fetcher *Fetcher, opts ReaderOptions) *Reader {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	return &Reader{
		fetcher:   fetcher,
		converter: NewHTMLConverter(),
		opts:      opts,
	}
}

// Read loads location. Every failure is an *model.IngestionError.
func (r *Reader) Read(ctx context.Context, location string) (*Document, error) {
	doc, err := r.read(ctx, location)
	if err != nil {
		var ingestion *model.IngestionError
		if errors.As(err, &ingestion) {
			return nil, err
		}
		return nil, &model.IngestionError{Source: location, Err: err}
	}

	if r.opts.StripConfluence {
		doc.Text = StripConfluence(doc.Text)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, &model.IngestionError{Source: location, Err: model.ErrEmptyInput}
	}
	return doc, nil
}

func (r *Reader) read(ctx context.Context, location string) (*Document, error) {
	switch {
	case location == Stdin:
		data, err := r.readAll(r.opts.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return r.decode(location, data, "", sniffFormat(data))

	case IsURL(location):
		if r.fetcher == nil {
			return nil, fmt.Errorf("%w: remote sources are disabled", ErrUnsupportedFormat)
		}
		res, err := r.fetcher.FetchWithRetry(ctx, location)
		if err != nil {
			return nil, err
		}
		format, err := formatFromContentType(res.ContentType)
		if err != nil {
			return nil, err
		}
		return r.decode(location, res.Body, res.ContentType, format)

	default:
		format, err := formatFromPath(location)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(location)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		data, err := r.readAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", location, err)
		}
		return r.decode(location, data, "", format)
	}
}

func (r *Reader) readAll(src io.Reader) ([]byte, error) {
	if r.opts.MaxBytes > 0 {
		src = io.LimitReader(src, r.opts.MaxBytes)
	}
	return io.ReadAll(src)
}

func (r *Reader) decode(location string, data []byte, contentType string, format Format) (*Document, error) {
	doc := &Document{Source: location, Format: format}
	if format == FormatPDF {
		text, err := ExtractPDFText(data)
		if err != nil {
			return nil, err
		}
		doc.Text = text
		return doc, nil
	}

	utf8, err := toUTF8(data, contentType)
	if err != nil {
		return nil, err
	}
	if format != FormatHTML {
		doc.Text = string(utf8)
		return doc, nil
	}

	converted, err := r.converter.Convert(utf8)
	if err != nil {
		return nil, err
	}
	doc.Title = converted.Title
	doc.Text = converted.Markdown
	return doc, nil
}

// toUTF8 decodes data using the content type charset, a BOM or a <meta>
// declaration, in that order of preference
func toUTF8(data []byte, contentType string) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return io.ReadAll(reader)
}

// IsURL reports whether location is an http(s) URL
func IsURL(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func formatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".txt", ".text":
		return FormatText, nil
	case ".html", ".htm", ".xhtml":
		return FormatHTML, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func formatFromContentType(contentType string) (Format, error) {
	if contentType == "" {
		return FormatHTML, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, contentType)
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return FormatHTML, nil
	case "text/markdown", "text/x-markdown":
		return FormatMarkdown, nil
	case "text/plain":
		return FormatText, nil
	case "application/pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, mediaType)
	}
}

// sniffFormat tells PDF and HTML from Markdown on stdin
func sniffFormat(data []byte) Format {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return FormatPDF
	}
	head := bytes.ToLower(bytes.TrimSpace(data))
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) {
		return FormatHTML
	}
	return FormatMarkdown
}
