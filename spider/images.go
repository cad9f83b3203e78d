package spider

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/vinicius507/arachnida/internal/store"
)

// DefaultExtensions is the default image extension allow-list.
const DefaultExtensions = "jpg,jpeg,png,gif,bmp"

// Extensions represents a lower-case extension allow-list.
type Extensions map[string]bool

// ParseExtensions parses a comma separated extension list.
//
// Extensions are trimmed, lower-cased and may carry a leading dot,
// empty entries are ignored.
func ParseExtensions(list string) Extensions {
	var exts = make(Extensions)

	for _, ext := range strings.Split(list, ",") {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext != "" {
			exts[ext] = true
		}
	}

	return exts
}

// Has returns true if ext is in the allow-list, ignoring case.
func (e Extensions) Has(ext string) bool {
	return e[strings.ToLower(ext)]
}

// String implementation.
func (e Extensions) String() string {
	var ret = make([]string, 0, len(e))
	for ext := range e {
		ret = append(ret, ext)
	}
	sort.Strings(ret)
	return strings.Join(ret, ",")
}

// Downloader implements the image acceptance pipeline.
//
// Every image is fetched, its real type is sniffed from
// the leading bytes and it is either written to the
// destination directory or dropped.
type Downloader struct {
	fetcher    *Fetcher
	dir        *store.Dir
	extensions Extensions
	logger     log.Interface
	now        func() time.Time
	suffix     func() string
}

// DownloaderConfig configures a downloader.
type DownloaderConfig struct {
	// Dir is the destination directory.
	//
	// It is created along with its parents, if it can't
	// be created NewDownloader returns an error.
	Dir string

	// Extensions is the sniffed extension allow-list.
	//
	// If empty, DefaultExtensions is used.
	Extensions Extensions

	// Fetcher is the fetcher to use.
	//
	// If nil, the default fetcher is used.
	Fetcher *Fetcher

	// Logger is the logger to use.
	//
	// If nil, log.Log is used.
	Logger log.Interface
}

// NewDownloader returns a new downloader.
func NewDownloader(c DownloaderConfig) (*Downloader, error) {
	dir, err := store.Open(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("spider: prepare destination - %w", err)
	}

	if len(c.Extensions) == 0 {
		c.Extensions = ParseExtensions(DefaultExtensions)
	}

	if c.Fetcher == nil {
		c.Fetcher = DefaultFetcher
	}

	if c.Logger == nil {
		c.Logger = log.Log
	}

	return &Downloader{
		fetcher:    c.Fetcher,
		dir:        dir,
		extensions: c.Extensions,
		logger:     c.Logger,
		now:        time.Now,
		suffix:     randomSuffix,
	}, nil
}

// Download downloads the image at src found on page.
//
// The method returns the written file path, or an error
// wrapping ErrUnsniffable or ErrUnregisteredExtension when
// the image is dropped.
func (d *Downloader) Download(ctx context.Context, page, src *URL) (string, error) {
	var logger = d.logger.WithFields(log.Fields{
		"page": page.String(),
		"src":  src.String(),
	})

	logger.Info("downloading image")

	buf, err := d.fetcher.FetchBytes(ctx, src)
	if err != nil {
		return "", err
	}

	ext, err := d.sniff(buf)
	if err != nil {
		return "", fmt.Errorf("spider: image %q - %w", src, err)
	}

	file, err := d.dir.Store(ctx, d.filename(page, src, ext), buf)
	if err != nil {
		return "", fmt.Errorf("spider: save %q - %w", src, err)
	}

	logger.WithField("path", file).Info("downloaded image")
	return file, nil
}

// Sniff returns the allowed extension of buf.
func (d *Downloader) sniff(buf []byte) (string, error) {
	kind, err := filetype.Match(buf)
	if err != nil || kind == filetype.Unknown {
		return "", ErrUnsniffable
	}

	if !d.extensions.Has(kind.Extension) {
		return "", fmt.Errorf("%w %q", ErrUnregisteredExtension, kind.Extension)
	}

	return kind.Extension, nil
}

// Filename returns the destination file name.
//
// The name is `<host>_<stem>_<time>_<suffix>.<ext>` where host is
// the page hostname, stem the source's base name without extension
// and time has a one second resolution. The random suffix keeps
// images of the same host and stem from replacing each other when
// they are saved within the same second.
func (d *Downloader) filename(page, src *URL, ext string) string {
	var stem = path.Base(src.Path)
	stem = strings.TrimSuffix(stem, path.Ext(stem))

	var parts = make([]string, 0, 4)
	if host := page.Hostname(); host != "" {
		parts = append(parts, sanitize(host))
	}

	if stem = sanitize(stem); stem != "" {
		parts = append(parts, stem)
	} else {
		parts = append(parts, "image")
	}

	parts = append(parts, d.now().Format("20060102-150405"), d.suffix())
	return strings.Join(parts, "_") + "." + ext
}

// RandomSuffix returns 8 random hex characters.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9.\-]+`)

// Sanitize replaces runs of unsafe characters with `-`.
func sanitize(s string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(s, "-"), ".-")
}
