package spider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"
)

// Engine defaults.
const (
	DefaultMaxDepth    = 5
	DefaultConcurrency = 10
)

// EngineConfig configures the engine.
type EngineConfig struct {
	// Dir is the directory images are written to.
	//
	// It is created with its parents by NewEngine, which
	// returns an error if that fails.
	Dir string

	// Extensions is the image extension allow-list.
	//
	// It is used both to pre-filter image URLs and to accept
	// sniffed images. If empty, DefaultExtensions is used.
	Extensions Extensions

	// Recursive enables following links.
	Recursive bool

	// MaxDepth is the maximum link depth when Recursive is set.
	//
	// Seeds are at depth 0 and always crawled, links found on
	// a page at depth d are queued only while d < MaxDepth.
	// Negative values are treated as 0.
	MaxDepth int

	// Concurrency is the number of workers.
	//
	// If <= 0, it defaults to 10.
	Concurrency int

	// Fetcher is the page and image fetcher to use.
	//
	// If nil, a fetcher using spider.DefaultClient is used.
	Fetcher *Fetcher

	// Queue is the crawl queue to use.
	//
	// If nil, the default in-memory queue is used.
	Queue Queue

	// Deduper is the URL de-duplicator to use.
	//
	// If nil, DedupeMap is used.
	Deduper Deduper

	// Matcher is called with every discovered link before it
	// is queued, if it returns false the link is dropped.
	//
	// Seeds are never matched. If nil, all links are queued.
	Matcher Matcher

	// Limiter is called with each page URL before it is fetched.
	//
	// If nil, no limits are used besides the client's own.
	Limiter Limiter

	// Logger is the logger to use.
	//
	// If nil, log.Log is used.
	Logger log.Interface
}

// Engine implements the crawler engine.
//
// The engine keeps a queue of items, a pool of workers that drain
// it, and two URL sets: seen, which every enqueue goes through, and
// done, which holds pages whose crawl completed. A URL is fetched
// at most once per run.
type Engine struct {
	fetcher     *Fetcher
	downloader  *Downloader
	extensions  Extensions
	queue       Queue
	seen        Deduper
	done        *set
	matcher     Matcher
	limiter     Limiter
	recursive   bool
	maxDepth    int
	concurrency int
	logger      log.Interface
	stats       stats
	started     atomic.Bool
}

// NewEngine returns a new engine.
//
// The method creates the destination directory, failing
// to do so is the only error it returns.
func NewEngine(c EngineConfig) (*Engine, error) {
	if c.Fetcher == nil {
		c.Fetcher = &Fetcher{}
	}

	if len(c.Extensions) == 0 {
		c.Extensions = ParseExtensions(DefaultExtensions)
	}

	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}

	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}

	if c.Queue == nil {
		c.Queue = MemoryQueue(c.Concurrency)
	}

	if c.Deduper == nil {
		c.Deduper = DedupeMap()
	}

	if c.Logger == nil {
		c.Logger = log.Log
	}

	downloader, err := NewDownloader(DownloaderConfig{
		Dir:        c.Dir,
		Extensions: c.Extensions,
		Fetcher:    c.Fetcher,
		Logger:     c.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		fetcher:     c.Fetcher,
		downloader:  downloader,
		extensions:  c.Extensions,
		queue:       c.Queue,
		seen:        c.Deduper,
		done:        &set{},
		matcher:     c.Matcher,
		limiter:     c.Limiter,
		recursive:   c.Recursive,
		maxDepth:    c.MaxDepth,
		concurrency: c.Concurrency,
		logger:      c.Logger,
	}, nil
}

// Run runs the engine with the given seed urls.
//
// The method returns an error wrapping ErrInvalidURL before
// anything is fetched if a seed is invalid. Otherwise it blocks
// until every reachable page within the depth budget has been
// crawled or has failed, and returns nil; individual page and
// image failures are logged, not returned.
//
// If ctx is canceled the method stops all workers and returns
// the context error.
//
// An engine runs once, its queue is closed when Run returns.
// Later calls return ErrEngineUsed.
func (eng *Engine) Run(ctx context.Context, seeds ...string) error {
	var items = make([]Item, 0, len(seeds))

	for _, rawurl := range seeds {
		u, err := ParseURL(rawurl)
		if err != nil {
			return err
		}
		items = append(items, Item{URL: u, Depth: 0})
	}

	if !eng.started.CompareAndSwap(false, true) {
		return ErrEngineUsed
	}

	// Enqueue seeds.
	if err := eng.Enqueue(ctx, items...); err != nil {
		return fmt.Errorf("spider: enqueue - %w", err)
	}

	// Spawn workers.
	var eg, subctx = errgroup.WithContext(ctx)
	for i := 0; i < eng.concurrency; i++ {
		eg.Go(func() error {
			return eng.run(subctx)
		})
	}

	// Wait until all items are handled, then
	// stop the workers blocked on dequeue.
	werr := eng.queue.Wait(ctx)
	if err := eng.queue.Close(); err != nil {
		return err
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("spider: run - %w", err)
	}

	if werr != nil {
		return fmt.Errorf("spider: run - %w", werr)
	}

	return nil
}

// Enqueue enqueues the given items.
//
// This is the only way items reach the queue: items whose
// scheme is not http or https are dropped, discovered links
// (depth > 0) must pass the matcher, and only URLs that were
// never seen before are queued.
func (eng *Engine) Enqueue(ctx context.Context, items ...Item) error {
	var batch = make([]Item, 0, len(items))

	for _, it := range items {
		if !it.crawlable() {
			eng.logger.WithField("url", it.URL.String()).Debug("skipping non-http url")
			continue
		}

		if it.Depth > 0 && eng.matcher != nil && !eng.matcher.Match(it.URL) {
			continue
		}

		batch = append(batch, it)
	}

	next, err := eng.dedupe(ctx, batch)
	if err != nil {
		return err
	}

	return eng.queue.Enqueue(ctx, next...)
}

// Stats returns the engine's counters.
func (eng *Engine) Stats() Stats {
	return eng.stats.snapshot()
}

// Dedupe returns the items whose URL was not seen yet.
func (eng *Engine) dedupe(ctx context.Context, batch []Item) ([]Item, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	var keys = make([]string, len(batch))
	var first = make(map[string]Item, len(batch))

	for j, it := range batch {
		k := it.Key()
		keys[j] = k
		if _, ok := first[k]; !ok {
			first[k] = it
		}
	}

	fresh, err := eng.seen.Dedupe(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("spider: dedupe - %w", err)
	}

	var ret = make([]Item, 0, len(fresh))
	for _, k := range fresh {
		ret = append(ret, first[k])
	}

	return ret, nil
}

// Run runs a single crawl worker.
//
// The worker dequeues items until the queue is closed
// or the context is canceled.
func (eng *Engine) run(ctx context.Context) error {
	for {
		item, err := eng.queue.Dequeue(ctx)

		if errors.Is(err, io.EOF) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("spider: dequeue - %w", err)
		}

		eng.process(ctx, item)
	}
}

// Process processes a single item.
//
// The item is acknowledged whatever the outcome, a failing
// page never blocks the queue from draining.
func (eng *Engine) process(ctx context.Context, item Item) {
	defer eng.queue.Done(item)

	var logger = eng.logger.WithFields(log.Fields{
		"url":   item.URL.String(),
		"depth": item.Depth,
	})

	if err := eng.crawl(ctx, item, logger); err != nil {
		eng.stats.failed.Add(1)
		eng.report(ctx, logger, err)
		return
	}

	eng.stats.pages.Add(1)
}

// Crawl crawls a single page.
//
//  1. fetch the page, failing fast on non-2xx.
//  2. queue its links when depth allows.
//  3. download all of its images concurrently.
//  4. mark the page as done.
func (eng *Engine) crawl(ctx context.Context, item Item, logger *log.Entry) error {
	logger.Info("crawling")

	if eng.limiter != nil {
		if err := eng.limiter.Limit(ctx, item.URL); err != nil {
			return fmt.Errorf("spider: limit - %w", err)
		}
	}

	page, err := eng.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return err
	}

	if eng.recursive && item.Depth < eng.maxDepth {
		if err := eng.follow(ctx, item, page); err != nil {
			return fmt.Errorf("spider: enqueue - %w", err)
		}
	}

	var images = page.Images(eng.extensions)
	var wg sync.WaitGroup

	for _, src := range images {
		wg.Add(1)
		go func(src *URL) {
			defer wg.Done()
			eng.download(ctx, page.URL, src)
		}(src)
	}

	wg.Wait()
	eng.done.add(item.Key())

	logger.WithField("images", len(images)).Info("crawled")
	return nil
}

// Follow queues the page's links one level deeper.
func (eng *Engine) follow(ctx context.Context, item Item, page *Page) error {
	var links = page.Links()
	var next = make([]Item, 0, len(links))

	for _, u := range links {
		if eng.done.has(u.String()) {
			continue
		}
		next = append(next, Item{URL: u, Depth: item.Depth + 1})
	}

	return eng.Enqueue(ctx, next...)
}

// Download downloads a single image.
func (eng *Engine) download(ctx context.Context, page, src *URL) {
	var logger = eng.logger.WithFields(log.Fields{
		"page": page.String(),
		"src":  src.String(),
	})

	_, err := eng.downloader.Download(ctx, page, src)
	switch {
	case err == nil:
		eng.stats.images.Add(1)
	case Classify(err) == ClassDropped:
		eng.stats.dropped.Add(1)
		eng.report(ctx, logger, err)
	default:
		eng.stats.imageFailed.Add(1)
		eng.report(ctx, logger, err)
	}
}

// Report logs err at the level of its class.
func (eng *Engine) report(ctx context.Context, logger *log.Entry, err error) {
	if ctx.Err() != nil {
		logger.WithError(err).Debug("canceled")
		return
	}

	switch Classify(err) {
	case ClassTimeout:
		logger.WithError(err).Warn("timeout")
	case ClassHTTP:
		logger.WithError(err).Error("http error")
	case ClassDropped:
		logger.WithField("reason", dropReason(err)).Warn("dropped image")
	default:
		logger.WithError(err).Error("unexpected error")
	}
}

// DropReason returns a short reason for a dropped image.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsniffable):
		return "unsniffable"
	case errors.Is(err, ErrUnregisteredExtension):
		return err.Error()
	default:
		return "unknown"
	}
}

// Stats represents engine counters.
type Stats struct {
	// Pages is the number of pages crawled.
	Pages int64

	// Failed is the number of pages that failed.
	Failed int64

	// Images is the number of images written.
	Images int64

	// Dropped is the number of images rejected after sniffing.
	Dropped int64

	// ImageErrors is the number of images that failed to download.
	ImageErrors int64
}

// Stats holds the live counters.
type stats struct {
	pages       atomic.Int64
	failed      atomic.Int64
	images      atomic.Int64
	dropped     atomic.Int64
	imageFailed atomic.Int64
}

// Snapshot returns a copy of the counters.
func (s *stats) snapshot() Stats {
	return Stats{
		Pages:       s.pages.Load(),
		Failed:      s.failed.Load(),
		Images:      s.images.Load(),
		Dropped:     s.dropped.Load(),
		ImageErrors: s.imageFailed.Load(),
	}
}
