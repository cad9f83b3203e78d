// Command spider downloads the images of a website.
//
// Usage:
//
//	spider [-r] [-l depth] [-p path] [-e exts] url...
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/tj/kingpin"
	"github.com/vinicius507/arachnida/spider"
)

// Bloom filter size used by --bloom, about 2MiB and a
// false positive rate under 0.1% for a million URLs.
const (
	bloomBits   = 1 << 24
	bloomHashes = 7
)

// Options represents the command line options.
type options struct {
	urls           []string
	extensions     string
	path           string
	recursive      bool
	depth          int
	workers        int
	concurrency    int
	delay          time.Duration
	connectTimeout time.Duration
	timeout        time.Duration
	attempts       int
	rate           int
	match          []string
	bloom          bool
	userAgent      string
	verbose        bool
}

func main() {
	opts, err := parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "spider: %s\n", err)
		os.Exit(2)
	}

	log.SetHandler(cli.New(os.Stderr))
	log.SetLevel(log.InfoLevel)
	if opts.verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log.Log); err != nil {
		log.WithError(err).Error("spider failed")
		stop()
		os.Exit(1)
	}
}

// Parse parses the command line arguments.
func parse(args []string) (*options, error) {
	var app = kingpin.New("spider", "Download the images of a website.")
	var opts = &options{}

	app.Arg("urls", "Seed URLs.").Required().StringsVar(&opts.urls)

	app.Flag("extensions", "Comma separated image extensions to keep.").
		Short('e').
		Default(spider.DefaultExtensions).
		StringVar(&opts.extensions)

	app.Flag("path", "Destination directory.").
		Short('p').
		Default("./data").
		StringVar(&opts.path)

	app.Flag("recursive", "Follow links.").
		Short('r').
		BoolVar(&opts.recursive)

	app.Flag("limit", "Maximum link depth when recursive.").
		Short('l').
		Default(fmt.Sprint(spider.DefaultMaxDepth)).
		IntVar(&opts.depth)

	app.Flag("workers", "Number of crawl workers.").
		Short('w').
		Default(fmt.Sprint(spider.DefaultConcurrency)).
		IntVar(&opts.workers)

	app.Flag("concurrency", "Maximum requests in flight.").
		Default("10").
		IntVar(&opts.concurrency)

	app.Flag("delay", "Delay before each request, 0 to disable.").
		Default("300ms").
		DurationVar(&opts.delay)

	app.Flag("connect-timeout", "Connect timeout.").
		Default("1s").
		DurationVar(&opts.connectTimeout)

	app.Flag("timeout", "Total request timeout.").
		Default("3s").
		DurationVar(&opts.timeout)

	app.Flag("attempts", "Maximum attempts for temporary failures.").
		Default("1").
		IntVar(&opts.attempts)

	app.Flag("rate", "Maximum pages per second, 0 to disable.").
		Default("0").
		IntVar(&opts.rate)

	app.Flag("match", "Glob pattern links must match to be followed, repeatable.").
		StringsVar(&opts.match)

	app.Flag("bloom", "Use a bloom filter to remember seen URLs.").
		BoolVar(&opts.bloom)

	app.Flag("user-agent", "User agent to send.").
		Default(spider.UserAgent.String()).
		StringVar(&opts.userAgent)

	app.Flag("verbose", "Enable debug logs.").
		Short('v').
		BoolVar(&opts.verbose)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	if opts.delay == 0 {
		opts.delay = -1
	}

	return opts, nil
}

// Run builds the engine from opts and runs it.
func run(ctx context.Context, opts *options, logger log.Interface) error {
	var start = time.Now()

	// Seeds are checked before the destination is created.
	for _, rawurl := range opts.urls {
		if _, err := spider.ParseURL(rawurl); err != nil {
			return err
		}
	}

	client := spider.NewClient(spider.ClientConfig{
		ConnectTimeout: opts.connectTimeout,
		Timeout:        opts.timeout,
		Concurrency:    opts.concurrency,
		Delay:          opts.delay,
	})

	config := spider.EngineConfig{
		Dir:         opts.path,
		Extensions:  spider.ParseExtensions(opts.extensions),
		Recursive:   opts.recursive,
		MaxDepth:    opts.depth,
		Concurrency: opts.workers,
		Logger:      logger,
		Fetcher: &spider.Fetcher{
			Client:      client,
			UserAgent:   spider.StaticAgent(opts.userAgent),
			MaxAttempts: opts.attempts,
		},
	}

	if len(opts.match) > 0 {
		config.Matcher = spider.MatchPattern(opts.match...)
	}

	if opts.rate > 0 {
		config.Limiter = spider.Limit(opts.rate)
	}

	if opts.bloom {
		config.Deduper = spider.DedupeBF(bloomBits, bloomHashes)
	}

	eng, err := spider.NewEngine(config)
	if err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"path":       opts.path,
		"extensions": config.Extensions.String(),
		"recursive":  opts.recursive,
		"depth":      opts.depth,
	}).Info("starting")

	err = eng.Run(ctx, opts.urls...)
	stats := eng.Stats()

	logger.WithFields(log.Fields{
		"pages":        stats.Pages,
		"failed":       stats.Failed,
		"images":       stats.Images,
		"dropped":      stats.Dropped,
		"image_errors": stats.ImageErrors,
		"duration":     time.Since(start).Round(time.Millisecond).String(),
	}).Info("done")

	return err
}
