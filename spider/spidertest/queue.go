package spidertest

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinicius507/arachnida/spider"
	"golang.org/x/sync/errgroup"
)

// Queue tests a Queue implementation.
//
// `new(t)` must return a new empty queue ready for use.
func Queue(t *testing.T, new func(testing.TB) spider.Queue) {
	t.Run("enqueue dequeue", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		err := queue.Enqueue(ctx, item(t, "a", 0), item(t, "b", 1))
		assert.NoError(err)

		a, err := queue.Dequeue(ctx)
		assert.NoError(err)
		assert.Equal("http://example.com/a", a.Key())
		assert.Equal(0, a.Depth)

		b, err := queue.Dequeue(ctx)
		assert.NoError(err)
		assert.Equal("http://example.com/b", b.Key())
		assert.Equal(1, b.Depth)
	})

	t.Run("enqueue multi", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		for j := 0; j < 1000; j++ {
			err := queue.Enqueue(ctx, item(t, strconv.Itoa(j), 0))
			assert.NoError(err)
		}
	})

	t.Run("enqueue canceled context", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		ctx, cancel := context.WithCancel(ctx)
		cancel()

		err := queue.Enqueue(ctx, item(t, "a", 0))
		assert.Equal(context.Canceled, err)
	})

	t.Run("enqueue closed", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		err := queue.Close()
		assert.NoError(err)

		err = queue.Enqueue(ctx, item(t, "a", 0))
		assert.Equal(io.EOF, err)
	})

	t.Run("dequeue multi readers", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)
		var recv = make([]string, 3)

		eg, subctx := errgroup.WithContext(ctx)

		for j := 0; j < 3; j++ {
			j := j
			eg.Go(func() error {
				it, err := queue.Dequeue(subctx)
				if err != nil {
					return err
				}
				recv[j] = it.Key()
				return nil
			})
		}

		err := queue.Enqueue(ctx, item(t, "a", 0), item(t, "b", 0), item(t, "c", 0))
		assert.NoError(err)

		err = eg.Wait()
		assert.NoError(err)

		sort.Strings(recv)
		assert.Equal([]string{
			"http://example.com/a",
			"http://example.com/b",
			"http://example.com/c",
		}, recv)
	})

	t.Run("dequeue closed", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		err := queue.Close()
		assert.NoError(err)

		_, err = queue.Dequeue(ctx)
		assert.Equal(io.EOF, err)
	})

	t.Run("dequeue canceled context", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := queue.Dequeue(ctx)
		assert.Equal(context.Canceled, err)
	})

	t.Run("dequeue unblocks on close", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)
		var errs = make(chan error, 1)

		go func() {
			_, err := queue.Dequeue(ctx)
			errs <- err
		}()

		time.Sleep(10 * time.Millisecond)
		assert.NoError(queue.Close())
		assert.Equal(io.EOF, <-errs)
	})

	t.Run("dequeue unblocks on cancel", func(t *testing.T) {
		var assert = require.New(t)
		var queue = new(t)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := queue.Dequeue(ctx)
		assert.True(errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("wait empty", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		assert.NoError(queue.Wait(ctx))
	})

	t.Run("wait until done", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)
		var waited = make(chan error, 1)

		assert.NoError(queue.Enqueue(ctx, item(t, "a", 0)))

		go func() {
			waited <- queue.Wait(ctx)
		}()

		a, err := queue.Dequeue(ctx)
		assert.NoError(err)

		// Items queued by an in-flight item keep the queue busy.
		assert.NoError(queue.Enqueue(ctx, item(t, "b", 1)))
		queue.Done(a)

		select {
		case <-waited:
			t.Fatal("wait returned with a pending item")
		case <-time.After(20 * time.Millisecond):
		}

		b, err := queue.Dequeue(ctx)
		assert.NoError(err)

		select {
		case <-waited:
			t.Fatal("wait returned with an unacknowledged item")
		case <-time.After(20 * time.Millisecond):
		}

		queue.Done(b)
		assert.NoError(<-waited)
	})

	t.Run("wait closed", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		assert.NoError(queue.Enqueue(ctx, item(t, "a", 0)))
		assert.NoError(queue.Close())

		assert.Equal(io.EOF, queue.Wait(ctx))
	})

	t.Run("wait canceled context", func(t *testing.T) {
		var ctx = context.Background()
		var assert = require.New(t)
		var queue = new(t)

		assert.NoError(queue.Enqueue(ctx, item(t, "a", 0)))

		ctx, cancel := context.WithCancel(ctx)
		cancel()

		assert.Equal(context.Canceled, queue.Wait(ctx))
	})
}

// Item returns an item for http://example.com/<path>.
func item(t testing.TB, path string, depth int) spider.Item {
	t.Helper()

	u, err := url.Parse("http://example.com/" + path)
	if err != nil {
		t.Fatalf("spidertest: %s", err)
	}

	return spider.Item{URL: u, Depth: depth}
}
