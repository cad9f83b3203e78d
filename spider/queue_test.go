package spider_test

import (
	"testing"

	"github.com/vinicius507/arachnida/spider"
	"github.com/vinicius507/arachnida/spider/spidertest"
)

func TestQueue(t *testing.T) {
	spidertest.Queue(t, func(t testing.TB) spider.Queue {
		return spider.MemoryQueue(5)
	})
}
