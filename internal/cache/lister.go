package cache

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"yarukoto/internal/query"
	"yarukoto/internal/todo"
)

type Source interface {
	List(ctx context.Context, spec query.Spec) ([]todo.Item, error)
}

// Lister answers list queries from the cache when one is configured and
// from the store otherwise. Concurrent misses for the same key share one
// store read. A failing cache is logged and bypassed.
type Lister struct {
	src   Source
	cache *ListCache
	log   *logrus.Entry
	sf    singleflight.Group

	// gen moves on every invalidation; a read that started under an older
	// generation does not write its result back.
	mu  sync.Mutex
	gen uint64
}

// NewLister wraps src. If c is nil, caching is disabled.
func NewLister(src Source, c *ListCache, log *logrus.Entry) *Lister {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Lister{src: src, cache: c, log: log}
}

func (l *Lister) List(ctx context.Context, p query.Params) ([]todo.Item, error) {
	p = p.Normalize()
	if l.cache == nil {
		return l.src.List(ctx, query.Build(p))
	}
	key := p.Key()
	v, err, _ := l.sf.Do(key, func() (interface{}, error) {
		list, hit, err := l.cache.Get(ctx, key)
		if err != nil {
			l.log.WithError(err).Warn("list cache read failed")
		} else if hit {
			return list, nil
		}
		gen := l.generation()
		list, err = l.src.List(ctx, query.Build(p))
		if err != nil {
			return nil, err
		}
		l.store(ctx, key, gen, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]todo.Item), nil
}

func (l *Lister) generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (l *Lister) store(ctx context.Context, key string, gen uint64, list []todo.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		l.log.WithField("key", key).Debug("list changed during read, not caching")
		return
	}
	if err := l.cache.Set(ctx, key, list); err != nil {
		l.log.WithError(err).Warn("list cache write failed")
	}
}

// Invalidate is called after every mutation.
func (l *Lister) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	return l.cache.InvalidateAll(ctx)
}
