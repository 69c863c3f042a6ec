package core

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"veritas.app/backend/internal/logging"
	"veritas.app/backend/internal/search"
	"veritas.app/backend/internal/store"
)

const (
	MaxSources             = 5
	DefaultSearchAttempts  = 3
	DefaultSearchTimeout   = 30 * time.Second
	backgroundWriteTimeout = 10 * time.Second
)

// SourceCache remembers the sources found for a query.
type SourceCache interface {
	Get(ctx context.Context, query string) ([]string, bool, error)
	Set(ctx context.Context, query string, urls []string) error
}

// URLLogger records every successful lookup for later audit.
type URLLogger interface {
	InsertURLLog(ctx context.Context, entry *store.URLLog) error
}

type RetrieverOptions struct {
	// MaxAttempts bounds the calls made to each provider.
	MaxAttempts int
	// Timeout bounds a single provider call.
	Timeout time.Duration
	Cache   SourceCache
	URLLog  URLLogger
	Logger  logrus.FieldLogger
}

// EvidenceRetriever looks up corroborating sources for a statement. It
// tries the primary provider up to MaxAttempts times, then the fallback
// provider the same way, and gives up with an empty list.
type EvidenceRetriever struct {
	providers   []search.Provider
	maxAttempts int
	timeout     time.Duration
	cache       SourceCache
	urlLog      URLLogger
	log         *logrus.Entry

	inflight   singleflight.Group
	background sync.WaitGroup
}

// NewEvidenceRetriever accepts nil for either provider.
func NewEvidenceRetriever(primary, fallback search.Provider, opts RetrieverOptions) *EvidenceRetriever {
	r := &EvidenceRetriever{
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.Timeout,
		cache:       opts.Cache,
		urlLog:      opts.URLLog,
		log:         logging.Component(opts.Logger, "retriever"),
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = DefaultSearchAttempts
	}
	if r.timeout <= 0 {
		r.timeout = DefaultSearchTimeout
	}
	for _, p := range []search.Provider{primary, fallback} {
		if p != nil {
			r.providers = append(r.providers, p)
		}
	}
	return r
}

// Retrieve never fails: when every provider is exhausted it returns an
// empty list. At most MaxSources URLs are returned.
func (r *EvidenceRetriever) Retrieve(ctx context.Context, query string) []string {
	if query == "" || len(r.providers) == 0 {
		return []string{}
	}

	if r.cache != nil {
		urls, ok, err := r.cache.Get(ctx, query)
		if err != nil {
			r.log.WithError(err).Warn("source cache lookup failed")
		} else if ok {
			r.log.WithField("query", query).Debug("source cache hit")
			return truncate(urls)
		}
	}

	// Identical concurrent queries share one provider call sequence.
	v, _, _ := r.inflight.Do(query, func() (any, error) {
		return r.search(ctx, query), nil
	})
	shared := v.([]string)
	urls := make([]string, len(shared))
	copy(urls, shared)
	return urls
}

func (r *EvidenceRetriever) search(ctx context.Context, query string) []string {
	for _, provider := range r.providers {
		for attempt := 1; attempt <= r.maxAttempts; attempt++ {
			entry := r.log.WithFields(logrus.Fields{
				"provider": provider.Name(),
				"attempt":  attempt,
				"query":    query,
			})

			urls, err := r.searchOnce(ctx, provider, query)
			if err != nil {
				entry.WithError(err).Warn("search attempt failed")
				continue
			}
			if len(urls) == 0 {
				entry.Warn("search attempt returned no results")
				continue
			}

			urls = truncate(urls)
			entry.WithField("count", len(urls)).Info("search attempt succeeded")
			r.record(query, urls)
			return urls
		}
		r.log.WithField("provider", provider.Name()).Warn("search provider exhausted")
	}

	r.log.WithField("query", query).Warn("search unavailable, returning no sources")
	return []string{}
}

func (r *EvidenceRetriever) searchOnce(ctx context.Context, provider search.Provider, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := provider.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return search.URLs(results), nil
}

// record writes the audit log and the cache entry in the background.
// Failures are logged and never reach the caller.
func (r *EvidenceRetriever) record(query string, urls []string) {
	if r.urlLog == nil && r.cache == nil {
		return
	}
	saved := make([]string, len(urls))
	copy(saved, urls)

	r.background.Add(1)
	go func() {
		defer r.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundWriteTimeout)
		defer cancel()

		if r.urlLog != nil {
			if err := r.urlLog.InsertURLLog(ctx, &store.URLLog{Query: query, URLs: saved}); err != nil {
				r.log.WithError(err).WithField("query", query).Error("failed to store url log")
			}
		}
		if r.cache != nil {
			if err := r.cache.Set(ctx, query, saved); err != nil {
				r.log.WithError(err).Warn("failed to cache sources")
			}
		}
	}()
}

// Wait blocks until pending background writes finish.
func (r *EvidenceRetriever) Wait() {
	r.background.Wait()
}

func truncate(urls []string) []string {
	if len(urls) > MaxSources {
		urls = urls[:MaxSources]
	}
	out := make([]string, len(urls))
	copy(out, urls)
	return out
}
