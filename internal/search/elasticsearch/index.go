// Package elasticsearch implements search.Index over the Elasticsearch REST API.
package elasticsearch

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/capstone/vsl/internal/apperr"
	"github.com/capstone/vsl/internal/caller"
	"github.com/capstone/vsl/internal/config"
	"github.com/capstone/vsl/internal/search"
)

//go:embed index_settings.json
var indexSettings []byte

const (
	defaultBootstrapAttempts = 5
	defaultBootstrapDelay    = time.Second
)

// Index stores dictionary documents in one Elasticsearch index. Documents are
// keyed by entry id and written with external versioning, so a stale write
// never replaces a newer one.
type Index struct {
	caller            *caller.Caller
	name              string
	bootstrapAttempts uint
	bootstrapDelay    time.Duration
}

type Option func(*Index)

// WithBootstrap sets how EnsureIndex retries while the cluster is starting.
func WithBootstrap(attempts uint, delay time.Duration) Option {
	return func(i *Index) {
		if attempts > 0 {
			i.bootstrapAttempts = attempts
		}
		if delay > 0 {
			i.bootstrapDelay = delay
		}
	}
}

func New(c *caller.Caller, name string, opts ...Option) *Index {
	i := &Index{
		caller:            c,
		name:              name,
		bootstrapAttempts: defaultBootstrapAttempts,
		bootstrapDelay:    defaultBootstrapDelay,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// EnsureIndex creates the index with its analyzer and mapping unless it
// already exists. Transient failures are retried with backoff.
func (i *Index) EnsureIndex(ctx context.Context) error {
	return retry.Do(
		func() error {
			return i.ensureIndex(ctx)
		},
		retry.Attempts(i.bootstrapAttempts),
		retry.Delay(i.bootstrapDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(caller.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			slog.Default().Warn("search index not ready, retrying", "index", i.name, "attempt", n+1, "error", err)
		}),
	)
}

func (i *Index) ensureIndex(ctx context.Context) error {
	status, err := i.caller.Call(ctx, caller.Request{
		Method:       http.MethodHead,
		Path:         "/" + i.name,
		AcceptStatus: []int{http.StatusNotFound},
	}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNotFound {
		slog.Default().Debug("search index exists", "index", i.name)
		return nil
	}

	_, err = i.caller.Call(ctx, caller.Request{
		Method: http.MethodPut,
		Path:   "/" + i.name,
		Body:   indexSettings,
	}, nil)
	var callErr *caller.Error
	if errors.As(err, &callErr) && callErr.Kind == caller.KindStatus &&
		strings.Contains(callErr.Body, "resource_already_exists_exception") {
		return nil
	}
	if err != nil {
		return err
	}
	slog.Default().Info("created search index", "index", i.name)
	return nil
}

func (i *Index) Upsert(ctx context.Context, doc search.Document) error {
	status, err := i.caller.Call(ctx, caller.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/%s/_doc/%d", i.name, doc.ID),
		Query: map[string]string{
			"version":      strconv.FormatInt(doc.Version, 10),
			"version_type": "external_gte",
		},
		Body:         doc,
		AcceptStatus: []int{http.StatusConflict},
	}, nil)
	if err != nil {
		return i.mapError("upsert", err)
	}
	if status == http.StatusConflict {
		return fmt.Errorf("upsert id=%d version=%d: %w", doc.ID, doc.Version, search.ErrSuperseded)
	}
	return nil
}

type searchRequest struct {
	Size   int         `json:"size"`
	Source bool        `json:"_source"`
	Query  searchQuery `json:"query"`
}

type searchQuery struct {
	MultiMatch multiMatch `json:"multi_match"`
}

type multiMatch struct {
	Query     string   `json:"query"`
	Fields    []string `json:"fields"`
	Fuzziness string   `json:"fuzziness"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID    string  `json:"_id"`
			Score float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching ids in relevance order. Accent-free queries match
// accented words through the index analyzer.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	var response searchResponse
	_, err := i.caller.Call(ctx, caller.Request{
		Method: http.MethodPost,
		Path:   "/" + i.name + "/_search",
		Body: searchRequest{
			Size: limit,
			Query: searchQuery{MultiMatch: multiMatch{
				Query:     query,
				Fields:    []string{"word^2", "definition"},
				Fuzziness: "AUTO",
			}},
		},
	}, &response)
	if err != nil {
		return nil, i.mapError("search", err)
	}

	hits := make([]search.Hit, 0, len(response.Hits.Hits))
	for _, h := range response.Hits.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			slog.Default().Warn("skipping search hit with non-numeric id", "index", i.name, "id", h.ID)
			continue
		}
		hits = append(hits, search.Hit{ID: id, Score: h.Score})
	}
	return hits, nil
}

func (i *Index) Close() error {
	return i.caller.Close()
}

// mapError reports transient failures and a missing index as IndexUnavailable.
func (i *Index) mapError(op string, err error) error {
	var callErr *caller.Error
	if caller.IsTransient(err) ||
		(errors.As(err, &callErr) && callErr.Kind == caller.KindStatus && callErr.StatusCode == http.StatusNotFound) {
		return apperr.New(apperr.IndexUnavailable, fmt.Sprintf("%s %s", op, i.name), err)
	}
	return fmt.Errorf("%s %s: %w", op, i.name, err)
}

// NewFromConfig creates an Index for the configured cluster.
func NewFromConfig(cfg config.SearchConfig) *Index {
	c := caller.New("elasticsearch", cfg.URL, cfg.Timeout, caller.WithBasicAuth(cfg.Username, cfg.Password))
	return New(c, cfg.Index, WithBootstrap(cfg.BootstrapAttempts, 0))
}
