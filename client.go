// Package backsync runs filtered, sorted searches over backends that only
// return documents one id-ordered page at a time.
//
// A Client owns one backend connection; Collection returns a handle for
// searching and editing the documents of one collection:
//
//	c, err := backsync.New(ctx, backsync.WithCouchDB("http://localhost:5984", "admin", "secret"))
//	...
//	res, err := c.Collection("users").Search(ctx, backsync.Query{
//		"age":   map[string]any{"$gte": 18},
//		"$sort": map[string]any{"name": 1},
//	})
package backsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/backsync/internal/app"
	"github.com/kailas-cloud/backsync/internal/metrics"
)

// Client is the entry point of the library.
type Client struct {
	app *app.App
}

// New opens the configured backend and waits until it answers.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := defaultClientConfig()
	for _, o := range opts {
		o(cc)
	}

	cc.cfg.ApplyDefaults()
	if err := cc.cfg.ValidateEngine(); err != nil {
		return nil, fmt.Errorf("backsync: %w", err)
	}

	if cc.metricsReg != nil {
		if err := registerCollectors(cc.metricsReg, metrics.ScanCollectors()); err != nil {
			return nil, err
		}
	}

	store, err := app.OpenStore(cc.cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("backsync: %w", err)
	}

	timeout := time.Duration(cc.cfg.Backend.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("backsync: backend not ready: %w", err)
	}

	return &Client{app: app.Wire(store, cc.cfg, cc.logger)}, nil
}

// registerCollectors registers cs on reg. A collector that is already
// registered is accepted, so several clients may share one registry.
func registerCollectors(reg prometheus.Registerer, cs []prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) && are.ExistingCollector == c {
				continue
			}
			return fmt.Errorf("backsync: register metric: %w", err)
		}
	}
	return nil
}

// Close releases the backend connection.
func (c *Client) Close() {
	if c.app != nil {
		c.app.Close()
	}
}

// Ping checks that the backend answers.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.app.Store.Ping(ctx); err != nil {
		return fmt.Errorf("backsync: ping: %w", err)
	}
	return nil
}

// Collection returns a handle for the named collection. The collection is
// not checked for existence: searching a missing one yields no documents.
func (c *Client) Collection(name string) *Collection {
	return &Collection{name: name, app: c.app}
}
