package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	dialTimeout      = 5 * time.Second
	requestTimeout   = 5 * time.Second
	dialRetryMaxWait = 30 * time.Second
)

// EtcdConfig configures the etcd-backed store.
type EtcdConfig struct {
	// Endpoints are the cluster member URLs.
	Endpoints []string

	Log logrus.FieldLogger
}

// EtcdStore is a DataStore backed by an etcd v3 cluster. TTL writes are
// implemented with leases.
type EtcdStore struct {
	client *clientv3.Client
}

// NewEtcdStore dials the cluster, retrying with exponential backoff until
// the cluster answers or the context is done.
func NewEtcdStore(ctx context.Context, config EtcdConfig) (*EtcdStore, error) {
	var client *clientv3.Client

	dial := func() error {
		c, err := clientv3.New(clientv3.Config{
			Endpoints:   config.Endpoints,
			DialTimeout: dialTimeout,
			Context:     ctx,
		})
		if err != nil {
			return err
		}

		statusCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		if _, err := c.Status(statusCtx, config.Endpoints[0]); err != nil {
			c.Close()
			return err
		}

		client = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = dialRetryMaxWait
	err := backoff.RetryNotify(dial, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		config.Log.WithError(err).WithField("retry_in", next).Warn("Unable to reach etcd cluster, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create etcd client: %w", err)
	}

	return &EtcdStore{client: client}, nil
}

func (s *EtcdStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("unable to fetch etcd key %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", ErrNotFound
	}
	return string(resp.Kvs[0].Value), nil
}

func (s *EtcdStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if _, err := s.client.Put(ctx, key, value); err != nil {
		return fmt.Errorf("unable to update etcd key %s: %w", key, err)
	}
	return nil
}

func (s *EtcdStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	lease, err := s.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("unable to grant lease for etcd key %s: %w", key, err)
	}
	if _, err := s.client.Put(ctx, key, value, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("unable to update etcd key %s: %w", key, err)
	}
	return nil
}

func (s *EtcdStore) Close() error {
	return s.client.Close()
}
