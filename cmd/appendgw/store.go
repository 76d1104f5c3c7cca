package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"github.com/nicolagi/appendgw/storage"
	log "github.com/sirupsen/logrus"
)

// openStore opens the configured backend. The returned function releases
// it, and must be called exactly once at shutdown.
func openStore(c *config) (store storage.Store, closeStore func() error, err error) {
	noop := func() error { return nil }
	logger := log.WithField("type", c.Store.Type)
	switch c.Store.Type {
	case "redis":
		timeout, err := c.storeTimeout()
		if err != nil {
			return nil, nil, fmt.Errorf("store timeout %q: %w", c.Store.Timeout, err)
		}
		rs := storage.NewRedisStore(storage.NewRedisPool(c.redisURL(), timeout))
		logger.WithField("url", c.redisURL()).Info("Will use Redis")
		if err := rs.Ping(); err != nil {
			logger.WithFields(log.Fields{
				"url": c.redisURL(),
				"err": err,
			}).Warn("Redis is not reachable yet")
		}
		return rs, rs.Close, nil
	case "memory":
		logger.Warn("Will use an in-memory store, data will not survive a restart")
		return storage.NewInMemoryStore(), noop, nil
	case "bolt":
		file := os.ExpandEnv(c.Store.Path)
		if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
			return nil, nil, fmt.Errorf("could not ensure directory for %q exists: %w", file, err)
		}
		db, err := bolt.Open(file, 0600, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open database %q: %w", file, err)
		}
		bs, err := storage.NewBoltStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("could not instantiate boltdb store at %q: %w", file, err)
		}
		logger.WithField("path", file).Info("Will use a boltdb database")
		return bs, bs.Close, nil
	case "disk":
		dir := os.ExpandEnv(c.Store.Path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, nil, fmt.Errorf("could not ensure directory %q exists: %w", dir, err)
		}
		logger.WithField("path", dir).Info("Will use a disk-based backend")
		return storage.NewDiskStore(dir), noop, nil
	case "s3":
		logger.WithField("bucket", c.Store.Bucket).Info("Will use S3")
		return storage.NewS3(c.Store.Profile, c.Store.Region, c.Store.Bucket), noop, nil
	case "dynamodb":
		ds, err := storage.NewDynamoDBStore(c.Store.Profile, c.Store.Region, c.Store.Table)
		if err != nil {
			return nil, nil, fmt.Errorf("could not set up dynamodb table %q: %w", c.Store.Table, err)
		}
		logger.WithField("table", c.Store.Table).Info("Will use DynamoDB")
		return ds, noop, nil
	default:
		return nil, nil, fmt.Errorf("%q: unknown store type", c.Store.Type)
	}
}
