package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	log "github.com/sirupsen/logrus"
)

// RedisStore is an implementation of Store backed by Redis. Values are kept
// verbatim under the given keys, with no prefix.
//
// Connections come from a pool shared by all callers; redigo connections are
// not safe for concurrent use, the pool is.
type RedisStore struct {
	pool *redis.Pool
}

// NewRedisPool returns a pool dialing the Redis server at rawurl, e.g.,
// "redis://localhost:6379/0". The timeout bounds connecting, reading and
// writing; zero means no timeout.
func NewRedisPool(rawurl string, timeout time.Duration) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(rawurl,
				redis.DialConnectTimeout(timeout),
				redis.DialReadTimeout(timeout),
				redis.DialWriteTimeout(timeout),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func NewRedisStore(pool *redis.Pool) *RedisStore {
	return &RedisStore{pool: pool}
}

func (s *RedisStore) do(command string, args ...interface{}) (reply interface{}, err error) {
	conn := s.pool.Get()
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithFields(log.Fields{
				"op":  command,
				"err": err,
			}).Debug("Could not return connection to pool")
		}
	}()
	return conn.Do(command, args...)
}

// Get is implemented with the GET command; a nil reply means the key is missing.
func (s *RedisStore) Get(key []byte) (value []byte, err error) {
	value, err = redis.Bytes(s.do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, fmt.Errorf("%.40q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Put is implemented with the SET command.
func (s *RedisStore) Put(key, value []byte) (err error) {
	if value == nil {
		value = []byte{}
	}
	_, err = s.do("SET", key, value)
	return err
}

// Delete is implemented with the DEL command, whose reply is the number of
// keys removed.
func (s *RedisStore) Delete(key []byte) (removed bool, err error) {
	n, err := redis.Int(s.do("DEL", key))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Ping checks a connection to the server can be made and used.
func (s *RedisStore) Ping() error {
	_, err := s.do("PING")
	return err
}

// Close closes the pool and all its idle connections.
func (s *RedisStore) Close() error {
	return s.pool.Close()
}
