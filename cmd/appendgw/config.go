package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rogpeppe/rjson"
)

type config struct {
	Name  string `json:"name"`
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Debug bool   `json:"debug"`

	Store struct {
		Type string `json:"type"`

		// Properties for "redis" type. The URL wins over host and port.
		URL     string `json:"url"`
		Host    string `json:"host"`
		Port    int    `json:"port"`
		Timeout string `json:"timeout"`

		// Properties for "bolt" and "disk" types.
		Path string `json:"path"`

		// Properties for "s3" and "dynamodb" types.
		Profile string `json:"profile"`
		Region  string `json:"region"`
		Bucket  string `json:"bucket"`
		Table   string `json:"table"`
	} `json:"store"`
}

func loadConfig(pathname string) (*config, error) {
	f, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	var c *config
	err = rjson.NewDecoder(f).Decode(&c)
	if err == nil && c == nil {
		c = new(config)
	}
	return c, err
}

func (c *config) applyDefaultsForMissingProperties() {
	if c.Name == "" {
		c.Name = "appendgw"
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.Store.Type == "" {
		c.Store.Type = "redis"
	}
	if c.Store.Host == "" {
		c.Store.Host = "localhost"
	}
	if c.Store.Port == 0 {
		c.Store.Port = 6379
	}
	if c.Store.Path == "" {
		switch c.Store.Type {
		case "bolt":
			c.Store.Path = "$HOME/lib/appendgw/data.db"
		case "disk":
			c.Store.Path = "$HOME/lib/appendgw/data"
		}
	}
}

// applyEnvironment lets REDIS_URL, HOST and PORT override the configuration
// file.
func (c *config) applyEnvironment(getenv func(string) string) error {
	if v := getenv("REDIS_URL"); v != "" {
		c.Store.URL = v
	}
	if v := getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT=%q: %w", v, err)
		}
		c.Port = port
	}
	return nil
}

func (c *config) listenAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// redisURL assumes the redis scheme for a URL given without one, e.g.,
// "cache.internal:6379".
func (c *config) redisURL() string {
	if c.Store.URL != "" {
		if !strings.Contains(c.Store.URL, "://") {
			return "redis://" + c.Store.URL
		}
		return c.Store.URL
	}
	return "redis://" + net.JoinHostPort(c.Store.Host, strconv.Itoa(c.Store.Port))
}

func (c *config) storeTimeout() (time.Duration, error) {
	if c.Store.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Store.Timeout)
}
