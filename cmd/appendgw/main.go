package main

import (
	"flag"
	"os"
	"os/signal"

	"github.com/google/gops/agent"
	"github.com/nicolagi/appendgw/gateway"
	"github.com/nicolagi/appendgw/server"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

func main() {
	os.Exit(run())
}

func run() int {
	defaultConfigFile := os.ExpandEnv("$HOME/lib/appendgw/appendgw.config")
	configFile := flag.String("config", defaultConfigFile, "location of configuration file")
	flag.Parse()

	c, err := loadConfig(*configFile)
	if os.IsNotExist(err) && *configFile == defaultConfigFile {
		log.WithField("path", *configFile).Debug("No configuration file, using defaults")
		c, err = new(config), nil
	}
	if err != nil {
		log.WithFields(log.Fields{
			"err":  err,
			"path": *configFile,
		}).Error("Could not load configuration")
		return 1
	}
	c.applyDefaultsForMissingProperties()
	if err := c.applyEnvironment(os.Getenv); err != nil {
		log.WithField("err", err).Error("Bad environment")
		return 1
	}

	if c.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := agent.Listen(agent.Options{}); err != nil {
		log.WithField("err", err).Warn("Could not start gops agent")
	} else {
		defer agent.Close()
	}

	store, closeStore, err := openStore(c)
	if err != nil {
		log.WithField("err", err).Error("Could not open store")
		return 1
	}

	srv := server.New(
		server.WithAddress(c.listenAddress()),
		server.WithName(c.Name),
		server.WithGateway(gateway.New(store)),
	)
	addr, err := srv.Listen()
	if err != nil {
		log.WithFields(log.Fields{
			"err":  err,
			"addr": c.listenAddress(),
		}).Error("Could not listen")
		_ = closeStore()
		return 1
	}
	log.WithFields(log.Fields{
		"name": c.Name,
		"addr": addr,
	}).Info("Listening")

	// Before we call srv.Serve(), which never returns unless srv.Shutdown() is
	// called, we need to install a signal handler to call srv.Shutdown().
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, unix.SIGTERM)
	go func() {
		sig := <-sigc
		log.WithField("signal", sig).Info("Shutting down server")
		if err := srv.Shutdown(); err != nil {
			log.WithFields(log.Fields{"err": err}).Warn("Could not shut down the server cleanly")
		}
	}()

	return exitStatus(srv.Serve(), closeStore)
}

// exitStatus closes the store once serving has ended, and says how the
// process should exit: 1 if either serving or closing failed, 0 otherwise.
func exitStatus(serveErr error, closeStore func() error) int {
	status := 0
	if serveErr != nil {
		log.WithField("err", serveErr).Error("Could not serve")
		status = 1
	}
	if err := closeStore(); err != nil {
		log.WithField("err", err).Error("Could not close store")
		return 1
	}
	log.Info("Store closed")
	return status
}
