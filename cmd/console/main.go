package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/customs-console/internal/config"
	consolelog "github.com/jrsteele09/customs-console/internal/log"
	"github.com/jrsteele09/customs-console/server"
	"github.com/jrsteele09/customs-console/server/authflowrepo"
	"github.com/jrsteele09/customs-console/sessions"
	"github.com/jrsteele09/customs-console/sessions/filestore"
	"github.com/jrsteele09/customs-console/sessions/redisstore"
	"github.com/rs/zerolog"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running console: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Console stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	logger := consolelog.New(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	repo, closeRepo, err := sessionRepo(c, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	// The stored session must be restored before the first request is served.
	session, err := sessions.NewState(repo, sessions.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("sessions.NewState: %w", err)
	}
	if err := session.LoadFromStorage(); err != nil {
		logger.Warn().Err(err).Msg("stored session discarded")
	}

	console, err := server.New(c, session, authflowrepo.NewInMemoryRepo(authflowrepo.DefaultTTL, time.Now), server.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	defer console.Close()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: console}
	go func() {
		if err := listenAndServe(httpServer); err != nil {
			logger.Error().Err(err).Msg("console stopped serving")
		}
	}()
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// sessionRepo opens the configured session store. The returned func releases
// it.
func sessionRepo(c config.Config, logger zerolog.Logger) (sessions.Repo, func(), error) {
	switch c.GetSessionStore() {
	case config.StoreRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := redisstore.NewRedisClient(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, fmt.Errorf("redisstore.NewRedisClient: %w", err)
		}
		logger.Info().Str("addr", c.GetRedisAddr()).Msg("session store: redis")
		return redisstore.New(client, c.GetRedisKeyPrefix()), func() { _ = client.Close() }, nil
	case config.StoreMemory:
		logger.Info().Msg("session store: memory, the session is lost on restart")
		return sessions.NewInMemoryRepo(), func() {}, nil
	default:
		key, err := c.GetSessionKey()
		if err != nil {
			return nil, nil, fmt.Errorf("config.GetSessionKey: %w", err)
		}
		store, err := filestore.New(c.GetSessionFile(), key, filestore.WithLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("filestore.New: %w", err)
		}
		logger.Info().Str("path", c.GetSessionFile()).Msg("session store: file")
		return store, func() {}, nil
	}
}

func listenAndServe(server *http.Server) error {
	log.Printf("Console listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
