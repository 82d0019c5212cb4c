package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type runtimeKind string

const (
	runtimeLambda = runtimeKind("aws-lambda")
	runtimeAzure  = runtimeKind("azure-functions")
	runtimeHTTP   = runtimeKind("http")

	shutdownTimeout = 10 * time.Second
)

// detectRuntime picks the serverless adapter from the variables each
// platform sets for its workers.
func detectRuntime(lookup func(string) (string, bool)) (runtimeKind, string) {
	if v, ok := lookup("AWS_LAMBDA_RUNTIME_API"); ok && v != "" {
		return runtimeLambda, ""
	}
	if port, ok := lookup("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && port != "" {
		return runtimeAzure, ":" + port
	}
	if port, ok := lookup("PORT"); ok && port != "" {
		return runtimeHTTP, ":" + port
	}
	return runtimeHTTP, ":8080"
}

// serve hands the router to the detected runtime and blocks until it stops.
func serve(ctx context.Context, e *echo.Echo, lookup func(string) (string, bool)) error {
	kind, addr := detectRuntime(lookup)
	log.WithFields(log.Fields{"runtime": kind, "addr": addr}).Info("notes api starting")

	if kind == runtimeLambda {
		// API Gateway proxy events are translated into requests for e.
		lambda.StartWithOptions(echoadapter.New(e).ProxyWithContext, lambda.WithContext(ctx))
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}

// redisOptions accepts either a redis:// URL or the Azure Cache
// "host:port,password=...,ssl=True" form.
func redisOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}
