// Command toolchat runs the tool-orchestration service: an HTTP API that
// answers questions by letting a language model call the registered tools.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/effective-security/toolchat/config"
	"github.com/effective-security/toolchat/events"
	"github.com/effective-security/toolchat/httpserver"
	"github.com/effective-security/toolchat/inference"
	"github.com/effective-security/toolchat/orchestrator"
	"github.com/effective-security/toolchat/tools"
	"github.com/effective-security/toolchat/toolsvc/mathsvc"
	"github.com/effective-security/toolchat/toolsvc/weather"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolchat", "main")

const shutdownTimeout = 5 * time.Second

func main() {
	cfgFile := flag.String("cfg", "", "configuration file")
	listen := flag.String("listen", "", "override the listen address")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	if *debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		xlog.SetGlobalLogLevel(xlog.INFO)
	}

	if err := run(*cfgFile, *listen); err != nil {
		logger.KV(xlog.ERROR, "status", "failed", "err", err.Error())
		os.Exit(1)
	}
}

func run(cfgFile, listen string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	llm, err := inference.NewOpenAIClient(inference.OpenAIConfig{
		Token:   cfg.Inference.Token,
		Model:   cfg.Inference.Model,
		BaseURL: cfg.Inference.BaseURL,
	})
	if err != nil {
		return err
	}

	// the cache is optional: a missing or unreachable Redis degrades the
	// weather tool to uncached lookups and is reported by the health check
	var redisClient *redis.Client
	if cfg.Cache.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.KV(xlog.WARNING, "status", "cache_unreachable", "addr", cfg.Cache.Addr, "err", err.Error())
		}
		cancel()
		defer func() { _ = redisClient.Close() }()
	}

	sink := events.NewFanout(events.NewLogSink())
	if redisClient != nil && cfg.Cache.EventChannel != "" {
		sink.Add(events.NewRedisSink(redisClient, cfg.Cache.EventChannel))
	}

	var cache weather.Cache
	if redisClient != nil {
		cache = weather.NewRedisCache(redisClient, cfg.Cache.Prefix, weather.RetentionTTL(cfg.Cache.EntryTTL()))
	} else {
		cache = weather.NewMemoryCache(weather.RetentionTTL(cfg.Cache.EntryTTL()))
	}
	var source weather.Source = weather.NewSynthSource()
	if cfg.WeatherUpstream != "" {
		source = weather.NewUpstreamSource(cfg.WeatherUpstream)
	}

	registry := tools.NewRegistry(cfg.Tools...)
	svc := orchestrator.NewService(llm, registry, tools.NewInvoker(), sink)

	server := httpserver.New(cfg.Listen, svc, redisClient, map[string]http.Handler{
		"/tools/weather": weather.NewHandler(cache, source, cfg.Cache.EntryTTL(), sink),
		"/tools/math":    mathsvc.NewHandler(),
	})

	logger.KV(xlog.INFO,
		"status", "starting",
		"listen", cfg.Listen,
		"model", llm.ModelName(),
		"tools", registry.Names(),
		"cache", cfg.Cache.Enabled(),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.KV(xlog.INFO, "status", "shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
