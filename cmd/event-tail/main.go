package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
	"github.com/slanderboard/internal/kafka"
)

// printer writes each ledger event as a JSON line
type printer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	kinds   map[domain.LedgerEventKind]bool
	printed atomic.Int64
}

func (p *printer) HandleEvents(_ context.Context, events []domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, event := range events {
		if len(p.kinds) > 0 && !p.kinds[event.Kind] {
			continue
		}
		if err := p.enc.Encode(event); err != nil {
			return err
		}
		p.printed.Add(1)
	}
	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	brokers := flag.String("brokers", "", "Kafka brokers (comma-separated), overrides config")
	topic := flag.String("topic", "", "Kafka topic, overrides config")
	group := flag.String("group", "", "Consumer group, overrides config")
	kinds := flag.String("kinds", "", "Only print these event kinds (comma-separated)")
	fromOldest := flag.Bool("from-beginning", false, "Replay the topic from the oldest offset")
	flag.Parse()

	// stdout carries the events, logs go to stderr
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *brokers != "" {
		cfg.Kafka.Brokers = strings.Split(*brokers, ",")
	}
	if *topic != "" {
		cfg.Kafka.Topic = *topic
	}
	if *group != "" {
		cfg.Kafka.GroupID = *group
	}

	p := &printer{enc: json.NewEncoder(os.Stdout), kinds: map[domain.LedgerEventKind]bool{}}
	for _, k := range strings.Split(*kinds, ",") {
		if k = strings.TrimSpace(k); k != "" {
			p.kinds[domain.LedgerEventKind(k)] = true
		}
	}

	consumer, err := kafka.NewConsumer(&cfg.Kafka, p, *fromOldest, logger)
	if err != nil {
		logger.Error("failed to create consumer", "error", err)
		os.Exit(1)
	}
	if err := consumer.Start(); err != nil {
		logger.Error("failed to start consumer", "error", err)
		os.Exit(1)
	}

	start := time.Now()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := consumer.Stop(); err != nil {
		logger.Error("failed to stop consumer", "error", err)
	}
	fmt.Fprintf(os.Stderr, "printed %d events in %s\n", p.printed.Load(), time.Since(start).Round(time.Second))
}
