package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/cryptomonkeys/go-monkeychain/journal"
	"github.com/cryptomonkeys/go-monkeychain/ledger"
	"github.com/cryptomonkeys/go-monkeychain/node"
)

// config is the resolved daemon configuration. Values come from
// monkeyd.yaml, MONKEYD_* environment variables, and flags, in rising
// precedence.
type config struct {
	Listen      string
	Journal     string
	JournalPath string
	JournalDSN  string
	Stream      string
	Owner       string
	MarketID    string
	Gen0Limit   uint
	Entropy     uint64
	LogLevel    string
}

func loadConfig(args []string, name string) (config, error) {
	v := viper.New()
	v.SetEnvPrefix("MONKEYD")
	v.AutomaticEnv()
	v.SetConfigName("monkeyd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("listen", ":8090")
	v.SetDefault("journal", "memory")
	v.SetDefault("journal_path", "monkeychain.db")
	v.SetDefault("journal_dsn", "")
	v.SetDefault("stream", node.DefaultStream)
	v.SetDefault("owner", "0x1")
	v.SetDefault("market_id", "market")
	v.SetDefault("gen0_limit", ledger.DefaultGen0Limit)
	v.SetDefault("entropy", 0)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	listen := fs.String("listen", v.GetString("listen"), "HTTP listen address")
	backend := fs.String("journal", v.GetString("journal"), "Journal backend: memory, sqlite, or postgres")
	path := fs.String("journal-path", v.GetString("journal_path"), "SQLite journal file")
	dsn := fs.String("journal-dsn", v.GetString("journal_dsn"), "Postgres journal DSN")
	stream := fs.String("stream", v.GetString("stream"), "Journal stream name")
	owner := fs.String("owner", v.GetString("owner"), "Registry owner identity")
	marketID := fs.String("market-id", v.GetString("market_id"), "Marketplace identity")
	gen0 := fs.Uint("gen0-limit", v.GetUint("gen0_limit"), "Generation-0 mint cap")
	entropy := fs.Uint64("entropy", v.GetUint64("entropy"), "Gene mixing entropy seed")
	level := fs.String("log-level", v.GetString("log_level"), "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	return config{
		Listen:      *listen,
		Journal:     *backend,
		JournalPath: *path,
		JournalDSN:  *dsn,
		Stream:      *stream,
		Owner:       *owner,
		MarketID:    *marketID,
		Gen0Limit:   *gen0,
		Entropy:     *entropy,
		LogLevel:    *level,
	}, nil
}

func (c config) logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func (c config) openStore() (journal.Store, error) {
	switch c.Journal {
	case "memory":
		return journal.NewMemoryStore(), nil
	case "sqlite":
		return journal.NewSQLiteStore(c.JournalPath)
	case "postgres":
		if c.JournalDSN == "" {
			return nil, errors.New("postgres journal requires --journal-dsn")
		}
		return journal.NewPostgresStore(context.Background(), c.JournalDSN)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", c.Journal)
	}
}

func (c config) nodeConfig(store journal.Store, metrics *node.Metrics) node.Config {
	return node.Config{
		Registry: ledger.RegistryConfig{
			Owner:     ledger.Identity(c.Owner),
			Gen0Limit: uint32(c.Gen0Limit),
			Entropy:   c.Entropy,
		},
		MarketID: ledger.Identity(c.MarketID),
		Store:    store,
		Stream:   c.Stream,
		Logger:   c.logger(),
		Metrics:  metrics,
	}
}
