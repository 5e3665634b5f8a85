package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/flagx"
)

var knownFlags = []string{"-d", "-r", "-u", "-i", "-s", "-l", "-m"}

// parseFlags overrides cfg with the flags present in args. Flags that are not
// given keep the value from earlier sources.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	cacheDSN := fs.String("d", cfg.CacheDSN, "local cache database file")
	remoteDSN := fs.String("r", cfg.RemoteDSN, "remote store DSN")
	userID := fs.String("u", cfg.UserID, "user id used without a session token")
	onlineCheck := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	syncEvery := fs.Int("s", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	logLevel := fs.String("l", cfg.LogLevel, "log level")
	metricsAddr := fs.String("m", cfg.MetricsAddress, "metrics listen address")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "d":
			cfg.CacheDSN = *cacheDSN
		case "r":
			cfg.RemoteDSN = *remoteDSN
		case "u":
			cfg.UserID = *userID
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*onlineCheck) * time.Second
		case "s":
			cfg.SyncInterval = time.Duration(*syncEvery) * time.Second
		case "l":
			cfg.LogLevel = *logLevel
		case "m":
			cfg.MetricsAddress = *metricsAddr
			cfg.MetricsEnabled = true
		}
	})
	return nil
}
