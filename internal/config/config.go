// Package config parses the broker's CLI surface (spec.md §6), using the
// standard flag package exactly as go-server/cmd/main.go does — the flag
// set here is fixed and small enough that reaching for viper or
// caarlos0/env (as the pack's other variants do) would add a dependency
// with no load-bearing benefit; see DESIGN.md.
package config

import (
	"flag"
	"fmt"
	"io"

	"stomp-broker/internal/store"
)

// Config is the parsed CLI surface: the STOMP listen port, the HTTP
// observability port, the log level, and the MySQL connection the
// Persistence Adapter uses.
type Config struct {
	Port        int
	MetricsPort int
	LogLevel    string
	DB          store.Config
}

// Parse parses args (normally os.Args[1:]) against the flags spec.md §6
// names, plus -metricsport and -loglevel. Database password and socket directory are bound to distinct
// fields — spec.md §9.5's documented collision bug, fixed here.
func Parse(args []string, output io.Writer) (Config, error) {
	fs := flag.NewFlagSet("stomp-broker", flag.ContinueOnError)
	fs.SetOutput(output)

	var cfg Config
	fs.IntVar(&cfg.Port, "port", 44444, "STOMP listen port")
	fs.IntVar(&cfg.MetricsPort, "metricsport", 9090, "HTTP health/metrics listen port")
	fs.StringVar(&cfg.LogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.DB.Host, "dbhost", "127.0.0.1", "database host")
	fs.IntVar(&cfg.DB.Port, "dbport", 3306, "database port")
	fs.StringVar(&cfg.DB.Database, "dbdatabase", "stomp", "database name")
	fs.StringVar(&cfg.DB.SockDir, "dbsockdir", "", "path of the database unix socket (overrides dbhost/dbport when set)")
	fs.StringVar(&cfg.DB.User, "dbuser", "stomp", "database user")
	fs.StringVar(&cfg.DB.Password, "dbpassword", "", "database password")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		fs.Usage()
		return Config{}, fmt.Errorf("config: unrecognized arguments: %v", rest)
	}
	return cfg, nil
}
