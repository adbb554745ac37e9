package main

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
)

// Config for the branch order console (ORDERWATCH_ prefix).
type Config struct {
	API      string        `default:"http://localhost:8080" usage:"Base URL of the foodcart API"`
	Token    string        `usage:"Seller session token" flag:"token"`
	Interval time.Duration `default:"5s" usage:"Poll interval"`
	Timeout  time.Duration `default:"10s" usage:"HTTP request timeout"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERWATCH",
		SkipFiles: true,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.Token == "" {
		return nil, errors.New("seller token is required: set --token or ORDERWATCH_TOKEN")
	}
	return &cfg, nil
}
