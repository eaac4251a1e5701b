package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		DatabaseURL      string   `env:"DATABASE_URL,required"`
		AdminIDs         []int64  `env:"ADMIN_IDS"`
		DefaultLanguage  string   `env:"LANG,default=en"`
		EnabledHandlers  []string `env:"HANDLERS,default=admin,gatekeeper,contentfilter"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		Scheduler        Scheduler
	}

	Scheduler struct {
		PollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL,default=15s"`
		ClaimLimit   int           `env:"SCHEDULER_CLAIM_LIMIT,default=100"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("MH_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

// IsSuperAdmin reports whether the user id is in the configured super-admin set.
func (c Config) IsSuperAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
