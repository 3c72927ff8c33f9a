package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"labelflow/internal/alerts"
	"labelflow/internal/authz"
	"labelflow/internal/config"
	"labelflow/internal/logging"
	"labelflow/internal/notifications"
	"labelflow/internal/objectstore"
	"labelflow/internal/pipeline"
	"labelflow/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the store for the duration of one command.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

// withRunner wires the full pipeline stack on top of an open store.
func (c *commandContext) withRunner(fn func(*config.Config, *store.Store, *pipeline.Runner) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		logger, err := c.newLogger(cfg)
		if err != nil {
			return err
		}
		notifier := notifications.NewService(cfg)
		alertSvc := alerts.NewService(st, notifier, logger)
		mover := objectstore.NewLocal(cfg)
		runner := pipeline.NewRunner(st, mover, authz.AllowAll(), alertSvc, notifier, cfg, logger)
		return fn(cfg, st, runner)
	})
}

func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.NewFromConfig(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
