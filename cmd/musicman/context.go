package main

import (
	"context"
	"strings"
	"sync"

	"github.com/Beau253/MusicManager/internal/app"
	"github.com/Beau253/MusicManager/internal/config"
	"github.com/Beau253/MusicManager/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
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
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

// withApp builds the full composition root for the duration of one
// command.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(application)
}

// withLockedApp additionally takes the single-instance lock; pipeline
// runs use it so two commands never share the download directory.
func (c *commandContext) withLockedApp(ctx context.Context, fn func(*app.App) error) error {
	return c.withApp(ctx, func(application *app.App) error {
		if err := application.Lock(); err != nil {
			return err
		}
		defer application.Unlock()
		return fn(application)
	})
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
