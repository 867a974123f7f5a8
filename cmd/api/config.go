package main

import (
	"errors"
	"fmt"

	"github.com/fastprodman/ledgerengine/internal/config"
)

type apiConfig struct {
	config.App
	Postgres   config.PostgresConfig
	Engine     config.Engine
	DeadLetter config.DeadLetter
}

func (c *apiConfig) validate() error {
	err := errors.Join(c.Engine.Validate(), c.DeadLetter.Validate())
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}
