package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const envVarPrefix = "GEEFS"

// Config holds the defaults for new images and snapshots. Every field can be
// set from the environment and most are overridden by command line flags.
type Config struct {
	BlockSize   uint32 `envconfig:"BLOCK_SIZE"   default:"512"`
	FreeMaps    uint32 `envconfig:"FREE_MAPS"    default:"1"`
	InodeBlocks uint32 `envconfig:"INODE_BLOCKS" default:"4"`
	LogLevel    string `envconfig:"LOG_LEVEL"    default:"info"`
	Compression string `envconfig:"COMPRESSION"  default:"zstd"`
}

func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return nil, fmt.Errorf("loading config from environment: %s_LOG_LEVEL: %w", envVarPrefix, err)
	}
	return &c, nil
}
