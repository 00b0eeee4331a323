package main

import (
	"errors"
	"os"
)

// envPrefix namespaces every face setting so the process can share an
// environment with other kilroy modules.
const envPrefix = "KILROY_FACE_DISCORD_"

// Config collects everything read from the environment.
type Config struct {
	Token             string
	ScrapingChannelID string
	PostingChannelID  string
	ScrapingType      string
	ScoringType       string
	Port              string
	Bucket            string
	LocalPath         string
	ModelsPath        string
	ModelsURL         string
	LogFormat         string
}

func env(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

// configFromEnv reads the face configuration. The shared FACE__CHANNEL_ID
// fills either channel role that has no override of its own.
func configFromEnv() (*Config, error) {
	cfg := &Config{
		Token:             env("FACE__TOKEN", ""),
		ScrapingChannelID: env("FACE__SCRAPING_CHANNEL_ID", ""),
		PostingChannelID:  env("FACE__POSTING_CHANNEL_ID", ""),
		ScrapingType:      env("FACE__SCRAPING_TYPE", ""),
		ScoringType:       env("FACE__SCORING_TYPE", ""),
		Port:              env("SERVER__PORT", "10000"),
		Bucket:            env("STORAGE__BUCKET", ""),
		LocalPath:         env("STORAGE__LOCAL_PATH", ""),
		ModelsPath:        env("MODELS__PATH", "./models"),
		ModelsURL:         env("MODELS__URL", ""),
		LogFormat:         os.Getenv("LOG_FORMAT"),
	}

	if shared := env("FACE__CHANNEL_ID", ""); shared != "" {
		if cfg.ScrapingChannelID == "" {
			cfg.ScrapingChannelID = shared
		}
		if cfg.PostingChannelID == "" {
			cfg.PostingChannelID = shared
		}
	}

	if cfg.Token == "" {
		return nil, errors.New("KILROY_FACE_DISCORD_FACE__TOKEN is required")
	}
	if cfg.ScrapingChannelID == "" || cfg.PostingChannelID == "" {
		return nil, errors.New("set KILROY_FACE_DISCORD_FACE__CHANNEL_ID or both per-role channel IDs")
	}

	return cfg, nil
}
