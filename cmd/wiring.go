package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/ai"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/chat"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/config"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/responder"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/seen"
)

func buildResponder(cfg *config.AppConfig) (*responder.Responder, error) {
	rules := responder.DefaultRules()
	if cfg.Responder.RulesFile != "" {
		var err error
		rules, err = responder.LoadRules(cfg.Responder.RulesFile)
		if err != nil {
			return nil, err
		}
	}
	rules.OnNoMatch = responder.NoMatchPolicy(cfg.Responder.OnNoMatch)
	rules.OnAIError = responder.AIErrorPolicy(cfg.Responder.OnAIError)
	rules.MaxTokens = cfg.OpenAI.MaxTokens

	var completer ai.Completer
	if cfg.OpenAI.APIKey != "" {
		c, err := ai.NewOpenAIClient(ai.OpenAIOptions{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
		})
		if err != nil {
			return nil, err
		}
		completer = c
	}

	logger.Log.Info("responder_ready",
		zap.Int("rules", len(rules.Rules)),
		zap.String("on_no_match", string(rules.OnNoMatch)),
		zap.String("on_ai_error", string(rules.OnAIError)),
	)
	return responder.New(rules, completer)
}

// buildRepo opens Postgres when DATABASE_URL is set. The returned func
// closes whatever was opened.
func buildRepo(ctx context.Context, cfg *config.AppConfig) (chat.Repo, func(), error) {
	if cfg.Database.URL == "" {
		logger.Log.Info("database_disabled")
		return chat.NopRepo{}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if err := chat.EnsureSchema(pctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db schema: %w", err)
	}

	return chat.NewRepo(db), func() { _ = db.Close() }, nil
}

// buildSeen returns the shared Redis seen store when configured, else nil.
func buildSeen(ctx context.Context, cfg *config.AppConfig) (seen.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}, nil
	}
	r, err := seen.NewRedis(ctx, seen.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
		TTL:      cfg.Redis.TTL,
	})
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}
