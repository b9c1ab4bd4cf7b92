package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/advisorkit/consultant-backend/internal/logger"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

// Setting keys read by the retrieval engine. Values live in the settings
// table so the consultant can tune behavior without a redeploy.
const (
	SettingRAGSystemPrompt = "rag_system_prompt"
	SettingRAGSearchChats  = "rag_search_chats"
)

// settingsCacheTTL keeps Redis lookups cheap without making stale values
// linger past a tuning session.
const settingsCacheTTL = 30 * time.Second

// SettingsService reads and writes runtime settings, with an optional
// short-lived Redis cache in front of the table. A nil Redis client disables
// caching entirely.
type SettingsService interface {
	Get(ctx context.Context, key string) (string, bool, error)
	GetBool(ctx context.Context, key string, def bool) (bool, error)
	Set(ctx context.Context, key, value string, description *string) error
	List(ctx context.Context) ([]*types.Setting, error)
}

type settingsService struct {
	repo  repos.SettingRepo
	cache *redis.Client
	log   *logger.Logger
}

func NewSettingsService(repo repos.SettingRepo, cache *redis.Client, log *logger.Logger) SettingsService {
	return &settingsService{
		repo:  repo,
		cache: cache,
		log:   log.With("service", "SettingsService"),
	}
}

func cacheKey(key string) string { return "settings:" + key }

func (s *settingsService) Get(ctx context.Context, key string) (string, bool, error) {
	if s.cache != nil {
		if val, err := s.cache.Get(ctx, cacheKey(key)).Result(); err == nil {
			return val, true, nil
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn("settings cache read failed", "key", key, "error", err.Error())
		}
	}

	setting, err := s.repo.Get(ctx, nil, key)
	if err != nil {
		if errors.Is(err, pkgerr.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(key), setting.Value, settingsCacheTTL).Err(); err != nil {
			s.log.Warn("settings cache write failed", "key", key, "error", err.Error())
		}
	}
	return setting.Value, true, nil
}

func (s *settingsService) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	if parsed, perr := strconv.ParseBool(val); perr == nil {
		return parsed, nil
	}
	return def, nil
}

func (s *settingsService) Set(ctx context.Context, key, value string, description *string) error {
	if err := s.repo.Set(ctx, nil, key, value, description); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey(key)).Err(); err != nil {
			s.log.Warn("settings cache invalidation failed", "key", key, "error", err.Error())
		}
	}
	return nil
}

func (s *settingsService) List(ctx context.Context) ([]*types.Setting, error) {
	return s.repo.List(ctx, nil)
}
