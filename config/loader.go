package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/ragpipe/types"
)

// Loader 统一配置加载器。
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("pipeline.yaml").
//	    WithEnvPrefix("RAGPIPE").
//	    Load()
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader 创建配置加载器。
func NewLoader() *Loader {
	return &Loader{envPrefix: "RAGPIPE"}
}

// WithConfigPath 指定 YAML 配置文件路径。
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 指定环境变量前缀。
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load 按 默认值 → YAML → 环境变量 的优先级加载并校验配置。
func (l *Loader) Load() (PipelineConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return PipelineConfig{}, types.WrapError(types.ErrConfigInvalid,
				fmt.Sprintf("read config file %s", l.configPath), err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return PipelineConfig{}, types.WrapError(types.ErrConfigInvalid,
				fmt.Sprintf("parse config file %s", l.configPath), err)
		}
	}

	l.applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}

// LoadBytes 从内存中的 YAML 加载并校验配置（测试与嵌入场景）。
func LoadBytes(data []byte) (PipelineConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PipelineConfig{}, types.WrapError(types.ErrConfigInvalid, "parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖。只覆盖标量生成/缓存参数，
// 检索器集合属于结构性配置，只能来自文件。
func (l *Loader) applyEnv(cfg *PipelineConfig) {
	if v, ok := l.lookup("COLLECTION"); ok {
		cfg.Collection = v
	}
	if v, ok := l.lookup("MAX_CONTENT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generate.MaxContent = n
		}
	}
	if v, ok := l.lookup("CHAIN_TYPE"); ok {
		cfg.Generate.ChainType = v
	}
	if v, ok := l.lookup("PROMPT_TYPE"); ok {
		cfg.Generate.PromptType = v
	}
	if v, ok := l.lookup("SORT_BY_SOURCE_AND_INDEX"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PostRetrieval.SortBySourceAndIndex = b
		}
	}
	if v, ok := l.lookup("FAILURE_POLICY"); ok {
		cfg.FailurePolicy = FailurePolicy(v)
	}
	if v, ok := l.lookup("CACHE_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v, ok := l.lookup("CACHE_ADDR"); ok {
		cfg.Cache.Addr = v
	}
	if v, ok := l.lookup("CACHE_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
}

func (l *Loader) lookup(key string) (string, bool) {
	return os.LookupEnv(l.envPrefix + "_" + strings.ToUpper(key))
}
