// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Corphon/NovelForgeMCP/internal/utils"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// Env 进程启动时从环境读取的基础配置
type Env struct {
	Port             string        `env:"PORT" env-default:"8080"`
	DataDir          string        `env:"DATA_DIR" env-default:"data"`
	LogDir           string        `env:"LOG_DIR" env-default:"logs"`
	DebugMode        bool          `env:"DEBUG_MODE" env-default:"true"`
	AutosaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" env-default:"2m"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY" env-default:""`
	SecretKey        string        `env:"NOVELFORGE_SECRET" env-default:""`
}

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port             string        `json:"port"`
	DataDir          string        `json:"data_dir"`
	LogDir           string        `json:"log_dir"`
	DebugMode        bool          `json:"debug_mode"`
	AutosaveInterval time.Duration `json:"autosave_interval"`

	// 凭据加密密钥（不落盘）
	SecretKey string `json:"-"`

	// LLM相关配置
	// LLMConfig 中约定的键：api_key（密文落盘）、high_model、low_model、base_url
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`
}

// Load 从环境变量加载基础配置
func Load() (*Env, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	var env Env
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("读取环境配置失败: %w", err)
	}

	// 确保目录存在
	for _, dir := range []string{env.DataDir, env.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}

	return &env, nil
}

// InitConfig 初始化配置管理器
func InitConfig(env *Env) error {
	configFile = filepath.Join(env.DataDir, "config.json")

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:             env.Port,
		DataDir:          env.DataDir,
		LogDir:           env.LogDir,
		DebugMode:        env.DebugMode,
		AutosaveInterval: env.AutosaveInterval,
		SecretKey:        env.SecretKey,
		LLMProvider:      "google",
		LLMConfig: map[string]string{
			"api_key":    env.GeminiAPIKey,
			"high_model": "gemini-3-pro-preview",
			"low_model":  "gemini-2.5-flash",
		},
	}

	// 尝试合并文件中已保存的LLM设置（凭据、模型选择），基础配置始终以环境为准
	if data, err := os.ReadFile(configFile); err == nil {
		var savedConfig AppConfig
		if json.Unmarshal(data, &savedConfig) == nil {
			if savedConfig.LLMProvider != "" {
				currentConfig.LLMProvider = savedConfig.LLMProvider
			}
			if savedConfig.LLMConfig != nil {
				for k, v := range savedConfig.LLMConfig {
					if v != "" {
						currentConfig.LLMConfig[k] = v
					}
				}
			}
			// 落盘的凭据是密文，加载后解密回内存
			if enc := currentConfig.LLMConfig["api_key_enc"]; enc != "" && env.SecretKey != "" {
				if plain, err := utils.Decrypt(enc, env.SecretKey); err == nil {
					currentConfig.LLMConfig["api_key"] = plain
				}
			}
			delete(currentConfig.LLMConfig, "api_key_enc")
		}
	}

	return saveLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return nil
	}

	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置并落盘
func UpdateLLMConfig(provider string, llmConfig map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = llmConfig

	return saveLocked()
}

// saveLocked 保存当前配置到文件，调用方需持有写锁
func saveLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	dir := filepath.Dir(configFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	// 凭据不以明文落盘：配置了密钥时加密存储，否则干脆不写
	toSave := *currentConfig
	toSave.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		toSave.LLMConfig[k] = v
	}
	if apiKey := toSave.LLMConfig["api_key"]; apiKey != "" {
		delete(toSave.LLMConfig, "api_key")
		if currentConfig.SecretKey != "" {
			if enc, err := utils.Encrypt(apiKey, currentConfig.SecretKey); err == nil {
				toSave.LLMConfig["api_key_enc"] = enc
			}
		}
	}

	data, err := json.MarshalIndent(&toSave, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
