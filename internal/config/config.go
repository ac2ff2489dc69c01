// Package config 负责集中式配置加载：引擎下发的连接器属性，以及服务进程自身的配置。
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量前缀，例如 BRIDGE_SQLITE_DB 覆盖 sqlite.db。
const EnvPrefix = "BRIDGE"

// 属性键
const (
	KeyConnectorName = "connector.name"
	KeySQLiteDB      = "sqlite.db"
	KeyHTTPAddr      = "server.http_addr"
	KeyGRPCAddr      = "server.grpc_addr"
	KeyLogLevel      = "server.log_level"
	KeyPprofAddr     = "server.pprof_addr"
	KeyRateLimit     = "server.rate_limit"
	KeyRateBurst     = "server.rate_burst"
	KeyWatchStore    = "server.watch_store"
)

type ConnectorConfig struct {
	Name string `mapstructure:"name" validate:"omitempty,eq=sqlite"`
}

type SQLiteConfig struct {
	DB string `mapstructure:"db" validate:"required"`
}

type ServerConfig struct {
	HTTPAddr   string  `mapstructure:"http_addr"`
	GRPCAddr   string  `mapstructure:"grpc_addr"`
	LogLevel   string  `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	PprofAddr  string  `mapstructure:"pprof_addr"`
	RateLimit  float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst  int     `mapstructure:"rate_burst" validate:"gte=0"`
	WatchStore bool    `mapstructure:"watch_store"`
}

// Config 是完整配置。
type Config struct {
	Connector ConnectorConfig `mapstructure:"connector"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Server    ServerConfig    `mapstructure:"server"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息里使用属性键而不是 Go 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// newViper 创建带默认值的 viper 实例。所有键都必须有默认值，AutomaticEnv 才能在 Unmarshal 时生效。
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyConnectorName, domain.ConnectorName)
	v.SetDefault(KeySQLiteDB, "")
	v.SetDefault(KeyHTTPAddr, ":10224")
	v.SetDefault(KeyGRPCAddr, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyPprofAddr, "")
	v.SetDefault(KeyRateLimit, 20.0)
	v.SetDefault(KeyRateBurst, 40)
	v.SetDefault(KeyWatchStore, false)
	return v
}

// FromProperties 由引擎下发的属性构造配置。只做解析与校验，不访问任何文件。
func FromProperties(props map[string]string) (*Config, error) {
	v := newViper()
	for key, value := range props {
		v.Set(strings.ToLower(strings.TrimSpace(key)), value)
	}
	return decode(v)
}

// Load 读取配置文件 (.properties / .yaml / .json 等 viper 支持的格式)，再叠加环境变量。
// path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: 读取配置文件 '%s' 失败: %w", port.ErrConfiguration, path, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: 解析配置失败: %w", port.ErrConfiguration, err)
	}
	cfg.SQLite.DB = strings.TrimSpace(cfg.SQLite.DB)
	cfg.Server.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Server.LogLevel))

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", port.ErrConfiguration, describe(err))
	}
	return &cfg, nil
}

// describe 把校验错误转换成以属性键表述的提示。
func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s 是必填项", key))
		case "eq", "oneof":
			msgs = append(msgs, fmt.Sprintf("%s 的值 %q 无效，可选值: %s", key, fe.Value(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s 不满足约束 %s=%s", key, fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}
