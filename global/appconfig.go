package global

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"MGProject/service/storage"
	"MGProject/tools/decode"
)

// AppConfig 服务配置；yaml 文件 + 环境变量覆盖
type AppConfig struct {
	Port int `yaml:"port"` // http 启动端口

	Store struct {
		Backend   string        `yaml:"backend"` // redis / memory
		OpTimeout time.Duration `yaml:"op_timeout"`
	} `yaml:"store"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Nats struct {
		Servers []string `yaml:"servers"`
		Subject string   `yaml:"subject"`
	} `yaml:"nats"`

	Mongo struct {
		Uri      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	Jwt struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`

	Coalescer struct {
		FlushInterval time.Duration `yaml:"flush_interval"` // 周期兜底刷盘
		WriteDelay    time.Duration `yaml:"write_delay"`    // 档案写合并窗口
	} `yaml:"coalescer"`

	NodeID int64 `yaml:"node_id"` // 雪花节点号
}

// DefaultConfig 本地联调默认值
func DefaultConfig() *AppConfig {
	cfg := &AppConfig{Port: 30080, NodeID: 1}
	cfg.Store.Backend = storage.BackendMemory
	cfg.Store.OpTimeout = storage.DefaultOpTimeout
	cfg.Redis.Addr = "127.0.0.1:6379"
	cfg.Redis.PoolSize = 20
	cfg.Nats.Subject = "social.notify"
	cfg.Mongo.Database = "social"
	cfg.Jwt.Secret = "dev-secret-do-not-use"
	cfg.Coalescer.FlushInterval = 30 * time.Second
	cfg.Coalescer.WriteDelay = 2 * time.Second
	return cfg
}

// LoadConfig 读取 yaml 配置；path 为空或文件不存在时退回默认值。
// 环境变量 MG_REDIS_ADDR / MG_JWT_SECRET / MG_MONGO_URI 优先级最高。
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			m := map[string]any{}
			if err := yaml.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
			decoded, err := decode.DecodeMap[AppConfig](m)
			if err != nil {
				return nil, err
			}
			applyLoaded(cfg, decoded)
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if v := os.Getenv("MG_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MG_JWT_SECRET"); v != "" {
		cfg.Jwt.Secret = v
	}
	if v := os.Getenv("MG_MONGO_URI"); v != "" {
		cfg.Mongo.Uri = v
	}
	return cfg, nil
}

// applyLoaded 文件里配置过的字段覆盖默认值，零值字段保留默认
func applyLoaded(dst, src *AppConfig) {
	if src.Port > 0 {
		dst.Port = src.Port
	}
	if src.Store.Backend != "" {
		dst.Store.Backend = src.Store.Backend
	}
	if src.Store.OpTimeout > 0 {
		dst.Store.OpTimeout = src.Store.OpTimeout
	}
	if src.Redis.Addr != "" {
		dst.Redis.Addr = src.Redis.Addr
	}
	if src.Redis.Password != "" {
		dst.Redis.Password = src.Redis.Password
	}
	if src.Redis.DB != 0 {
		dst.Redis.DB = src.Redis.DB
	}
	if src.Redis.PoolSize > 0 {
		dst.Redis.PoolSize = src.Redis.PoolSize
	}
	if len(src.Nats.Servers) > 0 {
		dst.Nats.Servers = src.Nats.Servers
	}
	if src.Nats.Subject != "" {
		dst.Nats.Subject = src.Nats.Subject
	}
	if src.Mongo.Uri != "" {
		dst.Mongo.Uri = src.Mongo.Uri
	}
	if src.Mongo.Database != "" {
		dst.Mongo.Database = src.Mongo.Database
	}
	if src.Jwt.Secret != "" {
		dst.Jwt.Secret = src.Jwt.Secret
	}
	if src.Coalescer.FlushInterval > 0 {
		dst.Coalescer.FlushInterval = src.Coalescer.FlushInterval
	}
	if src.Coalescer.WriteDelay > 0 {
		dst.Coalescer.WriteDelay = src.Coalescer.WriteDelay
	}
	if src.NodeID > 0 {
		dst.NodeID = src.NodeID
	}
}
