package redis

import (
	"fmt"

	"github.com/inkwell/inkwell-backend/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendRedis, func(cfg kv.Config) (kv.Store, error) {
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("kv: redis backend requires an address")
		}
		return NewStore(cfg.RedisAddr)
	})
}
