package memory

import "github.com/inkwell/inkwell-backend/pkg/kv"

func init() {
	kv.RegisterBackend(kv.BackendMemory, func(cfg kv.Config) (kv.Store, error) {
		if cfg.JanitorInterval > 0 {
			return NewStoreWithJanitor(cfg.JanitorInterval), nil
		}
		return NewStore(), nil
	})
}
