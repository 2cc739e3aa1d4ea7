package app

import (
	"fmt"

	"github.com/hashicorp/raft"
	"github.com/moontrade/tt800/logger"
)

func storeInit(conf Config, dir string) (raft.LogStore, raft.StableStore) {
	switch conf.Backend {
	case MDBX:
		store, err := openMDBXStore(dir, conf.NoSync, 0755)
		if err != nil {
			logger.Fatal(fmt.Errorf("mdbx store open: %w", err))
		}
		return store, store
	case Memory:
		logger.Warn("using the memory backend, the raft log is lost on exit")
		store := raft.NewInmemStore()
		return store, store
	default:
		logger.Fatal(fmt.Errorf("invalid backend: %d", conf.Backend))
	}
	return nil, nil
}
