package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/hashicorp/raft"
	"github.com/moontrade/mdbx-go"
	"github.com/moontrade/tt800/logger"
)

var errPathNotDir = errors.New("path is not a directory")

const (
	kilobyte = 1024
	megabyte = 1024 * kilobyte
	gigabyte = 1024 * megabyte

	mdbxLogFlags = mdbx.EnvNoMetaSync |
		mdbx.EnvNoTLS |
		mdbx.EnvWriteMap |
		mdbx.EnvLIFOReclaim |
		mdbx.EnvNoMemInit |
		mdbx.EnvCoalesce

	mdbxStableFlags = mdbx.EnvSyncDurable |
		mdbx.EnvNoTLS |
		mdbx.EnvWriteMap |
		mdbx.EnvLIFOReclaim |
		mdbx.EnvNoMemInit |
		mdbx.EnvCoalesce

	mdbxNoSyncFlags = mdbx.EnvSafeNoSync |
		mdbx.EnvNoTLS |
		mdbx.EnvWriteMap |
		mdbx.EnvLIFOReclaim |
		mdbx.EnvNoMemInit |
		mdbx.EnvCoalesce

	raftStableDBI   = "raftstable"
	raftLogDBI      = "raftlog"
	keyCurrentTerm  = "CurrentTerm"
	keyLastVoteTerm = "LastVoteTerm"
	keyLastVoteCand = "LastVoteCand"
)

var (
	_ raft.LogStore    = (*mdbxStore)(nil)
	_ raft.StableStore = (*mdbxStore)(nil)

	// The stable env only holds a handful of raft terms and votes.
	stableGeometry = mdbx.Geometry{
		SizeLower:       64 * kilobyte,
		SizeNow:         64 * kilobyte,
		SizeUpper:       256 * kilobyte,
		GrowthStep:      64 * kilobyte,
		ShrinkThreshold: 128 * kilobyte,
		PageSize:        4 * kilobyte,
	}
	// Entries are batches of generator commands and ticks, so they are small.
	logGeometry = mdbx.Geometry{
		SizeLower:       1 * megabyte,
		SizeNow:         1 * megabyte,
		SizeUpper:       4 * gigabyte,
		GrowthStep:      16 * megabyte,
		ShrinkThreshold: 8 * megabyte,
		PageSize:        8 * kilobyte,
	}
)

// mdbxStore keeps the raft log and the raft stable values in two mdbx
// environments under the node data directory.
type mdbxStore struct {
	log     *mdbx.Store
	stable  *mdbx.Store
	logDBI  mdbx.DBI
	dbi     mdbx.DBI
	nosync  bool
	first   uint64 // atomic
	last    uint64 // atomic
	term    uint64 // atomic, CurrentTerm
	voteTrm uint64 // atomic, LastVoteTerm

	mu      sync.RWMutex
	voteFor []byte
	cache   map[string][]byte
	cache64 map[string]uint64
}

func openMDBXStore(path string, nosync bool, mode os.FileMode,
) (*mdbxStore, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err = os.MkdirAll(path, mode); err != nil {
			return nil, err
		}
	} else if !stat.IsDir() {
		return nil, errPathNotDir
	}
	s := &mdbxStore{
		nosync:  nosync,
		cache:   make(map[string][]byte),
		cache64: make(map[string]uint64),
	}
	var logFlags, stableFlags mdbx.EnvFlags = mdbxLogFlags, mdbxStableFlags
	if nosync {
		logFlags, stableFlags = mdbxNoSyncFlags, mdbxNoSyncFlags
	}
	s.log, err = openMDBXEnv(filepath.Join(path, "log"), logFlags, mode,
		logGeometry, raftLogDBI, true, &s.logDBI)
	if err != nil {
		return nil, err
	}
	s.stable, err = openMDBXEnv(filepath.Join(path, "stable"), stableFlags,
		mode, stableGeometry, raftStableDBI, false, &s.dbi)
	if err != nil {
		s.log.Close()
		return nil, err
	}
	if err := s.loadStable(); err != nil && err != mdbx.ErrSuccess {
		s.Close()
		return nil, err
	}
	if err := s.loadIndexes(); err != nil && err != mdbx.ErrSuccess {
		s.Close()
		return nil, err
	}
	return s, nil
}

func openMDBXEnv(path string, flags mdbx.EnvFlags, mode os.FileMode,
	geo mdbx.Geometry, name string, integerKey bool, dbi *mdbx.DBI,
) (*mdbx.Store, error) {
	return mdbx.Open(path, flags, mode,
		func(env *mdbx.Env, create bool) error {
			if e := env.SetMaxDBS(1); e != mdbx.ErrSuccess {
				return e
			}
			if e := env.SetGeometry(geo); e != mdbx.ErrSuccess {
				return e
			}
			return nil
		}, func(store *mdbx.Store, create bool) error {
			return store.Update(func(tx *mdbx.Tx) error {
				var e mdbx.Error
				if integerKey {
					*dbi, e = tx.OpenDBI(name, mdbx.DBCreate|mdbx.DBIntegerKey)
				} else {
					*dbi, e = tx.OpenDBI(name, mdbx.DBCreate)
				}
				if e != mdbx.ErrSuccess {
					return e
				}
				return nil
			})
		})
}

func (s *mdbxStore) Close() error {
	err := s.log.Close()
	if e := s.stable.Close(); err == nil {
		err = e
	}
	return err
}

func indexVal(index *uint64) mdbx.Val {
	return mdbx.Val{Base: (*byte)(unsafe.Pointer(index)), Len: 8}
}

func bytesVal(b []byte) mdbx.Val {
	if len(b) == 0 {
		return mdbx.Val{}
	}
	return mdbx.Bytes(&b)
}

func valUint64(v mdbx.Val) (uint64, bool) {
	if v.Base == nil || v.Len < 8 {
		return 0, false
	}
	return *(*uint64)(unsafe.Pointer(v.Base)), true
}

func (s *mdbxStore) loadIndexes() error {
	return s.log.View(func(tx *mdbx.Tx) error {
		cursor, e := tx.OpenCursor(s.logDBI)
		if e != mdbx.ErrSuccess {
			return e
		}
		defer cursor.Close()
		var k, v mdbx.Val
		if e := cursor.Get(&k, &v, mdbx.CursorFirst); e != mdbx.ErrSuccess {
			if e == mdbx.ErrNotFound {
				return nil
			}
			return e
		}
		if idx, ok := valUint64(k); ok {
			atomic.StoreUint64(&s.first, idx)
		}
		if e := cursor.Get(&k, &v, mdbx.CursorLast); e != mdbx.ErrSuccess {
			return e
		}
		if idx, ok := valUint64(k); ok {
			atomic.StoreUint64(&s.last, idx)
		}
		return nil
	})
}

func (s *mdbxStore) loadStable() error {
	return s.stable.View(func(tx *mdbx.Tx) error {
		var data mdbx.Val
		key := mdbx.StringConst(keyCurrentTerm)
		if e := tx.Get(s.dbi, &key, &data); e == mdbx.ErrSuccess {
			if n, ok := valUint64(data); ok {
				atomic.StoreUint64(&s.term, n)
			}
		} else if e != mdbx.ErrNotFound {
			return e
		}
		key = mdbx.StringConst(keyLastVoteTerm)
		if e := tx.Get(s.dbi, &key, &data); e == mdbx.ErrSuccess {
			if n, ok := valUint64(data); ok {
				atomic.StoreUint64(&s.voteTrm, n)
			}
		} else if e != mdbx.ErrNotFound {
			return e
		}
		key = mdbx.StringConst(keyLastVoteCand)
		if e := tx.Get(s.dbi, &key, &data); e == mdbx.ErrSuccess {
			if data.Base != nil && data.Len > 0 {
				s.voteFor = append([]byte(nil), data.UnsafeBytes()...)
			}
		} else if e != mdbx.ErrNotFound {
			return e
		}
		return nil
	})
}

// Set implements raft.StableStore.
func (s *mdbxStore) Set(key []byte, val []byte) error {
	if e := s.stable.Update(func(tx *mdbx.Tx) error {
		k, v := bytesVal(key), bytesVal(val)
		return tx.Put(s.dbi, &k, &v, 0)
	}); e != nil && e != mdbx.ErrSuccess {
		return e
	}
	val = append([]byte(nil), val...)
	s.mu.Lock()
	if string(key) == keyLastVoteCand {
		s.voteFor = val
	} else {
		s.cache[string(key)] = val
	}
	s.mu.Unlock()
	return nil
}

// Get returns the value for key, or an empty byte slice if key was not found.
func (s *mdbxStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	if string(key) == keyLastVoteCand {
		defer s.mu.RUnlock()
		return s.voteFor, nil
	}
	cached, ok := s.cache[string(key)]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	var result []byte
	if e := s.stable.View(func(tx *mdbx.Tx) error {
		k, v := bytesVal(key), mdbx.Val{}
		if e := tx.Get(s.dbi, &k, &v); e != mdbx.ErrSuccess {
			return e
		}
		result = append([]byte(nil), v.UnsafeBytes()...)
		return nil
	}); e != nil && e != mdbx.ErrSuccess {
		if e == mdbx.ErrNotFound {
			return nil, nil
		}
		return nil, e
	}
	s.mu.Lock()
	s.cache[string(key)] = result
	s.mu.Unlock()
	return result, nil
}

// SetUint64 implements raft.StableStore.
func (s *mdbxStore) SetUint64(key []byte, val uint64) error {
	if e := s.stable.Update(func(tx *mdbx.Tx) error {
		k, v := bytesVal(key), indexVal(&val)
		return tx.Put(s.dbi, &k, &v, 0)
	}); e != nil && e != mdbx.ErrSuccess {
		return e
	}
	switch string(key) {
	case keyCurrentTerm:
		atomic.StoreUint64(&s.term, val)
	case keyLastVoteTerm:
		atomic.StoreUint64(&s.voteTrm, val)
	default:
		s.mu.Lock()
		s.cache64[string(key)] = val
		s.mu.Unlock()
	}
	return nil
}

// GetUint64 returns the uint64 value for key, or 0 if key was not found.
func (s *mdbxStore) GetUint64(key []byte) (uint64, error) {
	switch string(key) {
	case keyCurrentTerm:
		return atomic.LoadUint64(&s.term), nil
	case keyLastVoteTerm:
		return atomic.LoadUint64(&s.voteTrm), nil
	}
	s.mu.RLock()
	cached, ok := s.cache64[string(key)]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	var result uint64
	if e := s.stable.View(func(tx *mdbx.Tx) error {
		k, v := bytesVal(key), mdbx.Val{}
		if e := tx.Get(s.dbi, &k, &v); e != mdbx.ErrSuccess {
			return e
		}
		result, _ = valUint64(v)
		return nil
	}); e != nil && e != mdbx.ErrSuccess {
		if e == mdbx.ErrNotFound {
			return 0, nil
		}
		return 0, e
	}
	s.mu.Lock()
	s.cache64[string(key)] = result
	s.mu.Unlock()
	return result, nil
}

// FirstIndex returns the first index written. 0 for no entries.
func (s *mdbxStore) FirstIndex() (uint64, error) {
	return atomic.LoadUint64(&s.first), nil
}

// LastIndex returns the last index written. 0 for no entries.
func (s *mdbxStore) LastIndex() (uint64, error) {
	return atomic.LoadUint64(&s.last), nil
}

// GetLog gets a log entry at a given index.
func (s *mdbxStore) GetLog(index uint64, log *raft.Log) error {
	if e := s.log.View(func(tx *mdbx.Tx) error {
		k, v := indexVal(&index), mdbx.Val{}
		if e := tx.Get(s.logDBI, &k, &v); e != mdbx.ErrSuccess {
			return e
		}
		return decodeRaftLog(v.UnsafeBytes(), log)
	}); e != nil && e != mdbx.ErrSuccess {
		if e == mdbx.ErrNotFound {
			return raft.ErrLogNotFound
		}
		return e
	}
	return nil
}

// StoreLog stores a log entry.
func (s *mdbxStore) StoreLog(log *raft.Log) error {
	return s.StoreLogs([]*raft.Log{log})
}

// StoreLogs stores multiple log entries. Each entry is encoded straight
// into the mdbx reserved buffer.
func (s *mdbxStore) StoreLogs(logs []*raft.Log) error {
	if len(logs) == 0 {
		return nil
	}
	if e := s.log.Update(func(tx *mdbx.Tx) error {
		cursor, e := tx.OpenCursor(s.logDBI)
		if e != mdbx.ErrSuccess {
			return e
		}
		defer cursor.Close()
		for _, log := range logs {
			k := indexVal(&log.Index)
			v := mdbx.Val{Len: uint64(raftLogSize(log))}
			if e := cursor.Put(&k, &v, mdbx.PutReserve|mdbx.PutAppend); e != mdbx.ErrSuccess {
				return e
			}
			encodeRaftLog(log, v.UnsafeBytes())
		}
		return nil
	}); e != nil && e != mdbx.ErrSuccess {
		return e
	}
	atomic.CompareAndSwapUint64(&s.first, 0, logs[0].Index)
	atomic.StoreUint64(&s.last, logs[len(logs)-1].Index)
	if !s.nosync {
		if err := s.log.Sync(); err != nil {
			logger.WarnErr(err, "raft log sync")
		}
	}
	return nil
}

// DeleteRange deletes a range of log entries. The range is inclusive.
func (s *mdbxStore) DeleteRange(min, max uint64) error {
	if e := s.log.Update(func(tx *mdbx.Tx) error {
		cursor, e := tx.OpenCursor(s.logDBI)
		if e != mdbx.ErrSuccess {
			return e
		}
		defer cursor.Close()
		k, v := indexVal(&min), mdbx.Val{}
		if e := cursor.Get(&k, &v, mdbx.CursorSetRange); e != mdbx.ErrSuccess {
			if e == mdbx.ErrNotFound {
				return nil
			}
			return e
		}
		for {
			idx, ok := valUint64(k)
			if !ok || idx > max {
				return nil
			}
			if e := cursor.Delete(0); e != mdbx.ErrSuccess {
				return e
			}
			if e := cursor.Get(&k, &v, mdbx.CursorNextNoDup); e != mdbx.ErrSuccess {
				if e == mdbx.ErrNotFound {
					return nil
				}
				return e
			}
		}
	}); e != nil && e != mdbx.ErrSuccess {
		return e
	}
	first, last := atomic.LoadUint64(&s.first), atomic.LoadUint64(&s.last)
	switch {
	case min <= first && max >= last:
		atomic.StoreUint64(&s.first, 0)
		atomic.StoreUint64(&s.last, 0)
	case min <= first:
		atomic.StoreUint64(&s.first, max+1)
	case max >= last:
		atomic.StoreUint64(&s.last, min-1)
	}
	return nil
}
