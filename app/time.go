package app

import (
	"sync"
	"time"

	"github.com/moontrade/tt800/logger"
	"github.com/tidwall/rtime"
)

const (
	remoteTimeAttempts = 5
	remoteTimeResync   = time.Minute
)

// remoteTime is the clock used by the ticker. Unless local time is
// requested it follows internet time as the local clock plus an offset that
// is refreshed in the background.
type remoteTime struct {
	local  bool
	now    func() time.Time // remote source, zero on failure
	mu     sync.RWMutex
	offset time.Duration
	synced bool
}

func remoteTimeInit(conf Config) *remoteTime {
	rt := &remoteTime{local: conf.LocalTime, now: rtime.Now}
	if rt.local {
		logger.Notice("using local time")
		return rt
	}
	logger.Print("synchronizing with internet time")
	for i := 0; i < remoteTimeAttempts; i++ {
		if rt.sync() {
			break
		}
		time.Sleep(time.Second)
	}
	if !rt.Synced() {
		logger.Warn("internet time unavailable, using local time until " +
			"the next successful sync")
	} else {
		logger.Print("offset", rt.Offset(), "internet time synchronized")
	}
	go rt.run()
	return rt
}

func (rt *remoteTime) run() {
	for {
		time.Sleep(remoteTimeResync)
		if !rt.sync() {
			logger.Debug("internet time sync failed")
		}
	}
}

// sync refreshes the offset and reports whether the remote source answered.
func (rt *remoteTime) sync() bool {
	remote := rt.now()
	if remote.IsZero() {
		return false
	}
	offset := remote.Sub(time.Now())
	rt.mu.Lock()
	rt.offset = offset
	rt.synced = true
	rt.mu.Unlock()
	return true
}

func (rt *remoteTime) Synced() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.synced
}

func (rt *remoteTime) Offset() time.Duration {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.offset
}

func (rt *remoteTime) Now() time.Time {
	if rt.local {
		return time.Now()
	}
	return time.Now().Add(rt.Offset())
}
