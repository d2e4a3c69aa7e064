package bot

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

const (
	// encodes keep whole videos in memory before upload
	memWarnThresholdBytes  = 800 * 1024 * 1024
	memCritThresholdBytes  = 1600 * 1024 * 1024
	memCheckInterval       = 30 * time.Second
	goroutineWarnThreshold = 500
	goroutineCritThreshold = 1000
)

// runMemoryWatcher alerts the posts chat when heap or goroutine counts pass
// their thresholds and shuts the process down past the critical ones.
func (b *TelegramBot) runMemoryWatcher(ctx context.Context) {
	ticker := time.NewTicker(memCheckInterval)
	defer ticker.Stop()

	var lastWarnAt time.Time

	b.log.Infof("memwatch: started (warn=%dMB, crit=%dMB, goroutines warn=%d crit=%d)",
		memWarnThresholdBytes/(1024*1024),
		memCritThresholdBytes/(1024*1024),
		goroutineWarnThreshold,
		goroutineCritThreshold,
	)

	for {
		select {
		case <-ctx.Done():
			b.log.Infof("memwatch: stopped")
			return
		case <-ticker.C:
			b.checkMemory(&lastWarnAt)
		}
	}
}

func (b *TelegramBot) checkMemory(lastWarnAt *time.Time) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	heapMB := ms.HeapAlloc / (1024 * 1024)
	sysMB := ms.Sys / (1024 * 1024)
	numGoroutines := runtime.NumGoroutine()

	if numGoroutines >= goroutineCritThreshold {
		msg := fmt.Sprintf(
			"Goroutine leak, shutting down.\nGoroutines: %d (limit %d)\nHeap: %d MB / Sys: %d MB",
			numGoroutines, goroutineCritThreshold, heapMB, sysMB,
		)
		b.log.Errorf("memwatch: CRITICAL goroutine leak, goroutines=%d", numGoroutines)
		b.sendMemAlert(msg, true)
		return
	}

	if ms.HeapAlloc >= memCritThresholdBytes {
		msg := fmt.Sprintf(
			"Memory limit exceeded, shutting down.\nHeap: %d MB (limit %d MB)\nSys: %d MB\nGoroutines: %d",
			heapMB, memCritThresholdBytes/(1024*1024), sysMB, numGoroutines,
		)
		b.log.Errorf("memwatch: CRITICAL heap leak, heap=%dMB goroutines=%d", heapMB, numGoroutines)
		b.sendMemAlert(msg, true)
		return
	}

	warnNeeded := ms.HeapAlloc > memWarnThresholdBytes || numGoroutines >= goroutineWarnThreshold
	if warnNeeded && time.Since(*lastWarnAt) > 10*time.Minute {
		msg := fmt.Sprintf(
			"High resource usage.\nHeap: %d MB (limit %d MB)\nSys: %d MB\nGoroutines: %d (limit %d)",
			heapMB, memWarnThresholdBytes/(1024*1024), sysMB,
			numGoroutines, goroutineWarnThreshold,
		)
		b.log.Warnf("memwatch: WARNING heap=%dMB goroutines=%d", heapMB, numGoroutines)
		b.sendMemAlert(msg, false)
		runtime.GC()
		*lastWarnAt = time.Now()
	}
}

// sendMemAlert notifies the posts chat. An emergency alert also cancels the
// root context.
func (b *TelegramBot) sendMemAlert(msg string, emergency bool) {
	chatID := b.svc.GetConfig().PostsChatID
	if chatID != 0 {
		b.replyText(chatID, msg)
		if emergency {
			time.Sleep(3 * time.Second)
		}
	} else {
		b.log.Warnf("memwatch: PostsChatID=0, alert not delivered via Telegram: %s", msg)
	}

	if emergency && b.cancelFunc != nil {
		b.log.Errorf("memwatch: calling cancelFunc to initiate emergency shutdown")
		b.cancelFunc()
	}
}
