package services

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/inkblog/config"
	"github.com/cppla/inkblog/models"
	"github.com/cppla/inkblog/utils"
)

// ViewRecorder accepts view events without blocking the read path.
type ViewRecorder interface {
	Record(articleID uint)
}

// ViewCounter increments article view counts on background workers. Record never blocks:
// when the buffer is full the view is dropped.
type ViewCounter struct {
	db      *gorm.DB
	ch      chan uint
	wg      conc.WaitGroup
	mu      sync.RWMutex
	closed  bool
	timeout time.Duration
}

// NewViewCounter starts cfg.ViewCounterWorkers workers draining a cfg.ViewCounterBuffer sized queue.
func NewViewCounter(db *gorm.DB, cfg config.AppConfig) *ViewCounter {
	workers := cfg.ViewCounterWorkers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.ViewCounterBuffer
	if buffer <= 0 {
		buffer = 1
	}
	v := &ViewCounter{
		db:      db,
		ch:      make(chan uint, buffer),
		timeout: 3 * time.Second,
	}
	for i := 0; i < workers; i++ {
		v.wg.Go(v.work)
	}
	return v
}

// Record queues one view of articleID.
func (v *ViewCounter) Record(articleID uint) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return
	}
	select {
	case v.ch <- articleID:
	default:
		utils.Logger.Debug("view counter queue full, dropping view", zap.Uint("article_id", articleID))
	}
}

// Close stops accepting views and waits until queued ones are written.
func (v *ViewCounter) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	close(v.ch)
	v.mu.Unlock()
	v.wg.Wait()
}

func (v *ViewCounter) work() {
	for id := range v.ch {
		v.increment(id)
	}
}

func (v *ViewCounter) increment(id uint) {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	err := v.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
	if err != nil {
		utils.Logger.Warn("view count increment failed", zap.Uint("article_id", id), zap.Error(err))
	}
}
