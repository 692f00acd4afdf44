package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/bdougie/videolens/internal/models"
)

const maxWorkers = 4

// FrameSource produces key-frames; *Extractor satisfies it.
type FrameSource interface {
	ExtractFrame(ctx context.Context, src string, seconds int) []byte
}

type slotKey struct {
	index     int
	timestamp string
	src       string
}

// Cache holds one key-frame slot per timeline segment. Slots are filled
// concurrently and returned in segment order.
type Cache struct {
	source  FrameSource
	logger  *slog.Logger
	workers int

	mu         sync.Mutex
	keys       []slotKey
	slots      map[slotKey]models.FrameSlot
	generation uint64
	cancels    []context.CancelFunc

	group singleflight.Group
	wg    sync.WaitGroup
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithWorkers sets how many frames are extracted at once.
func WithWorkers(n int) CacheOption {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewCache creates an empty frame cache.
func NewCache(source FrameSource, logger *slog.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		source:  source,
		logger:  logger,
		workers: maxWorkers,
		slots:   make(map[slotKey]models.FrameSlot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fill requests a key-frame for every segment of src. Slots already
// resolved for the same segment, timestamp and source are kept; everything
// else is marked loading and extracted by a pool of workers. Fill returns
// once the work is queued; use Wait to block until it finishes.
func (c *Cache) Fill(ctx context.Context, src string, segments []models.TimelineSegment) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	generation := c.generation
	c.cancels = append(c.cancels, cancel)

	keys := make([]slotKey, len(segments))
	var work []models.FrameWork
	for i, seg := range segments {
		key := slotKey{index: i, timestamp: seg.Timestamp, src: src}
		keys[i] = key
		if _, ok := c.slots[key]; ok {
			continue
		}
		c.slots[key] = models.FrameSlot{State: models.FrameLoading}
		work = append(work, models.FrameWork{Index: i, Seconds: seg.Seconds()})
	}
	c.keys = keys
	c.mu.Unlock()

	if len(work) == 0 {
		cancel()
		return
	}
	for i := range work {
		work[i].Total = len(work)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.process(ctx, generation, src, keys, work)
	}()
}

func (c *Cache) process(ctx context.Context, generation uint64, src string, keys []slotKey, work []models.FrameWork) {
	workChan := make(chan models.FrameWork, len(work))

	var wg sync.WaitGroup

	remaining := atomic.Int64{}
	remaining.Store(int64(len(work)))

	// Start worker pool
	for i := 0; i < min(c.workers, len(work)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workChan {
				key := keys[item.Index]
				image := c.extract(ctx, generation, src, item.Seconds)
				c.store(generation, key, image)

				left := remaining.Add(-1)
				c.logger.Debug("key-frame resolved",
					"segment", item.Index+1,
					"ready", image != nil,
					"remaining", fmt.Sprintf("%d/%d", left, item.Total))
			}
		}()
	}

	// Send work to workers
	for _, item := range work {
		workChan <- item
	}
	close(workChan)

	wg.Wait()
}

// extract collapses identical concurrent requests into one decode. The
// generation keeps a request made after Invalidate from joining a decode
// that Invalidate already cancelled.
func (c *Cache) extract(ctx context.Context, generation uint64, src string, seconds int) []byte {
	if ctx.Err() != nil {
		return nil
	}
	key := fmt.Sprintf("%d:%s@%d", generation, src, seconds)
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		return c.source.ExtractFrame(ctx, src, seconds), nil
	})
	image, _ := v.([]byte)
	return image
}

func (c *Cache) store(generation uint64, key slotKey, image []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}
	slot := models.FrameSlot{State: models.FrameUnavailable}
	if image != nil {
		slot = models.FrameSlot{Image: image, State: models.FrameReady}
	}
	c.slots[key] = slot
}

// Slots returns the current slot of every segment from the latest Fill,
// in segment order.
func (c *Cache) Slots() []models.FrameSlot {
	c.mu.Lock()
	defer c.mu.Unlock()

	slots := make([]models.FrameSlot, len(c.keys))
	for i, key := range c.keys {
		slots[i] = c.slots[key]
	}
	return slots
}

// Slot returns the slot of segment i.
func (c *Cache) Slot(i int) (models.FrameSlot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.keys) {
		return models.FrameSlot{}, false
	}
	slot, ok := c.slots[c.keys[i]]
	return slot, ok
}

// Wait blocks until every queued extraction has finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Invalidate drops every slot and cancels in-flight extractions. Results
// that arrive afterwards are discarded.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	c.keys = nil
	c.slots = make(map[slotKey]models.FrameSlot)
}
