package zcore

// threadManagerConfig holds configuration resolved at ThreadManager
// construction.
type threadManagerConfig struct {
	capacity int
	logger   *Logger
}

// ThreadManagerOption configures a ThreadManager at construction.
type ThreadManagerOption interface {
	applyThreadManager(*threadManagerConfig)
}

type threadManagerOptionImpl struct {
	apply func(*threadManagerConfig)
}

func (o *threadManagerOptionImpl) applyThreadManager(c *threadManagerConfig) { o.apply(c) }

// WithQueueCapacity overrides the manager's default task queue capacity
// (1024). Capacity is always rounded up to a power of two by the
// underlying ring buffer.
func WithQueueCapacity(capacity int) ThreadManagerOption {
	return &threadManagerOptionImpl{func(c *threadManagerConfig) {
		c.capacity = capacity
	}}
}

// WithManagerLogger overrides the package-level structured logger for one
// ThreadManager instance.
func WithManagerLogger(logger *Logger) ThreadManagerOption {
	return &threadManagerOptionImpl{func(c *threadManagerConfig) {
		c.logger = logger
	}}
}

func resolveThreadManagerOptions(opts []ThreadManagerOption) *threadManagerConfig {
	cfg := &threadManagerConfig{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyThreadManager(cfg)
	}
	return cfg
}

// enqueueConfig holds per-task configuration resolved at enqueue time.
type enqueueConfig struct {
	waitForPrecedence bool
}

// EnqueueOption configures one Enqueue/EnqueueLoop call.
type EnqueueOption interface {
	applyEnqueue(*enqueueConfig)
}

type enqueueOptionImpl struct {
	apply func(*enqueueConfig)
}

func (o *enqueueOptionImpl) applyEnqueue(c *enqueueConfig) { o.apply(c) }

// WithPrecedence requests that this task wait until every task with a
// strictly smaller ID has completed before its payload begins.
func WithPrecedence() EnqueueOption {
	return &enqueueOptionImpl{func(c *enqueueConfig) {
		c.waitForPrecedence = true
	}}
}

func resolveEnqueueOptions(opts []EnqueueOption) *enqueueConfig {
	cfg := &enqueueConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyEnqueue(cfg)
	}
	return cfg
}
