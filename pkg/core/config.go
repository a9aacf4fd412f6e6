package core

// Tunable defaults. Empirically chosen; override via PlannerConfig.
const (
	DefaultMemoryBudgetBytes = int64(1) << 30 // 1 GiB
	DefaultTargetChunkBytes  = int64(1) << 20 // 1 MiB of raw bytes per chunk
	DefaultChannelGroupSize  = int64(64)      // channel-axis grouping for wide streams
)

// PlannerConfig bounds chunk and buffer shape computation.
type PlannerConfig struct {
	// MemoryBudgetBytes caps the raw bytes resident per active dataset.
	MemoryBudgetBytes int64
	// TargetChunkBytes is the raw byte size one chunk should approach.
	TargetChunkBytes int64
	// ChannelGroupSize is the chunk extent used on the channel axis of
	// rank-2 multi-channel streams wider than the group size.
	ChannelGroupSize int64
}

// WithDefaults fills zero fields with package defaults.
func (c PlannerConfig) WithDefaults() PlannerConfig {
	if c.MemoryBudgetBytes == 0 {
		c.MemoryBudgetBytes = DefaultMemoryBudgetBytes
	}
	if c.TargetChunkBytes == 0 {
		c.TargetChunkBytes = DefaultTargetChunkBytes
	}
	if c.ChannelGroupSize == 0 {
		c.ChannelGroupSize = DefaultChannelGroupSize
	}
	return c
}

// Config aggregates engine-wide settings.
type Config struct {
	Planner PlannerConfig
}
