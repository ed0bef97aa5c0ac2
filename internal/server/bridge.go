package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rcliao/agent-chat/internal/agent"
	"github.com/rcliao/agent-chat/internal/codec"
	"github.com/rcliao/agent-chat/internal/filestore"
	"github.com/rcliao/agent-chat/internal/thread"
)

// DefaultAgentCacheSize caps how many live agent instances the bridge keeps
// in memory before evicting the least recently used one. An evicted agent
// loses nothing durable: its state was persisted after its last exchange
// and is reloaded from the thread record on the next message.
const DefaultAgentCacheSize = 64

// Bridge orchestrates one exchange: load a thread's persisted state, run the
// agent while streaming increments to the caller, and persist the new state
// only after the stream has fully drained.
type Bridge struct {
	threads  *thread.Store
	agents   *lru.Cache[string, *agent.Agent]
	newAgent func() *agent.Agent
	logger   *slog.Logger
}

// NewBridge creates a bridge. newAgent builds a fresh agent for a thread
// whose instance is not live in the registry.
func NewBridge(threads *thread.Store, newAgent func() *agent.Agent, cacheSize int, logger *slog.Logger) (*Bridge, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultAgentCacheSize
	}
	cache, err := lru.New[string, *agent.Agent](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("agent registry: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		threads:  threads,
		agents:   cache,
		newAgent: newAgent,
		logger:   logger,
	}, nil
}

// HandleMessage runs one exchange on the given thread. Increments are
// forwarded to emit as they arrive. If the thread does not exist (or is
// deleted mid-stream) the exchange aborts with *filestore.NotFoundError and
// nothing is persisted. If the agent fails, the persist step is skipped so
// the thread's durable state still reflects the last completed exchange.
//
// Concurrent calls for the same thread id are not coordinated here; callers
// that allow them accept a last-writer-wins race on the final persist.
func (b *Bridge) HandleMessage(ctx context.Context, threadID, content string, emit func(agent.Chunk) error) error {
	th, err := b.threads.Get(threadID)
	if err != nil {
		return err
	}

	ag, err := b.agentFor(threadID, th)
	if err != nil {
		return err
	}

	if err := ag.Run(ctx, content, emit); err != nil {
		b.logger.Error("agent run failed", "thread_id", threadID, "error", err)
		return err
	}

	// Re-read rather than reuse: the stream may have taken a while and the
	// record could have been deleted underneath us.
	th, err = b.threads.Get(threadID)
	if err != nil {
		var notFound *filestore.NotFoundError
		if errors.As(err, &notFound) {
			b.agents.Remove(threadID)
		}
		return err
	}

	blob, err := codec.Encode(ag.State())
	if err != nil {
		return fmt.Errorf("encode agent state: %w", err)
	}
	th.State = blob
	if err := b.threads.Put(th); err != nil {
		return fmt.Errorf("persist thread state: %w", err)
	}
	return nil
}

// agentFor returns the live agent for a thread, constructing and restoring
// one from the persisted state blob when none is cached.
func (b *Bridge) agentFor(threadID string, th thread.Thread) (*agent.Agent, error) {
	if ag, ok := b.agents.Get(threadID); ok {
		return ag, nil
	}

	ag := b.newAgent()
	if len(th.State) > 0 {
		state, err := codec.Decode(th.State)
		if err != nil {
			return nil, fmt.Errorf("decode thread state: %w", err)
		}
		if err := ag.Restore(state); err != nil {
			return nil, fmt.Errorf("restore thread state: %w", err)
		}
	}
	b.agents.Add(threadID, ag)
	return ag, nil
}

// Evict drops a thread's live agent instance, if any.
func (b *Bridge) Evict(threadID string) {
	b.agents.Remove(threadID)
}
