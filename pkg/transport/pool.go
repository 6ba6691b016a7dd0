// pool.go implements a bounded client-side pool of established channels.
//
// Every pooled channel is the product of a full handshake; the pool reuses
// established channels but never resumes failed or closed ones. A retry is
// always a brand-new handshake with fresh ephemeral keys.
package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
	"github.com/pq-oidc/kemtls-go/pkg/pqc"
)

// PoolConfig holds configuration for the channel pool.
type PoolConfig struct {
	// MaxChannels is the maximum number of channels allowed.
	// Default: 10
	MaxChannels int

	// IdleTimeout closes idle channels after this duration.
	// Default: 5 minutes
	IdleTimeout time.Duration

	// MaxLifetime is the maximum lifetime of a channel. Channels older
	// than this are not handed out again.
	// Default: 30 minutes
	MaxLifetime time.Duration

	// WaitTimeout is how long Acquire waits when the pool is exhausted.
	// Default: 30 seconds
	WaitTimeout time.Duration

	// Transport is the configuration for new channels.
	Transport Config

	// Observer receives pool lifecycle events. Optional.
	Observer PoolObserver
}

// DefaultPoolConfig returns a PoolConfig with sensible defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxChannels: 10,
		IdleTimeout: 5 * time.Minute,
		MaxLifetime: 30 * time.Minute,
		WaitTimeout: 30 * time.Second,
		Transport:   DefaultConfig(),
	}
}

// Validate checks the configuration for errors.
func (c *PoolConfig) Validate() error {
	if c.MaxChannels <= 0 {
		return errors.New("pool: MaxChannels must be positive")
	}
	if c.IdleTimeout < 0 || c.MaxLifetime < 0 || c.WaitTimeout < 0 {
		return errors.New("pool: timeouts cannot be negative")
	}
	return nil
}

func (c *PoolConfig) applyDefaults() {
	defaults := DefaultPoolConfig()
	if c.MaxChannels == 0 {
		c.MaxChannels = defaults.MaxChannels
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = defaults.MaxLifetime
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = defaults.WaitTimeout
	}
}

// PoolObserver provides hooks for pool lifecycle events. Implementations
// should be lightweight; callbacks may run on hot paths.
type PoolObserver interface {
	// OnAcquire is called when a channel is acquired from the pool.
	OnAcquire(waitDuration time.Duration, reused bool)

	// OnAcquireTimeout is called when Acquire times out.
	OnAcquireTimeout()

	// OnRelease is called when a channel is returned to the pool.
	OnRelease()

	// OnChannelCreated is called when a new channel is established.
	OnChannelCreated(dialDuration time.Duration)

	// OnChannelClosed is called when a channel is removed from the pool.
	OnChannelClosed(reason string)
}

// NoOpPoolObserver is a no-op implementation of PoolObserver.
type NoOpPoolObserver struct{}

var _ PoolObserver = (*NoOpPoolObserver)(nil)

func (NoOpPoolObserver) OnAcquire(time.Duration, bool) {}
func (NoOpPoolObserver) OnAcquireTimeout()             {}
func (NoOpPoolObserver) OnRelease()                    {}
func (NoOpPoolObserver) OnChannelCreated(time.Duration) {
}
func (NoOpPoolObserver) OnChannelClosed(string) {}

// pooledChannel tracks pool bookkeeping for one channel.
type pooledChannel struct {
	ch        *SecureChannel
	createdAt time.Time
	idleSince time.Time
}

// ChannelPool manages reusable established channels to one server address.
type ChannelPool struct {
	network string
	address string
	kem     pqc.KEM
	sig     pqc.Signature
	config  PoolConfig

	mu    sync.Mutex
	total int
	idle  []*pooledChannel // LIFO

	// created records when each live channel finished its handshake, so
	// MaxLifetime measures true channel age across Acquire/Release cycles.
	created map[*SecureChannel]time.Time

	waiters []chan *pooledChannel
	closed  bool
}

// NewChannelPool creates a pool dialing the given address. No channels are
// established until the first Acquire.
func NewChannelPool(network, address string, kem pqc.KEM, sig pqc.Signature, config PoolConfig) (*ChannelPool, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ChannelPool{
		network: network,
		address: address,
		kem:     kem,
		sig:     sig,
		config:  config,
		created: make(map[*SecureChannel]time.Time),
	}, nil
}

// Acquire returns an established channel, reusing an idle one when
// possible. The caller must hand the channel back with Release, or Discard
// it if it failed.
func (p *ChannelPool) Acquire() (*SecureChannel, error) {
	start := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, qerrors.ErrPoolClosed
	}

	// Pop idle channels LIFO, discarding stale ones.
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]

		if p.stale(pc) {
			p.total--
			delete(p.created, pc.ch)
			p.mu.Unlock()
			_ = pc.ch.Close()
			p.notifyClosed("stale")
			p.mu.Lock()
			continue
		}

		p.mu.Unlock()
		p.notifyAcquire(time.Since(start), true)
		return pc.ch, nil
	}

	// Room to grow: dial a new channel.
	if p.total < p.config.MaxChannels {
		p.total++
		p.mu.Unlock()

		ch, err := p.dial()
		if err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return nil, err
		}
		p.notifyAcquire(time.Since(start), false)
		return ch, nil
	}

	// Pool exhausted: wait for a release.
	waiter := make(chan *pooledChannel, 1)
	p.waiters = append(p.waiters, waiter)
	p.mu.Unlock()

	timer := time.NewTimer(p.config.WaitTimeout)
	defer timer.Stop()

	select {
	case pc, ok := <-waiter:
		if !ok {
			return nil, qerrors.ErrPoolClosed
		}
		p.notifyAcquire(time.Since(start), true)
		return pc.ch, nil
	case <-timer.C:
		p.removeWaiter(waiter)
		if p.config.Observer != nil {
			p.config.Observer.OnAcquireTimeout()
		}
		return nil, qerrors.ErrPoolTimeout
	}
}

// Release returns a healthy channel to the pool for reuse.
func (p *ChannelPool) Release(ch *SecureChannel) {
	if ch == nil {
		return
	}
	if err := ch.checkClosed(); err != nil {
		p.Discard(ch)
		return
	}

	p.mu.Lock()
	createdAt, known := p.created[ch]
	if !known {
		createdAt = time.Now()
		p.created[ch] = createdAt
	}
	pc := &pooledChannel{ch: ch, createdAt: createdAt, idleSince: time.Now()}

	if p.closed {
		p.total--
		delete(p.created, ch)
		p.mu.Unlock()
		_ = ch.Close()
		return
	}

	// Hand directly to a waiter when one is queued.
	if len(p.waiters) > 0 {
		waiter := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		waiter <- pc
		p.notifyRelease()
		return
	}

	p.idle = append(p.idle, pc)
	p.mu.Unlock()
	p.notifyRelease()
}

// Discard removes a failed channel from the pool and closes it. The next
// Acquire dials a replacement with a fresh handshake.
func (p *ChannelPool) Discard(ch *SecureChannel) {
	if ch == nil {
		return
	}

	p.mu.Lock()
	p.total--
	delete(p.created, ch)
	p.mu.Unlock()

	_ = ch.Close()
	p.notifyClosed("discarded")
}

// Close closes the pool and every idle channel. In-use channels are closed
// when discarded or released.
func (p *ChannelPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	for _, waiter := range p.waiters {
		close(waiter)
	}
	p.waiters = nil

	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	for _, pc := range idle {
		delete(p.created, pc.ch)
	}
	p.mu.Unlock()

	for _, pc := range idle {
		_ = pc.ch.Close()
		p.notifyClosed("pool_closed")
	}
	return nil
}

// Stats returns a snapshot of pool occupancy.
func (p *ChannelPool) Stats() (total, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, len(p.idle)
}

func (p *ChannelPool) dial() (*SecureChannel, error) {
	start := time.Now()

	conn, err := net.Dial(p.network, p.address)
	if err != nil {
		return nil, err
	}

	ch, err := OpenClientChannel(conn, p.kem, p.sig, p.config.Transport)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.created[ch] = time.Now()
	p.mu.Unlock()

	if p.config.Observer != nil {
		p.config.Observer.OnChannelCreated(time.Since(start))
	}
	return ch, nil
}

func (p *ChannelPool) stale(pc *pooledChannel) bool {
	if pc.ch.checkClosed() != nil {
		return true
	}
	if p.config.IdleTimeout > 0 && time.Since(pc.idleSince) > p.config.IdleTimeout {
		return true
	}
	if p.config.MaxLifetime > 0 && time.Since(pc.createdAt) > p.config.MaxLifetime {
		return true
	}
	return false
}

func (p *ChannelPool) removeWaiter(waiter chan *pooledChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == waiter {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	// A release may have raced the timeout; recycle it.
	select {
	case pc, ok := <-waiter:
		if ok {
			p.idle = append(p.idle, pc)
		}
	default:
	}
}

func (p *ChannelPool) notifyAcquire(wait time.Duration, reused bool) {
	if p.config.Observer != nil {
		p.config.Observer.OnAcquire(wait, reused)
	}
}

func (p *ChannelPool) notifyRelease() {
	if p.config.Observer != nil {
		p.config.Observer.OnRelease()
	}
}

func (p *ChannelPool) notifyClosed(reason string) {
	if p.config.Observer != nil {
		p.config.Observer.OnChannelClosed(reason)
	}
}
