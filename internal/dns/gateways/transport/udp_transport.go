package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/haukened/rr-relay/internal/dns/common/log"
	"github.com/haukened/rr-relay/internal/dns/domain"
	"github.com/haukened/rr-relay/internal/dns/gateways/wire"
	"github.com/haukened/rr-relay/internal/dns/services/resolver"
)

// Options configures a UDPTransport.
type Options struct {
	// Addr is the "ip:port" to bind. Port 0 picks a free port.
	Addr string
	// Workers is the number of goroutines handling datagrams.
	Workers int
	// QueueSize bounds the datagrams waiting for a worker. A datagram
	// arriving at a full queue is dropped.
	QueueSize int
	// JanitorInterval is how often timed out forwarded queries are expired.
	// Zero disables the janitor; expiry then only runs on inbound traffic.
	JanitorInterval time.Duration
	Logger          log.Logger
}

type inbound struct {
	data []byte
	src  *net.UDPAddr
}

// UDPTransport implements ServerTransport for standard DNS over UDP (RFC 1035).
// Client queries, forwarded queries and upstream replies all share the one
// socket.
type UDPTransport struct {
	addr   string
	opts   Options
	conn   *net.UDPConn
	logger log.Logger

	// Synchronization for graceful shutdown
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(opts Options) *UDPTransport {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &UDPTransport{
		addr:   opts.Addr,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Start binds the socket and starts the receive loop, the workers and the
// janitor. It returns once the socket is bound.
func (t *UDPTransport) Start(ctx context.Context, handler resolver.PacketHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("UDP transport already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s: %w", t.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
	}

	t.conn = conn
	t.running = true
	t.stopCh = make(chan struct{})
	queue := make(chan inbound, t.opts.QueueSize)

	for i := 0; i < t.opts.Workers; i++ {
		t.wg.Add(1)
		go t.worker(ctx, queue, handler)
	}
	t.wg.Add(1)
	go t.listenLoop(queue)
	if t.opts.JanitorInterval > 0 {
		t.wg.Add(1)
		go t.janitor(ctx, handler, t.stopCh)
	}
	go t.watchContext(ctx, t.stopCh)

	t.logger.Info(map[string]any{
		"transport": TransportUDP,
		"address":   conn.LocalAddr().String(),
		"workers":   t.opts.Workers,
		"queue":     t.opts.QueueSize,
	}, "DNS transport started")
	return nil
}

// Stop closes the socket and waits for the receive loop, workers and janitor
// to finish. A call racing an earlier Stop still waits for them.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		t.wg.Wait()
		return nil
	}
	t.running = false
	close(t.stopCh)

	var closeErr error
	if t.conn != nil {
		if closeErr = t.conn.Close(); closeErr != nil {
			t.logger.Warn(map[string]any{
				"error": closeErr.Error(),
			}, "Error closing UDP connection")
		}
	}
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info(map[string]any{
		"transport": TransportUDP,
		"address":   t.addr,
	}, "DNS transport stopped")
	return closeErr
}

// Address returns the bound address while running, the configured one otherwise.
func (t *UDPTransport) Address() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running && t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

func (t *UDPTransport) watchContext(ctx context.Context, stopCh <-chan struct{}) {
	select {
	case <-ctx.Done():
		t.logger.Debug(nil, "UDP transport stopping due to context cancellation")
		_ = t.Stop()
	case <-stopCh:
	}
}

// listenLoop reads datagrams and queues them for the workers. It returns
// when the socket is closed, closing the queue behind it.
func (t *UDPTransport) listenLoop(queue chan<- inbound) {
	defer t.wg.Done()
	defer close(queue)

	buffer := make([]byte, wire.MaxMessageSize)
	for {
		n, src, err := t.conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn(map[string]any{
				"error": err.Error(),
			}, "Failed to read UDP packet")
			continue
		}

		packet := make([]byte, n)
		copy(packet, buffer[:n])
		select {
		case queue <- inbound{data: packet, src: src}:
		default:
			t.logger.Warn(map[string]any{
				"client": src.String(),
				"size":   n,
			}, "Worker queue full, dropping packet")
		}
	}
}

func (t *UDPTransport) worker(ctx context.Context, queue <-chan inbound, handler resolver.PacketHandler) {
	defer t.wg.Done()
	for pkt := range queue {
		t.logger.Debug(map[string]any{
			"client": pkt.src.String(),
			"size":   len(pkt.data),
			"raw":    fmt.Sprintf("%x", pkt.data),
		}, "Received raw DNS data")
		t.send(handler.HandlePacket(ctx, pkt.data, pkt.src))
	}
}

func (t *UDPTransport) janitor(ctx context.Context, handler resolver.PacketHandler, stopCh <-chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.opts.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.send(handler.ExpirePending(ctx))
		}
	}
}

func (t *UDPTransport) send(out []domain.Datagram) {
	for _, d := range out {
		if _, err := t.conn.WriteTo(d.Data, d.Addr); err != nil {
			t.logger.Error(map[string]any{
				"dest":  d.Addr.String(),
				"size":  len(d.Data),
				"error": err.Error(),
			}, "Failed to send DNS packet")
			continue
		}
		t.logger.Debug(map[string]any{
			"dest": d.Addr.String(),
			"size": len(d.Data),
		}, "Sent DNS packet")
	}
}

var _ resolver.ServerTransport = (*UDPTransport)(nil)
