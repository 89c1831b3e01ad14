package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/formrelay/internal/core/record"
	"github.com/hay-kot/formrelay/internal/core/submission"
	"github.com/hay-kot/formrelay/internal/telemetry"
)

const defaultPollInterval = time.Second

// Listen binds a UDP socket for a Receiver.
func Listen(addr string) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return conn, nil
}

// Receiver reads datagrams from a bound socket and appends each decoded
// submission to the record store, one at a time. It is the store's only
// writer.
type Receiver struct {
	conn    net.PacketConn
	store   record.Store
	log     zerolog.Logger
	metrics *telemetry.Metrics

	bufSize int
	poll    time.Duration
	now     func() time.Time
}

// NewReceiver creates a receiver that owns conn. conn is closed when Run
// returns.
func NewReceiver(conn net.PacketConn, store record.Store, log zerolog.Logger) *Receiver {
	return &Receiver{
		conn:    conn,
		store:   store,
		log:     log,
		bufSize: submission.MaxDatagramSize,
		poll:    defaultPollInterval,
		now:     time.Now,
	}
}

// WithBufferSize sets the receive buffer size. Longer datagrams are
// truncated by the kernel and then fail to decode.
func (r *Receiver) WithBufferSize(n int) *Receiver {
	if n > 0 {
		r.bufSize = n
	}
	return r
}

// WithPollInterval sets how long a single receive waits before checking for
// cancellation.
func (r *Receiver) WithPollInterval(d time.Duration) *Receiver {
	if d > 0 {
		r.poll = d
	}
	return r
}

// WithClock sets the clock used to key records.
func (r *Receiver) WithClock(now func() time.Time) *Receiver {
	r.now = now
	return r
}

// WithMetrics records receive outcomes on m.
func (r *Receiver) WithMetrics(m *telemetry.Metrics) *Receiver {
	r.metrics = m
	return r
}

// Addr returns the bound local address.
func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Run receives datagrams until ctx is cancelled or the socket fails.
// Cancellation returns nil after the current datagram is handled. A
// non-timeout socket error ends the loop and is returned.
func (r *Receiver) Run(ctx context.Context) error {
	defer r.conn.Close() //nolint:errcheck

	r.log.Info().Str("addr", r.conn.LocalAddr().String()).Msg("receiver listening")

	buf := make([]byte, r.bufSize)
	for {
		if ctx.Err() != nil {
			r.log.Info().Msg("receiver stopped")
			return nil
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(r.poll)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("receive datagram: %w", err)
		}

		r.handle(ctx, buf[:n], from)
	}
}

// handle decodes and stores one datagram. Failures are logged and dropped.
func (r *Receiver) handle(ctx context.Context, data []byte, from net.Addr) {
	log := r.log.With().Str("from", from.String()).Int("bytes", len(data)).Logger()

	sub, err := submission.Decode(data)
	if err != nil {
		r.metrics.Received(telemetry.ResultDecodeError)
		log.Warn().Err(err).Msg("dropping undecodable datagram")
		return
	}

	key := record.Key(r.now())
	if err := r.store.Append(ctx, key, sub); err != nil {
		r.metrics.Received(telemetry.ResultStoreError)
		log.Error().Err(err).Str("key", key).Msg("failed to store record, message lost")
		return
	}

	r.metrics.Received(telemetry.ResultStored)
	log.Debug().Str("key", key).Int("fields", len(sub)).Msg("stored record")
}
