package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/client/signaling"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

var ErrBrokerLost = errors.New("signaling broker connection lost")

// EnvelopeSender queues one envelope on a socket.
type EnvelopeSender interface {
	Send(tag string, payload any) error
}

// BrokerSignaler carries signals over the dedicated broker socket.
type BrokerSignaler struct {
	client *signaling.Client
}

func NewBrokerSignaler(c *signaling.Client) *BrokerSignaler {
	return &BrokerSignaler{client: c}
}

func (b *BrokerSignaler) Send(_ context.Context, to domain.SessionID, s Signal) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	return b.client.Send(protocol.TagSignal, protocol.BrokerSignal{To: to, Signal: raw})
}

// Listen feeds broker frames into d until the socket ends or ctx is done.
func (b *BrokerSignaler) Listen(ctx context.Context, d *Dialer) error {
	logger := log.With().Str("module", "adapters.rtc").Str("path", "broker").Logger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-b.client.Incoming():
			if !ok {
				return ErrBrokerLost
			}
			switch env.Type {
			case protocol.TagSignal:
				var bs protocol.BrokerSignal
				if err := json.Unmarshal(env.Payload, &bs); err != nil {
					logger.Warn().Err(err).Msg("bad broker signal")
					continue
				}
				sig, err := DecodeSignal(bs.Signal)
				if err != nil {
					logger.Warn().Err(err).Str("from", string(bs.From)).Msg("bad broker signal")
					continue
				}
				d.HandleSignal(ctx, bs.From, sig)
			case protocol.TagUnavailable:
				var bs protocol.BrokerSignal
				if err := json.Unmarshal(env.Payload, &bs); err == nil {
					d.Unavailable(ctx, bs.To)
				}
			case protocol.TagError:
				var e protocol.Error
				_ = json.Unmarshal(env.Payload, &e)
				logger.Warn().Str("code", e.Code).Str("message", e.Message).Msg("broker error")
			}
		}
	}
}

func (b *BrokerSignaler) Close() { b.client.Close() }

// RelaySignaler carries signals inside signalRelay frames on the session
// socket. Inbound relays are handed to HandleRelay by the session owner.
type RelaySignaler struct {
	out EnvelopeSender
}

func NewRelaySignaler(out EnvelopeSender) *RelaySignaler {
	return &RelaySignaler{out: out}
}

func (r *RelaySignaler) Send(_ context.Context, to domain.SessionID, s Signal) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	return r.out.Send(protocol.TagSignalRelay, protocol.SignalRelay{Target: to, Signal: raw})
}

// HandleRelay decodes one signalRelay payload and applies it to d.
func HandleRelay(ctx context.Context, d *Dialer, payload json.RawMessage) error {
	var sr protocol.SignalRelay
	if err := json.Unmarshal(payload, &sr); err != nil {
		return fmt.Errorf("decode relay: %w", err)
	}
	if sr.From == "" {
		return fmt.Errorf("decode relay: missing sender")
	}
	sig, err := DecodeSignal(sr.Signal)
	if err != nil {
		return err
	}
	d.HandleSignal(ctx, sr.From, sig)
	return nil
}
