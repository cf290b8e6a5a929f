package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	core "github.com/cuongceg/massrelay/internal/core"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var (
	_ core.Source = (*Connector)(nil)
	_ core.Target = (*Connector)(nil)
)

// Connector owns one AMQP connection and the single channel used for every
// operation on that side of the relay.
type Connector struct {
	cfg Config
	log zerolog.Logger

	conn *amqp.Connection
	ch   *amqp.Channel

	// returns is only registered in mandatory mode.
	returns <-chan amqp.Return

	sub *subscription

	// mu serialises publishes so the next confirmation belongs to the
	// message just sent.
	mu sync.Mutex
}

func NewConnector(cfg Config, log zerolog.Logger) *Connector {
	return &Connector{
		cfg: cfg,
		log: log.With().Str("side", cfg.Side).Logger(),
	}
}

func (c *Connector) Name() string {
	return c.cfg.Side
}

func (c *Connector) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	dialCfg := amqp.Config{
		Heartbeat:  defaultHeartbeat,
		Locale:     "en_US",
		Properties: amqp.NewConnectionProperties(),
		Dial: func(network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}
	if c.cfg.ConnectionName != "" {
		dialCfg.Properties.SetClientConnectionName(c.cfg.ConnectionName)
	}
	tlsCfg, err := buildTLSConfig(c.cfg.TLS)
	if err != nil {
		return err
	}
	dialCfg.TLSClientConfig = tlsCfg

	conn, err := amqp.DialConfig(c.cfg.URL, dialCfg)
	if err != nil {
		return fmt.Errorf("rabbitmq dial %s: %w", redactURL(c.cfg.URL), err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("create channel: %w", err)
	}

	if c.cfg.Confirm {
		if err := ch.Confirm(false); err != nil {
			_ = conn.Close()
			return fmt.Errorf("enable confirms: %w", err)
		}
		if c.cfg.Mandatory {
			c.returns = ch.NotifyReturn(make(chan amqp.Return, 1))
		}
	}

	c.conn = conn
	c.ch = ch
	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))

	c.log.Info().Str("addr", redactURL(c.cfg.URL)).Bool("confirm", c.cfg.Confirm).Msg("CONNECTED server")
	return nil
}

// watch logs a broker- or network-initiated connection close.
func (c *Connector) watch(closes <-chan *amqp.Error) {
	if err, ok := <-closes; ok && err != nil {
		c.log.Error().Err(err).Msg("connection closed")
	}
}

func (c *Connector) channel() (*amqp.Channel, error) {
	if c.ch == nil {
		return nil, core.ErrNotOpen
	}
	return c.ch, nil
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.sub != nil {
		if err := c.sub.Cancel(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			firstErr = err
		}
		c.sub = nil
	}
	if c.ch != nil {
		if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) && firstErr == nil {
			firstErr = err
		}
		c.ch = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) && firstErr == nil {
			firstErr = err
		}
		c.conn = nil
	}
	c.log.Debug().Msg("connector closed")
	return firstErr
}

// redactURL masks the password of an AMQP URI.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable address>"
	}
	return u.Redacted()
}
