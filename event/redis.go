package event

import (
	"encoding/json"
	"net"
	"strings"
	"sync"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultChannelPrefix prefixes the channel of each kind.
const DefaultChannelPrefix = "fragment-window"

type RedisOptions struct {
	Addr     string
	DB       int
	Password string

	// Prefix is prepended to the kind to form the channel name, joined
	// with a colon.
	Prefix string

	Logger logrus.FieldLogger
}

// Redis is a Bus backed by Redis pub/sub. Events are JSON encoded and
// published on one channel per kind. Each subscription owns its own
// connection and delivers events to its handler sequentially.
type Redis struct {
	rc     *redis.Client
	prefix string
	log    logrus.FieldLogger

	mu   sync.Mutex
	subs map[*redis.PubSub]struct{}
}

// NewRedis connects to the Redis server described by opt and verifies
// the connection.
func NewRedis(opt *RedisOptions) (*Redis, error) {
	if opt == nil {
		opt = &RedisOptions{}
	}
	addr := opt.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "6379")
	}
	b := &Redis{
		rc: redis.NewClient(&redis.Options{
			Addr:     addr,
			DB:       opt.DB,
			Password: opt.Password,
		}),
		prefix: opt.Prefix,
		log:    opt.Logger,
		subs:   map[*redis.PubSub]struct{}{},
	}
	if b.prefix == "" {
		b.prefix = DefaultChannelPrefix
	}
	if b.log == nil {
		b.log = logrus.StandardLogger()
	}
	if err := b.rc.Ping().Err(); err != nil {
		b.rc.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", addr)
	}
	return b, nil
}

// Channel returns the pub/sub channel carrying events of kind k.
func (b *Redis) Channel(k Kind) string {
	return channel(b.prefix, k)
}

func channel(prefix string, k Kind) string {
	return prefix + ":" + string(k)
}

func kindOf(prefix, ch string) (Kind, bool) {
	if !strings.HasPrefix(ch, prefix+":") {
		return "", false
	}
	return Kind(ch[len(prefix)+1:]), true
}

func (b *Redis) Publish(e Event) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	if err := b.rc.Publish(b.Channel(e.Kind), data).Err(); err != nil {
		return errors.Wrapf(err, "publishing %s", e.Kind)
	}
	return nil
}

func (b *Redis) Subscribe(k Kind, h Handler) (cancel func()) {
	ps := b.rc.Subscribe(b.Channel(k))
	// wait for the subscription to be confirmed so that events published
	// after Subscribe returns are not missed
	if _, err := ps.Receive(); err != nil {
		b.log.WithError(err).WithField("kind", k).Warn("confirming subscription")
	}
	b.mu.Lock()
	b.subs[ps] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			e, err := decode(b.prefix, msg.Channel, msg.Payload)
			if err != nil {
				b.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping event")
				continue
			}
			h(e)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ps)
			b.mu.Unlock()
			if err := ps.Close(); err != nil {
				b.log.WithError(err).Debug("closing subscription")
			}
			<-done
		})
	}
}

// Close closes every open subscription and the client connection.
func (b *Redis) Close() error {
	b.mu.Lock()
	for ps := range b.subs {
		ps.Close()
		delete(b.subs, ps)
	}
	b.mu.Unlock()
	return b.rc.Close()
}

func encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s event", e.Kind)
	}
	return data, nil
}

func decode(prefix, ch, payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, errors.Wrap(err, "decoding event")
	}
	if k, ok := kindOf(prefix, ch); !ok || k != e.Kind {
		return Event{}, errors.Errorf("event kind %q does not match channel %q", e.Kind, ch)
	}
	return e, nil
}
