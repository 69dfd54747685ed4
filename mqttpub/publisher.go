package mqttpub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shimmeringbee/da"
	"github.com/shimmeringbee/da/capabilities"
	"github.com/shimmeringbee/lockbridge"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/retry"
)

const (
	DefaultPrefix = "lockbridge"

	connectTimeout    = 10 * time.Second
	connectRetries    = 5
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000
)

// Publisher mirrors the bridge onto an MQTT broker. Lock state is published
// retained under <prefix>/<identifier>/state, and commands are accepted on
// <prefix>/<identifier>/set and <prefix>/<identifier>/identify.
type Publisher struct {
	bridge *lockbridge.Bridge
	client pahomqtt.Client
	prefix string
	logger logwrap.Logger
}

// StatePayload is the retained per-lock state document.
type StatePayload struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Target     string `json:"target"`
	Fault      bool   `json:"fault"`
	LowBattery bool   `json:"low_battery"`
	Pending    bool   `json:"pending"`
}

func New(b *lockbridge.Bridge, client pahomqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Publisher{
		bridge: b,
		client: client,
		prefix: prefix,
		logger: logwrap.New(discard.Discard()),
	}
}

func (p *Publisher) WithLogWrapLogger(lw logwrap.Logger) {
	p.logger = lw
}

// Connect establishes the broker session, retrying on transient failure.
func Connect(ctx context.Context, broker string, clientID string) (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)

	client := pahomqtt.NewClient(opts)

	err := retry.Retry(ctx, connectTimeout, connectRetries, func(ctx context.Context) error {
		token := client.Connect()

		select {
		case <-token.Done():
			return token.Error()
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return client, nil
}

// Run consumes the bridge event stream until the context ends, mirroring
// device lifecycle and state onto the broker. Locks present before Run is
// called are announced immediately.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.client.Disconnect(disconnectQuiesce)

	for _, s := range p.bridge.Snapshot() {
		p.announce(ctx, s.ExternalID)
		p.publishState(ctx, s)
	}

	for {
		e, err := p.bridge.ReadEvent(ctx)
		if err != nil {
			return err
		}

		switch ev := e.(type) {
		case da.DeviceAdded:
			p.announce(ctx, ev.Device.Identifier().String())
			p.publishCurrent(ctx, ev.Device.Identifier().String())
		case da.DeviceRemoved:
			p.retract(ctx, ev.Device.Identifier().String())
		case lockbridge.DoorLockUpdate:
			p.publishCurrent(ctx, ev.Device.Identifier().String())
		case capabilities.IdentifyUpdate:
			p.publishIdentify(ctx, ev.Device.Identifier().String(), ev.State)
		}
	}
}

func (p *Publisher) announce(ctx context.Context, id string) {
	setTopic := p.topic(id, "set")
	identifyTopic := p.topic(id, "identify")

	p.client.Subscribe(setTopic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		p.handleSet(id, msg.Payload())
	})

	p.client.Subscribe(identifyTopic, 1, func(_ pahomqtt.Client, _ pahomqtt.Message) {
		p.handleIdentify(id)
	})

	p.logger.LogInfo(ctx, "Announced lock on broker.", logwrap.Datum("Identifier", id))
}

func (p *Publisher) retract(ctx context.Context, id string) {
	p.client.Unsubscribe(p.topic(id, "set"), p.topic(id, "identify"))

	// Empty retained payload clears the topic on the broker.
	token := p.client.Publish(p.topic(id, "state"), 1, true, []byte{})
	token.WaitTimeout(publishTimeout)

	p.logger.LogInfo(ctx, "Retracted lock from broker.", logwrap.Datum("Identifier", id))
}

func (p *Publisher) publishCurrent(ctx context.Context, id string) {
	for _, s := range p.bridge.Snapshot() {
		if s.ExternalID == id {
			p.publishState(ctx, s)
			return
		}
	}
}

func (p *Publisher) publishState(ctx context.Context, s lockbridge.LockSnapshot) {
	payload, err := json.Marshal(StatePayload{
		Name:       s.Name,
		State:      s.State.String(),
		Target:     s.Target.String(),
		Fault:      s.Fault,
		LowBattery: s.LowBattery,
		Pending:    s.Pending,
	})
	if err != nil {
		p.logger.LogError(ctx, "Failed to marshal lock state.", logwrap.Datum("Identifier", s.ExternalID), logwrap.Err(err))
		return
	}

	token := p.client.Publish(p.topic(s.ExternalID, "state"), 1, true, payload)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		p.logger.LogWarn(ctx, "Failed to publish lock state.", logwrap.Datum("Identifier", s.ExternalID), logwrap.Err(token.Error()))
	}
}

func (p *Publisher) publishIdentify(ctx context.Context, id string, state capabilities.IdentifyState) {
	payload, err := json.Marshal(struct {
		Identifying bool    `json:"identifying"`
		Remaining   float64 `json:"remaining_seconds"`
	}{
		Identifying: state.Identifying,
		Remaining:   state.Remaining.Seconds(),
	})
	if err != nil {
		return
	}

	token := p.client.Publish(p.topic(id, "identify/state"), 1, false, payload)
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		p.logger.LogWarn(ctx, "Failed to publish identify state.", logwrap.Datum("Identifier", id), logwrap.Err(token.Error()))
	}
}

func (p *Publisher) handleSet(id string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	target, ok := ParseTarget(string(payload))
	if !ok {
		p.logger.LogWarn(ctx, "Ignoring unrecognised set payload.", logwrap.Datum("Identifier", id), logwrap.Datum("Payload", string(payload)))
		return
	}

	slot, found := p.bridge.SlotByExternalID(id)
	if !found {
		return
	}

	if err := p.bridge.SetTarget(ctx, slot, target); err != nil {
		p.logger.LogWarn(ctx, "Broker command rejected.", logwrap.Datum("Identifier", id), logwrap.Err(err))
	}
}

func (p *Publisher) handleIdentify(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	slot, found := p.bridge.SlotByExternalID(id)
	if !found {
		return
	}

	if err := p.bridge.Identify(ctx, slot, 0); err != nil {
		p.logger.LogWarn(ctx, "Broker identify rejected.", logwrap.Datum("Identifier", id), logwrap.Err(err))
	}
}

// ParseTarget maps a command payload to a rest state. Accepted values are
// SECURED/UNSECURED and the aliases LOCK/UNLOCK, case insensitively.
func ParseTarget(payload string) (lockbridge.LockState, bool) {
	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case "SECURED", "LOCK", "LOCKED":
		return lockbridge.Secured, true
	case "UNSECURED", "UNLOCK", "UNLOCKED":
		return lockbridge.Unsecured, true
	default:
		return lockbridge.Unsecured, false
	}
}

func (p *Publisher) topic(id string, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, id, suffix)
}
