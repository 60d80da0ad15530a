package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/immansha/renewcast/infra/logger"
)

// AckStrategy defines how the gateway acknowledges commands.
type AckStrategy interface {
	Ack(ctx context.Context, cli paho.Client, topic, commandID string)
}

// AutoAck sends an ACK after an optional fixed delay.
type AutoAck struct {
	Delay time.Duration
}

// Ack implements AckStrategy.
func (a AutoAck) Ack(ctx context.Context, cli paho.Client, topic, commandID string) {
	if !wait(ctx, a.Delay) {
		return
	}
	publishAck(cli, topic, commandID)
}

// RandomAck drops acknowledgments with the configured probability and
// waits for the specified delay before sending.
type RandomAck struct {
	Delay    time.Duration
	DropRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// Ack implements AckStrategy.
func (r *RandomAck) Ack(ctx context.Context, cli paho.Client, topic, commandID string) {
	r.mu.Lock()
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	drop := r.DropRate > 0 && r.rng.Float64() < r.DropRate
	r.mu.Unlock()
	if drop || !wait(ctx, r.Delay) {
		return
	}
	publishAck(cli, topic, commandID)
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func publishAck(cli paho.Client, topic, commandID string) {
	payload, err := json.Marshal(struct {
		CommandID string `json:"command_id"`
	}{CommandID: commandID})
	if err != nil {
		return
	}
	token := cli.Publish(topic, 0, false, payload)
	token.WaitTimeout(5 * time.Second)
}

var newMQTTClient = defaultMQTTClient

func defaultMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// Gateway stands in for the SCADA gateways of all plants: it subscribes to
// <prefix>/+/dispatch and answers on <prefix>/<plant>/ack.
type Gateway struct {
	Broker   string
	Prefix   string
	Strategy AckStrategy

	client paho.Client
	ackCh  chan ack
	log    logger.Logger

	mu       sync.Mutex
	received int
}

type ack struct {
	topic     string
	commandID string
}

// NewGateway creates a gateway. A nil strategy acknowledges immediately.
func NewGateway(broker, prefix string, strat AckStrategy, log logger.Logger) *Gateway {
	if prefix == "" {
		prefix = "plant"
	}
	if strat == nil {
		strat = AutoAck{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Gateway{
		Broker:   broker,
		Prefix:   strings.TrimSuffix(prefix, "/"),
		Strategy: strat,
		ackCh:    make(chan ack, 50),
		log:      log,
	}
}

// Received returns how many commands were decoded.
func (g *Gateway) Received() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.received
}

// Run connects to the broker and acknowledges commands until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	cli, err := newMQTTClient(g.Broker, "renewcast-gateway")
	if err != nil {
		return err
	}
	g.client = cli
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.worker(ctx)
		}()
	}
	topic := g.Prefix + "/+/dispatch"
	if token := cli.Subscribe(topic, 0, g.onCommand); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}
	g.log.Infof("gateway listening on %s", topic)
	<-ctx.Done()
	wg.Wait()
	cli.Disconnect(250)
	return nil
}

func (g *Gateway) onCommand(_ paho.Client, msg paho.Message) {
	var m struct {
		CommandID string  `json:"command_id"`
		PlantID   string  `json:"plant_id"`
		Asset     string  `json:"asset"`
		MW        float64 `json:"mw"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		g.log.Warnf("decode command: %v", err)
		return
	}
	if m.PlantID == "" {
		m.PlantID = plantFromTopic(msg.Topic())
	}
	g.mu.Lock()
	g.received++
	g.mu.Unlock()
	g.log.Infof("[%s] command %s: %s %.1fMW", m.PlantID, m.CommandID, m.Asset, m.MW)
	select {
	case g.ackCh <- ack{topic: fmt.Sprintf("%s/%s/ack", g.Prefix, m.PlantID), commandID: m.CommandID}:
	default:
		g.log.Warnf("ack queue full, dropping command %s", m.CommandID)
	}
}

func (g *Gateway) worker(ctx context.Context) {
	for {
		select {
		case a := <-g.ackCh:
			g.Strategy.Ack(ctx, g.client, a.topic, a.commandID)
		case <-ctx.Done():
			return
		}
	}
}

func plantFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return ""
}
