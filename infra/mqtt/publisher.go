package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/immansha/renewcast/core/events"
	coremqtt "github.com/immansha/renewcast/core/mqtt"
	"github.com/immansha/renewcast/infra/logger"
	"github.com/immansha/renewcast/internal/eventbus"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Commands   []coremqtt.Command
	FailPlants map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		FailPlants: make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// SendCommand records the command or returns an error if configured to fail.
func (m *MockPublisher) SendCommand(cmd coremqtt.Command) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPlants[cmd.PlantID] {
		return "", fmt.Errorf("publish failed")
	}
	cmd.CommandID = fmt.Sprintf("cmd-%s-%d", cmd.PlantID, len(m.Commands))
	m.Commands = append(m.Commands, cmd)
	m.AckResults[cmd.CommandID] = true
	return cmd.CommandID, nil
}

// Sent returns a copy of the recorded commands.
func (m *MockPublisher) Sent() []coremqtt.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]coremqtt.Command(nil), m.Commands...)
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	if !exists {
		return false, coremqtt.ErrUnknownCommand
	}
	return ok, nil
}

// StartForwarder subscribes to the bus and sends a command for every approved
// decision with a selected asset. Unless forwardAll is set a command is only
// sent when its asset or megawatts differ from the last one sent for the
// plant. A positive ackTimeout waits for the
// gateway acknowledgment. The returned channel is closed once the forwarder
// stops.
func StartForwarder(ctx context.Context, bus *eventbus.TypedBus[events.Event], cli Client, forwardAll bool, ackTimeout time.Duration, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || cli == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		sent := make(map[string]coremqtt.Command)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, isDispatch := ev.(events.DispatchGated)
				if !isDispatch || e.Dispatch.Held() || e.Dispatch.SelectedAsset == nil {
					continue
				}
				cmd := coremqtt.CommandFromDispatch(e.Dispatch)
				if last, ok := sent[cmd.PlantID]; ok && !forwardAll && last.Asset == cmd.Asset && last.MW == cmd.MW {
					continue
				}
				if !e.Time.IsZero() {
					cmd.Timestamp = e.Time.UnixMilli()
				}
				id, err := cli.SendCommand(cmd)
				if err != nil {
					log.Errorf("[%s] send command: %v", cmd.PlantID, err)
					continue
				}
				sent[cmd.PlantID] = cmd
				if ackTimeout <= 0 {
					continue
				}
				if acked, err := cli.WaitForAck(id, ackTimeout); err != nil || !acked {
					log.Warnf("[%s] command %s not acknowledged: %v", cmd.PlantID, id, err)
				}
			}
		}
	}()
	return done
}
