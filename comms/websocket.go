package comms

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	kobuki "github.com/kobuki-driver/kobuki/driver"
	"github.com/kobuki-driver/kobuki/driver/observer"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// telemetryChannels is every observer channel suffix a websocket client
// receives; ros_* diagnostic channels are omitted since they are
// intended for local logging, not remote consumers.
var telemetryChannels = []string{
	observer.ChannelJointState,
	observer.ChannelSensorData,
	observer.ChannelIR,
	observer.ChannelDockIR,
	observer.ChannelInertia,
	observer.ChannelCliff,
	observer.ChannelCurrent,
	observer.ChannelMagnet,
	observer.ChannelHW,
	observer.ChannelFW,
	observer.ChannelTime,
	observer.ChannelStGyro,
	observer.ChannelEEPROM,
	observer.ChannelGPInput,
}

// wireEvent is the JSON shape pushed to each connected client.
type wireEvent struct {
	Channel string      `json:"channel"`
	Payload interface{} `json:"payload"`
}

// TelemetryWebsocketHandler upgrades the connection and relays every
// event on the telemetryChannels of d's observer bus for as long as the
// socket stays open. Each
// connection gets its own subscription set, torn down on disconnect.
func TelemetryWebsocketHandler(d *kobuki.Driver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan wireEvent, 32)
		var unsubscribers []func()
		for _, suffix := range telemetryChannels {
			suffix := suffix
			unsub := d.Bus().Subscribe(suffix, func(e observer.Event) {
				select {
				case out <- wireEvent{Channel: e.Channel, Payload: e.Payload}:
				default:
					// Slow consumer: drop rather than block the driver loop.
				}
			})
			unsubscribers = append(unsubscribers, unsub)
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// A read goroutine is required to notice client-initiated closes;
		// this connection is otherwise write-only.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case evt := <-out:
				b, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}
}
