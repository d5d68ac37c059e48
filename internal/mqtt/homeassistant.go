package mqtt

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

const (
	haPositionOpen   = 90
	haPositionClosed = 0
)

type haDevice struct {
	Identifiers  []string `json:"ids,omitempty"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	Name         string   `json:"name,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
}

type haEntity struct {
	AvailabilityTopic string `json:"avty_t,omitempty"`
	UniqueID          string `json:"uniq_id,omitempty"`
	Name              string `json:"name,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`

	Device haDevice `json:"device,omitempty"`
}

type haCover struct {
	haEntity
	StateTopic       string `json:"stat_t"`
	CommandTopic     string `json:"cmd_t"`
	PositionTopic    string `json:"pos_t"`
	SetPositionTopic string `json:"set_pos_t"`
	PositionOpen     int    `json:"pos_open"`
	PositionClosed   int    `json:"pos_clsd"`
	PayloadOpen      string `json:"pl_open"`
	PayloadStop      string `json:"pl_stop"`
	PayloadClose     string `json:"pl_cls"`
	StateOpen        string `json:"stat_open"`
	StateOpening     string `json:"stat_opening"`
	StateClosed      string `json:"stat_clsd"`
	StateClosing     string `json:"stat_closing"`
}

// NewHACoverFromMQTTBridge describes the shutter as a cover whose position is
// the elevation in degrees.
func NewHACoverFromMQTTBridge(bridge *Bridge) haCover {
	return haCover{
		haEntity: haEntity{
			AvailabilityTopic: bridge.AvailabilityTopic,
			UniqueID:          "domeshutter_" + bridge.name,
			Name:              bridge.name,
			DeviceClass:       "shutter",

			Device: haDevice{
				Identifiers:  []string{"domeshutter_" + bridge.name},
				Manufacturer: "domeshutter",
				Model:        "stepper shutter",
				Name:         bridge.name,
				SWVersion:    "domeshutter",
			},
		},
		StateTopic:       bridge.StateTopic,
		CommandTopic:     bridge.CommandTopic,
		PositionTopic:    bridge.PositionTopic,
		SetPositionTopic: bridge.PositionChangeTopic,
		PositionOpen:     haPositionOpen,
		PositionClosed:   haPositionClosed,
		PayloadOpen:      mqttOpenCmd,
		PayloadStop:      mqttStopCmd,
		PayloadClose:     mqttCloseCmd,
		StateOpen:        "open",
		StateOpening:     "opening",
		StateClosed:      "closed",
		StateClosing:     "closing",
	}
}

func PublishHAAutoDiscovery(client paho.Client, homeAssistantDiscoveryTopicPrefix string, haCover haCover) error {
	topic := fmt.Sprintf("%s/cover/domeshutter/%s/config", homeAssistantDiscoveryTopicPrefix, haCover.Name)

	payload, err := json.Marshal(haCover)
	if err != nil {
		return err
	}

	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: home assistant discovery publish failed", haCover.Name)
	}

	return nil
}
