package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/domeshutter/internal/shutter"
	"github.com/jkaflik/domeshutter/internal/shutter/dome"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	mqttOpenCmd  = "open"
	mqttCloseCmd = "close"
	mqttStopCmd  = "stop"
	mqttSaveCmd  = "save"

	mqttWirelessConfigureCmd = "configure"

	mqttOnline  = "online"
	mqttOffline = "offline"
)

// Loop runs functions on the goroutine owning the shutter.
type Loop interface {
	Do(ctx context.Context, fn func(s *dome.Shutter)) error
}

type settingHandler func(s *dome.Shutter, payload string) error

// configPayload is the retained view of the persisted settings.
type configPayload struct {
	Acceleration   uint16 `json:"acceleration"`
	MaxSpeed       uint32 `json:"max_speed"`
	StepsPerStroke uint32 `json:"steps_per_stroke"`
	Reversed       bool   `json:"reversed"`
	CutoffVolts    uint16 `json:"cutoff_volts"`
	SleepMode      uint8  `json:"sleep_mode"`
	SleepPeriod    uint16 `json:"sleep_period"`
	SleepDelay     uint16 `json:"sleep_delay"`
}

type Bridge struct {
	mqtt mqtt.Client
	loop Loop
	name string

	StateTopic        string
	PositionTopic     string
	StepsTopic        string
	BatteryTopic      string
	MetadataTopic     string
	ConfigTopic       string
	AvailabilityTopic string

	CommandTopic        string
	PositionChangeTopic string

	settings map[string]settingHandler
}

func AvailabilityTopic(name string) string {
	return fmt.Sprintf("domeshutter/%s/availability", name)
}

// SetWill makes the broker mark the shutter offline when the daemon drops.
func SetWill(opts *mqtt.ClientOptions, name string) *mqtt.ClientOptions {
	return opts.SetWill(AvailabilityTopic(name), mqttOffline, 0, true)
}

// NewBridge must be called before the loop starts, it installs the update
// handler of the shutter.
func NewBridge(client mqtt.Client, s *dome.Shutter, loop Loop) *Bridge {
	name := s.Name()
	bridge := &Bridge{mqtt: client, loop: loop, name: name}
	bridge.StateTopic = fmt.Sprintf("domeshutter/%s/state", name)
	bridge.PositionTopic = fmt.Sprintf("domeshutter/%s/position", name)
	bridge.StepsTopic = fmt.Sprintf("domeshutter/%s/steps", name)
	bridge.BatteryTopic = fmt.Sprintf("domeshutter/%s/battery", name)
	bridge.MetadataTopic = fmt.Sprintf("domeshutter/%s/metadata", name)
	bridge.ConfigTopic = fmt.Sprintf("domeshutter/%s/config", name)
	bridge.AvailabilityTopic = AvailabilityTopic(name)
	bridge.CommandTopic = fmt.Sprintf("domeshutter/%s/set", name)
	bridge.PositionChangeTopic = fmt.Sprintf("domeshutter/%s/position/set", name)

	bridge.settings = map[string]settingHandler{
		fmt.Sprintf("domeshutter/%s/steps/set", name):        gotoSteps,
		fmt.Sprintf("domeshutter/%s/move/set", name):         moveRelative,
		fmt.Sprintf("domeshutter/%s/cutoff/set", name):       setCutoff,
		fmt.Sprintf("domeshutter/%s/sleep/set", name):        setSleep,
		fmt.Sprintf("domeshutter/%s/reversed/set", name):     setReversed,
		fmt.Sprintf("domeshutter/%s/acceleration/set", name): setAcceleration,
		fmt.Sprintf("domeshutter/%s/speed/set", name):        setMaxSpeed,
		fmt.Sprintf("domeshutter/%s/stroke/set", name):       setStepsPerStroke,
		fmt.Sprintf("domeshutter/%s/wireless/set", name):     startWirelessConfig,
	}

	s.OnUpdate(bridge.onShutterUpdateHandler(s))

	return bridge
}

func (b *Bridge) SetMetadata(value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if token := b.mqtt.Publish(b.MetadataTopic, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT metadata publish failed", b.name)
	}

	return nil
}

func (b *Bridge) Subscribe(ctx context.Context) error {
	topics := []string{b.CommandTopic, b.PositionChangeTopic}
	for topic := range b.settings {
		topics = append(topics, topic)
	}

	go func() {
		<-ctx.Done()
		if token := b.mqtt.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT topics unsubscribe failed: %s", b.name, token.Error())
		}
		if token := b.mqtt.Publish(b.AvailabilityTopic, 0, true, mqttOffline); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT availability publish failed: %s", b.name, token.Error())
		}
	}()

	if token := b.mqtt.Subscribe(b.CommandTopic, 0, b.onCommandHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT command topic subscription failed", b.name)
	}
	logrus.Infof("%s: MQTT command topic subscribed", b.name)

	if token := b.mqtt.Subscribe(b.PositionChangeTopic, 0, b.onPositionChangeHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT position change topic subscription failed", b.name)
	}
	logrus.Infof("%s: MQTT position change topic subscribed", b.name)

	for topic, handler := range b.settings {
		if token := b.mqtt.Subscribe(topic, 0, b.onSettingHandler(ctx, handler)); token.Wait() && token.Error() != nil {
			return errors.Wrapf(token.Error(), "%s: MQTT %s subscription failed", b.name, topic)
		}
		logrus.Debugf("%s: MQTT %s subscribed", b.name, topic)
	}

	if token := b.mqtt.Publish(b.AvailabilityTopic, 0, true, mqttOnline); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT availability publish failed", b.name)
	}

	return nil
}

// onShutterUpdateHandler runs on the loop goroutine, so it reads the shutter
// directly and never waits for the broker.
func (b *Bridge) onShutterUpdateHandler(s *dome.Shutter) shutter.UpdateHandler {
	return func(state shutter.State, position int64) {
		b.publish(b.StateTopic, state.String())
		b.publish(b.StepsTopic, strconv.FormatInt(position, 10))
		b.publish(b.PositionTopic, strconv.Itoa(int(math.Round(s.PositionToAltitude(position)))))
		b.publish(b.BatteryTopic, s.VoltString())
		b.publishConfig(s)
	}
}

// publishConfig must run on the loop goroutine.
func (b *Bridge) publishConfig(s *dome.Shutter) {
	cfg := s.Config()
	payload, err := json.Marshal(configPayload{
		Acceleration:   s.Acceleration(),
		MaxSpeed:       s.MaxSpeed(),
		StepsPerStroke: s.StepsPerStroke(),
		Reversed:       s.Reversed(),
		CutoffVolts:    s.CutoffVolts(),
		SleepMode:      cfg.SleepMode,
		SleepPeriod:    cfg.SleepPeriod,
		SleepDelay:     cfg.SleepDelay,
	})
	if err != nil {
		logrus.Errorf("%s: MQTT config encode failed: %s", b.name, err)
		return
	}

	b.publish(b.ConfigTopic, string(payload))
}

func (b *Bridge) publish(topic, payload string) {
	token := b.mqtt.Publish(topic, 0, true, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT %s publish failed: %s", b.name, topic, token.Error())
		}
	}()
}

func (b *Bridge) onCommandHandler(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		cmd := strings.TrimSpace(string(msg.Payload()))

		var fn func(s *dome.Shutter)
		switch cmd {
		case mqttOpenCmd:
			fn = func(s *dome.Shutter) { s.Open() }
		case mqttCloseCmd:
			fn = func(s *dome.Shutter) { s.Close() }
		case mqttStopCmd:
			fn = func(s *dome.Shutter) { s.Stop() }
		case mqttSaveCmd:
			fn = func(s *dome.Shutter) {
				if err := s.SaveConfig(); err != nil {
					logrus.Error(err)
				}
			}
		default:
			logrus.Errorf("%s: MQTT unsupported %s command received", b.name, cmd)
			return
		}

		if err := b.loop.Do(ctx, fn); err != nil {
			logrus.Errorf("%s: MQTT %s command dropped: %s", b.name, cmd, err)
		}
	}
}

func (b *Bridge) onPositionChangeHandler(ctx context.Context) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		altitude, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload())), 64)
		if err != nil {
			logrus.Error(err)
			return
		}

		if err := b.loop.Do(ctx, func(s *dome.Shutter) { s.GotoAltitude(altitude) }); err != nil {
			logrus.Errorf("%s: MQTT position change dropped: %s", b.name, err)
		}
	}
}

func (b *Bridge) onSettingHandler(ctx context.Context, handler settingHandler) mqtt.MessageHandler {
	return func(c mqtt.Client, msg mqtt.Message) {
		topic := msg.Topic()
		payload := strings.TrimSpace(string(msg.Payload()))

		// the loop may run fn after Do gave up, so fn reports on its own
		fn := func(s *dome.Shutter) {
			if err := handler(s, payload); err != nil {
				logrus.Errorf("%s: MQTT %s: %s", b.name, topic, err)
			}
			b.publishConfig(s)
		}
		if err := b.loop.Do(ctx, fn); err != nil {
			logrus.Errorf("%s: MQTT %s dropped: %s", b.name, topic, err)
		}
	}
}

func gotoSteps(s *dome.Shutter, payload string) error {
	position, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return err
	}
	s.GotoPosition(position)
	return nil
}

func moveRelative(s *dome.Shutter, payload string) error {
	steps, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return err
	}
	s.MoveRelative(steps)
	return nil
}

func setCutoff(s *dome.Shutter, payload string) error {
	return s.SetCutoffVolts(payload)
}

func setSleep(s *dome.Shutter, payload string) error {
	return s.ChangeSleepSettings(payload)
}

func setReversed(s *dome.Shutter, payload string) error {
	reversed, err := strconv.ParseBool(payload)
	if err != nil {
		return err
	}
	return s.SetReversed(reversed)
}

func setAcceleration(s *dome.Shutter, payload string) error {
	v, err := strconv.ParseUint(payload, 10, 16)
	if err != nil {
		return err
	}
	s.SetAcceleration(uint16(v))
	return nil
}

func setMaxSpeed(s *dome.Shutter, payload string) error {
	v, err := strconv.ParseUint(payload, 10, 16)
	if err != nil {
		return err
	}
	s.SetMaxSpeed(uint16(v))
	return nil
}

func setStepsPerStroke(s *dome.Shutter, payload string) error {
	v, err := strconv.ParseUint(payload, 10, 32)
	if err != nil {
		return err
	}
	s.SetStepsPerStroke(uint32(v))
	return nil
}

func startWirelessConfig(s *dome.Shutter, payload string) error {
	if payload != mqttWirelessConfigureCmd {
		return errors.Errorf("unsupported wireless command %q", payload)
	}
	s.StartWirelessConfig()
	return nil
}
