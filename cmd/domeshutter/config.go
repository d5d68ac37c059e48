package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/domeshutter/internal/accel"
	"github.com/jkaflik/domeshutter/internal/eeprom"
	"github.com/jkaflik/domeshutter/internal/link"
	"github.com/jkaflik/domeshutter/internal/pin"
	"github.com/jkaflik/domeshutter/internal/shutter/dome"
	"github.com/racerxdl/go-mcp23017"
	"github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
	"gopkg.in/yaml.v2"
)

// cfgPin with an empty kind is not connected.
type cfgPin struct {
	Kind string `yaml:"kind"`

	Pin uint8 `yaml:"pin"`

	Mcp23017 int  `yaml:"mcp23017"`
	Inverted bool `yaml:"inverted"`
}

type cfgSwitch struct {
	Pin       cfgPin `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low" default:"true"`
}

type cfgStepper struct {
	Step      cfgPin `yaml:"step"`
	Direction cfgPin `yaml:"direction"`
	Enable    cfgPin `yaml:"enable"`

	MinPulseWidth time.Duration `yaml:"min_pulse_width" default:"1us"`
}

type cfgBattery struct {
	Kind string `yaml:"kind" default:"fixed"`

	Path string `yaml:"path"`
	Raw  int    `yaml:"raw" default:"840"`
}

type cfgWireless struct {
	Kind string `yaml:"kind" default:"dumb"`

	Port string `yaml:"port" default:"/dev/ttyUSB0"`
	Baud int    `yaml:"baud" default:"9600"`
}

type cfgShutterMQTTBridge struct {
	Metadata map[string]interface{} `yaml:"metadata"`
}

type cfgShutter struct {
	Name   string `yaml:"name" default:"dome" env:"NAME"`
	EEPROM string `yaml:"eeprom" default:"domeshutter.eeprom" env:"EEPROM"`

	Stepper      cfgStepper  `yaml:"stepper"`
	ClosedSwitch cfgSwitch   `yaml:"closed_switch"`
	OpenedSwitch cfgSwitch   `yaml:"opened_switch"`
	Battery      cfgBattery  `yaml:"battery"`
	Wireless     cfgWireless `yaml:"wireless"`

	IdlePoll          time.Duration `yaml:"idle_poll" default:"10ms"`
	ReportInterval    time.Duration `yaml:"report_interval" default:"1s"`
	BatteryFirstCheck time.Duration `yaml:"battery_first_check" default:"5s"`
	BatteryInterval   time.Duration `yaml:"battery_interval" default:"2m"`
	WirelessGuard     time.Duration `yaml:"wireless_guard" default:"1s"`

	MQTTBridge cfgShutterMQTTBridge `yaml:"mqtt_bridge"`
}

type cfgDrivers struct {
	Mcp23017 map[int]struct {
		Bus          uint8 `yaml:"bus" default:"1"`
		DeviceNumber uint8 `yaml:"device_number" default:"0"`
	} `yaml:"mcp23017"`
}

type cfgMQTT struct {
	ClientID string `yaml:"client_id" default:"domeshutter" env:"CLIENT_ID"`
	Broker   string `yaml:"broker" default:"127.0.0.1:1883" env:"BROKER"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type cfgHASS struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	TopicPrefix string `yaml:"topic_prefix" default:"homeassistant" env:"TOPIC_PREFIX"`
}

var Cfg struct {
	LogLevel string `yaml:"log_level" default:"info" env:"LOG_LEVEL"`

	MQTT cfgMQTT `yaml:"mqtt" env:"MQTT"`
	HASS cfgHASS `yaml:"hass" env:"HASS"`

	Shutter cfgShutter `yaml:"shutter" env:"SHUTTER"`

	Drivers cfgDrivers `yaml:"drivers"`
}

var configLoader = aconfig.LoaderFor(&Cfg, aconfig.Config{
	EnvPrefix: "DS",
	SkipFlags: true,
	SkipFiles: true,
})

func loadConfigFromYamlFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		logrus.Error(err)
		return
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&Cfg); err != nil {
		logrus.Fatal(err)
	}
}

func pahoOptsFromConfig() *paho.ClientOptions {
	return paho.NewClientOptions().
		SetClientID(Cfg.MQTT.ClientID).
		AddBroker(Cfg.MQTT.Broker).
		SetUsername(Cfg.MQTT.Username).
		SetPassword(Cfg.MQTT.Password).
		SetConnectTimeout(time.Second).
		SetPingTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetAutoReconnect(true)
}

func timingFromConfig(cfg cfgShutter) dome.Timing {
	return dome.Timing{
		BatteryFirstCheck: cfg.BatteryFirstCheck,
		BatteryInterval:   cfg.BatteryInterval,
		WirelessGuard:     cfg.WirelessGuard,
	}
}

// hardwareFromConfig opens every device the shutter needs. Devices are
// released once ctx is done.
func hardwareFromConfig(ctx context.Context, cfg cfgShutter) (dome.Hardware, *accel.Stepper, io.ReadWriteCloser) {
	stepper := stepperFromConfig(ctx, cfg.Stepper)
	wireless := wirelessFromConfig(ctx, cfg.Name, cfg.Wireless)

	storage, err := eeprom.OpenFile(cfg.EEPROM)
	if err != nil {
		logrus.Fatal(err)
	}
	go func() {
		<-ctx.Done()
		if err := storage.Close(); err != nil {
			logrus.Errorf("eeprom: close failed %s", err)
		}
	}()

	hw := dome.Hardware{
		Stepper:      stepper,
		ClosedSwitch: switchFromConfig(ctx, cfg.ClosedSwitch),
		OpenedSwitch: switchFromConfig(ctx, cfg.OpenedSwitch),
		Battery:      batteryFromConfig(cfg.Battery),
		Wireless:     wireless,
		Storage:      storage,
	}
	if wireless == nil {
		hw.Wireless = &link.Log{Name: cfg.Name}
	}

	return hw, stepper, wireless
}

func stepperFromConfig(ctx context.Context, cfg cfgStepper) *accel.Stepper {
	stepper := accel.New(accel.Pins{
		Step:      setPinFromConfig(ctx, cfg.Step),
		Direction: setPinFromConfig(ctx, cfg.Direction),
		Enable:    setPinFromConfig(ctx, cfg.Enable),
	})
	stepper.SetMinPulseWidth(cfg.MinPulseWidth)

	if err := stepper.EnableOutputs(); err != nil {
		logrus.Fatal(err)
	}

	return stepper
}

func setPinFromConfig(ctx context.Context, cfg cfgPin) pin.SetPin {
	p := outputFromConfig(ctx, cfg)
	if p == nil || !cfg.Inverted {
		return p
	}

	return &pin.Polarity{Pin: p, Inverted: true}
}

func outputFromConfig(ctx context.Context, cfg cfgPin) pin.SetPin {
	switch cfg.Kind {
	case "":
		return nil
	case "rpio":
		openRpio(ctx)
		return pin.NewRpioPin(cfg.Pin)
	case "mcp23017":
		p, err := pin.NewMcp23017Pin(mcp23017DeviceFromConfigByID(ctx, cfg.Mcp23017), cfg.Pin)
		if err != nil {
			logrus.Fatal(err)
		}
		return p
	case "dumb":
		return &pin.Dumb{Name: "dumb"}
	}

	logrus.Fatalf("%s is not supported pin kind", cfg.Kind)
	return nil
}

func switchFromConfig(ctx context.Context, cfg cfgSwitch) dome.Input {
	var reader pin.LevelReader

	switch cfg.Pin.Kind {
	case "rpio":
		openRpio(ctx)
		reader = pin.NewRpioInput(cfg.Pin.Pin)
	case "mcp23017":
		p, err := pin.NewMcp23017Input(mcp23017DeviceFromConfigByID(ctx, cfg.Pin.Mcp23017), cfg.Pin.Pin)
		if err != nil {
			logrus.Fatal(err)
		}
		reader = p
	case "", "dumb":
		return &pin.Switch{Pin: &pin.Dumb{Name: "dumb"}}
	default:
		logrus.Fatalf("%s is not supported switch pin kind", cfg.Pin.Kind)
	}

	return &pin.Switch{Pin: reader, ActiveLow: cfg.ActiveLow}
}

func batteryFromConfig(cfg cfgBattery) dome.VoltageSensor {
	switch cfg.Kind {
	case "iio":
		return &pin.IIOChannel{Path: cfg.Path}
	case "fixed":
		return &pin.FixedChannel{Raw: cfg.Raw}
	}

	logrus.Fatalf("%s is not supported battery kind", cfg.Kind)
	return nil
}

// wirelessFromConfig returns nil for the dumb kind.
func wirelessFromConfig(ctx context.Context, name string, cfg cfgWireless) io.ReadWriteCloser {
	switch cfg.Kind {
	case "dumb":
		return nil
	case "serial":
		port, err := link.Open(cfg.Port, cfg.Baud)
		if err != nil {
			logrus.Fatal(err)
		}
		go func() {
			<-ctx.Done()
			if err := port.Close(); err != nil {
				logrus.Errorf("%s: serial close failed %s", name, err)
			}
		}()
		return port
	}

	logrus.Fatalf("%s is not supported wireless kind", cfg.Kind)
	return nil
}

var rpioOpened bool

func openRpio(ctx context.Context) {
	if rpioOpened {
		return
	}

	if err := rpio.Open(); err != nil {
		logrus.Fatal(err)
	}
	rpioOpened = true

	go func() {
		<-ctx.Done()
		if err := rpio.Close(); err != nil {
			logrus.Errorf("rpio: close failed %s", err)
			return
		}

		logrus.Infof("rpio: close")
	}()
}

var mcpDevices = map[int]*mcp23017.Device{}

func mcp23017DeviceFromConfigByID(ctx context.Context, id int) *mcp23017.Device {
	if Cfg.Drivers.Mcp23017 == nil {
		logrus.Fatal("drivers.mcp23017 not defined")
	}

	cfg, found := Cfg.Drivers.Mcp23017[id]
	if !found {
		logrus.Fatalf("%d is not valid defined drivers.mcp23017", id)
		return nil
	}

	dev := mcpDevices[id]
	if dev == nil {
		var err error
		dev, err = mcp23017.Open(cfg.Bus, cfg.DeviceNumber)
		if err != nil {
			logrus.Fatal(err)
		}
		go func() {
			<-ctx.Done()
			if err := dev.Close(); err != nil {
				logrus.Errorf("mcp23017: close failed %s", err)
				return
			}

			logrus.Infof("mcp23017: close")
		}()
		if err := dev.Reset(); err != nil {
			logrus.Fatal(err)
		}

		mcpDevices[id] = dev
	}

	return dev
}
