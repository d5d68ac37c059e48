package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/domeshutter/internal/link"
	"github.com/jkaflik/domeshutter/internal/mqtt"
	"github.com/jkaflik/domeshutter/internal/shutter/dome"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
	})

	configPath := flag.String("config", "config.yaml", "config.yaml file path")
	flag.Parse()

	if err := configLoader.Load(); err != nil {
		logrus.Fatal(err)
	}
	loadConfigFromYamlFile(*configPath)

	level, err := logrus.ParseLevel(Cfg.LogLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	// devices outlive the loop so the driver can be disabled on the way out
	devices, closeDevices := context.WithCancel(context.Background())
	defer closeDevices()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hw, stepper, wireless := hardwareFromConfig(devices, Cfg.Shutter)
	s, err := dome.New(Cfg.Shutter.Name, hw, timingFromConfig(Cfg.Shutter))
	if err != nil {
		logrus.Fatal(err)
	}
	loop := dome.NewLoop(s, Cfg.Shutter.IdlePoll, Cfg.Shutter.ReportInterval)

	var bridge *mqtt.Bridge
	opts := mqtt.SetWill(pahoOptsFromConfig(), s.Name())
	opts.OnConnect = func(m paho.Client) {
		logrus.Info("MQTT broker connected")
		subscribe(ctx, m, bridge)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logrus.Errorf("MQTT broker connection lost: %s", err.Error())
	}

	m := paho.NewClient(opts)
	bridge = mqtt.NewBridge(m, s, loop)

	if token := m.Connect(); token.Wait() && token.Error() != nil {
		logrus.Fatal(token.Error())
	}
	if err := bridge.SetMetadata(Cfg.Shutter.MQTTBridge.Metadata); err != nil {
		logrus.Error(err)
	}

	if wireless != nil {
		go readWireless(ctx, wireless, loop, s.Name())
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		oscall := <-c
		logrus.Infof("system call: %+v", oscall)
		cancel()
	}()

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.Error(err)
	}

	if err := stepper.DisableOutputs(); err != nil {
		logrus.Errorf("%s: disable driver failed: %s", s.Name(), err)
	}
	closeDevices()

	cleanupTime := time.Second
	logrus.Infof("cleanups for %s...", cleanupTime.String())
	time.Sleep(cleanupTime)
	m.Disconnect(250)
}

func subscribe(ctx context.Context, m paho.Client, bridge *mqtt.Bridge) {
	if Cfg.HASS.Enabled {
		entity := mqtt.NewHACoverFromMQTTBridge(bridge)
		if err := mqtt.PublishHAAutoDiscovery(m, Cfg.HASS.TopicPrefix, entity); err != nil {
			logrus.Error(err)
		}
	}

	if err := bridge.Subscribe(ctx); err != nil {
		logrus.Error(err)
	}
}

// readWireless forwards the wireless module answers to the shutter.
func readWireless(ctx context.Context, r io.Reader, loop *dome.Loop, name string) {
	err := link.ReadLines(ctx, r, func(line string) {
		logrus.Debugf("%s: wireless -> %q", name, line)
		if err := loop.Do(ctx, func(s *dome.Shutter) { s.HandleWirelessResponse(line) }); err != nil {
			logrus.Debugf("%s: wireless response dropped: %s", name, err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.Errorf("%s: wireless read failed: %s", name, err)
	}
}
