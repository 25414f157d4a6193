package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lightctl/internal/artnet"
	"lightctl/internal/config"
	"lightctl/internal/device"
	"lightctl/internal/link"
	"lightctl/internal/logger"
	"lightctl/internal/monitor"
	"lightctl/internal/pattern"
)

var (
	configFile string
	console    bool
)

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
	flag.BoolVar(&console, "console", false, "Read commands from the terminal instead of the serial port")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v\n", err)
		os.Exit(1)
	}

	var l link.Link
	var logOut io.Writer = os.Stdout
	if console {
		c, err := newConsoleLink()
		if err != nil {
			fmt.Printf("console: %v\n", err)
			os.Exit(1)
		}
		l, logOut = c, c.Stdout()
	}

	log, err := logger.New(cfg.Logger, logOut)
	if err != nil {
		fmt.Printf("failed to create a logger: %v\n", err)
		os.Exit(1)
	}

	if l == nil {
		s, err := link.OpenSerial(link.ConvertConfig(cfg.Device.Serial))
		if err != nil {
			log.Module("link").Errorf("%v", err)
			os.Exit(1)
		}
		l = s
	}
	defer l.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	outputs := device.MultiOutput{device.NewLogOutput(log)}

	if cfg.ArtNet.Enabled {
		a, err := artnet.NewController(log, artnet.ConvertConfig(cfg.ArtNet))
		if err != nil {
			log.Module("art-net").Errorf("error while creating a new controller art-net. %v", err)
			os.Exit(1)
		}
		if err := a.Start(ctx); err != nil {
			log.Module("art-net").Errorf("failed to start art-net service: %v", err)
			os.Exit(1)
		}
		defer a.Stop()
		outputs = append(outputs, a)
	}

	if cfg.MQTT.Enabled {
		client := monitor.NewClient(log, monitor.ConvertConfig(cfg.MQTT, "-device"))
		if err := client.Start(ctx); err != nil {
			log.Module("mqtt").Errorf("failed to start MQTT service: %v", err)
		} else {
			defer client.Stop()
			outputs = append(outputs, client)
		}
	}

	events := log.Module("scheduler")
	fw := device.NewFirmware(log, pattern.Capability{
		MaxElementsPerPattern: cfg.Device.MaxElementsPerPattern,
		MaxPatternsPerChannel: cfg.Device.MaxPatternsPerChannel,
		MaxChannels:           cfg.Device.MaxChannels,
	}, device.Options{Legacy: cfg.Device.Legacy, NoPulse: !cfg.Device.PulseMode}, outputs, func(e device.Event) {
		events.With(logger.Fields{"channel": e.Channel}).Debugf("%s seq=%d el=%d rep=%d at=%d",
			e.Kind, e.Sequence, e.Element, e.Repeat, e.At)
	})

	log.Infof("device ready: %d channels, %d patterns of %d elements",
		cfg.Device.MaxChannels, cfg.Device.MaxPatternsPerChannel, cfg.Device.MaxElementsPerPattern)

	err = fw.Run(ctx, l, device.NewSystemClock(), time.Duration(cfg.Device.TickMs)*time.Millisecond)
	switch {
	case err == nil:
		log.Info("program complete")
	case errors.Is(err, context.Canceled):
		log.Info("shutdown complete")
	default:
		log.Errorf("device stopped: %v", err)
		os.Exit(1)
	}
}
