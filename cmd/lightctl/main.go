package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lightctl/internal/config"
	"lightctl/internal/host"
	"lightctl/internal/link"
	"lightctl/internal/loader"
	"lightctl/internal/logger"
	"lightctl/internal/monitor"
	"lightctl/internal/record"
)

var (
	configFile   string
	timelineFile string
	port         string
	preview      bool
	queryMemory  bool
)

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
	flag.StringVar(&timelineFile, "protocol", "", "Path to the YAML channel timeline")
	flag.StringVar(&port, "port", "", "Serial port, overrides host.serial.port")
	flag.BoolVar(&preview, "preview", false, "Build and simulate the plan without sending it")
	flag.BoolVar(&queryMemory, "memory", true, "Ask the device for its memory report before Bye")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v\n", err)
		os.Exit(1)
	}
	log.Module("logger").Debug("newLogger created ok")

	if timelineFile == "" {
		log.Error("no timeline given, use -protocol")
		os.Exit(2)
	}
	inputs, err := loader.Load(timelineFile)
	if err != nil {
		log.Module("loader").Errorf("failed to load timeline: %v", err)
		os.Exit(1)
	}

	plan, err := host.BuildPlan(inputs, host.PlanOptions{
		Window:      cfg.Host.Window,
		Candidates:  cfg.Host.Candidates,
		CalibFactor: cfg.Host.CalibFactor,
	})
	if err != nil {
		log.Module("plan").Errorf("failed to build plan: %v", err)
		os.Exit(1)
	}
	reportPlan(log.Module("plan"), plan)

	if err := exportPlan(cfg.Host, plan); err != nil {
		log.Module("plan").Errorf("export failed: %v", err)
		os.Exit(1)
	}

	if preview {
		res := host.Preview(log, plan, nil, 10)
		for _, ch := range res.Channels {
			log.Module("preview").Infof("channel %d: planned %d ms, simulated %d ms, completed %v",
				ch.Channel, ch.PlannedMs, ch.SimulatedMs, ch.Completed)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var rec record.Recorder = record.Nop{}
	if cfg.Record.Path != "" {
		f, err := record.OpenFile(cfg.Record.Path)
		if err != nil {
			log.Module("record").Errorf("failed to open session record: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		rec = f
	}

	var pub monitor.Publisher = monitor.Nop{}
	if cfg.MQTT.Enabled {
		client := monitor.NewClient(log, monitor.ConvertConfig(cfg.MQTT, ""))
		if err := client.Start(ctx); err != nil {
			log.Module("mqtt").Errorf("failed to start MQTT service: %v", err)
		} else {
			defer client.Stop()
			pub = client
		}
	}

	serialCfg := cfg.Host.Serial
	if port != "" {
		serialCfg.Port = port
	}
	l, err := link.OpenSerial(link.ConvertConfig(serialCfg))
	if err != nil {
		log.Module("link").Errorf("%v", err)
		os.Exit(1)
	}
	defer l.Close()

	session := host.NewSession(log, l, host.SessionOptions{
		HandshakeTimeout: time.Duration(cfg.Host.HandshakeTimeoutMs) * time.Millisecond,
		AckTimeout:       time.Duration(cfg.Host.AckTimeoutMs) * time.Millisecond,
		QueryMemory:      queryMemory,
	}, rec, pub)

	res, err := session.Run(ctx, plan)
	if err != nil {
		log.Errorf("session %s failed: %v", session.ID, err)
		l.Close()
		os.Exit(1)
	}
	if !res.Verified {
		log.Warn("capacity verification skipped: legacy device")
	}
	log.Infof("session %s: %d commands delivered", session.ID, res.Sent)
}

func reportPlan(log *logger.Log, plan *host.Plan) {
	for _, ch := range plan.Channels {
		log.Infof("channel %d: %d patterns, %d commands, %.1f s", ch.Channel, len(ch.Patterns), len(ch.Commands),
			float64(ch.DurationMs)/1000)
	}
	for _, w := range plan.Report.Windows() {
		log.Debugf("window %d: %d patterns", w, plan.Report.Counts[w])
	}
	if plan.Report.Optimal != plan.Window {
		log.Infof("window %d would need %.0f%% fewer patterns than %d",
			plan.Report.Optimal, plan.Report.Savings(), plan.Window)
	}
}

func exportPlan(cfg config.HostConf, plan *host.Plan) error {
	if cfg.PlanOut != "" {
		if err := writeFile(cfg.PlanOut, func(w io.Writer) error { return host.WritePlanYAML(w, plan) }); err != nil {
			return err
		}
	}
	if cfg.CommandLog != "" {
		if err := writeFile(cfg.CommandLog, func(w io.Writer) error { return host.WriteCommandLog(w, plan) }); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
