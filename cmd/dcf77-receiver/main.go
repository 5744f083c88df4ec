// Command dcf77-receiver decodes the DCF77 time signal from a GPIO line and
// publishes every decoded minute to MQTT. With -replay it decodes a recorded
// bit or edge log instead and prints the events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/dcf77-receiver/internal/config"
	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/sweeney/dcf77-receiver/internal/gpio"
	"github.com/sweeney/dcf77-receiver/internal/logic"
	"github.com/sweeney/dcf77-receiver/internal/metrics"
	"github.com/sweeney/dcf77-receiver/internal/mqtt"
	"github.com/sweeney/dcf77-receiver/internal/replay"
	"github.com/sweeney/dcf77-receiver/internal/status"
	"github.com/sweeney/dcf77-receiver/internal/web"
)

// errEdgesClosed is returned by runLoop when the edge source goes away.
var errEdgesClosed = errors.New("edge source closed")

// usageOutput receives flag errors and -h output.
var usageOutput io.Writer = os.Stderr

type options struct {
	cfg          config.Config
	replayPath   string
	replayFormat replay.Format
	recordPath   string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("fatal: %v", err)
	}

	closer, err := config.SetupLogging(opts.cfg.Logs)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	defer closer.Close()

	if opts.replayPath != "" {
		err = runReplay(opts, os.Stdout)
	} else {
		err = run(opts)
	}
	if err != nil {
		closer.Close()
		log.Fatalf("fatal: %v", err)
	}
}

// parseFlags reads the config file named by -config and layers explicitly
// set flags on top of it.
func parseFlags(args []string) (options, error) {
	def := config.Default()
	fs := flag.NewFlagSet("dcf77-receiver", flag.ContinueOnError)
	fs.SetOutput(usageOutput)

	configPath := fs.String("config", "", "YAML config file")
	pin := fs.Int("pin", def.GPIO.Pin, "GPIO line offset the receiver output is wired to")
	chip := fs.String("chip", def.GPIO.Chip, "GPIO chip name")
	broker := fs.String("broker", def.MQTT.Broker, "MQTT broker address (empty to disable)")
	httpAddr := fs.String("http", def.HTTPAddr, "HTTP status address (empty to disable)")
	heartbeat := fs.Duration("heartbeat", def.Heartbeat, "Heartbeat interval (0 to disable)")
	strict := fs.Bool("strict", def.Decoder.Strict, "Accept a minute only when all three parities, bit 0, bit 20 and the DST bits are correct")
	spikeLimit := fs.Uint("spike-limit", uint(def.Decoder.SpikeLimitUs), "Edges closer than this many microseconds are noise")
	logFile := fs.String("log-file", "", "Also log to this file, with rotation")
	replayPath := fs.String("replay", "", "Decode a recorded log instead of the GPIO line")
	replayFormat := fs.String("replay-format", string(replay.FormatBits), "Replay log format: bits or edges")
	recordPath := fs.String("record", "", "Append live edges to this edge log")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return options{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pin":
			cfg.GPIO.Pin = *pin
		case "chip":
			cfg.GPIO.Chip = *chip
		case "broker":
			cfg.MQTT.Broker = *broker
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "strict":
			cfg.Decoder.Strict = *strict
		case "spike-limit":
			cfg.Decoder.SpikeLimitUs = uint32(*spikeLimit)
		case "log-file":
			cfg.Logs.File = *logFile
		}
	})
	if err := cfg.Validate(); err != nil {
		return options{}, err
	}

	format, err := replay.ParseFormat(*replayFormat)
	if err != nil {
		return options{}, err
	}

	return options{
		cfg:          cfg,
		replayPath:   *replayPath,
		replayFormat: format,
		recordPath:   *recordPath,
	}, nil
}

func newReceiver(cfg config.Config, mode dcf77.Mode, start time.Time) (*logic.Receiver, error) {
	return logic.NewReceiver(logic.Config{
		Mode:       mode,
		Strict:     cfg.Decoder.Strict,
		SpikeLimit: cfg.Decoder.SpikeLimitUs,
	}, start)
}

// runReplay decodes a log file and writes one JSON payload per event to out.
func runReplay(opts options, out io.Writer) error {
	f, err := os.Open(opts.replayPath)
	if err != nil {
		return fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()

	start := time.Now()
	receiver, err := newReceiver(opts.cfg, opts.replayFormat.Mode(), start)
	if err != nil {
		return err
	}

	var writeErr error
	player := &replay.Player{
		Receiver: receiver,
		Start:    start,
		Emit: func(e logic.Event) {
			payload, err := mqtt.FormatPayload(e)
			if err == nil {
				_, err = fmt.Fprintf(out, "%s\n", payload)
			}
			if err != nil && writeErr == nil {
				writeErr = err
			}
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := player.Run(ctx, opts.replayFormat, f)
	if err != nil {
		return fmt.Errorf("replay %s: %w", opts.replayPath, err)
	}
	if writeErr != nil {
		return fmt.Errorf("write events: %w", writeErr)
	}

	stats := receiver.Stats()
	log.Printf("replayed %s: lines=%d inputs=%d events=%d frames=%d desyncs=%d runaways=%d",
		opts.replayPath, sum.Lines, sum.Inputs, sum.Events,
		stats.Minutes, stats.Desyncs, stats.ActiveRunaways+stats.PassiveRunaways)
	return nil
}

// nopPublisher stands in when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Event) error { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error { return nil }
func (nopPublisher) IsConnected() bool { return false }

func run(opts options) error {
	cfg := opts.cfg

	// Initialize GPIO
	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Pin, cfg.GPIO.Bias, cfg.GPIO.Invert, cfg.GPIO.Buffer)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	var recorder *replay.Recorder
	if opts.recordPath != "" {
		f, err := os.OpenFile(opts.recordPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open edge log: %w", err)
		}
		defer f.Close()
		recorder = replay.NewRecorder(f)
		defer recorder.Flush()
	}

	// Initialize MQTT
	var (
		publisher  mqtt.Publisher        = nopPublisher{}
		mqttStatus mqtt.ConnectionStatus = nopPublisher{}
	)
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.BufferSize)
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	startTime := time.Now()
	receiver, err := newReceiver(cfg, dcf77.ModeStreaming, startTime)
	if err != nil {
		return err
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, status.Config{
		Mode:         dcf77.ModeStreaming.String(),
		Chip:         cfg.GPIO.Chip,
		Pin:          cfg.GPIO.Pin,
		Invert:       cfg.GPIO.Invert,
		Strict:       cfg.Decoder.Strict,
		SpikeLimitUs: cfg.Decoder.SpikeLimitUs,
		HeartbeatMs:  cfg.Heartbeat.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		HTTPPort:     cfg.HTTPAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	m := metrics.New()

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: chip=%s pin=%d strict=%v spike_limit=%dus broker=%s heartbeat=%v",
		cfg.GPIO.Chip, cfg.GPIO.Pin, cfg.Decoder.Strict, cfg.Decoder.SpikeLimitUs, cfg.MQTT.Broker, cfg.Heartbeat)

	// Heartbeats must go out without any signal, so they get their own ticker.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(reader.Edges(), receiver, publisher, mqttStatus, tracker, m, recorder, cfg.Heartbeat, time.Now, ticker.C, sigCh)
	if dropped := reader.Dropped(); dropped > 0 {
		log.Printf("gpio: %d edges dropped while the decoder was busy", dropped)
	}
	return err
}

func runLoop(edges <-chan dcf77.Edge, receiver *logic.Receiver, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, m *metrics.Metrics, recorder *replay.Recorder, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case e, ok := <-edges:
			if !ok {
				return errEdgesClosed
			}
			t := now()
			if recorder != nil {
				if err := recorder.Record(e); err != nil {
					log.Printf("%v", err)
				}
			}

			for _, event := range receiver.Process(logic.Input{Edge: e, Time: t}) {
				logEvent(event)
				if event.Minute != nil {
					if m != nil {
						m.ObserveMinute(event.Minute)
					}
					if tracker != nil {
						tracker.SetMinute(event.Minute, event.Timestamp)
					}
				}
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			if m != nil {
				m.ObserveStats(receiver.Stats())
				m.ObserveSecond(receiver.Second(), receiver.IsSynced())
			}
			if tracker != nil {
				tracker.Update(receiver.IsSynced(), receiver.Snapshot(), receiver.EventCountsSnapshot())
			}

		case <-tick:
			t := now()
			if tracker != nil && mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			hbData := receiver.CheckHeartbeat(t, heartbeat)
			if hbData == nil {
				continue
			}
			log.Printf("heartbeat: uptime=%v synced=%v minutes=%d valid=%d desyncs=%d runaways=%d edges=%d",
				hbData.Uptime, hbData.Synced, hbData.Counts.Minutes, hbData.Counts.ValidMinutes,
				hbData.Counts.Desyncs, hbData.Counts.Runaways, hbData.Stats.Edges)

			hbEvent := mqtt.SystemEvent{
				Timestamp: hbData.Timestamp,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				tracker.Update(receiver.IsSynced(), receiver.Snapshot(), receiver.EventCountsSnapshot())
				snap := tracker.Snapshot()
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

func logEvent(e logic.Event) {
	switch {
	case e.Minute != nil && e.Minute.Valid:
		log.Printf("event: %s %s len=%d jumps=%v", e.Type, e.Minute.Time.Format(time.RFC3339), e.Minute.Length, e.Minute.Jumps)
	case e.Minute != nil:
		log.Printf("event: %s invalid minute parity=%v/%v/%v bits=%s",
			e.Type, e.Minute.Parity1, e.Minute.Parity2, e.Minute.Parity3, e.Minute.Bits)
	case e.Anomaly != dcf77.AnomalyNone:
		log.Printf("event: %s %s at second %d", e.Type, e.Anomaly, e.Second)
	default:
		log.Printf("event: %s at second %d", e.Type, e.Second)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
