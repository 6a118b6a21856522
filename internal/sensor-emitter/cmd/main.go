// cmd/sensor-emitter/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dmquang/sensorex/internal/model"
	sensorEmitter "github.com/dmquang/sensorex/internal/sensor-emitter"
	"github.com/dmquang/sensorex/pkg/mqttbus"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func main() {
	_ = godotenv.Load()

	// define flags
	deviceID := flag.String("device-id", "", "unique device identifier (minted when empty)")
	profilePath := flag.String("profile", "", "optional YAML device profile")
	clientID := flag.String("client-id", "", "MQTT client ID (defaults to device id)")
	host := flag.String("broker-host", envStr("MQTT_HOST", "localhost"), "MQTT broker host")
	port := flag.Int("broker-port", envInt("MQTT_PORT", 1883), "MQTT broker port")
	interval := flag.Duration("interval", 0, "publish interval (0 = profile value)")
	flag.Parse()

	profile := sensorEmitter.DefaultProfile()
	if *profilePath != "" {
		p, err := sensorEmitter.LoadProfile(*profilePath)
		if err != nil {
			log.Fatalf("load profile: %v", err)
		}
		profile = p
	}
	if *deviceID != "" {
		profile.DeviceID = *deviceID
	}
	if profile.DeviceID == "" {
		profile.DeviceID = "sensor-" + uuid.NewString()[:8]
	}
	if *interval > 0 {
		profile.Interval = *interval
	}
	cid := *clientID
	if cid == "" {
		cid = profile.DeviceID
	}

	cfg := &mqttbus.Config{
		Host:     *host,
		Port:     *port,
		User:     envStr("MQTT_USER", "guest"),
		Password: envStr("MQTT_PASSWORD", "guest"),
		ClientID: cid,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Printf("emitter: shutting down...")
		cancel()
	}()

	conn, err := mqttbus.Dial(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	readings := mqttbus.NewPublisher(conn, model.TopicReadings)
	acks := mqttbus.NewPublisher(conn, model.TopicControlAck)
	consumer := mqttbus.NewConsumer(conn, 64, model.TopicControl)

	generator := sensorEmitter.NewDataGenerator(profile.Walk, time.Now().UnixNano())
	device := &model.Device{ID: profile.DeviceID, Enabled: true}

	log.Printf("emitter: device %s publishing every %s", device.ID, profile.Interval)
	emitter := sensorEmitter.NewEmitter(conn, consumer, readings, acks, generator, device, profile.Interval)
	emitter.Run(ctx)
}
