// cmd/observer/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmquang/sensorex/internal/model"
	"github.com/dmquang/sensorex/internal/services/observer"
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

	originID := envStr("OBSERVER_ID", "")
	if originID == "" {
		if h, err := os.Hostname(); err == nil && h != "" {
			originID = "observer-" + h
		} else {
			originID = "observer-" + uuid.NewString()[:8]
		}
	}

	cfg := &mqttbus.Config{
		Host:     envStr("MQTT_HOST", "localhost"),
		Port:     envInt("MQTT_PORT", 1883),
		User:     envStr("MQTT_USER", "guest"),
		Password: envStr("MQTT_PASSWORD", "guest"),
		ClientID: originID,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		log.Printf("observer: shutting down...")
		cancel()
	}()

	conn, err := mqttbus.Dial(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Influx is optional: without it the observer still converges state,
	// it just records no event history.
	var influx influxdb2.Client
	var recorder *observer.Recorder
	influxURL := envStr("INFLUX_URL", "")
	influxToken := envStr("INFLUX_TOKEN", "")
	org := envStr("INFLUX_ORG", "sensorex")
	bucket := envStr("INFLUX_BUCKET", "device_events")
	if influxURL != "" && influxToken != "" {
		influx = influxdb2.NewClient(influxURL, influxToken)
		defer influx.Close()
		recorder = observer.NewRecorder(influx.WriteAPI(org, bucket))
		log.Printf("observer: recording state changes to %s/%s", org, bucket)
	} else {
		log.Printf("observer: INFLUX_URL/INFLUX_TOKEN unset, event history disabled")
	}

	consumer := mqttbus.NewConsumer(conn, 128, model.TopicReadings, model.TopicControlAck)
	control := mqttbus.NewPublisher(conn, model.TopicControl)
	metrics := observer.NewMetrics(nil)

	obs := observer.New(consumer, control, originID, recorder, metrics)

	// presentation stand-in: log each discrete update as it lands
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-obs.Updates():
				switch u.Kind {
				case observer.UpdateReading:
					log.Printf("observer: reading %s temp=%.2f hum=%.2f status=%s",
						u.DeviceID, u.Reading.Temperature, u.Reading.Humidity, u.Reading.Status)
				case observer.UpdateStateChange:
					log.Printf("observer: device %s enabled=%t", u.DeviceID, u.Enabled)
				}
			}
		}
	}()

	staleAfter := time.Duration(envInt("STALE_AFTER_SEC", 30)) * time.Second
	api := observer.NewAPI(obs, influx, org, bucket, staleAfter)

	mux := http.NewServeMux()
	api.Register(mux)
	mux.Handle("/healthz", observer.NewHealthHandler(conn, recorder))
	mux.Handle("/readyz", observer.NewReadyHandler(conn, recorder, 15*time.Second))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(envInt("HTTP_PORT", 8080)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("observer: %s serving HTTP on %s", originID, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	obs.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
