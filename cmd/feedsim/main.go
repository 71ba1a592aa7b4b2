// Package main publishes a synthetic occupancy feed over NATS for local
// development: place change envelopes on one subject, supply envelopes on
// another, in the exact wire shapes the monitor consumes.
//
// Usage:
//
//	feedsim -nats-url nats://localhost:4222 -interval 500ms -places 12
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/nats-io/nats.go"

	"pool_monitor/internal/monitor"
)

var (
	natsURL           = flag.String("nats-url", "nats://localhost:4222", "NATS server URL")
	monitoringSubject = flag.String("monitoring-subject", "monitoring.places", "Place stream subject")
	suppliesSubject   = flag.String("supplies-subject", "monitoring.supplies", "Supply stream subject")
	interval          = flag.Duration("interval", 500*time.Millisecond, "Delay between published events")
	placeCount        = flag.Int("places", 12, "Number of simulated places")
	seed              = flag.Int64("seed", 0, "Random seed (0 = random)")
)

func main() {
	flag.Parse()

	if *seed != 0 {
		gofakeit.Seed(*seed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(*natsURL, nats.Name("pool_monitor/feedsim"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to NATS: %v\n", err)
		os.Exit(1)
	}
	defer nc.Close()

	sim := newSimulator(*placeCount)
	log.Printf("Publishing to %s and %s every %s", *monitoringSubject, *suppliesSubject, *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Stopping")
			return
		case <-ticker.C:
		}

		subject, payload, err := sim.next()
		if err != nil {
			log.Printf("Encode: %v", err)
			continue
		}
		if err := nc.Publish(subject, payload); err != nil {
			log.Printf("Publish %s: %v", subject, err)
		}
	}
}

// simulator keeps just enough state to emit plausible event sequences:
// places mostly update, occasionally appear or vanish; supplies churn.
type simulator struct {
	places   []monitor.Place
	supplies []monitor.Supply
	nextID   int64
}

func newSimulator(n int) *simulator {
	s := &simulator{nextID: int64(n) + 1}
	for i := 1; i <= n; i++ {
		s.places = append(s.places, randomPlace(int64(i)))
	}
	return s
}

func randomPlace(id int64) monitor.Place {
	total := gofakeit.Number(0, 10)
	drivers := make([]string, 0, total)
	for i := 0; i < total; i++ {
		drivers = append(drivers, gofakeit.Name())
	}
	return monitor.Place{
		ID:      monitor.FlexInt64(id),
		PlaceID: id,
		Total:   total,
		Drivers: drivers,
	}
}

func randomSupply() monitor.Supply {
	return monitor.Supply{
		FleetNumber: fmt.Sprintf("BB-%04d", gofakeit.Number(1, 9999)),
		DriverID:    gofakeit.UUID(),
		PlaceID:     int64(gofakeit.Number(1, 20)),
		Latitude:    gofakeit.Latitude(),
		Longitude:   gofakeit.Longitude(),
		Timestamp:   time.Now().UTC(),
	}
}

// next produces one event: roughly two thirds place traffic, one third
// supply traffic.
func (s *simulator) next() (string, []byte, error) {
	if gofakeit.Number(1, 3) <= 2 {
		payload, err := s.placeEvent()
		return *monitoringSubject, payload, err
	}
	payload, err := s.supplyEvent()
	return *suppliesSubject, payload, err
}

func (s *simulator) placeEvent() ([]byte, error) {
	roll := gofakeit.Number(1, 10)
	switch {
	case roll == 1:
		p := randomPlace(s.nextID)
		s.nextID++
		s.places = append(s.places, p)
		return encodeEnvelope(monitor.EventNew, p)
	case roll == 2 && len(s.places) > 1:
		i := gofakeit.Number(0, len(s.places)-1)
		p := s.places[i]
		s.places = append(s.places[:i], s.places[i+1:]...)
		return encodeEnvelope(monitor.EventRemoved, p)
	default:
		i := gofakeit.Number(0, len(s.places)-1)
		p := randomPlace(int64(s.places[i].ID))
		s.places[i] = p
		return encodeEnvelope(monitor.EventUpdate, p)
	}
}

func (s *simulator) supplyEvent() ([]byte, error) {
	roll := gofakeit.Number(1, 10)
	switch {
	case roll <= 4 || len(s.supplies) == 0:
		sup := randomSupply()
		s.supplies = append(s.supplies, sup)
		return encodeEnvelope(monitor.EventNew, sup)
	case roll <= 7:
		i := gofakeit.Number(0, len(s.supplies)-1)
		sup := s.supplies[i]
		sup.Latitude = gofakeit.Latitude()
		sup.Longitude = gofakeit.Longitude()
		sup.Timestamp = time.Now().UTC()
		s.supplies[i] = sup
		return encodeEnvelope(monitor.EventUpdate, sup)
	default:
		i := gofakeit.Number(0, len(s.supplies)-1)
		sup := s.supplies[i]
		s.supplies = append(s.supplies[:i], s.supplies[i+1:]...)
		// The real supply feed announces removals as "exit".
		return encodeEnvelope(monitor.EventType("exit"), sup)
	}
}

func encodeEnvelope(typ monitor.EventType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(monitor.Envelope{
		EventType: typ,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	})
}
