package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"testing"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

func TestSplitList(t *testing.T) {
	values := splitList(" a, ,b ")
	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Fatalf("unexpected values: %+v", values)
	}
	if got := splitList(""); len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestReadConfig_FromFlags(t *testing.T) {
	withFlagArgs(t, []string{
		"-brokers=broker-1:9092,broker-2:9092",
		"-group=tap-test",
		"-topics=fulfillment.order.events",
		"-max-retries=5",
	}, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if len(cfg.brokers) != 2 {
			t.Fatalf("unexpected brokers: %+v", cfg.brokers)
		}
		if cfg.groupID != "tap-test" {
			t.Fatalf("unexpected group: %s", cfg.groupID)
		}
		if len(cfg.topics) != 1 || cfg.topics[0] != "fulfillment.order.events" {
			t.Fatalf("unexpected topics: %+v", cfg.topics)
		}
		if cfg.maxRetries != 5 {
			t.Fatalf("unexpected max-retries: %d", cfg.maxRetries)
		}
	})
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no brokers", []string{"-brokers="}, "kafka brokers are required"},
		{"empty group", []string{"-brokers=b:9092", "-group= "}, "group is required"},
		{"no topics", []string{"-brokers=b:9092", "-topics= ,"}, "at least one topic is required"},
		{"bad retries", []string{"-brokers=b:9092", "-max-retries=0"}, "max-retries must be > 0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withFlagArgs(t, tc.args, func() {
				_, err := readConfig()
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got: %v", tc.wantErr, err)
				}
			})
		})
	}
}

func TestEventHandler_CountsByType(t *testing.T) {
	counter := newEventCounter()
	handler := newEventHandler(log.WithField("component", "test"), counter)

	message := &sarama.ConsumerMessage{
		Topic: "fulfillment.order.events",
		Value: []byte(`{"id":"evt-1","aggregate_type":"order","aggregate_id":"order-1","event_type":"order.created","payload":{}}`),
	}

	for i := 0; i < 3; i++ {
		if err := handler(context.Background(), message); err != nil {
			t.Fatalf("handler failed: %v", err)
		}
	}

	snapshot := counter.snapshot()
	if snapshot["order.created"] != 3 {
		t.Fatalf("unexpected counts: %+v", snapshot)
	}
}

func TestEventHandler_RejectsMalformed(t *testing.T) {
	counter := newEventCounter()
	handler := newEventHandler(log.WithField("component", "test"), counter)

	if err := handler(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")}); err == nil {
		t.Fatal("expected decode error")
	}
	if err := handler(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"id":"evt-1"}`)}); err == nil {
		t.Fatal("expected missing event_type error")
	}
	if len(counter.snapshot()) != 0 {
		t.Fatalf("counter must stay empty, got %+v", counter.snapshot())
	}
}

func TestEventCounterSnapshotIsCopy(t *testing.T) {
	counter := newEventCounter()
	counter.inc("order.created")

	snapshot := counter.snapshot()
	snapshot["order.created"] = 99

	if counter.snapshot()["order.created"] != 1 {
		t.Fatal("snapshot must not share state with the counter")
	}
}

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"events-consumer"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}
