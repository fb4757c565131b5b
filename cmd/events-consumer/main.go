// events-consumer подписывается на топики доменных событий и пишет их в
// структурированный лог: дешёвый способ смотреть поток событий сервиса без
// отдельной инфраструктуры. Сообщения, которые не удаётся разобрать после
// всех retry-попыток, уходят в DLQ-топик и позже возвращаются утилитой
// dlq-reprocess.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
)

const defaultMaxRetries = 3

type config struct {
	brokers    []string
	groupID    string
	topics     []string
	maxRetries int
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	dlqProducer, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		fail("create dlq producer: %v", err)
	}
	defer func() { _ = dlqProducer.Close() }()

	counter := newEventCounter()
	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.brokers,
		cfg.groupID,
		cfg.topics,
		newEventHandler(log.WithField("component", "events-consumer"), counter),
		dlqProducer,
		cfg.maxRetries,
	)
	if err != nil {
		fail("create consumer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		fail("start consumer: %v", err)
	}

	<-ctx.Done()

	if err := consumer.Stop(); err != nil {
		log.WithError(err).Error("stop consumer")
	}
	log.WithField("events_by_type", counter.snapshot()).Info("events-consumer stopped")
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		topicsRaw  string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.groupID, "group", "fulfillment-events-tap", "consumer group id")
	flag.StringVar(&topicsRaw, "topics", kafka.TopicOrderEvents+","+kafka.TopicReturnEvents, "comma-separated topics to consume")
	flag.IntVar(&cfg.maxRetries, "max-retries", defaultMaxRetries, "processing attempts before a message goes to DLQ")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	cfg.brokers = splitList(brokersRaw)
	cfg.topics = splitList(topicsRaw)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	case strings.TrimSpace(cfg.groupID) == "":
		return config{}, fmt.Errorf("group is required")
	case len(cfg.topics) == 0:
		return config{}, fmt.Errorf("at least one topic is required")
	case cfg.maxRetries <= 0:
		return config{}, fmt.Errorf("max-retries must be > 0")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	chunks := strings.Split(raw, ",")
	values := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if value := strings.TrimSpace(chunk); value != "" {
			values = append(values, value)
		}
	}
	return values
}

// eventEnvelope — конверт, в котором outbox-воркер публикует события.
type eventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

// eventCounter считает обработанные события по типам.
type eventCounter struct {
	mu     sync.Mutex
	byType map[string]int
}

func newEventCounter() *eventCounter {
	return &eventCounter{byType: make(map[string]int)}
}

func (c *eventCounter) inc(eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byType[eventType]++
}

func (c *eventCounter) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]int, len(c.byType))
	for eventType, count := range c.byType {
		snapshot[eventType] = count
	}
	return snapshot
}

// newEventHandler разбирает конверт события и логирует его. Сообщение без
// валидного конверта возвращает ошибку и после retry уходит в DLQ.
func newEventHandler(logger *log.Entry, counter *eventCounter) kafka.MessageHandler {
	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		var envelope eventEnvelope
		if err := json.Unmarshal(message.Value, &envelope); err != nil {
			return fmt.Errorf("decode event envelope: %w", err)
		}
		if envelope.EventType == "" {
			return fmt.Errorf("event envelope has no event_type")
		}

		counter.inc(envelope.EventType)
		logger.WithFields(log.Fields{
			"topic":          message.Topic,
			"event_type":     envelope.EventType,
			"aggregate_type": envelope.AggregateType,
			"aggregate_id":   envelope.AggregateID,
			"event_id":       envelope.ID,
		}).Info("domain event")
		return nil
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
