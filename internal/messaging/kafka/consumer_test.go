package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

// orderEventMessage собирает сообщение топика заказов в формате, который
// публикует outbox-воркер.
func orderEventMessage(offset int64) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     TopicOrderEvents,
		Partition: 0,
		Offset:    offset,
		Key:       []byte("order-1"),
		Value:     []byte(`{"event_type":"order.created","order_id":"order-1","customer_id":"customer-1","status":"pending"}`),
	}
}

func retriedOrderMessage(retries string) *sarama.ConsumerMessage {
	msg := orderEventMessage(7)
	msg.Headers = []*sarama.RecordHeader{{Key: []byte(HeaderRetryCount), Value: []byte(retries)}}
	return msg
}

type stubConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (g *stubConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if g.consumeFn != nil {
		return g.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (g *stubConsumerGroup) Errors() <-chan error { return g.errorsCh }

func (g *stubConsumerGroup) Close() error {
	if g.closeFn != nil {
		return g.closeFn()
	}
	if g.errorsCh != nil {
		close(g.errorsCh)
	}
	return nil
}

func (g *stubConsumerGroup) Pause(map[string][]int32)  {}
func (g *stubConsumerGroup) Resume(map[string][]int32) {}
func (g *stubConsumerGroup) PauseAll()                 {}
func (g *stubConsumerGroup) ResumeAll()                {}

type stubSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (s *stubSession) Claims() map[string][]int32               { return nil }
func (s *stubSession) MemberID() string                         { return "member" }
func (s *stubSession) GenerationID() int32                      { return 1 }
func (s *stubSession) MarkOffset(string, int32, int64, string)  {}
func (s *stubSession) Commit()                                  {}
func (s *stubSession) ResetOffset(string, int32, int64, string) {}
func (s *stubSession) Context() context.Context                 { return s.ctx }
func (s *stubSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg)
}

type stubClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *stubClaim) Topic() string                            { return TopicOrderEvents }
func (c *stubClaim) Partition() int32                         { return 0 }
func (c *stubClaim) InitialOffset() int64                     { return 0 }
func (c *stubClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *stubClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func claimOf(messages ...*sarama.ConsumerMessage) *stubClaim {
	ch := make(chan *sarama.ConsumerMessage, len(messages))
	for _, msg := range messages {
		ch <- msg
	}
	close(ch)
	return &stubClaim{messages: ch}
}

func testConsumer(handler MessageHandler, maxRetries int) *Consumer {
	return &Consumer{
		handler:    handler,
		logger:     log.WithField("component", "kafka-consumer-test"),
		maxRetries: maxRetries,
	}
}

func TestNewConsumerUnreachableBrokers(t *testing.T) {
	handler := func(context.Context, *sarama.ConsumerMessage) error { return nil }

	if _, err := NewConsumer([]string{"invalid-broker:9092"}, "fulfillment-tap", []string{TopicOrderEvents}, handler); err == nil {
		t.Fatal("expected new consumer error")
	}
	if _, err := NewConsumerWithDLQ([]string{"invalid-broker:9092"}, "fulfillment-tap", []string{TopicOrderEvents}, handler, nil, 3); err == nil {
		t.Fatal("expected new consumer with dlq error")
	}
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	errorsCh := make(chan error, 1)
	group := &stubConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
			consumeCalls++
			cancel()
			return nil
		},
		closeFn: func() error {
			close(errorsCh)
			return nil
		},
	}

	consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error { return nil }, 2)
	consumer.consumer = group
	consumer.topics = []string{TopicOrderEvents, TopicReturnEvents}

	// Фоновая ошибка группы не должна ронять consumer.
	errorsCh <- errors.New("background error")
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := consumer.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if consumeCalls == 0 {
		t.Fatal("expected consume call")
	}
}

func TestConsumerStopPropagatesCloseError(t *testing.T) {
	errorsCh := make(chan error)
	group := &stubConsumerGroup{errorsCh: errorsCh, closeFn: func() error {
		close(errorsCh)
		return errors.New("close failed")
	}}

	consumer := testConsumer(nil, 1)
	consumer.consumer = group
	if err := consumer.Stop(); err == nil {
		t.Fatal("expected stop error")
	}
}

func TestConsumerSetupCleanup(t *testing.T) {
	consumer := &Consumer{}
	if err := consumer.Setup(nil); err != nil {
		t.Fatalf("setup should return nil: %v", err)
	}
	if err := consumer.Cleanup(nil); err != nil {
		t.Fatalf("cleanup should return nil: %v", err)
	}
}

func TestConsumeClaimMarksHandledEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	consumer := testConsumer(func(_ context.Context, msg *sarama.ConsumerMessage) error {
		event, err := ParseOrderEvent(msg)
		if err != nil {
			return err
		}
		seen = append(seen, event.OrderID)
		return nil
	}, 1)

	session := &stubSession{ctx: ctx}
	if err := consumer.ConsumeClaim(session, claimOf(orderEventMessage(1))); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if len(session.marked) != 1 {
		t.Fatalf("expected one marked message, got %d", len(session.marked))
	}
	if len(seen) != 1 || seen[0] != "order-1" {
		t.Fatalf("unexpected handled events: %+v", seen)
	}
}

func TestConsumeClaimKeepsFailedEventUnmarked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error {
		return errors.New("handler failed")
	}, 1)

	session := &stubSession{ctx: ctx}
	if err := consumer.ConsumeClaim(session, claimOf(orderEventMessage(1))); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	// Необработанное сообщение не маркируется: его заберёт DLQ или
	// повторное чтение партиции.
	if len(session.marked) != 0 {
		t.Fatalf("failed message should not be marked, got %d", len(session.marked))
	}
}

func TestConsumeClaimStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error { return nil }, 1)
	session := &stubSession{ctx: ctx}
	claim := &stubClaim{messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan struct{})
	go func() {
		_ = consumer.ConsumeClaim(session, claim)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
}

func TestHandleMessageWithRetry(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error { return nil }, 2)
		if err := consumer.handleMessageWithRetry(context.Background(), orderEventMessage(1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("header retry count shrinks in-process attempts", func(t *testing.T) {
		attempts := 0
		consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error {
			attempts++
			return errors.New("temporary")
		}, 3)
		consumer.retryDelay = 0

		if err := consumer.handleMessageWithRetry(context.Background(), retriedOrderMessage("1")); err == nil {
			t.Fatal("expected retry error")
		}
		// Одна попытка уже учтена в headers: остаются две in-process.
		if attempts != 2 {
			t.Fatalf("expected 2 in-process attempts, got %d", attempts)
		}
	})

	t.Run("exhausted retries without dlq return the error", func(t *testing.T) {
		consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error {
			return errors.New("permanent")
		}, 3)

		if err := consumer.handleMessageWithRetry(context.Background(), retriedOrderMessage("3")); err == nil {
			t.Fatal("expected error when dlq is absent")
		}
	})

	t.Run("exhausted retries publish to dlq", func(t *testing.T) {
		syncProducer := mocks.NewSyncProducer(t, nil)
		syncProducer.ExpectSendMessageAndSucceed()

		consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error {
			return errors.New("permanent")
		}, 3)
		consumer.dlqProducer = &Producer{producer: syncProducer, logger: log.WithField("component", "dlq-test")}

		if err := consumer.handleMessageWithRetry(context.Background(), retriedOrderMessage("3")); err != nil {
			t.Fatalf("unexpected error after dlq publish: %v", err)
		}
		if err := syncProducer.Close(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("dlq publish failure surfaces", func(t *testing.T) {
		syncProducer := mocks.NewSyncProducer(t, nil)
		syncProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error {
			return errors.New("permanent")
		}, 3)
		consumer.dlqProducer = &Producer{producer: syncProducer, logger: log.WithField("component", "dlq-test")}

		if err := consumer.handleMessageWithRetry(context.Background(), retriedOrderMessage("3")); err == nil {
			t.Fatal("expected dlq failure")
		}
		if err := syncProducer.Close(); err != nil {
			t.Fatal(err)
		}
	})
}

func TestGetRetryCount(t *testing.T) {
	consumer := &Consumer{}

	if got := consumer.getRetryCount(retriedOrderMessage("5")); got != 5 {
		t.Fatalf("unexpected retry count: %d", got)
	}
	if got := consumer.getRetryCount(retriedOrderMessage("bad")); got != 0 {
		t.Fatalf("invalid retry count should fallback to 0, got %d", got)
	}
	if got := consumer.getRetryCount(orderEventMessage(1)); got != 0 {
		t.Fatalf("missing header should give 0, got %d", got)
	}
}

func TestParseEvents(t *testing.T) {
	order, err := ParseOrderEvent(orderEventMessage(1))
	if err != nil {
		t.Fatalf("ParseOrderEvent failed: %v", err)
	}
	if order.EventType != EventTypeOrderCreated || order.OrderID != "order-1" {
		t.Fatalf("unexpected order event: %+v", order)
	}
	if _, err := ParseOrderEvent(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected ParseOrderEvent error")
	}

	returnMsg := &sarama.ConsumerMessage{
		Topic: TopicReturnEvents,
		Value: []byte(`{"event_type":"return.processed","return_id":"return-1","order_id":"order-1","product_id":"product-1","return_quantity":2}`),
	}
	ret, err := ParseReturnEvent(returnMsg)
	if err != nil {
		t.Fatalf("ParseReturnEvent failed: %v", err)
	}
	if ret.EventType != EventTypeReturnProcessed || ret.ReturnQuantity != 2 {
		t.Fatalf("unexpected return event: %+v", ret)
	}
	if _, err := ParseReturnEvent(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected ParseReturnEvent error")
	}
}

func TestSendToDLQKeepsOrigin(t *testing.T) {
	syncProducer := mocks.NewSyncProducer(t, nil)
	syncProducer.ExpectSendMessageAndSucceed()

	consumer := &Consumer{
		dlqProducer: &Producer{producer: syncProducer, logger: log.WithField("component", "dlq-test")},
		logger:      log.WithField("component", "kafka-consumer-test"),
	}

	if err := consumer.sendToDLQ(orderEventMessage(42), errors.New("handler gave up")); err != nil {
		t.Fatalf("sendToDLQ failed: %v", err)
	}
	if err := syncProducer.Close(); err != nil {
		t.Fatal(err)
	}
}
