package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducerEmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer("", log.WithField("component", "test"))
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if producer != nil {
		t.Fatal("producer created without brokers")
	}
}

func TestCloseKafkaProducerNil(t *testing.T) {
	// Не должно паниковать.
	closeKafkaProducer(nil, log.WithField("component", "test"))
}
