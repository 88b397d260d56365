package kafka

import (
	"log"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicOrderCreated      = "storefront.order.created"
	TopicPaymentSucceeded  = "storefront.payment.succeeded"
	TopicPaymentFailed     = "storefront.payment.failed"
	TopicInventoryOversold = "storefront.inventory.oversold"
	TopicTicketUsed        = "storefront.checkin.used"
)

func AllTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicPaymentSucceeded,
		TopicPaymentFailed,
		TopicInventoryOversold,
		TopicTicketUsed,
	}
}

// EnsureTopicsExist creates the given topics on the cluster controller if
// they are missing. Creation failures are logged, not fatal; the writer
// also allows auto-creation.
func EnsureTopicsExist(brokers []string, topics []string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			log.Printf("Error creating topic %s: %v", topic, err)
		}
	}

	// Give the controller a moment to propagate metadata.
	time.Sleep(1 * time.Second)
	return nil
}
