package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-venues/internal/logger"
)

// EnsureTopicsExist creates any missing topics on the cluster controller.
// A topic that fails to create is logged and the rest are still attempted.
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if log == nil {
		log = logger.NewNop()
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find kafka controller: %w", err)
	}
	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	controllerConn, err := kafka.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("dial kafka controller %s: %w", controllerAddr, err)
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.LogKafka("ensure_topic", topic, "already exists")
		case err != nil:
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		default:
			log.LogKafka("ensure_topic", topic, "created")
		}
	}
	return nil
}

// ListTopics returns the distinct topic names known to the first broker.
func ListTopics(ctx context.Context, brokers []string) ([]string, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("dial kafka %s: %w", brokers[0], err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, fmt.Errorf("read partitions: %w", err)
	}

	seen := make(map[string]struct{})
	var topics []string
	for _, p := range partitions {
		if _, ok := seen[p.Topic]; ok {
			continue
		}
		seen[p.Topic] = struct{}{}
		topics = append(topics, p.Topic)
	}
	return topics, nil
}

// VerifyTopics fails when any of topics is unknown to the cluster.
func VerifyTopics(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}
	known, err := ListTopics(ctx, brokers)
	if err != nil {
		return err
	}
	if missing := missingTopics(known, topics); len(missing) > 0 {
		return fmt.Errorf("topics missing on cluster: %v", missing)
	}
	for _, topic := range topics {
		log.LogKafka("verify_topic", topic, "present")
	}
	return nil
}

func missingTopics(known, wanted []string) []string {
	var missing []string
	for _, topic := range wanted {
		if !slices.Contains(known, topic) {
			missing = append(missing, topic)
		}
	}
	return missing
}
