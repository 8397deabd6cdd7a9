package kafkamiddleware

import (
	"context"
	"time"

	"ecovolt/pkg/kafka"
	"ecovolt/pkg/metrics"
)

const (
	directionPublish = "publish"
	directionConsume = "consume"
)

func MetricsProducer() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(context.Context, kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		metrics.ObserveKafka(directionPublish, msg.Topic, result(err), time.Since(start))
		return err
	}
}

func MetricsConsumer() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		metrics.ObserveKafka(directionConsume, msg.Topic, result(err), time.Since(start))
		return err
	}
}

func result(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultSuccess
}
