// Package kafka builds the franz-go client used for audit publishing and
// provisions the audit topic.
package kafka

import (
	"context"
	"errors"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"underwriter/internal/platform/config"
	dErrors "underwriter/pkg/domain-errors"
)

// NewClient connects a producer client to the configured brokers.
// Returns nil if no brokers are configured.
func NewClient(cfg config.KafkaConfig, opts ...kgo.Opt) (*kgo.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	}
	cl, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "create kafka client")
	}
	return cl, nil
}

// EnsureTopic creates the audit topic when it does not exist yet.
func EnsureTopic(ctx context.Context, cl *kgo.Client, cfg config.KafkaConfig) error {
	adm := kadm.NewClient(cl)
	resps, err := adm.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, nil, cfg.AuditTopic)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "create audit topic")
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return dErrors.Wrap(resp.Err, dErrors.CodeInternal, "create audit topic "+resp.Topic)
		}
	}
	return nil
}
