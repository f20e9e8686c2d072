package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/benoit160/changefeed/internal/natsutil"
	"github.com/benoit160/changefeed/types"
)

// JetStream implements types.ChangeSource on a NATS JetStream stream.
//
// Partitions map to subjects: partition "p0" under prefix "feed" lives
// on subject "feed.p0", and the backing stream is expected to capture
// "feed.>". The continuation token is the stream sequence of the last
// delivered message, so checkpoints survive consumer churn: reads use
// short-lived ordered consumers and never create durable state.
type JetStream struct {
	js     jetstream.JetStream
	stream string
	prefix string
}

var _ types.ChangeSource = (*JetStream)(nil)

// NewJetStream creates a change source over an existing stream.
//
// Parameters:
//   - js: JetStream context
//   - streamName: Name of the stream holding the feed
//   - subjectPrefix: Subject prefix shared by all partitions (without
//     the trailing wildcard)
//
// Returns:
//   - *JetStream: Initialized source
func NewJetStream(js jetstream.JetStream, streamName, subjectPrefix string) *JetStream {
	return &JetStream{
		js:     js,
		stream: streamName,
		prefix: subjectPrefix,
	}
}

// subject returns the subject carrying a partition's changes.
func (s *JetStream) subject(partitionID string) string {
	return s.prefix + "." + partitionID
}

// ListPartitions returns the partition IDs derived from the stream's
// populated subjects.
//
// A partition becomes visible once its first change is published; JetStream
// has no notion of an empty subject.
func (s *JetStream) ListPartitions(ctx context.Context) ([]string, error) {
	stream, err := s.js.Stream(ctx, s.stream)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", s.classify(err))
	}

	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(s.prefix+".>"))
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", s.classify(err))
	}

	ids := make([]string, 0, len(info.State.Subjects))
	for subject := range info.State.Subjects {
		ids = append(ids, strings.TrimPrefix(subject, s.prefix+"."))
	}

	return ids, nil
}

// ReadChanges reads up to maxItems messages after the continuation token.
func (s *JetStream) ReadChanges(ctx context.Context, partitionID, continuationToken string, maxItems int) (types.ChangeBatch, error) {
	after, err := parseToken(continuationToken)
	if err != nil {
		return types.ChangeBatch{}, fmt.Errorf("read %s: %w", partitionID, err)
	}

	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{s.subject(partitionID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if after > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = after + 1
	}

	consumer, err := s.js.OrderedConsumer(ctx, s.stream, cfg)
	if err != nil {
		return types.ChangeBatch{}, fmt.Errorf("read %s: %w", partitionID, s.classify(err))
	}

	batch := types.ChangeBatch{
		PartitionID:       partitionID,
		ContinuationToken: continuationToken,
	}

	msgs, err := consumer.FetchNoWait(maxItems)
	if err != nil {
		return types.ChangeBatch{}, fmt.Errorf("read %s: %w", partitionID, s.classify(err))
	}

	for msg := range msgs.Messages() {
		meta, err := msg.Metadata()
		if err != nil {
			return types.ChangeBatch{}, fmt.Errorf("read %s: message metadata: %w", partitionID, err)
		}

		batch.Changes = append(batch.Changes, types.Change{
			PartitionID: partitionID,
			Sequence:    meta.Sequence.Stream,
			Data:        msg.Data(),
			Timestamp:   meta.Timestamp,
		})
	}
	if err := msgs.Error(); err != nil {
		return types.ChangeBatch{}, fmt.Errorf("read %s: %w", partitionID, s.classify(err))
	}

	if !batch.IsEmpty() {
		batch.ContinuationToken = formatToken(batch.Changes[len(batch.Changes)-1].Sequence)
	}

	return batch, nil
}

// TailToken returns the token positioned after the partition's newest
// message.
func (s *JetStream) TailToken(ctx context.Context, partitionID string) (string, error) {
	stream, err := s.js.Stream(ctx, s.stream)
	if err != nil {
		return "", fmt.Errorf("tail of %s: %w", partitionID, s.classify(err))
	}

	msg, err := stream.GetLastMsgForSubject(ctx, s.subject(partitionID))
	if err != nil {
		// No message yet means the tail is the log start.
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return formatToken(0), nil
		}

		return "", fmt.Errorf("tail of %s: %w", partitionID, s.classify(err))
	}

	return formatToken(msg.Sequence), nil
}

// PendingChanges returns the number of messages between the token and the
// partition's tail, as counted by the server.
func (s *JetStream) PendingChanges(ctx context.Context, partitionID, continuationToken string) (int64, error) {
	after, err := parseToken(continuationToken)
	if err != nil {
		return 0, fmt.Errorf("pending of %s: %w", partitionID, err)
	}

	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{s.subject(partitionID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if after > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = after + 1
	}

	consumer, err := s.js.OrderedConsumer(ctx, s.stream, cfg)
	if err != nil {
		return 0, fmt.Errorf("pending of %s: %w", partitionID, s.classify(err))
	}

	info, err := consumer.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("pending of %s: %w", partitionID, s.classify(err))
	}

	return int64(info.NumPending), nil
}

// classify maps stream-level failures onto the source error taxonomy.
func (s *JetStream) classify(err error) error {
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("stream %s: %w", s.stream, types.ErrPartitionGone)
	}
	if natsutil.IsConnectivityError(err) {
		return fmt.Errorf("%w: %w", types.ErrConnectivity, err)
	}

	return err
}
