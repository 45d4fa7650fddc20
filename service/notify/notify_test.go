package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	name string
	err  error

	mu  sync.Mutex
	got []Event
}

func (s *recordSink) Name() string { return s.name }

func (s *recordSink) Deliver(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, e)
	return s.err
}

func (s *recordSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.got...)
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBus_DeliversToEverySink(t *testing.T) {
	broken := &recordSink{name: "broken", err: errors.New("down")}
	ok := &recordSink{name: "ok"}
	b := NewBus(quietLog(), 8, broken, ok)

	b.Publish(Event{Kind: IntentSettled, RefTable: "payment_intents", RefID: 1})
	b.Publish(Event{Kind: DonationFailed, RefTable: "donations", RefID: 2, Reason: "declined"})
	require.NoError(t, b.Close(context.Background()))

	got := ok.events()
	require.Len(t, got, 2)
	require.Equal(t, IntentSettled, got[0].Kind)
	require.NotEmpty(t, got[0].ID)
	require.False(t, got[0].At.IsZero())
	require.Len(t, broken.events(), 2)
}

func TestBus_PublishAfterCloseDrops(t *testing.T) {
	s := &recordSink{name: "s"}
	b := NewBus(quietLog(), 1, s)
	require.NoError(t, b.Close(context.Background()))
	require.NoError(t, b.Close(context.Background()))

	b.Publish(Event{Kind: IntentFailed})
	require.Empty(t, s.events())
}

type blockingSink struct{ release chan struct{} }

func (blockingSink) Name() string { return "blocking" }
func (s blockingSink) Deliver(ctx context.Context, e Event) error {
	<-s.release
	return nil
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	s := blockingSink{release: make(chan struct{})}
	b := NewBus(quietLog(), 1, s)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			b.Publish(Event{Kind: IntentSettled, RefID: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	close(s.release)
	require.NoError(t, b.Close(context.Background()))
}

type putItemFake struct {
	in  *dynamodb.PutItemInput
	err error
}

func (f *putItemFake) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.in = in
	return &dynamodb.PutItemOutput{}, f.err
}

func TestDynamoSink_Deliver(t *testing.T) {
	fake := &putItemFake{}
	s := NewDynamoSink(fake, "voltz-audit")

	err := s.Deliver(context.Background(), Event{
		ID:        "ev-1",
		Kind:      IntentSettled,
		RefTable:  "payment_intents",
		RefID:     9,
		Requester: "u:7",
		Amount:    decimal.NewFromInt(150),
		Currency:  "USD",
		At:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "voltz-audit", *fake.in.TableName)

	item := fake.in.Item
	require.Equal(t, &types.AttributeValueMemberS{Value: "ev-1"}, item["id"])
	require.Equal(t, &types.AttributeValueMemberS{Value: "150.00"}, item["amount"])
	require.Equal(t, &types.AttributeValueMemberS{Value: "intent.settled"}, item["kind"])
	require.Equal(t, &types.AttributeValueMemberN{Value: "9"}, item["ref_id"])
	require.NotContains(t, item, "reason")

	fake.err = errors.New("throttled")
	require.ErrorContains(t, s.Deliver(context.Background(), Event{ID: "ev-2"}), "throttled")
}
