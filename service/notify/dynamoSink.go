package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// PutItemAPI is the slice of *dynamodb.Client the sink needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoSink appends events to an admin audit table keyed by "id".
type DynamoSink struct {
	client PutItemAPI
	table  string
}

func NewDynamoSink(client PutItemAPI, table string) *DynamoSink {
	return &DynamoSink{client: client, table: table}
}

func (s *DynamoSink) Name() string { return "dynamodb" }

// auditItem keeps the amount as a fixed-point string; dynamodb numbers
// would round-trip through float.
type auditItem struct {
	Event
	AmountText string `dynamodbav:"amount"`
}

func (s *DynamoSink) Deliver(ctx context.Context, e Event) error {
	item, err := attributevalue.MarshalMap(auditItem{Event: e, AmountText: e.Amount.StringFixed(2)})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item into %s: %w", s.table, err)
	}
	return nil
}
