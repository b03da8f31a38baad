package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/securevoting/backend/internal/domain"
)

// OTPRepo manages one-time codes. PK: mobile, SK: purpose — at most one
// stored code per (mobile, purpose), so a new Put replaces the old row.
type OTPRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOTPRepo(client *dynamodb.Client, tableName string) *OTPRepo {
	return &OTPRepo{client: client, tableName: tableName}
}

func (r *OTPRepo) Put(ctx context.Context, c *domain.OneTimeCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return classifyErr(err)
}

func (r *OTPRepo) Get(ctx context.Context, mobile, purpose string) (*domain.OneTimeCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("mobile", mobile, "purpose", purpose),
	})
	if err != nil {
		return nil, classifyErr(err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	var c domain.OneTimeCode
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementAttempts bumps the failed-attempt counter atomically and returns
// the new count.
func (r *OTPRepo) IncrementAttempts(ctx context.Context, mobile, purpose string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey("mobile", mobile, "purpose", purpose),
		UpdateExpression: aws.String("ADD attempts :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, classifyErr(err)
	}
	var updated struct {
		Attempts int `dynamodbav:"attempts"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, err
	}
	return updated.Attempts, nil
}

func (r *OTPRepo) MarkUsed(ctx context.Context, mobile, purpose string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey("mobile", mobile, "purpose", purpose),
		UpdateExpression: aws.String("SET used = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	return classifyErr(err)
}

func (r *OTPRepo) Delete(ctx context.Context, mobile, purpose string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("mobile", mobile, "purpose", purpose),
	})
	return classifyErr(err)
}

// DeleteExpired lazily sweeps codes past their expiry.
func (r *OTPRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("expires_at < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
		ProjectionExpression: aws.String("mobile, purpose"),
	})
	if err != nil {
		return classifyErr(err)
	}
	for _, item := range out.Items {
		mobile, okM := item["mobile"].(*types.AttributeValueMemberS)
		purpose, okP := item["purpose"].(*types.AttributeValueMemberS)
		if !okM || !okP {
			continue
		}
		if err := r.Delete(ctx, mobile.Value, purpose.Value); err != nil {
			slog.Warn("failed to delete expired otp", "err", err)
		}
	}
	return nil
}
