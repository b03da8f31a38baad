package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/securevoting/backend/internal/domain"
)

// VoterRepo provides typed DynamoDB operations for the voters table.
type VoterRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewVoterRepo(client *dynamodb.Client, tableName string) *VoterRepo {
	return &VoterRepo{client: client, tableName: tableName}
}

// Put creates a voter and claims marker items for the three unique
// identifiers in a single transaction. GSIs do not enforce uniqueness, so
// each marker reuses the table's voter_id key with a reserved prefix; a
// concurrent registration sharing any identifier loses the
// attribute_not_exists condition and the whole transaction rolls back with
// ErrConflict. Markers carry none of the GSI attributes and so never show
// up in index queries.
func (r *VoterRepo) Put(ctx context.Context, v *domain.Voter) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal voter: %w", err)
	}
	uniquePut := func(key string) types.TransactWriteItem {
		return types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                strKey("voter_id", key),
				ConditionExpression: aws.String("attribute_not_exists(voter_id)"),
			},
		}
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(voter_id)"),
				},
			},
			uniquePut("HASH#" + v.VoterIDHash),
			uniquePut("MOBILE#" + v.Mobile),
			uniquePut("EMAIL#" + v.Email),
		},
	})
	return classifyErr(err)
}

func (r *VoterRepo) Get(ctx context.Context, voterID string) (*domain.Voter, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("voter_id", voterID),
	})
	if err != nil {
		return nil, classifyErr(err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("voter not found: %w", domain.ErrNotFound)
	}
	var v domain.Voter
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VoterRepo) GetByVoterIDHash(ctx context.Context, hash string) (*domain.Voter, error) {
	return r.queryGSI(ctx, "voter_id_hash-index", "voter_id_hash", hash)
}

func (r *VoterRepo) GetByMobile(ctx context.Context, mobile string) (*domain.Voter, error) {
	return r.queryGSI(ctx, "mobile-index", "mobile", mobile)
}

func (r *VoterRepo) GetByEmail(ctx context.Context, email string) (*domain.Voter, error) {
	return r.queryGSI(ctx, "email-index", "email", email)
}

func (r *VoterRepo) Update(ctx context.Context, voterID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	expr, names, values, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("voter_id", voterID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return classifyErr(err)
}

func (r *VoterRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Voter, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, classifyErr(err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("voter not found: %w", domain.ErrNotFound)
	}
	var v domain.Voter
	if err := attributevalue.UnmarshalMap(out.Items[0], &v); err != nil {
		return nil, err
	}
	return &v, nil
}
