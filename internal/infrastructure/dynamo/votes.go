package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/securevoting/backend/internal/domain"
)

// chainPartition is the constant partition value for the chain-seq-index GSI,
// letting a single Query return the whole ledger in append order.
const chainPartition = "main"

// voteItem is the stored shape of a domain.VoteRecord plus the GSI partition
// attribute.
type voteItem struct {
	domain.VoteRecord
	Chain string `dynamodbav:"chain"`
}

// VoteRepo owns the append-only vote ledger table. It also needs the voters
// table name because the append and the voter's has_voted flip are a single
// DynamoDB transaction.
type VoteRepo struct {
	client      *dynamodb.Client
	tableName   string
	votersTable string
}

func NewVoteRepo(client *dynamodb.Client, tableName, votersTable string) *VoteRepo {
	return &VoteRepo{client: client, tableName: tableName, votersTable: votersTable}
}

// Append writes the record and flips the voter's has_voted flag in one
// transaction. The conditions guarantee exactly-once voting under any
// interleaving: a concurrent duplicate loses the conditional check and
// surfaces as ErrConflict.
func (r *VoteRepo) Append(ctx context.Context, rec *domain.VoteRecord, voterID string) error {
	item, err := attributevalue.MarshalMap(voteItem{VoteRecord: *rec, Chain: chainPartition})
	if err != nil {
		return fmt.Errorf("marshal vote record: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(receipt_id)"),
				},
			},
			{
				Update: &types.Update{
					TableName:        aws.String(r.votersTable),
					Key:              strKey("voter_id", voterID),
					UpdateExpression: aws.String("SET has_voted = :t"),
					ConditionExpression: aws.String(
						"attribute_exists(voter_id) AND has_voted = :f"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":t": &types.AttributeValueMemberBOOL{Value: true},
						":f": &types.AttributeValueMemberBOOL{Value: false},
					},
				},
			},
		},
	})
	return classifyErr(err)
}

func (r *VoteRepo) GetByReceipt(ctx context.Context, receiptID string) (*domain.VoteRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("receipt_id", receiptID),
	})
	if err != nil {
		return nil, classifyErr(err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("vote record not found: %w", domain.ErrNotFound)
	}
	var v voteItem
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, err
	}
	rec := v.VoteRecord
	return &rec, nil
}

// Head returns the most recently appended record, or ErrNotFound for an
// empty chain.
func (r *VoteRepo) Head(ctx context.Context) (*domain.VoteRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("chain-seq-index"),
		KeyConditionExpression: aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{
			"#c": "chain",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: chainPartition},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, classifyErr(err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("chain is empty: %w", domain.ErrNotFound)
	}
	var v voteItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &v); err != nil {
		return nil, err
	}
	rec := v.VoteRecord
	return &rec, nil
}

// List returns the whole chain in append order.
func (r *VoteRepo) List(ctx context.Context) ([]domain.VoteRecord, error) {
	var records []domain.VoteRecord
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("chain-seq-index"),
			KeyConditionExpression: aws.String("#c = :c"),
			ExpressionAttributeNames: map[string]string{
				"#c": "chain",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":c": &types.AttributeValueMemberS{Value: chainPartition},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, classifyErr(err)
		}
		var page []voteItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		for _, v := range page {
			records = append(records, v.VoteRecord)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return records, nil
}

// GetByVoter returns the single record for a voter, if any. Used by audit
// checks pairing the has_voted flag with its ledger entry.
func (r *VoteRepo) GetByVoter(ctx context.Context, voterID string) (*domain.VoteRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("voter_id-index"),
		KeyConditionExpression: aws.String("voter_id = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: voterID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, classifyErr(err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("vote record not found: %w", domain.ErrNotFound)
	}
	var v voteItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &v); err != nil {
		return nil, err
	}
	rec := v.VoteRecord
	return &rec, nil
}
