package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-api-authcore/internal/domain"
)

// AccountTypeRepo reads and seeds the account type catalog.
type AccountTypeRepo struct {
	client    API
	tableName string
}

func NewAccountTypeRepo(client API, tableName string) *AccountTypeRepo {
	return &AccountTypeRepo{client: client, tableName: tableName}
}

func (r *AccountTypeRepo) Get(ctx context.Context, accountTypeID int64) (*domain.AccountType, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey(attrAccountTypeID, accountTypeID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account type %d: %w", accountTypeID, domain.ErrNotFound)
	}
	var at domain.AccountType
	if err := attributevalue.UnmarshalMap(out.Item, &at); err != nil {
		return nil, err
	}
	return &at, nil
}

func (r *AccountTypeRepo) PutIfAbsent(ctx context.Context, at *domain.AccountType) (bool, error) {
	item, err := attributevalue.MarshalMap(at)
	if err != nil {
		return false, fmt.Errorf("marshal account type: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrAccountTypeID + ")"),
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
