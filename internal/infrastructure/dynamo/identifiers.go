package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-authcore/internal/domain"
)

// IdentifierRepo stores external identifiers linking principals to other subsystems.
type IdentifierRepo struct {
	client    API
	tableName string
}

func NewIdentifierRepo(client API, tableName string) *IdentifierRepo {
	return &IdentifierRepo{client: client, tableName: tableName}
}

func (r *IdentifierRepo) Create(ctx context.Context, ident *domain.ExternalIdentifier) error {
	item, err := attributevalue.MarshalMap(ident)
	if err != nil {
		return fmt.Errorf("marshal identifier: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrIdentifierID + ")"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("identifier %s: %w", ident.IdentifierID, domain.ErrConflict)
	}
	return err
}

func (r *IdentifierRepo) ListByPrincipal(ctx context.Context, principalID int64) ([]domain.ExternalIdentifier, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexPrincipalID),
		KeyConditionExpression:    aws.String("#p = :p"),
		ExpressionAttributeNames:  map[string]string{"#p": attrPrincipalID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":p": numAttr(principalID)},
	})
	if err != nil {
		return nil, err
	}
	idents := []domain.ExternalIdentifier{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &idents); err != nil {
		return nil, err
	}
	return idents, nil
}
