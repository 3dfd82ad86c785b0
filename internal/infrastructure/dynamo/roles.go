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

// RoleRepo provides typed DynamoDB operations for the role catalog.
type RoleRepo struct {
	client    API
	tableName string
}

func NewRoleRepo(client API, tableName string) *RoleRepo {
	return &RoleRepo{client: client, tableName: tableName}
}

// PutIfAbsent stores role unless its id is already taken. Reports whether it was written.
func (r *RoleRepo) PutIfAbsent(ctx context.Context, role *domain.Role) (bool, error) {
	item, err := attributevalue.MarshalMap(role)
	if err != nil {
		return false, fmt.Errorf("marshal role: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrRoleID + ")"),
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RoleRepo) Get(ctx context.Context, roleID int64) (*domain.Role, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey(attrRoleID, roleID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("role %d: %w", roleID, domain.ErrNotFound)
	}
	var role domain.Role
	if err := attributevalue.UnmarshalMap(out.Item, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetByName returns the enabled role called name.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexRoleName),
		KeyConditionExpression:    aws.String("#n = :n"),
		ExpressionAttributeNames:  map[string]string{"#n": attrName},
		ExpressionAttributeValues: map[string]types.AttributeValue{":n": strAttr(name)},
	})
	if err != nil {
		return nil, err
	}
	for _, item := range out.Items {
		var role domain.Role
		if err := attributevalue.UnmarshalMap(item, &role); err != nil {
			return nil, err
		}
		if role.Enable {
			return &role, nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, domain.ErrNotFound)
}

func (r *RoleRepo) Scan(ctx context.Context) ([]domain.Role, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.tableName)})
	if err != nil {
		return nil, err
	}
	roles := []domain.Role{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}
