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

// RoleAssignmentRepo stores principal-to-role assignments keyed by
// (principal_id, assignment_id). Assignment ids are ULIDs so a query
// returns them in creation order.
type RoleAssignmentRepo struct {
	client    API
	tableName string
}

func NewRoleAssignmentRepo(client API, tableName string) *RoleAssignmentRepo {
	return &RoleAssignmentRepo{client: client, tableName: tableName}
}

func (r *RoleAssignmentRepo) Create(ctx context.Context, a *domain.RoleAssignment) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal role assignment: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + attrAssignmentID + ")"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("role assignment %s: %w", a.AssignmentID, domain.ErrConflict)
	}
	return err
}

// ActiveRoleIDs returns the role ids of the principal's active assignments,
// oldest assignment first.
func (r *RoleAssignmentRepo) ActiveRoleIDs(ctx context.Context, principalID int64) ([]int64, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		KeyConditionExpression:   aws.String("#p = :p"),
		FilterExpression:         aws.String("#s = :s"),
		ExpressionAttributeNames: map[string]string{"#p": attrPrincipalID, "#s": attrStateID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": numAttr(principalID),
			":s": numAttr(domain.StateActive),
		},
		ScanIndexForward: aws.Bool(true),
	})
	ids := []int64{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query role assignments: %w", err)
		}
		var batch []domain.RoleAssignment
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		for _, a := range batch {
			ids = append(ids, a.RoleID)
		}
	}
	return ids, nil
}
