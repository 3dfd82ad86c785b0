package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Counter names.
const (
	CounterPrincipals = "principals"
)

// CounterRepo hands out monotonically increasing numeric ids.
type CounterRepo struct {
	client    API
	tableName string
}

func NewCounterRepo(client API, tableName string) *CounterRepo {
	return &CounterRepo{client: client, tableName: tableName}
}

// Next atomically increments the named counter and returns the new value.
// The first call for a name returns 1.
func (r *CounterRepo) Next(ctx context.Context, name string) (int64, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrCounterName, name),
		UpdateExpression:          aws.String("ADD #v :one"),
		ExpressionAttributeNames:  map[string]string{"#v": attrCounterValue},
		ExpressionAttributeValues: map[string]types.AttributeValue{":one": numAttr(1)},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	v, ok := out.Attributes[attrCounterValue].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("counter %s: missing value", name)
	}
	return strconv.ParseInt(v.Value, 10, 64)
}

// NextPrincipalID allocates a principal id.
func (r *CounterRepo) NextPrincipalID(ctx context.Context) (int64, error) {
	return r.Next(ctx, CounterPrincipals)
}
