package dynamo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-authcore/internal/domain"
)

// PrincipalRepo provides typed DynamoDB operations for the principals table.
// Email, contact and username uniqueness is enforced through guard items
// in a separate table written in the same transaction as the principal.
type PrincipalRepo struct {
	client       API
	tableName    string
	uniquesTable string
}

func NewPrincipalRepo(client API, tableName, uniquesTable string) *PrincipalRepo {
	return &PrincipalRepo{client: client, tableName: tableName, uniquesTable: uniquesTable}
}

// Create inserts p together with its uniqueness guards.
// Returns domain.ErrConflict when the id, email, contact or username is taken.
func (r *PrincipalRepo) Create(ctx context.Context, p *domain.Principal) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}
	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(" + attrPrincipalID + ")"),
		},
	}}
	for _, key := range uniqueKeys(p) {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(r.uniquesTable),
				Item: map[string]types.AttributeValue{
					attrUniqueKey:   strAttr(key),
					attrPrincipalID: numAttr(p.PrincipalID),
				},
				ConditionExpression: aws.String("attribute_not_exists(" + attrUniqueKey + ")"),
			},
		})
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isTxConflict(err) {
			return fmt.Errorf("principal %s: %w", p.Email, domain.ErrConflict)
		}
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

func uniqueKeys(p *domain.Principal) []string {
	keys := []string{"email#" + p.Email, "username#" + p.Username}
	if p.Contact != "" {
		keys = append(keys, "contact#"+p.Contact)
	}
	return keys
}

// Taken reports whether a uniqueness guard exists for kind ("email", "contact", "username").
func (r *PrincipalRepo) Taken(ctx context.Context, kind, value string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.uniquesTable),
		Key:            strKey(attrUniqueKey, kind+"#"+value),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("get unique %s: %w", kind, err)
	}
	return out.Item != nil, nil
}

func (r *PrincipalRepo) Get(ctx context.Context, principalID int64) (*domain.Principal, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       numKey(attrPrincipalID, principalID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("principal %d: %w", principalID, domain.ErrNotFound)
	}
	var p domain.Principal
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PrincipalRepo) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return r.queryGSI(ctx, indexEmail, attrEmail, email)
}

func (r *PrincipalRepo) GetByContact(ctx context.Context, contact string) (*domain.Principal, error) {
	return r.queryGSI(ctx, indexContact, attrContact, contact)
}

func (r *PrincipalRepo) GetByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	return r.queryGSI(ctx, indexUsername, attrUsername, username)
}

// Lookup resolves identifier as an email, then a contact, then a username.
func (r *PrincipalRepo) Lookup(ctx context.Context, identifier string) (*domain.Principal, error) {
	identifier = domain.NormalizeContact(identifier)
	for _, find := range []func(context.Context, string) (*domain.Principal, error){
		r.GetByEmail, r.GetByContact, r.GetByUsername,
	} {
		p, err := find(ctx, identifier)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("principal %q: %w", identifier, domain.ErrNotFound)
}

func (r *PrincipalRepo) Update(ctx context.Context, principalID int64, updates map[string]interface{}) error {
	updates[attrUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       numKey(attrPrincipalID, principalID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(" + attrPrincipalID + ")"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("principal %d: %w", principalID, domain.ErrNotFound)
	}
	return err
}

// ScanPage returns a page of non-eliminated principals.
// cursor is a base64-encoded principal_id used as ExclusiveStartKey.
// Returns the items, a next cursor (empty string when no more pages), and any error.
func (r *PrincipalRepo) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Principal, string, error) {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(r.tableName),
		FilterExpression:         aws.String("#s <> :e"),
		ExpressionAttributeNames: map[string]string{"#s": attrStateID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": numAttr(domain.StateEliminated),
		},
		Limit: aws.Int32(limit),
	}
	if cursor != "" {
		principalID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = numKey(attrPrincipalID, principalID)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	principals := []domain.Principal{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &principals); err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if v, ok := out.LastEvaluatedKey[attrPrincipalID].(*types.AttributeValueMemberN); ok {
		nextCursor = encodeCursor(v.Value)
	}
	return principals, nextCursor, nil
}

func encodeCursor(principalID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(principalID))
}

func decodeCursor(cursor string) (int64, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(b), 10, 64)
}

func (r *PrincipalRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.Principal, error) {
	if value == "" {
		return nil, fmt.Errorf("empty %s: %w", attr, domain.ErrNotFound)
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		FilterExpression:          aws.String("#s <> :e"),
		ExpressionAttributeNames:  map[string]string{"#a": attr, "#s": attrStateID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strAttr(value), ":e": numAttr(domain.StateEliminated)},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("principal by %s: %w", attr, domain.ErrNotFound)
	}
	var p domain.Principal
	if err := attributevalue.UnmarshalMap(out.Items[0], &p); err != nil {
		return nil, err
	}
	return &p, nil
}
