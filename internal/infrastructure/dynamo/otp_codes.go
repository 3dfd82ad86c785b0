package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-authcore/internal/domain"
	"github.com/sethvargo/go-retry"
)

const (
	maxTransactItems = 100
	maxBatchWrite    = 25
	rotateRetries    = 5
)

// otpRecord is the stored shape of a one-time code. Times are unix millis so
// expiry comparisons can run inside condition expressions.
type otpRecord struct {
	Scope       string `dynamodbav:"scope"`
	CodeID      string `dynamodbav:"code_id"`
	Contact     string `dynamodbav:"contact"`
	ContactKind string `dynamodbav:"contact_kind"`
	Code        string `dynamodbav:"code"`
	Purpose     string `dynamodbav:"purpose"`
	Used        bool   `dynamodbav:"used"`
	ExpiresAt   int64  `dynamodbav:"expires_at"`
	CreatedAt   int64  `dynamodbav:"created_at"`
	TTL         int64  `dynamodbav:"ttl"`
}

// otpHead serialises rotations within one scope via an optimistic version check.
type otpHead struct {
	Scope     string `dynamodbav:"scope"`
	CodeID    string `dynamodbav:"code_id"`
	Version   int64  `dynamodbav:"version"`
	Current   string `dynamodbav:"current_code_id"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	TTL       int64  `dynamodbav:"ttl"`
}

func otpScope(contact, purpose string) string {
	return contact + "|" + purpose
}

func toOTPRecord(c *domain.OneTimeCode) otpRecord {
	return otpRecord{
		Scope:       otpScope(c.Contact, c.Purpose),
		CodeID:      c.CodeID,
		Contact:     c.Contact,
		ContactKind: string(c.ContactKind),
		Code:        c.Code,
		Purpose:     c.Purpose,
		Used:        c.Used,
		ExpiresAt:   c.ExpiresAt.UnixMilli(),
		CreatedAt:   c.CreatedAt.UnixMilli(),
		TTL:         c.ExpiresAt.Unix(),
	}
}

func (rec otpRecord) toDomain() domain.OneTimeCode {
	return domain.OneTimeCode{
		CodeID:      rec.CodeID,
		Contact:     rec.Contact,
		ContactKind: domain.ContactKind(rec.ContactKind),
		Code:        rec.Code,
		Purpose:     rec.Purpose,
		Used:        rec.Used,
		ExpiresAt:   time.UnixMilli(rec.ExpiresAt).UTC(),
		CreatedAt:   time.UnixMilli(rec.CreatedAt).UTC(),
	}
}

// OTPRepo stores one-time codes partitioned by (contact, purpose).
type OTPRepo struct {
	client    API
	tableName string
	backoff   func() retry.Backoff
}

func NewOTPRepo(client API, tableName string) *OTPRepo {
	return &OTPRepo{
		client:    client,
		tableName: tableName,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(rotateRetries, retry.NewExponential(10*time.Millisecond))
		},
	}
}

// Rotate marks every unused code in c's scope as used and stores c, atomically.
// Concurrent rotations of the same scope are serialised by the head version;
// the loser re-reads and retries so exactly one code stays live.
func (r *OTPRepo) Rotate(ctx context.Context, c *domain.OneTimeCode) error {
	scope := otpScope(c.Contact, c.Purpose)
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		version, err := r.headVersion(ctx, scope)
		if err != nil {
			return err
		}
		prior, err := r.unusedCodeIDs(ctx, scope)
		if err != nil {
			return err
		}
		if len(prior)+2 > maxTransactItems {
			return fmt.Errorf("scope %s holds %d live codes", scope, len(prior))
		}

		items, err := r.rotateItems(scope, version, prior, c)
		if err != nil {
			return err
		}
		_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err != nil {
			if isTxConflict(err) {
				return retry.RetryableError(err)
			}
			return fmt.Errorf("rotate code: %w", err)
		}
		return nil
	})
	if err != nil && isTxConflict(err) {
		return fmt.Errorf("rotate %s: %w", c.Purpose, domain.ErrConflict)
	}
	return err
}

func (r *OTPRepo) rotateItems(scope string, version int64, prior []string, c *domain.OneTimeCode) ([]types.TransactWriteItem, error) {
	head, err := attributevalue.MarshalMap(otpHead{
		Scope:     scope,
		CodeID:    otpHeadSK,
		Version:   version + 1,
		Current:   c.CodeID,
		ExpiresAt: c.ExpiresAt.UnixMilli(),
		TTL:       c.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal otp head: %w", err)
	}
	headPut := &types.Put{TableName: aws.String(r.tableName), Item: head}
	if version == 0 {
		headPut.ConditionExpression = aws.String("attribute_not_exists(" + attrCodeID + ")")
	} else {
		headPut.ConditionExpression = aws.String("#v = :v")
		headPut.ExpressionAttributeNames = map[string]string{"#v": attrVersion}
		headPut.ExpressionAttributeValues = map[string]types.AttributeValue{":v": numAttr(version)}
	}

	rec, err := attributevalue.MarshalMap(toOTPRecord(c))
	if err != nil {
		return nil, fmt.Errorf("marshal otp code: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, len(prior)+2)
	items = append(items, types.TransactWriteItem{Put: headPut})
	for _, codeID := range prior {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(r.tableName),
				Key:                       compositeKey(attrScope, scope, attrCodeID, codeID),
				UpdateExpression:          aws.String("SET #u = :t"),
				ConditionExpression:       aws.String("attribute_exists(" + attrCodeID + ")"),
				ExpressionAttributeNames:  map[string]string{"#u": attrUsed},
				ExpressionAttributeValues: map[string]types.AttributeValue{":t": boolAttr(true)},
			},
		})
	}
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                rec,
			ConditionExpression: aws.String("attribute_not_exists(" + attrCodeID + ")"),
		},
	})
	return items, nil
}

func (r *OTPRepo) headVersion(ctx context.Context, scope string) (int64, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey(attrScope, scope, attrCodeID, otpHeadSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("get otp head: %w", err)
	}
	if out.Item == nil {
		return 0, nil
	}
	var h otpHead
	if err := attributevalue.UnmarshalMap(out.Item, &h); err != nil {
		return 0, fmt.Errorf("unmarshal otp head: %w", err)
	}
	return h.Version, nil
}

func (r *OTPRepo) unusedCodeIDs(ctx context.Context, scope string) ([]string, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		KeyConditionExpression:   aws.String("#p = :p"),
		FilterExpression:         aws.String("#u = :f"),
		ProjectionExpression:     aws.String("#c"),
		ExpressionAttributeNames: map[string]string{"#p": attrScope, "#u": attrUsed, "#c": attrCodeID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": strAttr(scope),
			":f": boolAttr(false),
		},
		ConsistentRead: aws.Bool(true),
	})
	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query unused codes: %w", err)
		}
		for _, item := range page.Items {
			if v, ok := item[attrCodeID].(*types.AttributeValueMemberS); ok {
				ids = append(ids, v.Value)
			}
		}
	}
	return ids, nil
}

// Consume marks the matching live code as used. It returns false when no
// unused, unexpired code with that value exists in the scope, or when a
// concurrent caller consumed it first.
func (r *OTPRepo) Consume(ctx context.Context, contact, code, purpose string, now time.Time) (bool, error) {
	scope := otpScope(contact, purpose)
	nowMs := numAttr(now.UnixMilli())
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		KeyConditionExpression:   aws.String("#p = :p"),
		FilterExpression:         aws.String("#k = :k AND #u = :f AND #x > :now"),
		ExpressionAttributeNames: map[string]string{"#p": attrScope, "#k": attrCode, "#u": attrUsed, "#x": attrExpiresAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p":   strAttr(scope),
			":k":   strAttr(code),
			":f":   boolAttr(false),
			":now": nowMs,
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("query code: %w", err)
	}
	for _, item := range out.Items {
		var rec otpRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return false, fmt.Errorf("unmarshal code: %w", err)
		}
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                aws.String(r.tableName),
			Key:                      compositeKey(attrScope, scope, attrCodeID, rec.CodeID),
			UpdateExpression:         aws.String("SET #u = :t"),
			ConditionExpression:      aws.String("#u = :f AND #x > :now"),
			ExpressionAttributeNames: map[string]string{"#u": attrUsed, "#x": attrExpiresAt},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t":   boolAttr(true),
				":f":   boolAttr(false),
				":now": nowMs,
			},
		})
		if err == nil {
			return true, nil
		}
		if !isConditionFailed(err) {
			return false, fmt.Errorf("consume code: %w", err)
		}
	}
	return false, nil
}

// DeleteExpired removes every code (and scope head) whose expiry is before now.
// Returns the number of items deleted.
func (r *OTPRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                aws.String(r.tableName),
		FilterExpression:         aws.String("#x < :now"),
		ProjectionExpression:     aws.String("#p, #c"),
		ExpressionAttributeNames: map[string]string{"#x": attrExpiresAt, "#p": attrScope, "#c": attrCodeID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": numAttr(now.UnixMilli()),
		},
	})
	deleted := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("scan expired codes: %w", err)
		}
		for start := 0; start < len(page.Items); start += maxBatchWrite {
			end := min(start+maxBatchWrite, len(page.Items))
			if err := r.deleteBatch(ctx, page.Items[start:end]); err != nil {
				return deleted, err
			}
			deleted += end - start
		}
	}
	return deleted, nil
}

func (r *OTPRepo) deleteBatch(ctx context.Context, keys []map[string]types.AttributeValue) error {
	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
	}
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch delete codes: %w", err)
		}
		if len(out.UnprocessedItems) > 0 {
			pending = out.UnprocessedItems
			return retry.RetryableError(fmt.Errorf("%d unprocessed deletes", len(out.UnprocessedItems[r.tableName])))
		}
		return nil
	})
}
