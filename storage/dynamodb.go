package storage

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"golang.org/x/time/rate"
)

// DynamoDBStore is an implementation of Store backed by a DynamoDB table whose
// partition key is the binary attribute "k". Values go in the binary
// attribute "va".
type DynamoDBStore struct {
	profile string
	region  string
	table   string

	// Do throttling on our side based on configured RCUs/WCUs so the
	// client doesn't have to retry.
	getLimiter *rate.Limiter
	putLimiter *rate.Limiter

	ddb *dynamodb.DynamoDB
}

func NewDynamoDBStore(profile, region, table string) (*DynamoDBStore, error) {
	s := &DynamoDBStore{
		profile: profile,
		region:  region,
		table:   table,
	}
	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(s.region),
		Credentials: credentials.NewSharedCredentials("", s.profile),
	})
	if err != nil {
		return nil, err
	}
	s.ddb = dynamodb.New(sess)
	if err := s.configureLimiters(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DynamoDBStore) configureLimiters() error {
	result, err := s.ddb.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: &s.table,
	})
	if err != nil {
		return err
	}
	var rcus, wcus int64
	if pt := result.Table.ProvisionedThroughput; pt != nil {
		rcus = aws.Int64Value(pt.ReadCapacityUnits)
		wcus = aws.Int64Value(pt.WriteCapacityUnits)
	}
	s.getLimiter = newCapacityLimiter(rcus)
	s.putLimiter = newCapacityLimiter(wcus)
	return nil
}

// Assume items are <= 1 kB, so that capacity units translate to requests per
// second. On-demand tables report zero units and are not throttled.
func newCapacityLimiter(units int64) *rate.Limiter {
	if units <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(1_000_000/units)*time.Microsecond), 1)
}

func (s *DynamoDBStore) Put(key []byte, value []byte) (err error) {
	var input dynamodb.PutItemInput
	input.TableName = &s.table
	input.Item = map[string]*dynamodb.AttributeValue{
		"k":  ddbBinary(key),
		"va": ddbBinary(value),
	}
	time.Sleep(s.putLimiter.Reserve().Delay())
	_, err = s.ddb.PutItem(&input)
	return err
}

func (s *DynamoDBStore) Get(key []byte) (value []byte, err error) {
	var input dynamodb.GetItemInput
	input.TableName = &s.table
	input.Key = ddbKey(key)
	input.ConsistentRead = aws.Bool(true)
	time.Sleep(s.getLimiter.Reserve().Delay())
	output, err := s.ddb.GetItem(&input)
	if err != nil {
		if e, ok := err.(awserr.Error); ok {
			if e.Code() == dynamodb.ErrCodeResourceNotFoundException {
				return nil, fmt.Errorf("%v: %w", e, ErrNotFound)
			}
		}
		return nil, err
	}
	if output.Item == nil {
		return nil, fmt.Errorf("%.40q: %w", key, ErrNotFound)
	}
	value = output.Item["va"].B
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Delete asks for the old item back, so that it can tell whether anything
// was actually removed.
func (s *DynamoDBStore) Delete(key []byte) (removed bool, err error) {
	var input dynamodb.DeleteItemInput
	input.TableName = &s.table
	input.Key = ddbKey(key)
	input.ReturnValues = aws.String(dynamodb.ReturnValueAllOld)
	time.Sleep(s.putLimiter.Reserve().Delay())
	output, err := s.ddb.DeleteItem(&input)
	if err != nil {
		return false, err
	}
	return len(output.Attributes) > 0, nil
}

func ddbKey(key []byte) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{
		"k": ddbBinary(key),
	}
}

func ddbBinary(b []byte) *dynamodb.AttributeValue {
	return &dynamodb.AttributeValue{
		B: dup(b),
	}
}
