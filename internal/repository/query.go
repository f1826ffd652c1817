package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Op string

const (
	OpEq       Op = "="
	OpNe       Op = "<>"
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpContains Op = "contains"

	// OpAbsentOrNe matches documents where Field is missing or differs from Value.
	OpAbsentOrNe Op = "absent_or_ne"
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

// Not matches documents whose field is missing or differs from value. Field may be
// a dotted path into a map attribute.
func Not(field string, value any) Filter { return Filter{Field: field, Op: OpAbsentOrNe, Value: value} }

// Query selects documents of one collection. Results are sorted by OrderBy when set,
// otherwise by document id.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
	// Tail makes Limit keep the last documents of the ordering instead of the
	// first, so an ascending feed keeps its newest entries.
	Tail       bool
	Consistent bool
	// Projection limits the returned attributes. PK and SK are always included.
	Projection []string
}

// Document is a stored document decoded into plain Go values. The document id is
// available under the "id" key.
type Document map[string]any

// queryItems runs the query across all result pages.
func (c *Client) queryItems(ctx context.Context, q Query) ([]map[string]types.AttributeValue, error) {
	if strings.TrimSpace(q.Collection) == "" {
		return nil, errors.New("repository: query collection is required")
	}
	b := expression.NewBuilder().WithKeyCondition(expression.Key("PK").Equal(expression.Value(q.Collection)))
	cond, ok, err := filterCondition(q.Filters)
	if err != nil {
		return nil, err
	}
	if ok {
		b = b.WithFilter(cond)
	}
	if len(q.Projection) > 0 {
		proj := expression.NamesList(expression.Name("PK"), expression.Name("SK"))
		for _, field := range q.Projection {
			proj = proj.AddNames(expression.Name(field))
		}
		b = b.WithProjection(proj)
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("repository: build query: %w", err)
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(c.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(q.Consistent),
	}

	var items []map[string]types.AttributeValue
	pages := dynamodb.NewQueryPaginator(c.api, in)
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
	}

	if q.OrderBy != "" {
		sortItems(items, q.OrderBy, q.Descending)
	}
	if q.Limit > 0 && len(items) > q.Limit {
		if q.Tail {
			items = items[len(items)-q.Limit:]
		} else {
			items = items[:q.Limit]
		}
	}
	return items, nil
}

func sortItems(items []map[string]types.AttributeValue, field string, descending bool) {
	type keyed struct {
		item map[string]types.AttributeValue
		key  any
	}
	rows := make([]keyed, len(items))
	for i, item := range items {
		rows[i] = keyed{item: item, key: sortValue(item[field])}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		cmp := compareNative(rows[i].key, rows[j].key)
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	for i := range rows {
		items[i] = rows[i].item
	}
}

// sortValue decodes an attribute for ordering; missing or undecodable values are nil.
func sortValue(av types.AttributeValue) any {
	if av == nil {
		return nil
	}
	var v any
	if err := attributevalue.Unmarshal(av, &v); err != nil {
		return nil
	}
	return v
}

// QueryDocuments runs q and decodes every item into a Document.
func (c *Client) QueryDocuments(ctx context.Context, q Query) ([]Document, error) {
	items, err := c.queryItems(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repository: QueryDocuments %s: %w", q.Collection, err)
	}
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		doc, err := toDocument(item)
		if err != nil {
			return nil, fmt.Errorf("repository: QueryDocuments %s: %w", q.Collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// toDocument decodes an item into plain Go values. Numbers become float64.
func toDocument(item map[string]types.AttributeValue) (Document, error) {
	doc := Document{}
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, err
	}
	doc["id"] = doc["SK"]
	delete(doc, "PK")
	delete(doc, "SK")
	return doc, nil
}

// compareNative orders missing values first, numbers numerically and everything
// else by its string form.
func compareNative(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}
