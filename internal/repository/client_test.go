package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"clinic-booking/internal/domain"
)

type fakeDynamo struct {
	getOut     *dynamodb.GetItemOutput
	getErr     error
	putErr     error
	deleteErr  error
	updateErr  error
	queryPages []*dynamodb.QueryOutput
	queryErr   error
	txErr      error

	lastGetInput    *dynamodb.GetItemInput
	lastPutInput    *dynamodb.PutItemInput
	lastDeleteInput *dynamodb.DeleteItemInput
	lastUpdateInput *dynamodb.UpdateItemInput
	queryInputs     []*dynamodb.QueryInput
	txInputs        []*dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdateInput = in
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.queryPages) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	out := f.queryPages[0]
	f.queryPages = f.queryPages[1:]
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.txInputs = append(f.txInputs, in)
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	return c
}

func strAV(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func numAV(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func featuredRow(id string, rank int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":   strAV(domain.CollectionFeatured),
		"SK":   strAV(id),
		"rank": numAV(fmt.Sprint(rank)),
	}
}

func messageRow(id string, createdAt int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        strAV("chats/t1/messages"),
		"SK":        strAV(id),
		"createdAt": numAV(fmt.Sprint(createdAt)),
	}
}

// namesIn resolves the placeholders of an expression back to attribute names.
func namesIn(names map[string]string) []string {
	out := make([]string, 0, len(names))
	for _, v := range names {
		out = append(out, v)
	}
	return out
}

func valuesIn(values map[string]types.AttributeValue) []types.AttributeValue {
	out := make([]types.AttributeValue, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestGetUser_StrongRead(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":        strAV(domain.CollectionUsers),
		"SK":        strAV("u1"),
		"role":      strAV("admin"),
		"email":     strAV("a@example.com"),
		"createdAt": numAV("1715335200000"),
	}}}
	c := mustNewClient(t, db)

	u, err := c.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, u.Role)
	require.Equal(t, "a@example.com", u.Email)
	require.Equal(t, time.UnixMilli(1715335200000).UTC(), u.CreatedAt)
	require.True(t, aws.ToBool(db.lastGetInput.ConsistentRead))
}

func TestGetUser_NotFound(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	_, err := c.GetUser(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQueryDocuments_FiltersSortsAndPages(t *testing.T) {
	pk := "users/u1/notifications"
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{
		{
			Items: []map[string]types.AttributeValue{
				{"PK": strAV(pk), "SK": strAV("n1"), "read": &types.AttributeValueMemberBOOL{Value: false}, "createdAt": numAV("100")},
			},
			LastEvaluatedKey: map[string]types.AttributeValue{"PK": strAV(pk), "SK": strAV("n1")},
		},
		{
			Items: []map[string]types.AttributeValue{
				{"PK": strAV(pk), "SK": strAV("n2"), "read": &types.AttributeValueMemberBOOL{Value: false}, "createdAt": numAV("300")},
				{"PK": strAV(pk), "SK": strAV("n3"), "read": &types.AttributeValueMemberBOOL{Value: false}, "createdAt": numAV("200")},
			},
		},
	}}
	c := mustNewClient(t, db)

	docs, err := c.QueryDocuments(context.Background(), Query{
		Collection: pk,
		Filters:    []Filter{Eq("read", false)},
		OrderBy:    "createdAt",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, []any{"n2", "n3", "n1"}, []any{docs[0]["id"], docs[1]["id"], docs[2]["id"]})
	require.Equal(t, float64(300), docs[0]["createdAt"])
	require.Equal(t, false, docs[0]["read"])
	require.NotContains(t, docs[0], "PK")

	require.Len(t, db.queryInputs, 2)
	in := db.queryInputs[0]
	require.NotEmpty(t, aws.ToString(in.KeyConditionExpression))
	require.Contains(t, aws.ToString(in.FilterExpression), "=")
	require.ElementsMatch(t, []string{"PK", "read"}, namesIn(in.ExpressionAttributeNames))
	require.Contains(t, valuesIn(in.ExpressionAttributeValues), strAV(pk))
	require.Contains(t, valuesIn(in.ExpressionAttributeValues), types.AttributeValue(&types.AttributeValueMemberBOOL{Value: false}))
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)
}

func TestQueryDocuments_TailKeepsNewestOfAscendingFeed(t *testing.T) {
	rows := make([]map[string]types.AttributeValue, 0, 250)
	for i := 250; i >= 1; i-- {
		rows = append(rows, messageRow(fmt.Sprintf("m%03d", i), 1000+i))
	}
	c := mustNewClient(t, &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: rows}}})

	docs, err := c.QueryDocuments(context.Background(), Query{
		Collection: "chats/t1/messages",
		OrderBy:    "createdAt",
		Limit:      200,
		Tail:       true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 200)
	require.Equal(t, "m051", docs[0]["id"])
	require.Equal(t, "m250", docs[199]["id"])
	for i := 1; i < len(docs); i++ {
		require.Less(t, docs[i-1]["createdAt"].(float64), docs[i]["createdAt"].(float64))
	}
}

func TestQueryDocuments_HeadLimitKeepsFirst(t *testing.T) {
	rows := []map[string]types.AttributeValue{messageRow("m3", 3), messageRow("m1", 1), messageRow("m2", 2)}
	c := mustNewClient(t, &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: rows}}})

	docs, err := c.QueryDocuments(context.Background(), Query{
		Collection: "chats/t1/messages",
		OrderBy:    "createdAt",
		Limit:      2,
	})
	require.NoError(t, err)
	require.Equal(t, []any{"m1", "m2"}, []any{docs[0]["id"], docs[1]["id"]})
}

func TestQueryDocuments_NotFilterAddressesNestedFlag(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.QueryDocuments(context.Background(), Query{
		Collection: domain.CollectionChats,
		Filters: []Filter{
			{Field: "participants", Op: OpContains, Value: "u1"},
			Not("deleted.u1", true),
		},
	})
	require.NoError(t, err)

	in := db.queryInputs[0]
	filter := aws.ToString(in.FilterExpression)
	require.Contains(t, filter, "contains")
	require.Contains(t, filter, "attribute_not_exists")
	require.Contains(t, filter, "<>")
	require.Contains(t, filter, ".")
	require.Subset(t, namesIn(in.ExpressionAttributeNames), []string{"participants", "deleted", "u1"})
	require.Contains(t, valuesIn(in.ExpressionAttributeValues), types.AttributeValue(&types.AttributeValueMemberBOOL{Value: true}))
}

func TestQueryDocuments_RejectsUnknownOperator(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	_, err := c.QueryDocuments(context.Background(), Query{
		Collection: "x",
		Filters:    []Filter{{Field: "a", Op: Op("~"), Value: "b"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported operator")
}

func TestQueryDocuments_Error(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")})
	_, err := c.QueryDocuments(context.Background(), Query{Collection: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "QueryDocuments")
}

func TestListFeatured_SortedByRank(t *testing.T) {
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
		featuredRow("d3", 7), featuredRow("d1", 1), featuredRow("d2", 4),
	}}}}
	c := mustNewClient(t, db)

	entries, err := c.ListFeatured(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 7}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	require.True(t, aws.ToBool(db.queryInputs[0].ConsistentRead))
}

func TestSwapFeaturedRanks_OneGuardedBatch(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	err := c.SwapFeaturedRanks(context.Background(),
		domain.FeaturedEntry{EntityID: "d1", Rank: 1},
		domain.FeaturedEntry{EntityID: "d2", Rank: 4},
	)
	require.NoError(t, err)
	require.Len(t, db.txInputs, 1)

	items := db.txInputs[0].TransactItems
	require.Len(t, items, 2)
	first := items[0].Update
	require.Equal(t, strAV("d1"), first.Key["SK"])
	require.Contains(t, aws.ToString(first.UpdateExpression), "SET")
	require.Contains(t, aws.ToString(first.ConditionExpression), "=")
	require.Equal(t, []string{"rank"}, namesIn(first.ExpressionAttributeNames))
	require.ElementsMatch(t, []types.AttributeValue{numAV("4"), numAV("1")}, valuesIn(first.ExpressionAttributeValues))

	second := items[1].Update
	require.Equal(t, strAV("d2"), second.Key["SK"])
	require.ElementsMatch(t, []types.AttributeValue{numAV("1"), numAV("4")}, valuesIn(second.ExpressionAttributeValues))
}

func TestSwapFeaturedRanks_SameEntity(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	e := domain.FeaturedEntry{EntityID: "d1", Rank: 1}
	require.Error(t, c.SwapFeaturedRanks(context.Background(), e, e))
}

func TestCommit_MapsConditionalCancellation(t *testing.T) {
	db := &fakeDynamo{txErr: &types.TransactionCanceledException{
		Message: aws.String("Transaction cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
		},
	}}
	c := mustNewClient(t, db)

	err := c.SwapFeaturedRanks(context.Background(),
		domain.FeaturedEntry{EntityID: "d1", Rank: 1},
		domain.FeaturedEntry{EntityID: "d2", Rank: 2},
	)
	require.ErrorIs(t, err, ErrConditionFailed)
}

func TestDeleteMessages_BatchLimit(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	ids := make([]string, MaxBatchItems+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%03d", i)
	}
	err := c.DeleteMessages(context.Background(), "t1", ids)
	require.ErrorIs(t, err, ErrBatchTooLarge)
	require.Empty(t, db.txInputs)

	require.NoError(t, c.DeleteMessages(context.Background(), "t1", ids[:3]))
	require.Len(t, db.txInputs, 1)
	for _, it := range db.txInputs[0].TransactItems {
		require.Equal(t, strAV("chats/t1/messages"), it.Delete.Key["PK"])
	}
}

func TestListExpiredMessageIDs_StrictCutoff(t *testing.T) {
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{{Items: []map[string]types.AttributeValue{
		messageRow("m1", 1),
	}}}}
	c := mustNewClient(t, db)
	cutoff := time.UnixMilli(1700000000000)

	ids, err := c.ListExpiredMessageIDs(context.Background(), "t1", cutoff)
	require.NoError(t, err)
	require.Equal(t, []string{"m1"}, ids)

	in := db.queryInputs[0]
	require.Contains(t, aws.ToString(in.FilterExpression), "<")
	require.Contains(t, namesIn(in.ExpressionAttributeNames), "createdAt")
	require.Contains(t, valuesIn(in.ExpressionAttributeValues), numAV("1700000000000"))
	require.Contains(t, valuesIn(in.ExpressionAttributeValues), strAV("chats/t1/messages"))
}

func TestAppendMessage_IncrementsRecipientOnly(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	thread := domain.ChatThread{ID: "t1", ParticipantA: "p1", ParticipantB: "d1", Status: domain.ThreadAccepted}
	msg := domain.Message{ID: "m1", ThreadID: "t1", SenderID: "p1", Text: "hi", CreatedAt: time.Now()}

	require.NoError(t, c.AppendMessage(context.Background(), thread, msg, "hi", nil))
	require.Len(t, db.txInputs, 1)
	items := db.txInputs[0].TransactItems
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Put)
	require.Contains(t, aws.ToString(items[0].Put.ConditionExpression), "attribute_not_exists")

	upd := items[1].Update
	expr := aws.ToString(upd.UpdateExpression)
	require.True(t, strings.Contains(expr, "ADD "))
	require.Subset(t, namesIn(upd.ExpressionAttributeNames), []string{"unread", "d1", "deleted", "p1"})
	require.Contains(t, aws.ToString(upd.ConditionExpression), "=")
	require.Contains(t, valuesIn(upd.ExpressionAttributeValues), types.AttributeValue(&types.AttributeValueMemberBOOL{Value: false}))
}

func TestCreateAppointment_ReservesSlotAndWritesOwnerCopies(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	appt := domain.Appointment{ID: "a1", DoctorID: "D1", PatientID: "P1", Date: "2024-05-10", TimeSlot: "10:00", Status: domain.AppointmentPending}

	require.NoError(t, c.CreateAppointment(context.Background(), appt, &domain.Notification{ID: "n1", UserID: "D1"}))
	items := db.txInputs[0].TransactItems
	require.Len(t, items, 5)
	require.Equal(t, strAV(domain.CollectionSlots), items[0].Put.Item["PK"])
	require.Equal(t, strAV("D1#2024-05-10#10:00"), items[0].Put.Item["SK"])
	require.NotNil(t, items[0].Put.ConditionExpression)
	require.Equal(t, strAV(domain.CollectionAppointments), items[1].Put.Item["PK"])
	require.Equal(t, strAV("doctors/D1/appointments"), items[2].Put.Item["PK"])
	require.Equal(t, strAV("users/P1/appointments"), items[3].Put.Item["PK"])
	require.Equal(t, strAV("a1"), items[3].Put.Item["SK"])
	require.Equal(t, strAV("users/D1/notifications"), items[4].Put.Item["PK"])
}

func TestCreateAppointment_GuestHasNoPatientCopy(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	appt := domain.Appointment{ID: "a1", DoctorID: "D1", PatientName: "Guest", Date: "2024-05-10", TimeSlot: "10:00", Status: domain.AppointmentPending}

	require.NoError(t, c.CreateAppointment(context.Background(), appt, nil))
	items := db.txInputs[0].TransactItems
	require.Len(t, items, 3)
	require.Equal(t, strAV("doctors/D1/appointments"), items[2].Put.Item["PK"])
}

func TestUpdateAppointmentStatus_CancelReleasesSlot(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	appt := domain.Appointment{ID: "a1", DoctorID: "D1", Date: "2024-05-10", TimeSlot: "10:00", Status: domain.AppointmentPending}

	require.NoError(t, c.UpdateAppointmentStatus(context.Background(), appt, domain.AppointmentCancelled, time.Now(), nil))
	items := db.txInputs[0].TransactItems
	require.Len(t, items, 3)
	require.Equal(t, strAV(domain.CollectionAppointments), items[0].Update.Key["PK"])
	require.Contains(t, valuesIn(items[0].Update.ExpressionAttributeValues), strAV(string(domain.AppointmentPending)))
	require.Equal(t, strAV("doctors/D1/appointments"), items[1].Update.Key["PK"])
	require.Contains(t, aws.ToString(items[1].Update.ConditionExpression), "attribute_exists")
	require.NotNil(t, items[2].Delete)
	require.Equal(t, strAV("D1#2024-05-10#10:00"), items[2].Delete.Key["SK"])
}

func TestAppointmentsOn_ReadsDoctorCopies(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.AppointmentsOn(context.Background(), "D1", "2024-05-10")
	require.NoError(t, err)
	in := db.queryInputs[0]
	require.True(t, aws.ToBool(in.ConsistentRead))
	require.Contains(t, valuesIn(in.ExpressionAttributeValues), strAV("doctors/D1/appointments"))
	require.Contains(t, valuesIn(in.ExpressionAttributeValues), strAV("2024-05-10"))
}

func TestMarkThreadRead_ChunksLargeSets(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	ids := make([]string, 150)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%03d", i)
	}

	require.NoError(t, c.MarkThreadRead(context.Background(), "t1", "u1", ids))
	require.Len(t, db.txInputs, 2)
	require.Len(t, db.txInputs[0].TransactItems, MaxBatchItems)
	require.Len(t, db.txInputs[1].TransactItems, 51)
	require.Equal(t, strAV(domain.CollectionChats), db.txInputs[0].TransactItems[0].Update.Key["PK"])
}

func TestAddFeatured_FirstEntryCreatesMark(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.AddFeatured(context.Background(), domain.FeaturedEntry{EntityID: "d1", Rank: 1}, 0))
	items := db.txInputs[0].TransactItems
	require.Len(t, items, 2)
	require.Equal(t, strAV(domain.CollectionMeta), items[0].Put.Item["PK"])
	require.Equal(t, numAV("1"), items[0].Put.Item["highWater"])
	require.Equal(t, numAV("1"), items[1].Put.Item["rank"])

	require.NoError(t, c.AddFeatured(context.Background(), domain.FeaturedEntry{EntityID: "d2", Rank: 2}, 1))
	items = db.txInputs[1].TransactItems
	require.NotNil(t, items[0].Update)
	require.Contains(t, aws.ToString(items[0].Update.ConditionExpression), "=")
	require.ElementsMatch(t, []types.AttributeValue{numAV("2"), numAV("1")}, valuesIn(items[0].Update.ExpressionAttributeValues))
}

func TestPutItem_ConditionalFailure(t *testing.T) {
	db := &fakeDynamo{putErr: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	c := mustNewClient(t, db)
	err := c.CreateThread(context.Background(), domain.ChatThread{ID: "t1", ParticipantA: "a", ParticipantB: "b"})
	require.ErrorIs(t, err, ErrConditionFailed)
}

func TestMarkNotificationRead_AddressesOwnerCollection(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.MarkNotificationRead(context.Background(), "u1", "n1"))
	require.Equal(t, strAV("users/u1/notifications"), db.lastUpdateInput.Key["PK"])
	require.Equal(t, strAV("n1"), db.lastUpdateInput.Key["SK"])
	require.Contains(t, aws.ToString(db.lastUpdateInput.ConditionExpression), "attribute_exists")
}

func TestHideThread_SetsNestedFlag(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.HideThread(context.Background(), "t1", "u1"))
	upd := db.lastUpdateInput
	require.Contains(t, aws.ToString(upd.UpdateExpression), ".")
	require.Subset(t, namesIn(upd.ExpressionAttributeNames), []string{"deleted", "u1"})
	require.Contains(t, valuesIn(upd.ExpressionAttributeValues), types.AttributeValue(&types.AttributeValueMemberBOOL{Value: true}))
}
