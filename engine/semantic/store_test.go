package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertResp *pb.PointsOperationResponse
	upsertErr  error
	deleteReq  *pb.DeletePoints
	deleteResp *pb.PointsOperationResponse
	deleteErr  error
	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return m.upsertResp, m.upsertErr
}
func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleteReq = in
	return m.deleteResp, m.deleteErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	createResp *pb.CollectionOperationResponse
	createErr  error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, _ *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return m.createResp, m.createErr
}

// --- Tests ---

func TestNewWithClients(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "test")
	if vs == nil {
		t.Fatal("expected non-nil")
	}
	if err := vs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "test"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp:   &pb.ListCollectionsResponse{Collections: []*pb.CollectionDescription{{Name: "other"}}},
		createResp: &pb.CollectionOperationResponse{Result: true},
	}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 1536); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCollection_ListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	vs := NewWithClients(&mockPoints{}, cols, "test")
	if err := vs.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_Empty(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "test")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsert_Success(t *testing.T) {
	pts := &mockPoints{upsertResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")

	records := []VectorRecord{
		{
			PointID:   "4f2d9e1a-0000-5000-8000-000000000001",
			Embedding: []float32{1, 0, 0, 0},
			Payload: map[string]any{
				"record_id":     "rec-1",
				"facet":         FacetListing,
				"active":        true,
				"last_modified": int64(1700000000),
				"priority":      3,
				"boost":         0.5,
				"tags":          []int{1, 2}, // default case
			},
		},
	}
	if err := vs.Upsert(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts.upsertReq.GetPoints()) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pts.upsertReq.GetPoints()))
	}
	payload := pts.upsertReq.GetPoints()[0].GetPayload()
	if payload["facet"].GetStringValue() != FacetListing {
		t.Errorf("wrong facet payload: %v", payload["facet"])
	}
	if payload["last_modified"].GetIntegerValue() != 1700000000 {
		t.Errorf("wrong last_modified: %v", payload["last_modified"])
	}
}

func TestUpsert_Error(t *testing.T) {
	pts := &mockPoints{upsertErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "test")

	records := []VectorRecord{{PointID: "p1", Embedding: []float32{1, 0}}}
	err := vs.Upsert(context.Background(), records)
	if err == nil {
		t.Fatal("expected error")
	}
	var ie *domain.IndexError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IndexError, got %T", err)
	}
	if errors.Is(err, domain.ErrUnavailable) {
		t.Error("plain rpc failure should not read as unavailable")
	}
}

func TestUpsert_Unavailable(t *testing.T) {
	pts := &mockPoints{upsertErr: status.Error(codes.Unavailable, "connection refused")}
	vs := NewWithClients(pts, &mockCollections{}, "test")

	records := []VectorRecord{{PointID: "p1", Embedding: []float32{1, 0}}}
	err := vs.Upsert(context.Background(), records)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDeleteByRecordID_FiltersOnRecordID(t *testing.T) {
	pts := &mockPoints{deleteResp: &pb.PointsOperationResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.DeleteByRecordID(context.Background(), "rec-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filter := pts.deleteReq.GetPoints().GetFilter()
	if filter == nil || len(filter.Must) != 1 {
		t.Fatal("expected a single filter condition")
	}
	fc := filter.Must[0].GetField()
	if fc.Key != "record_id" || fc.Match.GetKeyword() != "rec-1" {
		t.Fatalf("wrong condition: %s=%s", fc.Key, fc.Match.GetKeyword())
	}
}

func TestDeleteByRecordID_Error(t *testing.T) {
	pts := &mockPoints{deleteErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	if err := vs.DeleteByRecordID(context.Background(), "rec-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestQuery_DecodesCandidates(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.95,
					Payload: map[string]*pb.Value{
						"record_id":     {Kind: &pb.Value_StringValue{StringValue: "rec-1"}},
						"owner_id":      {Kind: &pb.Value_StringValue{StringValue: "u1"}},
						"role":          {Kind: &pb.Value_StringValue{StringValue: "tutor"}},
						"title":         {Kind: &pb.Value_StringValue{StringValue: "Linear algebra tutoring"}},
						"subjects":      {Kind: &pb.Value_StringValue{StringValue: "Math\nPhysics"}},
						"last_modified": {Kind: &pb.Value_IntegerValue{IntegerValue: 1700000000}},
					},
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	results, err := vs.Query(context.Background(), []float32{1, 0}, 5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1, got %d", len(results))
	}
	got := results[0]
	if got.PointID != "p1" || got.Score != 0.95 {
		t.Error("wrong id/score")
	}
	if got.ID != "rec-1" {
		t.Errorf("wrong record id: %s", got.ID)
	}
	if got.Listing.Title != "Linear algebra tutoring" {
		t.Errorf("wrong title: %s", got.Listing.Title)
	}
	if got.Listing.Role != domain.RoleTutor {
		t.Errorf("wrong role: %s", got.Listing.Role)
	}
	if len(got.Listing.Subjects) != 2 || got.Listing.Subjects[1] != "Physics" {
		t.Errorf("wrong subjects: %v", got.Listing.Subjects)
	}
	if got.Listing.LastModifiedAt.Unix() != 1700000000 {
		t.Errorf("wrong last modified: %v", got.Listing.LastModifiedAt)
	}
}

func TestQuery_WithFilters(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	results, err := vs.Query(context.Background(), []float32{1}, 5, map[string]string{"facet": FacetOffered, "role": "tutor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0, got %d", len(results))
	}
	if len(pts.searchReq.GetFilter().GetMust()) != 2 {
		t.Fatalf("expected 2 filter conditions, got %d", len(pts.searchReq.GetFilter().GetMust()))
	}
}

func TestQuery_Unavailable(t *testing.T) {
	pts := &mockPoints{searchErr: status.Error(codes.Unavailable, "down")}
	vs := NewWithClients(pts, &mockCollections{}, "test")
	_, err := vs.Query(context.Background(), []float32{1}, 5, nil)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFieldMatch(t *testing.T) {
	cond := fieldMatch("facet", FacetWanted)
	fc := cond.GetField()
	if fc.Key != "facet" {
		t.Fatalf("expected facet, got %s", fc.Key)
	}
	if fc.Match.GetKeyword() != FacetWanted {
		t.Fatalf("expected %s, got %s", FacetWanted, fc.Match.GetKeyword())
	}
}
