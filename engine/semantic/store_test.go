package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertErr  error
	deleteReq  *pb.DeletePoints
	deleteErr  error
	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}
func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleteReq = in
	return &pb.PointsOperationResponse{}, m.deleteErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	createReq *pb.CreateCollection
	createErr error
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.createReq = in
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return &pb.CollectionOperationResponse{Result: true}, m.deleteErr
}

// --- Tests ---

func TestCollectionName(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"intfloat/multilingual-e5-small", "chunk_embeddings__multilingual_e5_small"},
		{"BAAI/bge-m3", "chunk_embeddings__bge_m3"},
		{"text-embedding-3.small", "chunk_embeddings__text_embedding_3_small"},
		{"plain", "chunk_embeddings__plain"},
	}
	for _, tc := range tests {
		if got := CollectionName(tc.model); got != tc.want {
			t.Errorf("CollectionName(%q) = %q, want %q", tc.model, got, tc.want)
		}
	}
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	name := CollectionName("m")
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: name}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "m")
	if err := vs.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createReq != nil {
		t.Error("should not create an existing collection")
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{},
	}
	vs := NewWithClients(&mockPoints{}, cols, "m")
	if err := vs.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.createReq == nil {
		t.Fatal("expected Create call")
	}
	params := cols.createReq.GetVectorsConfig().GetParams()
	if params.GetSize() != 384 || params.GetDistance() != pb.Distance_Cosine {
		t.Errorf("got size=%d distance=%v", params.GetSize(), params.GetDistance())
	}
}

func TestEnsureCollection_ListError(t *testing.T) {
	boom := errors.New("down")
	vs := NewWithClients(&mockPoints{}, &mockCollections{listErr: boom}, "m")
	if err := vs.EnsureCollection(context.Background(), 4); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestUpsert_PayloadShape(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "m")

	err := vs.Upsert(context.Background(), []Record{{
		ID:         "11111111-1111-1111-1111-111111111111",
		Embedding:  []float32{0.1, 0.2},
		Content:    "hello",
		DocumentID: "doc-1",
		SourceRef:  "manual.md#intro",
		ProfileID:  "prof-1",
		ChunkIndex: 3,
	}})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if pts.upsertReq == nil || len(pts.upsertReq.GetPoints()) != 1 {
		t.Fatal("expected one point")
	}
	p := pts.upsertReq.GetPoints()[0]
	pay := p.GetPayload()
	if pay["content"].GetStringValue() != "hello" ||
		pay["document_id"].GetStringValue() != "doc-1" ||
		pay["source_ref"].GetStringValue() != "manual.md#intro" ||
		pay["chunk_profile_id"].GetStringValue() != "prof-1" ||
		pay["chunk_index"].GetIntegerValue() != 3 {
		t.Errorf("payload wrong: %v", pay)
	}
	if !pts.upsertReq.GetWait() {
		t.Error("upsert should wait for durability")
	}
}

func TestUpsert_EmptyIsNoop(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "m")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.upsertReq != nil {
		t.Error("no request expected for empty batch")
	}
}

func TestSearch_FiltersByProfile(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{{
				Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "id-1"}},
				Score: 0.91,
				Payload: map[string]*pb.Value{
					"content":          {Kind: &pb.Value_StringValue{StringValue: "text"}},
					"document_id":      {Kind: &pb.Value_StringValue{StringValue: "doc-1"}},
					"source_ref":       {Kind: &pb.Value_StringValue{StringValue: "ref"}},
					"chunk_profile_id": {Kind: &pb.Value_StringValue{StringValue: "prof-1"}},
					"chunk_index":      {Kind: &pb.Value_IntegerValue{IntegerValue: 7}},
				},
			}},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "m")

	hits, err := vs.Search(context.Background(), []float32{0.1}, 5, "prof-1")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits", len(hits))
	}
	h := hits[0]
	if h.ID != "id-1" || h.Score != 0.91 || h.Content != "text" ||
		h.DocumentID != "doc-1" || h.SourceRef != "ref" ||
		h.ProfileID != "prof-1" || h.ChunkIndex != 7 {
		t.Errorf("hit wrong: %+v", h)
	}

	must := pts.searchReq.GetFilter().GetMust()
	if len(must) != 1 {
		t.Fatalf("expected one filter condition, got %d", len(must))
	}
	field := must[0].GetField()
	if field.GetKey() != "chunk_profile_id" || field.GetMatch().GetKeyword() != "prof-1" {
		t.Errorf("filter wrong: %v", field)
	}
	if pts.searchReq.GetLimit() != 5 {
		t.Errorf("limit = %d", pts.searchReq.GetLimit())
	}
}

func TestSearch_Error(t *testing.T) {
	boom := errors.New("unavailable")
	vs := NewWithClients(&mockPoints{searchErr: boom}, &mockCollections{}, "m")
	if _, err := vs.Search(context.Background(), []float32{0.1}, 5, "p"); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestDeleteByDocument_Filter(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "m")
	if err := vs.DeleteByDocument(context.Background(), "doc-1", "prof-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	must := pts.deleteReq.GetPoints().GetFilter().GetMust()
	if len(must) != 2 {
		t.Fatalf("expected two conditions, got %d", len(must))
	}
}

func TestClose_NilConn(t *testing.T) {
	vs := NewWithClients(nil, nil, "m")
	if err := vs.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
