package graph

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/ringtrace/internal/syncutil"
)

// ---------------------------------------------------------------------------
// Test router setup
// ---------------------------------------------------------------------------

func setupHandlerTestRouter() (*gin.Engine, *Service) {
	gin.SetMode(gin.TestMode)

	store := NewMemoryStore()
	svc := NewService(store, syncutil.NewContextShardedMutex(), Limits{})
	handler := NewHandler(svc)

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)

	return r, svc
}

func createTestGraph(t *testing.T, router *gin.Engine, name string) string {
	t.Helper()

	body, _ := json.Marshal(CreateGraphRequest{Name: name})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Setup: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var g Graph
	if err := json.Unmarshal(w.Body.Bytes(), &g); err != nil {
		t.Fatalf("Setup: failed to parse graph: %v", err)
	}
	return g.ID
}

// ---------------------------------------------------------------------------
// POST /v1/graphs
// ---------------------------------------------------------------------------

func TestHandler_CreateGraph_201(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	body, _ := json.Marshal(CreateGraphRequest{
		Name:        "payments-eu",
		Description: "EU payment network",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Metadata struct {
			Domain    string `json:"domain"`
			RiskLevel string `json:"riskLevel"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if !strings.HasPrefix(resp.ID, "graph-") {
		t.Errorf("Expected graph- id prefix, got %s", resp.ID)
	}
	if resp.Status != "active" {
		t.Errorf("Expected status active, got %s", resp.Status)
	}
	if resp.Metadata.Domain != "Banking" {
		t.Errorf("Expected domain Banking, got %s", resp.Metadata.Domain)
	}
	if resp.Metadata.RiskLevel != "low" {
		t.Errorf("Expected risk level low, got %s", resp.Metadata.RiskLevel)
	}
}

func TestHandler_CreateGraph_MissingName(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing name, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// GET /v1/graphs/:id
// ---------------------------------------------------------------------------

func TestHandler_GetGraph_200(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "lookup-me")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/graphs/"+graphID, nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		NodeCount int    `json:"nodeCount"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.ID != graphID {
		t.Errorf("Expected id %s, got %s", graphID, resp.ID)
	}
	if resp.Name != "lookup-me" {
		t.Errorf("Expected name lookup-me, got %s", resp.Name)
	}
}

func TestHandler_GetGraph_404(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/graphs/graph-missing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "not_found" {
		t.Errorf("Expected error code not_found, got %s", resp.Error)
	}
}

// ---------------------------------------------------------------------------
// GET /v1/graphs
// ---------------------------------------------------------------------------

func TestHandler_ListGraphs(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	createTestGraph(t, router, "one")
	createTestGraph(t, router, "two")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/graphs", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Graphs []json.RawMessage `json:"graphs"`
		Count  int               `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Count != 2 {
		t.Errorf("Expected 2 graphs, got %d", resp.Count)
	}
}

func TestHandler_ListGraphs_Paged(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	for _, name := range []string{"a", "b", "c"} {
		createTestGraph(t, router, name)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/graphs?limit=2", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count      int    `json:"count"`
		NextCursor string `json:"nextCursor"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Count != 2 {
		t.Fatalf("Expected 2 graphs on first page, got %d", resp.Count)
	}
	if resp.NextCursor == "" {
		t.Fatal("Expected nextCursor on first page")
	}

	// Second page drains the rest
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/graphs?limit=2&cursor="+resp.NextCursor, nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var page2 struct {
		Count      int    `json:"count"`
		NextCursor string `json:"nextCursor"`
	}
	json.Unmarshal(w.Body.Bytes(), &page2)

	if page2.Count != 1 {
		t.Errorf("Expected 1 graph on second page, got %d", page2.Count)
	}
	if page2.NextCursor != "" {
		t.Errorf("Expected no nextCursor on last page, got %s", page2.NextCursor)
	}
}

func TestHandler_ListGraphs_BadCursor(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/graphs?cursor=%21%21not-a-cursor", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "invalid_cursor" {
		t.Errorf("Expected error invalid_cursor, got %s", resp.Error)
	}
}

func TestHandler_ListGraphs_BadStatus(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/graphs?status=archived", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// PATCH /v1/graphs/:id
// ---------------------------------------------------------------------------

func TestHandler_UpdateGraph(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "before")

	body := []byte(`{"name":"after","status":"inactive"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("PATCH", "/v1/graphs/"+graphID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Name != "after" {
		t.Errorf("Expected name after, got %s", resp.Name)
	}
	if resp.Status != "inactive" {
		t.Errorf("Expected status inactive, got %s", resp.Status)
	}
}

func TestHandler_UpdateGraph_BadStatus(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"status":"paused"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("PATCH", "/v1/graphs/"+graphID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// DELETE /v1/graphs/:id
// ---------------------------------------------------------------------------

func TestHandler_DeleteGraph(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "doomed")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/v1/graphs/"+graphID, nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", w.Code, w.Body.String())
	}

	// Second delete finds nothing
	w = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/v1/graphs/"+graphID, nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on repeat delete, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// POST /v1/graphs/:id/nodes
// ---------------------------------------------------------------------------

func TestHandler_AddNode_201(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"id":"acct-1","type":"account","riskScore":0.4,"properties":{"country":"DE"}}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID        string  `json:"id"`
		Type      string  `json:"type"`
		RiskScore float64 `json:"riskScore"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.ID != "acct-1" {
		t.Errorf("Expected id acct-1, got %s", resp.ID)
	}
	if resp.RiskScore != 0.4 {
		t.Errorf("Expected riskScore 0.4, got %f", resp.RiskScore)
	}
}

func TestHandler_AddNode_BadScore(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"type":"account","riskScore":1.5}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "validation_error" {
		t.Errorf("Expected error validation_error, got %s", resp.Error)
	}
}

func TestHandler_AddNode_UnknownType(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"type":"alien-artifact"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unknown node type, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "invalid_node_type" {
		t.Errorf("Expected error invalid_node_type, got %s", resp.Error)
	}

	// "other" is the catch-all and stays valid
	body = []byte(`{"type":"other"}`)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201 for type other, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_AddNode_Duplicate(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"id":"acct-1","type":"account"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("First add: expected 201, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("Second add: expected 409, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "node_exists" {
		t.Errorf("Expected error node_exists, got %s", resp.Error)
	}
}

func TestHandler_AddNode_GraphMissing(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	body := []byte(`{"type":"account"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/graph-missing/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_AddNode_LimitExceeded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(NewMemoryStore(), syncutil.NewContextShardedMutex(), Limits{MaxNodesPerGraph: 1})
	handler := NewHandler(svc)
	router := gin.New()
	handler.RegisterRoutes(router.Group("/v1"))

	graphID := createTestGraph(t, router, "tiny")

	body := []byte(`{"type":"account"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("First add: expected 201, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "limit_exceeded" {
		t.Errorf("Expected error limit_exceeded, got %s", resp.Error)
	}
}

// ---------------------------------------------------------------------------
// Node reads and updates
// ---------------------------------------------------------------------------

func TestHandler_GetNode(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"id":"acct-1","type":"account"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/graphs/"+graphID+"/nodes/acct-1", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Unknown node
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/graphs/"+graphID+"/nodes/ghost", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown node, got %d", w.Code)
	}
}

func TestHandler_UpdateNode(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"id":"acct-1","type":"account","riskScore":0.2}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	patch := []byte(`{"riskScore":0.85}`)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("PATCH", "/v1/graphs/"+graphID+"/nodes/acct-1", bytes.NewReader(patch))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Type      string  `json:"type"`
		RiskScore float64 `json:"riskScore"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.RiskScore != 0.85 {
		t.Errorf("Expected riskScore 0.85, got %f", resp.RiskScore)
	}
	if resp.Type != "account" {
		t.Errorf("Expected type account to survive, got %s", resp.Type)
	}
}

func TestHandler_UpdateNode_UnknownType(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"id":"acct-1","type":"account"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	patch := []byte(`{"type":"hologram"}`)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("PATCH", "/v1/graphs/"+graphID+"/nodes/acct-1", bytes.NewReader(patch))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unknown node type, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "invalid_node_type" {
		t.Errorf("Expected error invalid_node_type, got %s", resp.Error)
	}
}

func TestHandler_DeleteNode(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"id":"acct-1","type":"account"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/nodes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/v1/graphs/"+graphID+"/nodes/acct-1", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/v1/graphs/"+graphID+"/nodes/acct-1", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on repeat delete, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

func TestHandler_AddEdge_201(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"sourceNodeId":"a","targetNodeId":"b","type":"transfer"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/edges", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID     string  `json:"id"`
		Weight float64 `json:"weight"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if !strings.HasPrefix(resp.ID, "edge-") {
		t.Errorf("Expected edge- id prefix, got %s", resp.ID)
	}
	if resp.Weight != 1.0 {
		t.Errorf("Expected default weight 1, got %f", resp.Weight)
	}
}

func TestHandler_AddEdge_NegativeWeight(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"sourceNodeId":"a","targetNodeId":"b","type":"transfer","weight":-2}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/edges", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative weight, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_AddEdge_UnknownType(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	body := []byte(`{"sourceNodeId":"a","targetNodeId":"b","type":"teleports-to"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/edges", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for unknown edge type, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error string `json:"error"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Error != "invalid_edge_type" {
		t.Errorf("Expected error invalid_edge_type, got %s", resp.Error)
	}
}

func TestHandler_AddEdge_MissingEndpoint(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	// targetNodeId absent
	body := []byte(`{"sourceNodeId":"a","type":"transfer"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/edges", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing endpoint, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandler_ListEdges(t *testing.T) {
	router, _ := setupHandlerTestRouter()
	graphID := createTestGraph(t, router, "test")

	for _, b := range []string{
		`{"sourceNodeId":"a","targetNodeId":"b","type":"transfer"}`,
		`{"sourceNodeId":"b","targetNodeId":"c","type":"transfer"}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/v1/graphs/"+graphID+"/edges", bytes.NewReader([]byte(b)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("Setup: expected 201, got %d", w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/graphs/"+graphID+"/edges", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Count != 2 {
		t.Errorf("Expected 2 edges, got %d", resp.Count)
	}
}

func TestHandler_ListNodes_GraphMissing(t *testing.T) {
	router, _ := setupHandlerTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/graphs/graph-missing/nodes", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
