package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery/docquery/internal/models"
)

type fakePipeline struct {
	ingestFiles  []models.File
	ingestResult models.IngestSummary
	ingestErr    error

	queryReq    models.QueryRequest
	queryResult models.QueryResponse
	queryErr    error
}

func (f *fakePipeline) Ingest(_ context.Context, files []models.File) (models.IngestSummary, error) {
	f.ingestFiles = files
	return f.ingestResult, f.ingestErr
}

func (f *fakePipeline) Query(_ context.Context, req models.QueryRequest) (models.QueryResponse, error) {
	f.queryReq = req
	return f.queryResult, f.queryErr
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	e := New(&fakePipeline{}, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestIngest(t *testing.T) {
	fake := &fakePipeline{ingestResult: models.IngestSummary{
		InsertedChunks:    2,
		TotalTokensApprox: 42,
		VectorDim:         4,
		ChunkIDs:          []string{"id1", "id2"},
	}}
	e := New(fake, nil)

	body, contentType := multipartBody(t, map[string]string{"notes.txt": "hello world"})
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary models.IngestSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.InsertedChunks)
	assert.Equal(t, []string{"id1", "id2"}, summary.ChunkIDs)

	require.Len(t, fake.ingestFiles, 1)
	assert.Equal(t, "notes.txt", fake.ingestFiles[0].Name)
	assert.Equal(t, []byte("hello world"), fake.ingestFiles[0].Data)
}

func TestIngest_NoFiles(t *testing.T) {
	e := New(&fakePipeline{}, nil)

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No files provided")
}

func TestIngest_NotMultipart(t *testing.T) {
	e := New(&fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_PipelineFailure(t *testing.T) {
	fake := &fakePipeline{ingestErr: errors.New("failed processing broken.pdf: bad xref")}
	e := New(fake, nil)

	body, contentType := multipartBody(t, map[string]string{"broken.pdf": "%PDF"})
	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed processing broken.pdf")
}

func TestQuery(t *testing.T) {
	fake := &fakePipeline{queryResult: models.QueryResponse{
		Answer: "Paris.",
		Sources: []models.SourceItem{
			{ChunkID: "c1", Source: "doc.pdf", PageNumber: 3, Similarity: 0.9123, Snippet: "snippet"},
		},
	}}
	e := New(fake, nil)

	payload := `{"question":"capital of France?","k":5,"filter":{"source":"doc.pdf"}}`
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Paris.", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, 0.9123, resp.Sources[0].Similarity)

	assert.Equal(t, "capital of France?", fake.queryReq.Question)
	assert.Equal(t, 5, fake.queryReq.K)
	require.NotNil(t, fake.queryReq.Filter)
	assert.Equal(t, "doc.pdf", fake.queryReq.Filter.Source)
}

func TestQuery_MissingQuestion(t *testing.T) {
	e := New(&fakePipeline{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"k":3}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "question is required")
}

func TestQuery_PipelineFailure(t *testing.T) {
	fake := &fakePipeline{queryErr: errors.New("embedding failed: model offline")}
	e := New(fake, nil)

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"question":"q?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "embedding failed")
}

func TestQuery_LLMFailureStays200(t *testing.T) {
	fake := &fakePipeline{queryResult: models.QueryResponse{
		Answer:  "LLM call failed: connection refused",
		Sources: []models.SourceItem{{ChunkID: "c1"}},
	}}
	e := New(fake, nil)

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"question":"q?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LLM call failed")
}

func TestWebSocketChat(t *testing.T) {
	fake := &fakePipeline{queryResult: models.QueryResponse{
		Answer:  "Paris.",
		Sources: []models.SourceItem{{ChunkID: "c1", Source: "doc.pdf"}},
	}}
	srv := httptest.NewServer(New(fake, nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("capital of France?")))

	var status, answer, sources Message
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "status", status.Type)
	require.NoError(t, conn.ReadJSON(&answer))
	assert.Equal(t, "answer", answer.Type)
	assert.Equal(t, "Paris.", answer.Content)
	require.NoError(t, conn.ReadJSON(&sources))
	assert.Equal(t, "sources", sources.Type)
	assert.NotNil(t, sources.Data)

	assert.Equal(t, "capital of France?", fake.queryReq.Question)
}

func TestWebSocketChat_QueryError(t *testing.T) {
	fake := &fakePipeline{queryErr: errors.New("store failed: down")}
	srv := httptest.NewServer(New(fake, nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("q?")))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "status", msg.Type)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Content, "store failed")
}
