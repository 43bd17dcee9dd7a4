package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"expertmemory/internal/common"
	"expertmemory/internal/config"
	"expertmemory/internal/engine"
	"expertmemory/internal/memory"
)

// stubEngine 全链路测试用的引擎桩，按序分配 ID 并返回固定回答
type stubEngine struct {
	mu        sync.Mutex
	storeSeq  int
	fileSeq   int
	batchSeq  int
	deleted   []string
	lastQuery *engine.QueryRequest
}

func (s *stubEngine) CreateStore(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeSeq++
	return fmt.Sprintf("vs_%03d", s.storeSeq), nil
}

func (s *stubEngine) RegisterContent(_ context.Context, _ string, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileSeq++
	return fmt.Sprintf("file_%03d", s.fileSeq), nil
}

func (s *stubEngine) BatchIngest(_ context.Context, _ string, _ []string) (*engine.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSeq++
	return &engine.Batch{ID: fmt.Sprintf("vsb_%03d", s.batchSeq), Status: "completed"}, nil
}

func (s *stubEngine) RemoveContent(_ context.Context, _, _ string) error { return nil }

func (s *stubEngine) DeleteContent(_ context.Context, _ string) error { return nil }

func (s *stubEngine) DeleteStore(_ context.Context, vectorStoreID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, vectorStoreID)
	return nil
}

func (s *stubEngine) Query(_ context.Context, req engine.QueryRequest) (*engine.RawResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = &req
	return &engine.RawResponse{Kind: engine.ResponseKindText, Text: "检索到的回答"}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubEngine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:apitest_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(memory.AllModels()...))

	eng := &stubEngine{}
	cfg := &config.Config{}
	cfg.Ingest.DownloadTimeoutSeconds = 5
	return SetupRouterWithEngine(db, cfg, eng), eng
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, common.APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp common.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "响应体: %s", w.Body.String())
	return w, resp
}

func dataField(t *testing.T, resp common.APIResponse, key string) any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data 不是对象: %v", resp.Data)
	return data[key]
}

func newDocServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("文档内容"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRoutes_DomainLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	w, resp := doJSON(t, router, "POST", "/api/domains", gin.H{"domain_name": "儿科"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "vs_001", dataField(t, resp, "default_vector_id"))

	w, _ = doJSON(t, router, "POST", "/api/domains", gin.H{"domain_name": "儿科"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = doJSON(t, router, "GET", "/api/domains", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), dataField(t, resp, "total"))

	w, resp = doJSON(t, router, "GET", "/api/domains/儿科/vector_id", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vs_001", dataField(t, resp, "vector_id"))

	w, resp = doJSON(t, router, "GET", "/api/domains/不存在/vector_id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, common.CodeDomainNotFound, resp.Code)
}

func TestRoutes_ExpertLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, "POST", "/api/domains", gin.H{"domain_name": "儿科"})

	w, resp := doJSON(t, router, "POST", "/api/experts", gin.H{
		"name": "张医生", "domain": "儿科", "context": "儿科主任医师",
	})
	assert.Equal(t, http.StatusCreated, w.Code, "响应: %s", w.Body.String())
	assert.Equal(t, "vs_002", dataField(t, resp, "preferred_vector_id"))

	w, resp = doJSON(t, router, "GET", "/api/experts/张医生/vector_id", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vs_002", dataField(t, resp, "vector_id"))

	w, resp = doJSON(t, router, "GET", "/api/experts/张医生/context", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "儿科主任医师", dataField(t, resp, "context"))

	w, _ = doJSON(t, router, "PUT", "/api/experts/context", gin.H{
		"expert_name": "张医生", "context": "更新后的介绍",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	_, resp = doJSON(t, router, "GET", "/api/experts/张医生/context", nil)
	assert.Equal(t, "更新后的介绍", dataField(t, resp, "context"))

	w, _ = doJSON(t, router, "POST", "/api/experts", gin.H{
		"name": "王医生", "domain": "不存在",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_IngestAndDocuments(t *testing.T) {
	router, _ := newTestRouter(t)
	server := newDocServer(t)
	doJSON(t, router, "POST", "/api/domains", gin.H{"domain_name": "儿科"})
	doJSON(t, router, "POST", "/api/experts", gin.H{"name": "张医生", "domain": "儿科"})

	w, resp := doJSON(t, router, "POST", "/api/vectors/domain/files", gin.H{
		"domain_name": "儿科",
		"documents":   []gin.H{{"name": "用药指南", "url": server.URL + "/指南.pdf"}},
	})
	assert.Equal(t, http.StatusOK, w.Code, "响应: %s", w.Body.String())
	assert.Equal(t, "vsb_001", dataField(t, resp, "batch_id"))

	w, resp = doJSON(t, router, "GET", "/api/documents?domain=儿科", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), dataField(t, resp, "total"))

	// 客户私有文档
	w, _ = doJSON(t, router, "POST", "/api/vectors/expert/files", gin.H{
		"expert_name": "张医生", "client_name": "客户A",
		"documents": []gin.H{{"name": "病历", "url": server.URL + "/病历.pdf"}},
	})
	assert.Equal(t, http.StatusOK, w.Code, "响应: %s", w.Body.String())

	w, resp = doJSON(t, router, "GET", "/api/experts/张医生/clients", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"客户A"}, dataField(t, resp, "clients"))

	w, resp = doJSON(t, router, "GET", "/api/experts/张医生/clients?domain=骨科", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), dataField(t, resp, "total"))

	// 条件查询已登记的向量库
	w, resp = doJSON(t, router, "GET", "/api/vectors/search?expert=张医生&client=客户A", nil)
	assert.Equal(t, http.StatusOK, w.Code, "响应: %s", w.Body.String())
	assert.Equal(t, "client", dataField(t, resp, "owner"))

	w, resp = doJSON(t, router, "GET", "/api/vectors/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, common.CodeInvalidRequest, resp.Code)

	w, resp = doJSON(t, router, "GET", "/api/vectors/search?domain=内科", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, common.CodeStoreNotFound, resp.Code)

	// 覆盖更新：剔除旧文档，换成新文档
	w, resp = doJSON(t, router, "POST", "/api/vectors/update", gin.H{
		"domain_name": "儿科",
		"documents":   []gin.H{{"name": "新版指南", "url": server.URL + "/新版.pdf"}},
	})
	assert.Equal(t, http.StatusOK, w.Code, "响应: %s", w.Body.String())
	removed, _ := dataField(t, resp, "removed_files").([]any)
	assert.Len(t, removed, 1)
}

func TestRoutes_QueryFlow(t *testing.T) {
	router, eng := newTestRouter(t)
	server := newDocServer(t)
	doJSON(t, router, "POST", "/api/domains", gin.H{"domain_name": "儿科"})
	doJSON(t, router, "POST", "/api/experts", gin.H{
		"name": "张医生", "domain": "儿科", "context": "儿科主任医师",
	})
	doJSON(t, router, "POST", "/api/vectors/expert/files", gin.H{
		"expert_name": "张医生",
		"documents":   []gin.H{{"name": "讲义", "url": server.URL + "/讲义.pdf"}},
	})

	w, resp := doJSON(t, router, "POST", "/api/query", gin.H{
		"question": "小儿发烧怎么处理？", "memory_type": "expert", "expert_name": "张医生",
	})
	assert.Equal(t, http.StatusOK, w.Code, "响应: %s", w.Body.String())
	assert.Equal(t, "检索到的回答", dataField(t, resp, "answer"))
	assert.Equal(t, []string{"vs_002"}, eng.lastQuery.VectorStoreIDs)
	assert.Equal(t, "儿科主任医师", eng.lastQuery.SystemContext)

	w, resp = doJSON(t, router, "POST", "/api/query", gin.H{
		"question": "你好", "memory_type": "llm",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, eng.lastQuery.VectorStoreIDs)

	w, _ = doJSON(t, router, "POST", "/api/query", gin.H{
		"question": "你好", "memory_type": "unknown",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = doJSON(t, router, "POST", "/api/query", gin.H{
		"question": "问题", "memory_type": "client", "expert_name": "张医生", "client_name": "客户B",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, common.CodeNoClientStore, resp.Code)
}

func TestRoutes_DeleteMemory(t *testing.T) {
	router, eng := newTestRouter(t)
	server := newDocServer(t)
	doJSON(t, router, "POST", "/api/domains", gin.H{"domain_name": "儿科"})
	doJSON(t, router, "POST", "/api/experts", gin.H{"name": "张医生", "domain": "儿科"})
	doJSON(t, router, "POST", "/api/vectors/expert/files", gin.H{
		"expert_name": "张医生", "client_name": "客户A",
		"documents": []gin.H{{"name": "病历", "url": server.URL + "/病历.pdf"}},
	})

	// 名下还有客户库时专家库不可删
	w, _ := doJSON(t, router, "DELETE", "/api/vectors/memory", gin.H{"expert_name": "张医生"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp := doJSON(t, router, "DELETE", "/api/vectors/memory", gin.H{
		"expert_name": "张医生", "client_name": "客户A",
	})
	assert.Equal(t, http.StatusOK, w.Code, "响应: %s", w.Body.String())
	assert.Equal(t, "client", dataField(t, resp, "owner"))
	assert.NotEmpty(t, eng.deleted)

	w, _ = doJSON(t, router, "DELETE", "/api/vectors/memory", gin.H{"expert_name": "张医生"})
	assert.Equal(t, http.StatusOK, w.Code, "响应: %s", w.Body.String())
}

func TestRoutes_BareStoreAndHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w, resp := doJSON(t, router, "POST", "/api/vectors/stores", gin.H{"name": "自定义库"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "vs_001", dataField(t, resp, "vector_id"))

	req, _ := http.NewRequest("GET", "/health", nil)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), "expertmemory")
}
