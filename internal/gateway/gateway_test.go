package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"expertmemory/internal/common"
	"expertmemory/internal/engine"
	"expertmemory/internal/memory"
)

// fakeEngine 只实现问答，记录最近一次请求便于断言检索范围
type fakeEngine struct {
	lastQuery *engine.QueryRequest
	response  *engine.RawResponse
	queryErr  error
}

func (f *fakeEngine) Query(_ context.Context, req engine.QueryRequest) (*engine.RawResponse, error) {
	f.lastQuery = &req
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.response, nil
}

func (f *fakeEngine) CreateStore(_ context.Context, _ string) (string, error) {
	return "", errors.New("未实现")
}
func (f *fakeEngine) RegisterContent(_ context.Context, _ string, _ []byte) (string, error) {
	return "", errors.New("未实现")
}
func (f *fakeEngine) BatchIngest(_ context.Context, _ string, _ []string) (*engine.Batch, error) {
	return nil, errors.New("未实现")
}
func (f *fakeEngine) RemoveContent(_ context.Context, _, _ string) error {
	return errors.New("未实现")
}
func (f *fakeEngine) DeleteContent(_ context.Context, _ string) error {
	return errors.New("未实现")
}
func (f *fakeEngine) DeleteStore(_ context.Context, _ string) error {
	return errors.New("未实现")
}

func newGatewayStack(t *testing.T) (*gorm.DB, *fakeEngine, *Gateway) {
	t.Helper()
	dsn := fmt.Sprintf("file:gwtest_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(memory.AllModels()...))

	eng := &fakeEngine{
		response: &engine.RawResponse{Kind: engine.ResponseKindText, Text: "检索到的回答"},
	}
	registry := memory.NewStoreRegistry(db)
	resolver := memory.NewStoreResolver(db, registry, eng)
	gw := NewGateway(
		memory.NewDomainService(db, eng),
		memory.NewExpertService(db, resolver),
		registry,
		eng,
	)
	return db, eng, gw
}

func seedExpert(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&memory.Domain{DomainName: "儿科", DefaultVectorID: "vs_domain"}).Error)
	require.NoError(t, db.Create(&memory.Expert{
		Name: "张医生", Domain: "儿科", Context: "儿科主任医师，擅长用药指导",
		DefaultVectorID: "vs_domain", PreferredVectorID: "vs_expert",
	}).Error)
}

func requireBizCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var bizErr *common.BusinessError
	require.True(t, errors.As(err, &bizErr), "期望业务错误，实际为：%v", err)
	assert.Equal(t, code, bizErr.Code)
}

func TestGateway_Query_LLM(t *testing.T) {
	db, eng, gw := newGatewayStack(t)
	seedExpert(t, db)

	result, err := gw.Query(context.Background(), QueryInput{
		Question:   "小儿发烧怎么处理？",
		MemoryType: MemoryLLM,
		Expert:     "张医生",
	})
	require.NoError(t, err)
	assert.Equal(t, "检索到的回答", result.Answer)
	assert.Empty(t, result.VectorStoreIDs)
	// 纯模型问答不挂检索，但专家上下文仍然生效
	assert.Empty(t, eng.lastQuery.VectorStoreIDs)
	assert.Equal(t, "儿科主任医师，擅长用药指导", eng.lastQuery.SystemContext)
}

func TestGateway_Query_Domain(t *testing.T) {
	db, eng, gw := newGatewayStack(t)
	seedExpert(t, db)

	result, err := gw.Query(context.Background(), QueryInput{
		Question:   "小儿布洛芬的剂量？",
		MemoryType: MemoryDomain,
		Domain:     "儿科",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"vs_domain"}, result.VectorStoreIDs)
	assert.Equal(t, []string{"vs_domain"}, eng.lastQuery.VectorStoreIDs)

	// 未给领域名时从专家记录推导所属领域
	result, err = gw.Query(context.Background(), QueryInput{
		Question:   "小儿布洛芬的剂量？",
		MemoryType: MemoryDomain,
		Expert:     "张医生",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"vs_domain"}, result.VectorStoreIDs)
	assert.Equal(t, "儿科主任医师，擅长用药指导", eng.lastQuery.SystemContext)

	_, err = gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryDomain,
	})
	requireBizCode(t, err, common.CodeInvalidRequest)

	_, err = gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryDomain, Domain: "不存在",
	})
	requireBizCode(t, err, common.CodeDomainNotFound)

	require.NoError(t, db.Create(&memory.Domain{DomainName: "空领域"}).Error)
	_, err = gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryDomain, Domain: "空领域",
	})
	requireBizCode(t, err, common.CodeNoDomainStore)
}

func TestGateway_Query_Expert(t *testing.T) {
	db, eng, gw := newGatewayStack(t)
	seedExpert(t, db)

	result, err := gw.Query(context.Background(), QueryInput{
		Question:   "张医生对退烧药有什么建议？",
		MemoryType: MemoryExpert,
		Expert:     "张医生",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"vs_expert"}, result.VectorStoreIDs)
	assert.Equal(t, "儿科主任医师，擅长用药指导", eng.lastQuery.SystemContext)

	// 专家问答只认当前指向的向量库，未指向时即便接入过领域默认库也不可问答
	require.NoError(t, db.Create(&memory.Expert{
		Name: "李医生", Domain: "儿科", DefaultVectorID: "vs_domain",
	}).Error)
	_, err = gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryExpert, Expert: "李医生",
	})
	requireBizCode(t, err, common.CodeNoExpertStore)

	require.NoError(t, db.Create(&memory.Expert{Name: "王医生", Domain: "儿科"}).Error)
	_, err = gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryExpert, Expert: "王医生",
	})
	requireBizCode(t, err, common.CodeNoExpertStore)
}

func TestGateway_Query_Client(t *testing.T) {
	db, eng, gw := newGatewayStack(t)
	seedExpert(t, db)
	require.NoError(t, memory.NewStoreRegistry(db).Insert(context.Background(), &memory.StoreRecord{
		VectorID: "vs_client", DomainName: "儿科", ExpertName: "张医生", ClientName: "客户A",
	}))

	result, err := gw.Query(context.Background(), QueryInput{
		Question:   "客户A上次的用药记录？",
		MemoryType: MemoryClient,
		Expert:     "张医生",
		Client:     "客户A",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"vs_client"}, result.VectorStoreIDs)
	assert.Equal(t, []string{"vs_client"}, eng.lastQuery.VectorStoreIDs)

	_, err = gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryClient, Expert: "张医生",
	})
	requireBizCode(t, err, common.CodeMissingClientName)

	// 客户库未登记（从未写入内容）时不可问答
	_, err = gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryClient, Expert: "张医生", Client: "客户B",
	})
	requireBizCode(t, err, common.CodeNoClientStore)
}

func TestGateway_Query_Validation(t *testing.T) {
	_, _, gw := newGatewayStack(t)

	_, err := gw.Query(context.Background(), QueryInput{MemoryType: MemoryLLM})
	requireBizCode(t, err, common.CodeInvalidRequest)

	_, err = gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: "unknown",
	})
	requireBizCode(t, err, common.CodeInvalidMemoryType)
}

func TestGateway_Query_FallbackAnswer(t *testing.T) {
	db, eng, gw := newGatewayStack(t)
	seedExpert(t, db)
	eng.response = &engine.RawResponse{Kind: engine.ResponseKindText, Text: "   "}

	result, err := gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryExpert, Expert: "张医生",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.FallbackAnswer, result.Answer)
}

func TestGateway_Query_EngineFailure(t *testing.T) {
	db, eng, gw := newGatewayStack(t)
	seedExpert(t, db)
	eng.queryErr = errors.New("上游超时")

	_, err := gw.Query(context.Background(), QueryInput{
		Question: "问题", MemoryType: MemoryExpert, Expert: "张医生",
	})
	require.Error(t, err)
	var bizErr *common.BusinessError
	assert.False(t, errors.As(err, &bizErr))
}
