package memory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"expertmemory/internal/common"
	"expertmemory/internal/engine"
	"expertmemory/internal/logger"
	"expertmemory/internal/metrics"
)

// DomainStoreName 领域默认向量库命名规则
func DomainStoreName(domain string) string {
	return "Default_" + domain
}

// ExpertStoreName 专家专属向量库命名规则
func ExpertStoreName(expert, domain string) string {
	return fmt.Sprintf("%s_%s", expert, domain)
}

// ClientStoreName 客户级向量库命名规则
func ClientStoreName(expert, client, domain string) string {
	return fmt.Sprintf("%s_%s_%s", expert, client, domain)
}

// StoreResolver 向量库解析器：把 领域/专家/客户 定位到具体向量库，必要时创建
type StoreResolver struct {
	db       *gorm.DB
	registry *StoreRegistry
	engine   engine.Engine
}

// NewStoreResolver 创建解析器
func NewStoreResolver(db *gorm.DB, registry *StoreRegistry, eng engine.Engine) *StoreResolver {
	return &StoreResolver{db: db, registry: registry, engine: eng}
}

// Registry 返回底层登记簿
func (r *StoreResolver) Registry() *StoreRegistry {
	return r.registry
}

func (r *StoreResolver) loadDomain(ctx context.Context, name string) (*Domain, error) {
	var domain Domain
	err := r.db.WithContext(ctx).Where("domain_name = ?", name).First(&domain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewBusinessErrorf(common.CodeDomainNotFound, "领域 %s 不存在", name)
	}
	if err != nil {
		return nil, err
	}
	return &domain, nil
}

func (r *StoreResolver) loadExpert(ctx context.Context, name string) (*Expert, error) {
	var expert Expert
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&expert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewBusinessErrorf(common.CodeExpertNotFound, "专家 %s 不存在", name)
	}
	if err != nil {
		return nil, err
	}
	return &expert, nil
}

// ResolveDomainStore 解析领域默认向量库，缺失时补建并回写
func (r *StoreResolver) ResolveDomainStore(ctx context.Context, domainName string) (string, error) {
	domain, err := r.loadDomain(ctx, domainName)
	if err != nil {
		return "", err
	}
	if domain.DefaultVectorID != "" {
		return domain.DefaultVectorID, nil
	}
	vectorID, err := r.engine.CreateStore(ctx, DomainStoreName(domainName))
	if err != nil {
		return "", err
	}
	metrics.StoresCreatedTotal.WithLabelValues(OwnerDomain).Inc()
	err = r.db.WithContext(ctx).Model(&Domain{}).
		Where("domain_name = ?", domainName).
		Update("default_vector_id", vectorID).Error
	if err != nil {
		return "", err
	}
	logger.Info("补建领域默认向量库",
		zap.String("domain", domainName), zap.String("vector_id", vectorID))
	return vectorID, nil
}

// ExpertStoreResolution 专家向量库解析结果
type ExpertStoreResolution struct {
	VectorID          string
	StoreName         string
	UsedDomainDefault bool
	Created           bool
}

// AttachExpertStore 为专家接入所属领域的知识库
// useDomainDefault 为真时专家直接沿用领域默认库，否则建立专属库
func (r *StoreResolver) AttachExpertStore(ctx context.Context, expertName string, useDomainDefault bool) (*ExpertStoreResolution, error) {
	expert, err := r.loadExpert(ctx, expertName)
	if err != nil {
		return nil, err
	}
	if expert.Domain == "" {
		return nil, common.NewBusinessErrorf(common.CodeMissingDomainAssociation,
			"专家 %s 未关联任何领域", expertName)
	}
	domain, err := r.loadDomain(ctx, expert.Domain)
	if err != nil {
		return nil, err
	}
	if domain.DefaultVectorID == "" {
		return nil, common.NewBusinessErrorf(common.CodeNoDefaultStore,
			"领域 %s 没有默认向量库", expert.Domain)
	}

	updates := map[string]any{"default_vector_id": domain.DefaultVectorID}
	if useDomainDefault {
		updates["preferred_vector_id"] = domain.DefaultVectorID
	}
	err = r.db.WithContext(ctx).Model(&Expert{}).
		Where("name = ?", expertName).Updates(updates).Error
	if err != nil {
		return nil, err
	}
	if useDomainDefault {
		return &ExpertStoreResolution{
			VectorID:          domain.DefaultVectorID,
			UsedDomainDefault: true,
		}, nil
	}
	return r.EnsureExpertStore(ctx, expertName)
}

// EnsureExpertStore 确保专家拥有专属向量库
// 已有专属库（preferred 存在且不等于领域默认库）时直接复用，否则新建并登记
func (r *StoreResolver) EnsureExpertStore(ctx context.Context, expertName string) (*ExpertStoreResolution, error) {
	expert, err := r.loadExpert(ctx, expertName)
	if err != nil {
		return nil, err
	}
	if expert.Domain == "" {
		return nil, common.NewBusinessErrorf(common.CodeMissingDomainAssociation,
			"专家 %s 未关联任何领域", expertName)
	}
	if expert.PreferredVectorID != "" && expert.PreferredVectorID != expert.DefaultVectorID {
		return &ExpertStoreResolution{
			VectorID:  expert.PreferredVectorID,
			StoreName: ExpertStoreName(expertName, expert.Domain),
		}, nil
	}
	if _, err := r.loadDomain(ctx, expert.Domain); err != nil {
		return nil, err
	}

	storeName := ExpertStoreName(expertName, expert.Domain)
	vectorID, err := r.engine.CreateStore(ctx, storeName)
	if err != nil {
		return nil, err
	}
	metrics.StoresCreatedTotal.WithLabelValues(OwnerExpert).Inc()
	err = r.db.WithContext(ctx).Model(&Expert{}).
		Where("name = ?", expertName).
		Update("preferred_vector_id", vectorID).Error
	if err != nil {
		return nil, err
	}
	record := &StoreRecord{
		VectorID:   vectorID,
		Owner:      OwnerExpert,
		DomainName: expert.Domain,
		ExpertName: expertName,
	}
	if err := r.registry.Insert(ctx, record); err != nil {
		return nil, err
	}
	logger.Info("建立专家专属向量库",
		zap.String("expert", expertName), zap.String("vector_id", vectorID))
	return &ExpertStoreResolution{VectorID: vectorID, StoreName: storeName, Created: true}, nil
}

// ResolveClientStore 解析客户级向量库
// 已登记时复用，否则新建但不登记，登记推迟到首次写入内容
func (r *StoreResolver) ResolveClientStore(ctx context.Context, expertName, clientName string) (string, bool, error) {
	expert, err := r.loadExpert(ctx, expertName)
	if err != nil {
		return "", false, err
	}
	if expert.Domain == "" {
		return "", false, common.NewBusinessErrorf(common.CodeMissingDomainAssociation,
			"专家 %s 未关联任何领域", expertName)
	}
	record, err := r.registry.Find(ctx, OwnerTuple{
		Domain: expert.Domain,
		Expert: expertName,
		Client: clientName,
	})
	if err != nil {
		return "", false, err
	}
	if record != nil {
		return record.VectorID, true, nil
	}
	vectorID, err := r.engine.CreateStore(ctx, ClientStoreName(expertName, clientName, expert.Domain))
	if err != nil {
		return "", false, err
	}
	metrics.StoresCreatedTotal.WithLabelValues(OwnerClient).Inc()
	return vectorID, false, nil
}

// StoreDeletion 向量库删除结果
type StoreDeletion struct {
	Owner    string `json:"owner"`
	VectorID string `json:"vector_id"`
	Domain   string `json:"domain,omitempty"`
	Expert   string `json:"expert,omitempty"`
	Client   string `json:"client,omitempty"`
}

// DeleteByOwner 按归属元组删除向量库：先校验依赖，再删引擎侧，最后清理指针与登记
func (r *StoreResolver) DeleteByOwner(ctx context.Context, tuple OwnerTuple) (*StoreDeletion, error) {
	if tuple.Domain == "" && tuple.Expert == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "请提供领域名或专家名")
	}
	if tuple.Client != "" && tuple.Expert == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "删除客户级向量库必须提供专家名")
	}

	owner := tuple.Owner()
	var record *StoreRecord
	var err error
	switch owner {
	case OwnerDomain:
		record, err = r.registry.FindByFilter(ctx, StoreFilter{Domain: tuple.Domain})
	case OwnerExpert:
		record, err = r.registry.Find(ctx, OwnerTuple{Domain: tuple.Domain, Expert: tuple.Expert})
		if err == nil && record == nil && tuple.Domain == "" {
			record, err = r.registry.FindByFilter(ctx, StoreFilter{Expert: tuple.Expert})
		}
	case OwnerClient:
		record, err = r.registry.Find(ctx, OwnerTuple{Domain: tuple.Domain, Expert: tuple.Expert, Client: tuple.Client})
		if err == nil && record == nil && tuple.Domain == "" {
			record, err = r.registry.FindByFilter(ctx, StoreFilter{Expert: tuple.Expert, Client: tuple.Client})
		}
	}
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, common.NewBusinessError(common.CodeStoreNotFound, "")
	}

	switch owner {
	case OwnerDomain:
		var count int64
		if err := r.db.WithContext(ctx).Model(&Expert{}).
			Where("domain = ?", record.DomainName).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, common.NewBusinessErrorf(common.CodeConflict,
				"领域 %s 下仍有 %d 位专家，无法删除领域向量库", record.DomainName, count)
		}
	case OwnerExpert:
		clients, err := r.registry.ListClientStores(ctx, record.ExpertName)
		if err != nil {
			return nil, err
		}
		if len(clients) > 0 {
			return nil, common.NewBusinessErrorf(common.CodeConflict,
				"专家 %s 名下仍有 %d 个客户向量库，请先删除", record.ExpertName, len(clients))
		}
	}

	if err := r.engine.DeleteStore(ctx, record.VectorID); err != nil {
		return nil, err
	}

	switch owner {
	case OwnerDomain:
		err = r.db.WithContext(ctx).Model(&Domain{}).
			Where("domain_name = ? AND default_vector_id = ?", record.DomainName, record.VectorID).
			Update("default_vector_id", "").Error
	case OwnerExpert:
		err = r.db.WithContext(ctx).Model(&Expert{}).
			Where("name = ? AND preferred_vector_id = ?", record.ExpertName, record.VectorID).
			Update("preferred_vector_id", "").Error
	}
	if err != nil {
		return nil, err
	}
	if err := r.registry.Delete(ctx, record.VectorID); err != nil {
		return nil, err
	}
	logger.Info("删除向量库",
		zap.String("owner", owner), zap.String("vector_id", record.VectorID))
	return &StoreDeletion{
		Owner:    owner,
		VectorID: record.VectorID,
		Domain:   record.DomainName,
		Expert:   record.ExpertName,
		Client:   record.ClientName,
	}, nil
}

// DeleteExpertStore 删除指定专家的专属向量库，要求向量库 ID 与专家当前指向一致
func (r *StoreResolver) DeleteExpertStore(ctx context.Context, expertName, vectorID string) ([]string, error) {
	expert, err := r.loadExpert(ctx, expertName)
	if err != nil {
		return nil, err
	}
	if expert.PreferredVectorID != vectorID {
		return nil, common.NewBusinessErrorf(common.CodeVectorIDMismatch,
			"向量库 %s 不是专家 %s 当前使用的向量库", vectorID, expertName)
	}
	if err := r.engine.DeleteStore(ctx, vectorID); err != nil {
		return nil, err
	}
	var warnings []string
	err = r.db.WithContext(ctx).Model(&Expert{}).
		Where("name = ?", expertName).
		Update("preferred_vector_id", "").Error
	if err != nil {
		warnings = append(warnings, "向量库已删除，但专家指向清理失败："+err.Error())
	}
	record, err := r.registry.FindByVectorID(ctx, vectorID)
	if err == nil && record != nil {
		if err := r.registry.Delete(ctx, vectorID); err != nil {
			warnings = append(warnings, "向量库已删除，但登记记录清理失败："+err.Error())
		}
	}
	return warnings, nil
}
