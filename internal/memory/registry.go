package memory

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"expertmemory/internal/common"
)

// OwnerTuple 向量库归属元组，Expert/Client 为空串表示对应层级缺省
type OwnerTuple struct {
	Domain string
	Expert string
	Client string
}

// Owner 根据元组形态推导归属类型
func (t OwnerTuple) Owner() string {
	switch {
	case t.Client != "":
		return OwnerClient
	case t.Expert != "":
		return OwnerExpert
	default:
		return OwnerDomain
	}
}

// StoreRegistry 向量库登记簿：vector_stores 表的唯一读写入口
type StoreRegistry struct {
	db *gorm.DB
}

// NewStoreRegistry 创建登记簿
func NewStoreRegistry(db *gorm.DB) *StoreRegistry {
	return &StoreRegistry{db: db}
}

// Find 按归属元组查找登记记录，未登记时返回 (nil, nil)
func (r *StoreRegistry) Find(ctx context.Context, tuple OwnerTuple) (*StoreRecord, error) {
	var records []StoreRecord
	err := r.db.WithContext(ctx).
		Where("domain_name = ? AND expert_name = ? AND client_name = ?",
			tuple.Domain, tuple.Expert, tuple.Client).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return &records[0], nil
	default:
		// 复合唯一索引下不应出现，出现即数据异常，提示缩小查询范围
		return nil, common.NewBusinessError(common.CodeAmbiguousStoreFilter, "")
	}
}

// FindByVectorID 按向量库 ID 查找登记记录，未登记时返回 (nil, nil)
func (r *StoreRegistry) FindByVectorID(ctx context.Context, vectorID string) (*StoreRecord, error) {
	var record StoreRecord
	err := r.db.WithContext(ctx).Where("vector_id = ?", vectorID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Insert 登记新向量库，归属元组或向量库 ID 冲突时返回重复登记错误
func (r *StoreRegistry) Insert(ctx context.Context, record *StoreRecord) error {
	existing, err := r.Find(ctx, record.Tuple())
	if err != nil {
		return err
	}
	if existing != nil {
		return common.NewBusinessErrorf(common.CodeDuplicateStore,
			"归属 (%s, %s, %s) 的向量库已登记", record.DomainName, record.ExpertName, record.ClientName)
	}
	if record.Owner == "" {
		record.Owner = record.Tuple().Owner()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.NewBusinessError(common.CodeDuplicateStore, "")
		}
		return err
	}
	return nil
}

// Update 按向量库 ID 更新登记记录字段
func (r *StoreRegistry) Update(ctx context.Context, vectorID string, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&StoreRecord{}).
		Where("vector_id = ?", vectorID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.NewBusinessErrorf(common.CodeStoreNotFound, "向量库 %s 未登记", vectorID)
	}
	return nil
}

// Delete 按向量库 ID 删除登记记录
func (r *StoreRegistry) Delete(ctx context.Context, vectorID string) error {
	result := r.db.WithContext(ctx).Where("vector_id = ?", vectorID).Delete(&StoreRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.NewBusinessErrorf(common.CodeStoreNotFound, "向量库 %s 未登记", vectorID)
	}
	return nil
}

// ListClientStores 列出某专家名下全部客户级向量库
func (r *StoreRegistry) ListClientStores(ctx context.Context, expertName string) ([]StoreRecord, error) {
	var records []StoreRecord
	err := r.db.WithContext(ctx).
		Where("owner = ? AND expert_name = ?", OwnerClient, expertName).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// StoreFilter 向量库条件查询：至少提供一个维度
type StoreFilter struct {
	Domain string
	Expert string
	Client string
}

// FindByFilter 按任意维度组合查找登记记录
// 归属类型按 客户 > 专家 > 领域 的优先级由条件推导，只查对应归属层级的记录；
// 命中多条时要求调用方补充条件，未命中返回 (nil, nil)
func (r *StoreRegistry) FindByFilter(ctx context.Context, filter StoreFilter) (*StoreRecord, error) {
	if filter.Domain == "" && filter.Expert == "" && filter.Client == "" {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "请至少提供一个查询条件")
	}
	owner := OwnerTuple{Domain: filter.Domain, Expert: filter.Expert, Client: filter.Client}.Owner()
	query := r.db.WithContext(ctx).Model(&StoreRecord{}).Where("owner = ?", owner)
	if filter.Domain != "" {
		query = query.Where("domain_name = ?", filter.Domain)
	}
	if filter.Expert != "" {
		query = query.Where("expert_name = ?", filter.Expert)
	}
	if filter.Client != "" {
		query = query.Where("client_name = ?", filter.Client)
	}
	var records []StoreRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return &records[0], nil
	default:
		return nil, common.NewBusinessError(common.CodeAmbiguousStoreFilter, "")
	}
}
