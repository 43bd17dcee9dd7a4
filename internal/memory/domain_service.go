package memory

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"expertmemory/internal/common"
	"expertmemory/internal/engine"
	"expertmemory/internal/logger"
	"expertmemory/internal/metrics"
)

// DomainService 领域管理
type DomainService struct {
	db     *gorm.DB
	engine engine.Engine
}

// NewDomainService 创建领域服务
func NewDomainService(db *gorm.DB, eng engine.Engine) *DomainService {
	return &DomainService{db: db, engine: eng}
}

// CreateDomain 创建领域并同步建立默认向量库
// 向量库创建失败不阻断领域落库，以警告形式返回，后续解析时自动补建
func (s *DomainService) CreateDomain(ctx context.Context, name string) (*Domain, []string, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Domain{}).
		Where("domain_name = ?", name).Count(&count).Error; err != nil {
		return nil, nil, err
	}
	if count > 0 {
		return nil, nil, common.NewBusinessErrorf(common.CodeDomainExists, "领域 %s 已存在", name)
	}

	var warnings []string
	vectorID, err := s.engine.CreateStore(ctx, DomainStoreName(name))
	if err != nil {
		logger.Warn("领域默认向量库创建失败，领域仍将落库",
			zap.String("domain", name), zap.Error(err))
		warnings = append(warnings, "默认向量库创建失败，将在首次使用时补建："+err.Error())
		vectorID = ""
	} else {
		metrics.StoresCreatedTotal.WithLabelValues(OwnerDomain).Inc()
	}

	domain := &Domain{
		DomainName:      name,
		DefaultVectorID: vectorID,
		ExpertNames:     []string{},
	}
	if err := s.db.WithContext(ctx).Create(domain).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, common.NewBusinessErrorf(common.CodeDomainExists, "领域 %s 已存在", name)
		}
		return nil, nil, err
	}
	logger.Info("创建领域", zap.String("domain", name), zap.String("vector_id", vectorID))
	return domain, warnings, nil
}

// ListDomains 返回全部领域
func (s *DomainService) ListDomains(ctx context.Context) ([]Domain, error) {
	var domains []Domain
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&domains).Error
	if err != nil {
		return nil, err
	}
	return domains, nil
}

// GetDomain 按名称查询领域
func (s *DomainService) GetDomain(ctx context.Context, name string) (*Domain, error) {
	var domain Domain
	err := s.db.WithContext(ctx).Where("domain_name = ?", name).First(&domain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewBusinessErrorf(common.CodeDomainNotFound, "领域 %s 不存在", name)
	}
	if err != nil {
		return nil, err
	}
	return &domain, nil
}

// GetDomainVectorID 查询领域默认向量库 ID，尚未建立时返回空串
func (s *DomainService) GetDomainVectorID(ctx context.Context, name string) (string, error) {
	domain, err := s.GetDomain(ctx, name)
	if err != nil {
		return "", err
	}
	return domain.DefaultVectorID, nil
}

// appendExpertName 将专家名追加进领域的成员缓存，已存在时不重复
func appendExpertName(ctx context.Context, db *gorm.DB, domainName, expertName string) error {
	var domain Domain
	err := db.WithContext(ctx).Where("domain_name = ?", domainName).First(&domain).Error
	if err != nil {
		return err
	}
	for _, name := range domain.ExpertNames {
		if name == expertName {
			return nil
		}
	}
	names := append(domain.ExpertNames, expertName)
	return db.WithContext(ctx).Model(&Domain{}).
		Where("domain_name = ?", domainName).
		Update("expert_names", names).Error
}
