package memory

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"expertmemory/internal/common"
	"expertmemory/internal/logger"
)

// ExpertService 专家管理
type ExpertService struct {
	db       *gorm.DB
	resolver *StoreResolver
}

// NewExpertService 创建专家服务
func NewExpertService(db *gorm.DB, resolver *StoreResolver) *ExpertService {
	return &ExpertService{db: db, resolver: resolver}
}

// CreateExpertInput 创建专家的入参
type CreateExpertInput struct {
	Name                      string
	Domain                    string
	Context                   string
	UseDefaultDomainKnowledge bool
}

// CreateExpert 创建专家并接入领域知识库
// 专家落库为主步骤，成员缓存维护与知识库接入为附属步骤，附属失败以警告返回
func (s *ExpertService) CreateExpert(ctx context.Context, input CreateExpertInput) (*Expert, []string, error) {
	if _, err := s.resolver.loadDomain(ctx, input.Domain); err != nil {
		return nil, nil, err
	}

	expert := &Expert{
		Name:    input.Name,
		Domain:  input.Domain,
		Context: input.Context,
	}
	if err := s.db.WithContext(ctx).Create(expert).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, common.NewBusinessErrorf(common.CodeConflict, "专家 %s 已存在", input.Name)
		}
		return nil, nil, err
	}

	var warnings []string
	if err := appendExpertName(ctx, s.db, input.Domain, input.Name); err != nil {
		logger.Warn("领域成员缓存更新失败",
			zap.String("expert", input.Name), zap.String("domain", input.Domain), zap.Error(err))
		warnings = append(warnings, "专家已创建，但领域成员列表更新失败："+err.Error())
	}
	if _, err := s.resolver.AttachExpertStore(ctx, input.Name, input.UseDefaultDomainKnowledge); err != nil {
		logger.Warn("专家知识库接入失败",
			zap.String("expert", input.Name), zap.Error(err))
		warnings = append(warnings, "专家已创建，但知识库接入失败："+err.Error())
	}

	created, err := s.GetExpert(ctx, input.Name)
	if err != nil {
		return expert, warnings, nil
	}
	logger.Info("创建专家", zap.String("expert", input.Name), zap.String("domain", input.Domain))
	return created, warnings, nil
}

// ListExperts 返回全部专家
func (s *ExpertService) ListExperts(ctx context.Context) ([]Expert, error) {
	var experts []Expert
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&experts).Error
	if err != nil {
		return nil, err
	}
	return experts, nil
}

// GetExpert 按名称查询专家
func (s *ExpertService) GetExpert(ctx context.Context, name string) (*Expert, error) {
	return s.resolver.loadExpert(ctx, name)
}

// GetExpertVectorID 查询专家当前使用的向量库 ID
// 优先专属库，未建立专属库时回退为接入的领域默认库
func (s *ExpertService) GetExpertVectorID(ctx context.Context, name string) (string, error) {
	expert, err := s.resolver.loadExpert(ctx, name)
	if err != nil {
		return "", err
	}
	if expert.PreferredVectorID != "" {
		return expert.PreferredVectorID, nil
	}
	return expert.DefaultVectorID, nil
}

// GetContext 查询专家上下文
func (s *ExpertService) GetContext(ctx context.Context, name string) (string, error) {
	expert, err := s.resolver.loadExpert(ctx, name)
	if err != nil {
		return "", err
	}
	return expert.Context, nil
}

// UpdateContext 覆盖更新专家上下文
func (s *ExpertService) UpdateContext(ctx context.Context, name, context string) error {
	if _, err := s.resolver.loadExpert(ctx, name); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&Expert{}).
		Where("name = ?", name).
		Update("context", context).Error
}

// ListClientNames 列出某专家名下出现过的客户名，按文档登记去重；domain 为空时不限领域
func (s *ExpertService) ListClientNames(ctx context.Context, expertName, domain string) ([]string, error) {
	if _, err := s.resolver.loadExpert(ctx, expertName); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Model(&Document{}).
		Distinct("client_name").
		Where("created_by = ? AND client_name <> ''", expertName)
	if domain != "" {
		query = query.Where("domain = ?", domain)
	}
	var names []string
	if err := query.Order("client_name ASC").Pluck("client_name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}
